package nlm

import (
	"net/http"
	"time"

	"noterang/internal/logging"
)

func newTestClient(baseURL string) *Client {
	return &Client{
		http:      &http.Client{Timeout: 5 * time.Second},
		baseURL:   baseURL,
		cookies:   map[string]string{"SID": "sid-value", "SAPISID": "sapisid-value"},
		csrfToken: "sapisid-value:1700000000000",
		createdAt: time.Now(),
		log:       logging.Nop(),
	}
}

func (p *Pool) ageClient(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client != nil {
		p.client.createdAt = p.client.createdAt.Add(-d)
	}
}

func (p *Pool) current() *Client {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.client
}
