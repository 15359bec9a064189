package nrerrors

import (
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind Kind
	}{
		{"auth expired", AuthExpired("list_notebooks", errors.New("401")), KindAuthExpired},
		{"overlay", OverlayNotFound("click add source", nil), KindOverlayNotFound},
		{"rpc", RPCFailure("create_notebook", errors.New("500")), KindRPCFailure},
		{"generation", GenerationFailed("poll_studio", "오류"), KindGenerationFailed},
		{"timeout", PhaseTimeout("poll_slides", 10*time.Minute), KindTimeout},
		{"download", DownloadFailed("download_slide_deck", nil), KindDownloadFailed},
		{"config", ConfigError("login", errors.New("missing secret")), KindConfig},
		{"plain", errors.New("boom"), KindUnknown},
		{"wrapped", fmt.Errorf("step: %w", RPCFailure("add_source", nil)), KindRPCFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, KindOf(tt.err))
		})
	}
}

func TestIsTransient(t *testing.T) {
	assert.False(t, IsTransient(nil))
	assert.True(t, IsTransient(Transient(errors.New("flaky"))))
	assert.False(t, IsTransient(Permanent(errors.New("nope"))))

	// kinds carry their own retry policy
	assert.True(t, IsTransient(RPCFailure("poll_studio", errors.New("502"))))
	assert.False(t, IsTransient(GenerationFailed("poll_studio", "생성할 수 없")))
	assert.False(t, IsTransient(PhaseTimeout("download", time.Minute)))
	assert.False(t, IsTransient(ConfigError("login", errors.New("missing"))))

	// HTTP classification via wrapper status codes
	assert.True(t, IsTransient(TransientHTTP(errors.New("slow down"), 429)))
	assert.True(t, IsTransient(TransientHTTP(errors.New("bad gateway"), 502)))

	// network errors
	assert.True(t, IsTransient(&net.OpError{Op: "dial", Err: errors.New("connection refused")}))
	assert.True(t, IsTransient(errors.New("read tcp 1.2.3.4: i/o timeout")))
	assert.False(t, IsTransient(errors.New("invalid argument")))
}

func TestIsAuthFailure(t *testing.T) {
	assert.True(t, IsAuthFailure(AuthExpired("get_sources", nil)))
	assert.True(t, IsAuthFailure(&PermanentError{Err: errors.New("forbidden"), StatusCode: 403}))
	assert.False(t, IsAuthFailure(RPCFailure("get_sources", errors.New("500"))))
	assert.False(t, IsAuthFailure(nil))
}

func TestErrorStringsNameOpAndKind(t *testing.T) {
	err := OverlayNotFound("overlay_click_primary_action", errors.New("no enabled submit button"))
	assert.Contains(t, err.Error(), "overlay_click_primary_action")
	assert.Contains(t, err.Error(), "overlay_not_found")
}
