package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"

	"noterang/internal/nrerrors"
)

// uploadAttachment pushes the file to the object store's media-upload
// endpoint and returns the public read URL.
func (p *Publisher) uploadAttachment(ctx context.Context, token, filePath, name string) (string, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("read attachment: %w", err)
	}
	if name == "" {
		name = path.Base(filePath)
	}
	objectName := "articles/" + name

	endpoint := fmt.Sprintf("%s/v0/b/%s/o?uploadType=media&name=%s",
		p.storageBase, p.cfg.FirebaseBucket, url.QueryEscape(objectName))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", mimeFor(name))

	resp, err := p.http.Do(req)
	if err != nil {
		return "", nrerrors.Transient(fmt.Errorf("storage upload: %w", err))
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return "", nrerrors.AuthExpired("storage upload", fmt.Errorf("status %d", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		return "", nrerrors.TransientHTTP(fmt.Errorf("storage upload status %d", resp.StatusCode), resp.StatusCode)
	}

	var out struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(body, &out); err != nil || out.Name == "" {
		return "", fmt.Errorf("storage upload: no canonical name in response")
	}
	return fmt.Sprintf("%s/v0/b/%s/o/%s?alt=media",
		p.storageBase, p.cfg.FirebaseBucket, url.PathEscape(out.Name)), nil
}

func mimeFor(name string) string {
	switch path.Ext(name) {
	case ".pdf":
		return "application/pdf"
	case ".pptx":
		return "application/vnd.openxmlformats-officedocument.presentationml.presentation"
	case ".png":
		return "image/png"
	default:
		return "application/octet-stream"
	}
}
