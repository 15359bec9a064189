package nlm

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"noterang/internal/nrerrors"
)

// PollStudio lists the notebook's generated artifacts, newest last.
// Completion of the in-flight generation is inferred from the latest
// artifact's status.
func (c *Client) PollStudio(ctx context.Context, notebookID string) ([]ArtifactState, error) {
	payload, err := c.call(ctx, rpcPollStudio, []any{notebookID})
	if err != nil {
		return nil, err
	}
	rows, err := decodeRows(payload)
	if err != nil {
		return nil, err
	}
	var artifacts []ArtifactState
	for _, raw := range arr(at(rows, 0)) {
		row := arr(raw)
		artifact := ArtifactState{
			ID:     str(at(row, 0)),
			Status: artifactStatus(at(row, 1)),
		}
		if artifact.ID != "" {
			artifacts = append(artifacts, artifact)
		}
	}
	return artifacts, nil
}

// exportURL carried on a completed artifact row.
func (c *Client) artifactExportURL(ctx context.Context, notebookID string) (string, error) {
	payload, err := c.call(ctx, rpcPollStudio, []any{notebookID})
	if err != nil {
		return "", err
	}
	rows, err := decodeRows(payload)
	if err != nil {
		return "", err
	}
	list := arr(at(rows, 0))
	for i := len(list) - 1; i >= 0; i-- {
		row := arr(list[i])
		if artifactStatus(at(row, 1)) != "completed" {
			continue
		}
		if u := str(at(row, 2)); u != "" {
			return u, nil
		}
	}
	return "", fmt.Errorf("no completed artifact with an export url")
}

// DownloadSlideDeck fetches the latest completed deck as PDF into
// targetPath.
func (c *Client) DownloadSlideDeck(ctx context.Context, notebookID, targetPath string) (string, error) {
	exportURL, err := c.artifactExportURL(ctx, notebookID)
	if err != nil {
		return "", nrerrors.DownloadFailed("download_slide_deck", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, exportURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Cookie", c.cookieHeader())
	resp, err := c.http.Do(req)
	if err != nil {
		return "", nrerrors.DownloadFailed("download_slide_deck", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", nrerrors.DownloadFailed("download_slide_deck", fmt.Errorf("status %d", resp.StatusCode))
	}

	if err := os.MkdirAll(filepath.Dir(targetPath), 0o755); err != nil {
		return "", err
	}
	out, err := os.Create(targetPath)
	if err != nil {
		return "", err
	}
	defer out.Close()
	if _, err := io.Copy(out, resp.Body); err != nil {
		os.Remove(targetPath)
		return "", nrerrors.DownloadFailed("download_slide_deck", err)
	}
	return targetPath, nil
}

func artifactStatus(v any) string {
	code, _ := v.(float64)
	switch int(code) {
	case 1:
		return "pending"
	case 2:
		return "in_progress"
	case 3:
		return "completed"
	case 4:
		return "failed"
	default:
		return "unknown"
	}
}
