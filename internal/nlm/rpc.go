package nlm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"noterang/internal/nrerrors"
)

// RPC method ids of the product's batch-execute endpoint. The endpoint
// multiplexes every operation behind opaque ids; these are the ones the
// workflow needs.
const (
	rpcListNotebooks  = "wXbhsf"
	rpcCreateNotebook = "CCqFvf"
	rpcDeleteNotebook = "WWINqb"
	rpcGetNotebook    = "rLM1Ne"
	rpcAddSource      = "izAoDd"
	rpcStartResearch  = "QWSkZb"
	rpcPollResearch   = "oUo9Tc"
	rpcImportSources  = "LBwxtb"
	rpcPollStudio     = "nNcbvc"
)

const batchExecutePath = "/_/LabsTailwindUi/data/batchexecute"

// responsePrefix guards the endpoint against JS hijacking and must be
// stripped before parsing.
const responsePrefix = ")]}'"

// call performs one batch-execute round trip and returns the decoded payload
// of the matching rpc id.
func (c *Client) call(ctx context.Context, rpcID string, args []any) (json.RawMessage, error) {
	argsJSON, err := json.Marshal(args)
	if err != nil {
		return nil, err
	}
	envelope, err := json.Marshal([]any{[]any{[]any{rpcID, string(argsJSON), nil, "generic"}}})
	if err != nil {
		return nil, err
	}

	form := url.Values{}
	form.Set("f.req", string(envelope))
	form.Set("at", c.csrfToken)

	endpoint := c.baseURL + batchExecutePath + "?rpcids=" + rpcID + "&rt=c"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded;charset=UTF-8")
	req.Header.Set("Cookie", c.cookieHeader())
	req.Header.Set("Origin", c.baseURL)
	req.Header.Set("Referer", c.baseURL+"/")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nrerrors.RPCFailure(rpcID, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nrerrors.RPCFailure(rpcID, err)
	}
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, nrerrors.AuthExpired(rpcID, fmt.Errorf("status %d", resp.StatusCode))
	case resp.StatusCode >= 500:
		return nil, nrerrors.RPCFailure(rpcID, nrerrors.TransientHTTP(fmt.Errorf("status %d", resp.StatusCode), resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		return nil, nrerrors.RPCFailure(rpcID, fmt.Errorf("status %d: %s", resp.StatusCode, truncate(string(body), 200)))
	}

	payload, err := extractPayload(body, rpcID)
	if err != nil {
		return nil, nrerrors.RPCFailure(rpcID, err)
	}
	return payload, nil
}

// extractPayload walks the chunked envelope for the wrb.fr frame carrying
// rpcID and returns its payload, which is JSON encoded a second time.
func extractPayload(body []byte, rpcID string) (json.RawMessage, error) {
	text := strings.TrimPrefix(strings.TrimSpace(string(body)), responsePrefix)
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "[") {
			continue
		}
		var frames []any
		if err := json.Unmarshal([]byte(line), &frames); err != nil {
			continue
		}
		for _, raw := range frames {
			frame, ok := raw.([]any)
			if !ok || len(frame) < 3 {
				continue
			}
			if kind, _ := frame[0].(string); kind != "wrb.fr" {
				continue
			}
			if id, _ := frame[1].(string); id != rpcID {
				continue
			}
			payload, ok := frame[2].(string)
			if !ok {
				// A null payload is a successful void response.
				return json.RawMessage("null"), nil
			}
			return json.RawMessage(payload), nil
		}
	}
	return nil, fmt.Errorf("no response frame for rpc %s", rpcID)
}

// decodeRows unmarshals a payload into loosely typed nested arrays.
func decodeRows(payload json.RawMessage) ([]any, error) {
	var rows []any
	if err := json.Unmarshal(payload, &rows); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return rows, nil
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

func arr(v any) []any {
	a, _ := v.([]any)
	return a
}

func at(row []any, i int) any {
	if i < 0 || i >= len(row) {
		return nil
	}
	return row[i]
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
