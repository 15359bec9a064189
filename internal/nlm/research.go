package nlm

import (
	"context"
	"fmt"
	"time"

	"noterang/internal/nrerrors"
)

// ResearchMode selects breadth versus depth of the server-side source hunt.
type ResearchMode string

const (
	ResearchFast ResearchMode = "fast"
	ResearchDeep ResearchMode = "deep"
)

// StartResearch dispatches a server-side research task for query and returns
// its task id.
func (c *Client) StartResearch(ctx context.Context, notebookID, query, source string, mode ResearchMode) (string, error) {
	if source == "" {
		source = "web"
	}
	payload, err := c.call(ctx, rpcStartResearch, []any{query, source, string(mode), notebookID})
	if err != nil {
		return "", err
	}
	row, err := decodeRows(payload)
	if err != nil {
		return "", err
	}
	taskID := str(at(row, 0))
	if taskID == "" {
		return "", nrerrors.RPCFailure("start_research", fmt.Errorf("no task id in response"))
	}
	return taskID, nil
}

// PollResearch fetches the notebook's research tasks and selects one per the
// matching policy: by task id when given, else by exact query text, else the
// most recently started. A given task id or query that matches nothing is an
// error, never a silent match of a different task.
func (c *Client) PollResearch(ctx context.Context, notebookID, taskID, targetQuery string) (*ResearchState, error) {
	payload, err := c.call(ctx, rpcPollResearch, []any{notebookID})
	if err != nil {
		return nil, err
	}
	rows, err := decodeRows(payload)
	if err != nil {
		return nil, err
	}
	var tasks []ResearchState
	for _, raw := range arr(at(rows, 0)) {
		row := arr(raw)
		task := ResearchState{
			TaskID: str(at(row, 0)),
			Query:  str(at(row, 1)),
			Status: researchStatus(at(row, 2)),
		}
		if ts, ok := at(row, 3).(float64); ok {
			task.StartedAt = time.Unix(int64(ts), 0)
		}
		for _, rawSrc := range arr(at(row, 4)) {
			srcRow := arr(rawSrc)
			task.Sources = append(task.Sources, Source{
				Kind:  "url",
				Title: str(at(srcRow, 0)),
				Value: str(at(srcRow, 1)),
			})
		}
		if task.TaskID != "" {
			tasks = append(tasks, task)
		}
	}
	return matchResearchTask(tasks, taskID, targetQuery)
}

func matchResearchTask(tasks []ResearchState, taskID, targetQuery string) (*ResearchState, error) {
	if len(tasks) == 0 {
		return nil, nrerrors.RPCFailure("poll_research", fmt.Errorf("no research tasks"))
	}
	if taskID != "" {
		for i := range tasks {
			if tasks[i].TaskID == taskID {
				return &tasks[i], nil
			}
		}
		return nil, nrerrors.RPCFailure("poll_research", fmt.Errorf("task %s not found", taskID))
	}
	if targetQuery != "" {
		for i := range tasks {
			if tasks[i].Query == targetQuery {
				return &tasks[i], nil
			}
		}
		return nil, nrerrors.RPCFailure("poll_research", fmt.Errorf("no task with query %q", targetQuery))
	}
	latest := &tasks[0]
	for i := range tasks {
		if tasks[i].StartedAt.After(latest.StartedAt) {
			latest = &tasks[i]
		}
	}
	return latest, nil
}

// ImportResearchSources imports a completed task's sources into the notebook
// in bulk and returns the imported set.
func (c *Client) ImportResearchSources(ctx context.Context, notebookID, taskID string, sources []Source) ([]Source, error) {
	values := make([]any, 0, len(sources))
	for _, s := range sources {
		values = append(values, []any{s.Title, s.Value})
	}
	payload, err := c.call(ctx, rpcImportSources, []any{notebookID, taskID, values})
	if err != nil {
		return nil, err
	}
	rows, err := decodeRows(payload)
	if err != nil {
		return nil, err
	}
	var imported []Source
	for _, raw := range arr(at(rows, 0)) {
		row := arr(raw)
		imported = append(imported, Source{
			ID:    str(at(row, 0)),
			Kind:  "url",
			Title: str(at(row, 1)),
			Value: str(at(row, 2)),
		})
	}
	return imported, nil
}

func researchStatus(v any) string {
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
