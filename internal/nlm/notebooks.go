package nlm

import (
	"context"
	"fmt"
)

// ListNotebooks returns the account's notebooks, most recently viewed first.
func (c *Client) ListNotebooks(ctx context.Context) ([]Notebook, error) {
	payload, err := c.call(ctx, rpcListNotebooks, []any{nil, 1})
	if err != nil {
		return nil, err
	}
	rows, err := decodeRows(payload)
	if err != nil {
		return nil, err
	}
	var notebooks []Notebook
	for _, raw := range arr(at(rows, 0)) {
		row := arr(raw)
		nb := Notebook{Title: str(at(row, 0)), ID: str(at(row, 2))}
		if nb.ID != "" {
			notebooks = append(notebooks, nb)
		}
	}
	return notebooks, nil
}

// CreateNotebook creates an empty notebook with the given title.
func (c *Client) CreateNotebook(ctx context.Context, title string) (Notebook, error) {
	payload, err := c.call(ctx, rpcCreateNotebook, []any{title, ""})
	if err != nil {
		return Notebook{}, err
	}
	row, err := decodeRows(payload)
	if err != nil {
		return Notebook{}, err
	}
	nb := Notebook{Title: str(at(row, 0)), ID: str(at(row, 2))}
	if nb.ID == "" {
		return Notebook{}, fmt.Errorf("create returned no notebook id")
	}
	return nb, nil
}

// DeleteNotebook removes a notebook by id.
func (c *Client) DeleteNotebook(ctx context.Context, id string) error {
	_, err := c.call(ctx, rpcDeleteNotebook, []any{[]any{id}})
	return err
}

// GetSources returns the notebook's attached sources.
func (c *Client) GetSources(ctx context.Context, id string) ([]Source, error) {
	payload, err := c.call(ctx, rpcGetNotebook, []any{id})
	if err != nil {
		return nil, err
	}
	rows, err := decodeRows(payload)
	if err != nil {
		return nil, err
	}
	var sources []Source
	for _, raw := range arr(at(rows, 1)) {
		row := arr(raw)
		src := Source{
			ID:    str(at(arr(at(row, 0)), 0)),
			Title: str(at(row, 1)),
			Kind:  str(at(row, 2)),
			Value: str(at(row, 3)),
		}
		if src.ID != "" {
			sources = append(sources, src)
		}
	}
	return sources, nil
}

// AddURLSource attaches a website source.
func (c *Client) AddURLSource(ctx context.Context, id, sourceURL string) error {
	payload := []any{[]any{nil, nil, []any{sourceURL}}}
	_, err := c.call(ctx, rpcAddSource, []any{payload, id})
	return err
}

// AddTextSource attaches a copied-text source with a title.
func (c *Client) AddTextSource(ctx context.Context, id, text, title string) error {
	payload := []any{[]any{nil, []any{text, title}}}
	_, err := c.call(ctx, rpcAddSource, []any{payload, id})
	return err
}
