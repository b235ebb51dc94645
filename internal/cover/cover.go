// Package cover checks which records have a cover image.
package cover

import (
	"context"
	"fmt"

	httpclient "github.com/nucleus/harvest-core/internal/connector/http"
	"github.com/nucleus/harvest-core/pkg/harvest"
)

// Checker reports which of refs have a cover.
type Checker interface {
	HasCover(ctx context.Context, refs []harvest.RecordRef) (map[harvest.RecordRef]struct{}, error)
}

// Client calls the cover availability service.
type Client struct {
	http *httpclient.Client
}

// NewClient wraps an HTTP client pointed at the service root.
func NewClient(client *httpclient.Client) *Client {
	return &Client{http: client}
}

type existsResponse struct {
	Covers []harvest.RecordRef `json:"covers"`
}

// HasCover implements Checker with one request for all refs.
func (c *Client) HasCover(ctx context.Context, refs []harvest.RecordRef) (map[harvest.RecordRef]struct{}, error) {
	out := make(map[harvest.RecordRef]struct{})
	if len(refs) == 0 {
		return out, nil
	}
	var resp existsResponse
	if err := c.http.PostJSON(ctx, "/api/v1/covers/exists", refs, &resp); err != nil {
		return nil, fmt.Errorf("cover service: %w", err)
	}
	for _, ref := range resp.Covers {
		out[ref] = struct{}{}
	}
	return out, nil
}

// Filter keeps the refs that have a cover, asking checker batchSize refs at
// a time. Order is preserved.
func Filter(ctx context.Context, checker Checker, refs []harvest.RecordRef, batchSize int) ([]harvest.RecordRef, error) {
	if batchSize <= 0 {
		batchSize = 100
	}
	kept := make([]harvest.RecordRef, 0, len(refs))
	for start := 0; start < len(refs); start += batchSize {
		end := min(start+batchSize, len(refs))
		batch := refs[start:end]
		covered, err := checker.HasCover(ctx, batch)
		if err != nil {
			return nil, err
		}
		for _, ref := range batch {
			if _, ok := covered[ref]; ok {
				kept = append(kept, ref)
			}
		}
	}
	return kept, nil
}
