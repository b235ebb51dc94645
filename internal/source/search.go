package source

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"

	httpclient "github.com/nucleus/harvest-core/internal/connector/http"
)

// Searcher writes the keys matching query in collection to sink and returns
// how many were written.
type Searcher interface {
	Search(ctx context.Context, collection, query string, sink io.Writer) (int, error)
}

// SolrSearcher pages through a Solr collection with cursorMark deep paging.
type SolrSearcher struct {
	client   *httpclient.Client
	pageSize int
	idField  string
}

// SolrOption configures a SolrSearcher.
type SolrOption func(*SolrSearcher)

// WithPageSize sets the rows requested per page.
func WithPageSize(rows int) SolrOption {
	return func(s *SolrSearcher) {
		if rows > 0 {
			s.pageSize = rows
		}
	}
}

// WithIDField sets the document field holding the record key.
func WithIDField(field string) SolrOption {
	return func(s *SolrSearcher) {
		if field != "" {
			s.idField = field
		}
	}
}

// NewSolrSearcher creates a searcher on top of client.
func NewSolrSearcher(client *httpclient.Client, opts ...SolrOption) *SolrSearcher {
	s := &SolrSearcher{client: client, pageSize: 1000, idField: "id"}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type solrResponse struct {
	Response struct {
		NumFound int                          `json:"numFound"`
		Docs     []map[string]json.RawMessage `json:"docs"`
	} `json:"response"`
	NextCursorMark string `json:"nextCursorMark"`
}

// Search implements Searcher.
func (s *SolrSearcher) Search(ctx context.Context, collection, query string, sink io.Writer) (int, error) {
	if strings.TrimSpace(collection) == "" {
		return 0, fmt.Errorf("solr search: collection is required")
	}
	params := url.Values{}
	params.Set("q", query)
	params.Set("fl", s.idField)
	params.Set("sort", s.idField+" asc")
	params.Set("wt", "json")

	paginator := httpclient.NewCursorMarkPaginator("/"+url.PathEscape(collection)+"/select", s.pageSize, params)
	it := httpclient.NewPaginatedIterator(ctx, s.client, paginator.FirstPage(), paginator, s.parseKeys)
	defer it.Close()

	w := bufio.NewWriter(sink)
	count := 0
	for it.Next() {
		key := it.Value()
		if key == "" {
			continue
		}
		if _, err := w.WriteString(key + "\n"); err != nil {
			return count, fmt.Errorf("solr search: write key: %w", err)
		}
		count++
	}
	if err := it.Err(); err != nil {
		return count, fmt.Errorf("solr search %s: %w", collection, err)
	}
	if err := w.Flush(); err != nil {
		return count, fmt.Errorf("solr search: flush keys: %w", err)
	}
	return count, nil
}

func (s *SolrSearcher) parseKeys(resp *httpclient.Response) ([]string, error) {
	var body solrResponse
	if err := resp.JSON(&body); err != nil {
		return nil, fmt.Errorf("decode solr response: %w", err)
	}
	keys := make([]string, 0, len(body.Response.Docs))
	for _, doc := range body.Response.Docs {
		raw, ok := doc[s.idField]
		if !ok {
			continue
		}
		keys = append(keys, fieldString(raw))
	}
	return keys, nil
}

// fieldString accepts both single valued and multi valued Solr fields.
func fieldString(raw json.RawMessage) string {
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return single
	}
	var multi []string
	if err := json.Unmarshal(raw, &multi); err == nil && len(multi) > 0 {
		return multi[0]
	}
	return ""
}
