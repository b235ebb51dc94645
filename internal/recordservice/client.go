// Package recordservice is a client for the record retrieval service.
package recordservice

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	httpclient "github.com/nucleus/harvest-core/internal/connector/http"
	"github.com/nucleus/harvest-core/pkg/harvest"
)

// Mode selects how the service merges a record with its enrichments.
type Mode string

// ModeExpanded merges enrichments and expands authority fields.
const ModeExpanded Mode = "EXPANDED"

// ErrNotFound is returned when the service has no record for the ref.
var ErrNotFound = errors.New("record not found")

// Params are the fetch options understood by the service.
type Params struct {
	Mode            Mode
	AllowDeleted    bool
	Expand          bool
	UseParentAgency bool
}

// DefaultParams is what the standard harvest strategies ask for.
func DefaultParams() Params {
	return Params{Mode: ModeExpanded, AllowDeleted: true, Expand: true}
}

func (p Params) values() url.Values {
	q := url.Values{}
	if p.Mode != "" {
		q.Set("mode", string(p.Mode))
	}
	q.Set("allow-deleted", strconv.FormatBool(p.AllowDeleted))
	q.Set("expand", strconv.FormatBool(p.Expand))
	q.Set("use-parent-agency", strconv.FormatBool(p.UseParentAgency))
	return q
}

// Client calls the record retrieval service.
type Client struct {
	http *httpclient.Client
}

// NewClient wraps an HTTP client pointed at the service root.
func NewClient(client *httpclient.Client) *Client {
	return &Client{http: client}
}

// Collection fetches the record identified by ref, keyed by bibliographic
// record id.
func (c *Client) Collection(ctx context.Context, ref harvest.RecordRef, params Params) (*harvest.RecordCollection, error) {
	return c.fetch(ctx, ref, "all", params)
}

// ExpandedCollection fetches ref together with every record the service
// reaches by walking its reference graph: parent units, sections and the
// units named in the anchor's cross-reference fields.
func (c *Client) ExpandedCollection(ctx context.Context, ref harvest.RecordRef, params Params) (*harvest.RecordCollection, error) {
	return c.fetch(ctx, ref, "dataio", params)
}

func (c *Client) fetch(ctx context.Context, ref harvest.RecordRef, view string, params Params) (*harvest.RecordCollection, error) {
	path := fmt.Sprintf("/api/v1/record/%d/%s/%s", ref.AgencyID, url.PathEscape(ref.BibliographicRecordID), view)
	collection := harvest.NewRecordCollection()
	if err := c.http.GetJSON(ctx, path, params.values(), collection); err != nil {
		if httpclient.StatusCode(err) == http.StatusNotFound {
			return nil, fmt.Errorf("record service %s: %w", ref, ErrNotFound)
		}
		return nil, fmt.Errorf("record service %s: %w", ref, err)
	}
	return collection, nil
}
