package macro

import (
	"context"
	"fmt"
	"net/url"
	"time"

	httpclient "github.com/nucleus/harvest-core/internal/connector/http"
)

type weekCodeResponse struct {
	WeekCode string `json:"weekCode"`
}

// HTTPWeekResolver calls the week resolver service.
type HTTPWeekResolver struct {
	client *httpclient.Client
}

// NewHTTPWeekResolver creates a resolver backed by the given client.
func NewHTTPWeekResolver(client *httpclient.Client) *HTTPWeekResolver {
	return &HTTPWeekResolver{client: client}
}

// CurrentWeekCode implements WeekResolver.
func (r *HTTPWeekResolver) CurrentWeekCode(ctx context.Context, catalogueCode string, date time.Time) (string, error) {
	path := fmt.Sprintf("/api/v1/date/%s/%s", url.PathEscape(catalogueCode), date.Format("2006-01-02"))
	var resp weekCodeResponse
	if err := r.client.GetJSON(ctx, path, nil, &resp); err != nil {
		return "", fmt.Errorf("week resolver %s: %w", catalogueCode, err)
	}
	if resp.WeekCode == "" {
		return "", fmt.Errorf("week resolver %s: empty week code for %s", catalogueCode, date.Format("2006-01-02"))
	}
	return resp.WeekCode, nil
}
