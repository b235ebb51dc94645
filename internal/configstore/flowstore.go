package configstore

import (
	"context"
	"fmt"
	"net/http"

	httpclient "github.com/nucleus/harvest-core/internal/connector/http"
	"github.com/nucleus/harvest-core/pkg/harvest"
)

// FlowStore is a Store backed by the flow-store REST service.
type FlowStore struct {
	http *httpclient.Client
}

// NewFlowStore wraps an HTTP client pointed at the flow-store root.
func NewFlowStore(client *httpclient.Client) *FlowStore {
	return &FlowStore{http: client}
}

func (s *FlowStore) Get(ctx context.Context, id int64) (harvest.Config, error) {
	var cfg harvest.Config
	if err := s.http.GetJSON(ctx, fmt.Sprintf("/harvester-configs/%d", id), nil, &cfg); err != nil {
		return harvest.Config{}, mapStatus(fmt.Sprintf("get config %d", id), err)
	}
	return cfg, nil
}

func (s *FlowStore) Update(ctx context.Context, cfg harvest.Config) (harvest.Config, error) {
	var updated harvest.Config
	path := fmt.Sprintf("/harvester-configs/%d/%d", cfg.ID, cfg.Version)
	if err := s.http.PostJSON(ctx, path, cfg.Content, &updated); err != nil {
		return harvest.Config{}, mapStatus(fmt.Sprintf("update config %d at version %d", cfg.ID, cfg.Version), err)
	}
	return updated, nil
}

func (s *FlowStore) List(ctx context.Context) ([]harvest.Config, error) {
	var configs []harvest.Config
	if err := s.http.GetJSON(ctx, "/harvester-configs/types/periodic", nil, &configs); err != nil {
		return nil, mapStatus("list configs", err)
	}
	return configs, nil
}

func mapStatus(op string, err error) error {
	switch httpclient.StatusCode(err) {
	case http.StatusConflict:
		return fmt.Errorf("%s: %w: %v", op, ErrConflict, err)
	case http.StatusNotFound:
		return fmt.Errorf("%s: %w: %v", op, ErrNotFound, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
