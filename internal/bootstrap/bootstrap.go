// Package bootstrap builds the harvester's collaborators from process
// configuration. Both binaries share it.
package bootstrap

import (
	"context"
	"fmt"
	"log"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nucleus/harvest-core/internal/config"
	httpclient "github.com/nucleus/harvest-core/internal/connector/http"
	"github.com/nucleus/harvest-core/internal/configstore"
	"github.com/nucleus/harvest-core/internal/cover"
	"github.com/nucleus/harvest-core/internal/fetcher"
	"github.com/nucleus/harvest-core/internal/filestore"
	"github.com/nucleus/harvest-core/internal/holdings"
	"github.com/nucleus/harvest-core/internal/jobstore"
	"github.com/nucleus/harvest-core/internal/macro"
	"github.com/nucleus/harvest-core/internal/operation"
	"github.com/nucleus/harvest-core/internal/recordservice"
	"github.com/nucleus/harvest-core/internal/schedule"
	"github.com/nucleus/harvest-core/internal/source"
	"github.com/nucleus/harvest-core/internal/updater"
)

// Services are the long-lived collaborators of a harvester process.
type Services struct {
	Configs configstore.Store
	Runner  *operation.Runner
	Gate    *schedule.Gate

	closers []func()
}

// Close releases database pools and connections.
func (s *Services) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// Build connects every configured collaborator. reg receives the harvest
// metrics; nil disables them.
func Build(ctx context.Context, cfg *config.HarvesterConfig, reg prometheus.Registerer) (*Services, error) {
	s := &Services{Gate: schedule.NewGate(cfg.Location(), cfg.ScheduleGuard)}

	configs, err := s.initConfigStore(cfg)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.Configs = configs

	deps, err := s.initDependencies(ctx, cfg)
	if err != nil {
		s.Close()
		return nil, err
	}
	deps.Updater = updater.New(configs, log.Default())

	opts := operation.Options{
		MaxConcurrency:    cfg.MaxConcurrency,
		Location:          cfg.Location(),
		CoverBatchSize:    cfg.CoverBatchSize,
		StagingDir:        cfg.StagingDir,
		NotificationEmail: cfg.NotificationEmail,
		Fetch:             fetchOptions(cfg),
	}
	if reg != nil {
		opts.Metrics = operation.NewMetrics(reg)
	}
	s.Runner = &operation.Runner{Deps: deps, Options: opts}
	return s, nil
}

func (s *Services) initConfigStore(cfg *config.HarvesterConfig) (configstore.Store, error) {
	if cfg.ConfigDatabaseURL != "" {
		store, err := configstore.OpenPostgresStore(cfg.ConfigDatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("config store init: %w", err)
		}
		s.closers = append(s.closers, func() { store.Close() })
		log.Printf("Harvest configs: postgres")
		return store, nil
	}
	log.Printf("Harvest configs: flowstore %s", cfg.FlowStore.URL)
	return configstore.NewFlowStore(restClient(cfg.FlowStore)), nil
}

func (s *Services) initDependencies(ctx context.Context, cfg *config.HarvesterConfig) (operation.Dependencies, error) {
	var deps operation.Dependencies

	if cfg.RecordService.URL == "" {
		return deps, fmt.Errorf("RECORD_SERVICE_URL is required")
	}
	if cfg.JobStore.URL == "" {
		return deps, fmt.Errorf("JOBSTORE_URL is required")
	}
	deps.Records = recordservice.NewClient(restClient(cfg.RecordService))
	deps.Jobs = jobstore.NewClient(restClient(cfg.JobStore))

	files, err := initFileStore(ctx, cfg.MinIO)
	if err != nil {
		return deps, err
	}
	deps.Files = files

	if cfg.Solr.URL != "" {
		deps.Searcher = source.NewSolrSearcher(restClient(cfg.Solr), source.WithPageSize(cfg.SearchPageSize))
	} else {
		log.Printf("SOLR_URL not set: query based configs will fail")
	}
	if cfg.WeekResolver.URL != "" {
		deps.WeekResolver = macro.NewHTTPWeekResolver(restClient(cfg.WeekResolver))
	}
	if cfg.CoverService.URL != "" {
		deps.Covers = cover.NewClient(restClient(cfg.CoverService))
	}
	if cfg.HoldingsDatabaseURL != "" {
		pool, err := holdings.OpenPool(ctx, cfg.HoldingsDatabaseURL, cfg.MaxConcurrency)
		if err != nil {
			return deps, fmt.Errorf("holdings init: %w", err)
		}
		s.closers = append(s.closers, pool.Close)
		deps.Holdings = holdings.NewPostgresStore(pool, "")
	}
	return deps, nil
}

func initFileStore(ctx context.Context, cfg config.MinIOConfig) (filestore.Store, error) {
	if cfg.LocalRoot != "" {
		log.Printf("File store: local %s", cfg.LocalRoot)
		return filestore.NewLocalStore(cfg.LocalRoot)
	}
	store, err := filestore.NewS3Store(filestore.S3Config{
		EndpointURL:     cfg.EndpointURL,
		Region:          cfg.Region,
		AccessKeyID:     cfg.AccessKeyID,
		SecretAccessKey: cfg.SecretAccessKey,
		Bucket:          cfg.Bucket,
	})
	if err != nil {
		return nil, fmt.Errorf("file store init: %w", err)
	}
	if err := store.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("file store init: %w", err)
	}
	log.Printf("File store: minio %s bucket=%s", cfg.EndpointURL, cfg.Bucket)
	return store, nil
}

func restClient(svc config.ServiceConfig) *httpclient.Client {
	cc := httpclient.DefaultClientConfig(svc.URL)
	cc.Auth = httpclient.ResolveAuth(svc.Token, "", "")
	return httpclient.NewClient(cc)
}

func fetchOptions(cfg *config.HarvesterConfig) fetcher.Options {
	opts := fetcher.DefaultOptions("")
	if len(cfg.CommonAgencies) > 0 {
		opts.CommonAgencies = cfg.CommonAgencies
	}
	if cfg.EnrichmentAgency != 0 {
		opts.EnrichmentAgency = cfg.EnrichmentAgency
	}
	if cfg.CrossRefAgency != 0 {
		opts.CrossRefAgency = cfg.CrossRefAgency
	}
	return opts
}
