// Package config provides configuration loading for the harvester services.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ServiceConfig locates one REST collaborator.
type ServiceConfig struct {
	URL   string `yaml:"url"`
	Token string `yaml:"token"`
}

// MinIOConfig holds file-store settings.
type MinIOConfig struct {
	EndpointURL     string `yaml:"endpointUrl"`
	Region          string `yaml:"region"`
	AccessKeyID     string `yaml:"accessKeyId"`
	SecretAccessKey string `yaml:"secretAccessKey"`
	Bucket          string `yaml:"bucket"`
	// LocalRoot switches the file store to an on-disk store when set.
	LocalRoot string `yaml:"localRoot"`
}

// HarvesterConfig holds harvester worker configuration.
type HarvesterConfig struct {
	// Collaborators
	FlowStore     ServiceConfig `yaml:"flowStore"`
	RecordService ServiceConfig `yaml:"recordService"`
	Solr          ServiceConfig `yaml:"solr"`
	WeekResolver  ServiceConfig `yaml:"weekResolver"`
	CoverService  ServiceConfig `yaml:"coverService"`
	JobStore      ServiceConfig `yaml:"jobStore"`
	MinIO         MinIOConfig   `yaml:"minio"`

	// Databases
	HoldingsDatabaseURL string `yaml:"holdingsDatabaseUrl"`
	ConfigDatabaseURL   string `yaml:"configDatabaseUrl"`

	// Harvest tuning
	MaxConcurrency    int           `yaml:"maxConcurrency"`
	TimeZone          string        `yaml:"timeZone"`
	CommonAgencies    []int         `yaml:"commonAgencies"`
	EnrichmentAgency  int           `yaml:"enrichmentAgency"`
	CrossRefAgency    int           `yaml:"crossRefAgency"`
	CoverBatchSize    int           `yaml:"coverBatchSize"`
	SearchPageSize    int           `yaml:"searchPageSize"`
	ScheduleGuard     time.Duration `yaml:"scheduleGuard"`
	StagingDir        string        `yaml:"stagingDir"`
	NotificationEmail string        `yaml:"notificationEmail"`

	// Temporal settings
	TemporalHost      string `yaml:"temporalHost"`
	TemporalNamespace string `yaml:"temporalNamespace"`
	TemporalTaskQueue string `yaml:"temporalTaskQueue"`
	ScheduleCron      string `yaml:"scheduleCron"`

	// Server settings
	HealthPort  int    `yaml:"healthPort"`
	MetricsAddr string `yaml:"metricsAddr"`
}

// Load reads configuration from the environment, then overlays the YAML
// file named by HARVESTER_CONFIG_FILE when set.
func Load() (*HarvesterConfig, error) {
	cfg := &HarvesterConfig{
		FlowStore:     service("FLOWSTORE"),
		RecordService: service("RECORD_SERVICE"),
		Solr:          service("SOLR"),
		WeekResolver:  service("WEEKRESOLVER"),
		CoverService:  service("COVER_SERVICE"),
		JobStore:      service("JOBSTORE"),
		MinIO: MinIOConfig{
			EndpointURL:     getEnv("MINIO_ENDPOINT_URL", ""),
			Region:          getEnv("MINIO_REGION", ""),
			AccessKeyID:     getEnv("MINIO_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("MINIO_SECRET_ACCESS_KEY", ""),
			Bucket:          getEnv("MINIO_BUCKET", "harvester-files"),
			LocalRoot:       getEnv("FILESTORE_LOCAL_ROOT", ""),
		},
		HoldingsDatabaseURL: getEnv("HOLDINGS_DATABASE_URL", ""),
		ConfigDatabaseURL:   getEnv("CONFIG_DATABASE_URL", ""),
		MaxConcurrency:      getEnvInt("HARVESTER_MAX_CONCURRENCY", 20),
		TimeZone:            getEnv("HARVESTER_TIMEZONE", "Europe/Copenhagen"),
		CommonAgencies:      getEnvInts("HARVESTER_COMMON_AGENCIES", []int{870970}),
		EnrichmentAgency:    getEnvInt("HARVESTER_ENRICHMENT_AGENCY", 191919),
		CrossRefAgency:      getEnvInt("HARVESTER_CROSSREF_AGENCY", 870979),
		CoverBatchSize:      getEnvInt("HARVESTER_COVER_BATCH_SIZE", 100),
		SearchPageSize:      getEnvInt("HARVESTER_SEARCH_PAGE_SIZE", 1000),
		ScheduleGuard:       getEnvDuration("HARVESTER_SCHEDULE_GUARD", time.Minute),
		StagingDir:          getEnv("HARVESTER_STAGING_DIR", os.TempDir()),
		NotificationEmail:   getEnv("HARVESTER_NOTIFICATION_EMAIL", ""),
		TemporalHost:        getEnv("TEMPORAL_ADDRESS", "127.0.0.1:7233"),
		TemporalNamespace:   getEnv("TEMPORAL_NAMESPACE", "default"),
		TemporalTaskQueue:   getEnv("HARVESTER_TASK_QUEUE", "periodic-harvester"),
		ScheduleCron:        getEnv("HARVESTER_SCHEDULE_CRON", "* * * * *"),
		HealthPort:          getEnvInt("HARVESTER_HEALTH_PORT", 50061),
		MetricsAddr:         getEnv("HARVESTER_METRICS_ADDR", ":9102"),
	}

	if path := getEnv("HARVESTER_CONFIG_FILE", ""); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings every binary depends on.
func (c *HarvesterConfig) Validate() error {
	if c.MaxConcurrency <= 0 {
		return fmt.Errorf("maxConcurrency must be positive, got %d", c.MaxConcurrency)
	}
	if _, err := time.LoadLocation(c.TimeZone); err != nil {
		return fmt.Errorf("timeZone %q: %w", c.TimeZone, err)
	}
	if c.FlowStore.URL == "" && c.ConfigDatabaseURL == "" {
		return fmt.Errorf("FLOWSTORE_URL or CONFIG_DATABASE_URL is required")
	}
	return nil
}

// Location returns the configured local time zone.
func (c *HarvesterConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func service(prefix string) ServiceConfig {
	return ServiceConfig{
		URL:   getEnv(prefix+"_URL", ""),
		Token: getEnv(prefix+"_TOKEN", ""),
	}
}

func getEnv(key, defaultVal string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

func getEnvInts(key string, defaultVal []int) []int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	var out []int
	for _, part := range strings.Split(val, ",") {
		i, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return defaultVal
		}
		out = append(out, i)
	}
	return out
}
