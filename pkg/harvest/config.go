// Package harvest holds the data model shared by the periodic harvester:
// harvest configurations, record references and fetched record collections.
package harvest

import (
	"fmt"
	"strings"
	"time"
)

// HarvesterType selects the record assembly strategy for a harvest.
type HarvesterType string

const (
	TypeStandard                 HarvesterType = "STANDARD"
	TypeDailyProofing            HarvesterType = "DAILY_PROOFING"
	TypeSubjectProofing          HarvesterType = "SUBJECT_PROOFING"
	TypeStandardWithoutExpansion HarvesterType = "STANDARD_WITHOUT_EXPANSION"
	TypeStandardWithHoldings     HarvesterType = "STANDARD_WITH_HOLDINGS"
	TypeStandardWithCover        HarvesterType = "STANDARD_WITH_COVER"
)

// ParseHarvesterType normalizes a configured type. Empty means STANDARD.
func ParseHarvesterType(raw string) (HarvesterType, error) {
	value := HarvesterType(strings.ToUpper(strings.TrimSpace(raw)))
	switch value {
	case "":
		return TypeStandard, nil
	case TypeStandard, TypeDailyProofing, TypeSubjectProofing,
		TypeStandardWithoutExpansion, TypeStandardWithHoldings, TypeStandardWithCover:
		return value, nil
	}
	return "", fmt.Errorf("unknown harvester type %q", raw)
}

// HoldingsFilter decides which records survive a holdings-filtered harvest.
type HoldingsFilter string

const (
	WithHoldings    HoldingsFilter = "WITH_HOLDINGS"
	WithoutHoldings HoldingsFilter = "WITHOUT_HOLDINGS"
)

// Content is the editable part of a harvest configuration.
type Content struct {
	Name              string         `json:"name" yaml:"name"`
	Description       string         `json:"description,omitempty" yaml:"description,omitempty"`
	Enabled           bool           `json:"enabled" yaml:"enabled"`
	Schedule          string         `json:"schedule" yaml:"schedule"`
	Query             string         `json:"query,omitempty" yaml:"query,omitempty"`
	QueryFileID       string         `json:"queryFileId,omitempty" yaml:"queryFileId,omitempty"`
	Collection        string         `json:"collection,omitempty" yaml:"collection,omitempty"`
	Destination       string         `json:"destination" yaml:"destination"`
	Format            string         `json:"format" yaml:"format"`
	SubmitterNumber   string         `json:"submitterNumber" yaml:"submitterNumber"`
	Contact           string         `json:"contact,omitempty" yaml:"contact,omitempty"`
	HarvesterType     HarvesterType  `json:"harvesterType,omitempty" yaml:"harvesterType,omitempty"`
	HoldingsFilter    HoldingsFilter `json:"holdingsFilter,omitempty" yaml:"holdingsFilter,omitempty"`
	HoldingsAgencies  []int          `json:"holdingsAgencies,omitempty" yaml:"holdingsAgencies,omitempty"`
	TimeOfLastHarvest *time.Time     `json:"timeOfLastHarvest,omitempty" yaml:"timeOfLastHarvest,omitempty"`
	ContentHeader     string         `json:"contentHeader,omitempty" yaml:"contentHeader,omitempty"`
	ContentFooter     string         `json:"contentFooter,omitempty" yaml:"contentFooter,omitempty"`
}

// Config is a versioned harvest configuration owned by the configuration store.
type Config struct {
	ID      int64   `json:"id"`
	Version int64   `json:"version"`
	Content Content `json:"content"`
}

// Validate rejects configurations the harvester cannot run.
func (c *Config) Validate() error {
	if c.Content.Query != "" && c.Content.QueryFileID != "" {
		return &Error{Code: CodeAmbiguousConfig, Err: fmt.Errorf("config %d has both query and queryFileId", c.ID)}
	}
	if c.Content.Query == "" && c.Content.QueryFileID == "" {
		return &Error{Code: CodeAmbiguousConfig, Err: fmt.Errorf("config %d has neither query nor queryFileId", c.ID)}
	}
	if _, err := ParseHarvesterType(string(c.Content.HarvesterType)); err != nil {
		return &Error{Code: CodeInvalidConfig, Err: err}
	}
	if c.Type() == TypeStandardWithHoldings {
		switch c.Content.HoldingsFilter {
		case WithHoldings, WithoutHoldings:
		default:
			return &Error{Code: CodeInvalidConfig, Err: fmt.Errorf("config %d: holdingsFilter %q", c.ID, c.Content.HoldingsFilter)}
		}
	}
	return nil
}

// Type returns the effective harvester type.
func (c *Config) Type() HarvesterType {
	t, err := ParseHarvesterType(string(c.Content.HarvesterType))
	if err != nil {
		return TypeStandard
	}
	return t
}

// WithTimeOfLastHarvest returns a copy carrying a new watermark.
func (c Config) WithTimeOfLastHarvest(t time.Time) Config {
	ts := t.UTC()
	c.Content.TimeOfLastHarvest = &ts
	c.Content.HoldingsAgencies = append([]int(nil), c.Content.HoldingsAgencies...)
	return c
}
