// Package jobstore submits harvested batches to the job tracking service.
package jobstore

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	httpclient "github.com/nucleus/harvest-core/internal/connector/http"
	"github.com/nucleus/harvest-core/internal/filestore"
	"github.com/nucleus/harvest-core/pkg/harvest"
)

const (
	// Packaging of harvested batches.
	Packaging = "addi-xml"
	// Charset of harvested batches.
	Charset = "utf8"
	// TypePeriodic marks jobs created by the periodic harvester.
	TypePeriodic = "PERIODIC"
	// MissingFieldValue fills required fields that have no value.
	MissingFieldValue = "placeholder"
)

// Ancestry records where a job came from.
type Ancestry struct {
	Source         string `json:"source,omitempty"`
	HarvesterToken string `json:"harvesterToken,omitempty"`
	ContentHeader  string `json:"contentHeader,omitempty"`
	ContentFooter  string `json:"contentFooter,omitempty"`
}

// Specification describes a job to the job tracking service.
type Specification struct {
	Packaging                            string    `json:"packaging"`
	Format                               string    `json:"format"`
	Charset                              string    `json:"charset"`
	Destination                          string    `json:"destination"`
	SubmitterID                          int64     `json:"submitterId"`
	MailForNotificationAboutVerification string    `json:"mailForNotificationAboutVerification"`
	MailForNotificationAboutProcessing   string    `json:"mailForNotificationAboutProcessing"`
	ResultmailInitials                   string    `json:"resultmailInitials"`
	DataFile                             string    `json:"dataFile"`
	Type                                 string    `json:"type"`
	Ancestry                             *Ancestry `json:"ancestry,omitempty"`
}

// NewSpecification derives the job template for a harvest run of cfg.
func NewSpecification(cfg harvest.Config, notificationEmail string) (Specification, error) {
	submitter, err := strconv.ParseInt(strings.TrimSpace(cfg.Content.SubmitterNumber), 10, 64)
	if err != nil {
		return Specification{}, fmt.Errorf("config %d: invalid submitter number %q", cfg.ID, cfg.Content.SubmitterNumber)
	}
	mail := notificationEmail
	if cfg.Content.Contact != "" {
		mail = cfg.Content.Contact
	}
	if mail == "" {
		mail = MissingFieldValue
	}
	return Specification{
		Packaging:                            Packaging,
		Format:                               cfg.Content.Format,
		Charset:                              Charset,
		Destination:                          cfg.Content.Destination,
		SubmitterID:                          submitter,
		MailForNotificationAboutVerification: mail,
		MailForNotificationAboutProcessing:   mail,
		ResultmailInitials:                   MissingFieldValue,
		DataFile:                             MissingFieldValue,
		Type:                                 TypePeriodic,
		Ancestry: &Ancestry{
			Source:         cfg.Content.Name,
			HarvesterToken: fmt.Sprintf("periodic-harvester:%d:%d", cfg.ID, cfg.Version),
			ContentHeader:  cfg.Content.ContentHeader,
			ContentFooter:  cfg.Content.ContentFooter,
		},
	}, nil
}

// WithDataFile returns a copy referencing a staged file.
func (s Specification) WithDataFile(fileID string) Specification {
	s.DataFile = filestore.URN(fileID)
	return s
}

// InputStream is the job creation request.
type InputStream struct {
	Specification Specification `json:"jobSpecification"`
	IsEndOfJob    bool          `json:"isEndOfJob"`
	PartNumber    int64         `json:"partNumber"`
}

// Snapshot is the job tracking service's view of a created job.
type Snapshot struct {
	JobID          int64          `json:"jobId"`
	Specification  *Specification `json:"specification,omitempty"`
	TimeOfCreation *time.Time     `json:"timeOfCreation,omitempty"`
	NumberOfItems  int            `json:"numberOfItems"`
}

// Client calls the job tracking service.
type Client struct {
	http *httpclient.Client
}

// NewClient wraps an HTTP client pointed at the service root.
func NewClient(client *httpclient.Client) *Client {
	return &Client{http: client}
}

// AddJob creates a job for a staged batch.
func (c *Client) AddJob(ctx context.Context, spec Specification) (*Snapshot, error) {
	return c.add(ctx, "/jobs", spec)
}

// AddEmptyJob records a run that produced no records.
func (c *Client) AddEmptyJob(ctx context.Context, spec Specification) (*Snapshot, error) {
	return c.add(ctx, "/jobs/empty", spec)
}

func (c *Client) add(ctx context.Context, path string, spec Specification) (*Snapshot, error) {
	var snapshot Snapshot
	in := InputStream{Specification: spec, IsEndOfJob: true}
	if err := c.http.PostJSON(ctx, path, in, &snapshot); err != nil {
		return nil, fmt.Errorf("job store %s: %w", path, err)
	}
	return &snapshot, nil
}
