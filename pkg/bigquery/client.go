// Package bigquery executes funnel plans and ad-hoc queries as BigQuery
// jobs, including dry-run cost estimation and experiment arm resolution.
package bigquery

import (
	"context"

	bq "cloud.google.com/go/bigquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/pathwise/funnel-cli/internal/funnel"
	"github.com/pathwise/funnel-cli/internal/resilience"
)

// ClientConfig selects the project and credential source.
type ClientConfig struct {
	ProjectID       string
	CredentialsFile string
	// Location pins jobs to a region. Empty lets the service decide.
	Location string
}

// NewClient builds an authorized client. A credentials file takes
// precedence; otherwise application default credentials apply, which
// covers GOOGLE_APPLICATION_CREDENTIALS and instance metadata.
func NewClient(ctx context.Context, cfg ClientConfig) (*bq.Client, error) {
	if cfg.ProjectID == "" {
		return nil, eris.Wrap(funnel.ErrConfiguration, "bigquery: project id required")
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
		zap.L().Debug("bigquery: using service account credentials",
			zap.String("file", cfg.CredentialsFile))
	}

	client, err := bq.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, eris.Wrap(err, "bigquery: create client")
	}
	if cfg.Location != "" {
		client.Location = cfg.Location
	}
	return client, nil
}

// submit runs a query and opens its row iterator, resubmitting the job
// on transient backend failures. Funnel queries are pure reads, so a
// resubmitted job returns the same rows.
func submit(ctx context.Context, q *bq.Query, operation string) (*bq.RowIterator, error) {
	cfg := resilience.DefaultConfig()
	cfg.OnRetry = resilience.Logger(operation)
	return resilience.DoVal(ctx, cfg, func(ctx context.Context) (*bq.RowIterator, error) {
		return q.Read(ctx)
	})
}
