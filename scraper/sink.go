package scraper

import (
	"context"
	"log/slog"
	"time"

	"github.com/cvantienen/gsaScrape/models"
	"github.com/cvantienen/gsaScrape/parser"
	"github.com/cvantienen/gsaScrape/pipeline"
)

// Sink consumes a successfully navigated detail page.
type Sink interface {
	Accept(ctx context.Context, doc *parser.Document) (models.Outcome, error)
}

// RecordSink extracts a record from each page and hands it to the pipeline.
// Success and Partial records are both persisted.
type RecordSink struct {
	schema   *parser.Schema
	pipeline *pipeline.Pipeline
	metrics  *Metrics
	now      func() time.Time
}

// NewRecordSink builds a sink that extracts with schema.
func NewRecordSink(schema *parser.Schema, p *pipeline.Pipeline, metrics *Metrics) *RecordSink {
	return &RecordSink{schema: schema, pipeline: p, metrics: metrics, now: time.Now}
}

func (s *RecordSink) Accept(ctx context.Context, doc *parser.Document) (models.Outcome, error) {
	outcome := parser.Extract(doc, s.schema, s.now())

	for _, f := range outcome.Record.Fields {
		if !f.Found {
			s.metrics.IncFieldMiss(f.Name)
		}
	}
	if outcome.Kind == models.OutcomePartial {
		slog.Warn("required fields missing",
			slog.String("url", doc.URL),
			slog.Any("fields", outcome.Missing),
		)
	}

	if err := s.pipeline.Process(outcome.Record); err != nil {
		return outcome, err
	}
	return outcome, nil
}

// ArchiveSink stores the raw HTML of each page, named after the contractor.
type ArchiveSink struct {
	archive *pipeline.Archive
}

// NewArchiveSink wraps archive.
func NewArchiveSink(archive *pipeline.Archive) *ArchiveSink {
	return &ArchiveSink{archive: archive}
}

func (s *ArchiveSink) Accept(_ context.Context, doc *parser.Document) (models.Outcome, error) {
	path, err := s.archive.Save(parser.ContractorName(doc.URL), doc.HTML)
	if err != nil {
		return models.Failure(doc.URL, err), err
	}
	slog.Debug("page archived", slog.String("url", doc.URL), slog.String("path", path))
	return models.Outcome{Kind: models.OutcomeSuccess, URL: doc.URL}, nil
}
