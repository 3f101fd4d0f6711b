// Package models defines data structures for the scraper.
package models

import (
	"time"
)

// Column names appended after the schema fields on every record.
const (
	ColumnSourceURL  = "Source URL"
	ColumnCapturedAt = "Captured At"
)

// Field is one extracted value. Found is false when the locator matched
// nothing; Value is then empty and must not be read as a real empty string.
type Field struct {
	Name  string
	Value string
	Found bool
}

// Record is one contractor detail page, fields in schema order.
type Record struct {
	Fields     []Field
	SourceURL  string
	CapturedAt time.Time
}

// NewRecord returns an empty record for the given page.
func NewRecord(sourceURL string, capturedAt time.Time, size int) *Record {
	return &Record{
		Fields:     make([]Field, 0, size),
		SourceURL:  sourceURL,
		CapturedAt: capturedAt,
	}
}

// Set appends a found value.
func (r *Record) Set(name, value string) {
	r.Fields = append(r.Fields, Field{Name: name, Value: value, Found: true})
}

// SetAbsent appends the absent-marker for name.
func (r *Record) SetAbsent(name string) {
	r.Fields = append(r.Fields, Field{Name: name})
}

// Get returns the value for name and whether it was found.
func (r *Record) Get(name string) (string, bool) {
	for _, f := range r.Fields {
		if f.Name == name {
			return f.Value, f.Found
		}
	}
	return "", false
}

// Columns returns the column names in output order.
func (r *Record) Columns() []string {
	cols := make([]string, 0, len(r.Fields)+2)
	for _, f := range r.Fields {
		cols = append(cols, f.Name)
	}
	return append(cols, ColumnSourceURL, ColumnCapturedAt)
}

// Values returns the cell values matching Columns. Absent fields are empty.
func (r *Record) Values() []string {
	vals := make([]string, 0, len(r.Fields)+2)
	for _, f := range r.Fields {
		vals = append(vals, f.Value)
	}
	return append(vals, r.SourceURL, r.CapturedAt.Format(time.RFC3339))
}

// OutcomeKind tags an Outcome.
type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomePartial
	OutcomeFailure
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomePartial:
		return "partial"
	case OutcomeFailure:
		return "failure"
	default:
		return "unknown"
	}
}

// Outcome is the classified result of scraping one detail page.
type Outcome struct {
	Kind    OutcomeKind
	Record  *Record
	Missing []string // required fields that were not found (Partial only)
	URL     string
	Reason  error // Failure only
}

// Success wraps a record whose required fields all resolved.
func Success(r *Record) Outcome {
	return Outcome{Kind: OutcomeSuccess, Record: r, URL: r.SourceURL}
}

// Partial wraps a record missing one or more required fields.
func Partial(r *Record, missing []string) Outcome {
	return Outcome{Kind: OutcomePartial, Record: r, Missing: missing, URL: r.SourceURL}
}

// Failure records a page that could not be scraped at all.
func Failure(url string, reason error) Outcome {
	return Outcome{Kind: OutcomeFailure, URL: url, Reason: reason}
}

// LedgerEntry is one failed link.
type LedgerEntry struct {
	Identifier string // decoded contractor name
	URL        string
	Reason     string
}

// RunResult holds the overall result of a scraping run.
type RunResult struct {
	StartTime      time.Time
	EndTime        time.Time
	LetterCount    int
	LinkCount      int
	RecordCount    int
	PartialCount   int
	FailureCount   int
	SkippedLetters []string
	FailedLetters  map[string]string
	ErrorsByType   map[string]int
}
