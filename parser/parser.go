// Package parser turns rendered detail pages into contractor records.
package parser

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/cvantienen/gsaScrape/models"
)

// MultiValueDelimiter joins the values of a multi-valued field.
const MultiValueDelimiter = " | "

// Extract evaluates every field of schema against doc. It never panics and
// always returns one field per schema entry; a field that cannot be located
// is recorded as absent. The outcome is Partial when any required field is
// absent and Success otherwise.
func Extract(doc *Document, schema *Schema, capturedAt time.Time) models.Outcome {
	record := models.NewRecord(doc.URL, capturedAt, len(schema.Fields))

	var missing []string
	for i := range schema.Fields {
		fs := &schema.Fields[i]
		value, ok := extractField(doc, fs)
		if !ok {
			record.SetAbsent(fs.Name)
			if fs.Required {
				missing = append(missing, fs.Name)
			}
			continue
		}
		record.Set(fs.Name, value)
	}

	if len(missing) > 0 {
		return models.Partial(record, missing)
	}
	return models.Success(record)
}

func extractField(doc *Document, fs *FieldSpec) (value string, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("field lookup panicked",
				slog.String("field", fs.Name),
				slog.String("url", doc.URL),
				slog.Any("panic", r),
			)
			value, ok = "", false
		}
	}()

	raw := doc.Lookup(fs)
	if !fs.Multi {
		if len(raw) == 0 {
			return "", false
		}
		return fs.apply(raw[0])
	}

	values := make([]string, 0, len(raw))
	for _, v := range raw {
		if v == "" {
			continue
		}
		if pv, ok := fs.apply(v); ok && pv != "" {
			values = append(values, pv)
		}
	}
	if len(values) == 0 {
		return "", false
	}
	return strings.Join(values, MultiValueDelimiter), true
}

func (f *FieldSpec) apply(v string) (string, bool) {
	if f.post == nil {
		return v, true
	}
	return f.post(v)
}

// ValidateRecord ensures a record can be persisted.
func ValidateRecord(r *models.Record) error {
	if r == nil {
		return fmt.Errorf("record is nil")
	}
	if strings.TrimSpace(r.SourceURL) == "" {
		return fmt.Errorf("record missing source url")
	}
	if len(r.Fields) == 0 {
		return fmt.Errorf("record for %s has no fields", r.SourceURL)
	}
	return nil
}

// ContractorName recovers the contractor name carried in the contractorName
// query parameter of a detail link. It falls back to the link itself.
func ContractorName(link string) string {
	u, err := url.Parse(link)
	if err != nil {
		return link
	}
	// ParseQuery keeps the well-formed pairs when another pair is malformed.
	q, _ := url.ParseQuery(u.RawQuery)
	if name := strings.TrimSpace(q.Get("contractorName")); name != "" {
		return name
	}
	return link
}
