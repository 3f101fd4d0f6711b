package pipeline

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/cvantienen/gsaScrape/models"
)

// ErrSchemaMismatch is returned when a record's columns differ from the
// header already established for the output file.
var ErrSchemaMismatch = errors.New("record columns do not match output header")

// CSVWriter appends records to a CSV file. The header is taken from the first
// record written, or read back from the file when it already has one, and is
// never written twice.
type CSVWriter struct {
	file   *os.File
	writer *csv.Writer
	header []string
	rows   int
	mu     sync.Mutex
}

// NewCSVWriter opens filename for appending, creating it if needed.
func NewCSVWriter(filename string) (*CSVWriter, error) {
	if err := ensureDir(filename); err != nil {
		return nil, err
	}

	f, err := os.OpenFile(filename, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open csv file: %w", err)
	}

	header, rows, err := readHeader(f)
	if err != nil {
		f.Close()
		return nil, err
	}

	return &CSVWriter{
		file:   f,
		writer: csv.NewWriter(f),
		header: header,
		rows:   rows,
	}, nil
}

// readHeader returns the existing header row and the number of data rows.
func readHeader(f *os.File) ([]string, int, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, 0, fmt.Errorf("stat csv file: %w", err)
	}
	if info.Size() == 0 {
		return nil, 0, nil
	}

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if err != nil {
		return nil, 0, fmt.Errorf("read csv header: %w", err)
	}
	rows := 0
	for {
		_, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("read csv rows: %w", err)
		}
		rows++
	}
	return header, rows, nil
}

// Header returns the established header, or nil before the first write.
func (cw *CSVWriter) Header() []string {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	return slices.Clone(cw.header)
}

// Write appends records to the CSV output.
func (cw *CSVWriter) Write(records []*models.Record) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	for _, r := range records {
		cols := r.Columns()
		if cw.header == nil {
			if err := cw.writer.Write(cols); err != nil {
				return fmt.Errorf("write csv header: %w", err)
			}
			cw.header = cols
		} else if !slices.Equal(cw.header, cols) {
			return fmt.Errorf("%w: %s", ErrSchemaMismatch, r.SourceURL)
		}

		if err := cw.writer.Write(r.Values()); err != nil {
			return fmt.Errorf("write csv record: %w", err)
		}
		cw.rows++
	}
	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		return fmt.Errorf("flush csv records: %w", err)
	}
	return nil
}

// Close flushes and closes the file handle.
func (cw *CSVWriter) Close() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		return fmt.Errorf("flush csv writer: %w", err)
	}
	return cw.file.Close()
}

// Validate ensures the file has content besides the header.
func (cw *CSVWriter) Validate() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	if cw.rows == 0 {
		return fmt.Errorf("csv file %s has no records", cw.file.Name())
	}
	return nil
}

// JSONWriter writes newline-delimited JSON records. Keys follow column order
// and absent fields are encoded as null.
type JSONWriter struct {
	file   *os.File
	writer *bufio.Writer
	rows   int
	mu     sync.Mutex
}

// NewJSONWriter opens filename for appending, creating it if needed.
func NewJSONWriter(filename string) (*JSONWriter, error) {
	if err := ensureDir(filename); err != nil {
		return nil, err
	}

	f, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open json file: %w", err)
	}

	return &JSONWriter{
		file:   f,
		writer: bufio.NewWriter(f),
	}, nil
}

// Write appends records in JSONL format.
func (jw *JSONWriter) Write(records []*models.Record) error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	for _, r := range records {
		line, err := encodeRecord(r)
		if err != nil {
			return fmt.Errorf("encode json record: %w", err)
		}
		if _, err := jw.writer.Write(line); err != nil {
			return fmt.Errorf("write json record: %w", err)
		}
		jw.rows++
	}

	if err := jw.writer.Flush(); err != nil {
		return fmt.Errorf("flush json writer: %w", err)
	}
	return nil
}

func encodeRecord(r *models.Record) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	writePair := func(name string, value any) error {
		if buf.Len() > 1 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(name)
		if err != nil {
			return err
		}
		v, err := json.Marshal(value)
		if err != nil {
			return err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
		return nil
	}

	for _, f := range r.Fields {
		var value any
		if f.Found {
			value = f.Value
		}
		if err := writePair(f.Name, value); err != nil {
			return nil, err
		}
	}
	values := r.Values()
	if err := writePair(models.ColumnSourceURL, values[len(values)-2]); err != nil {
		return nil, err
	}
	if err := writePair(models.ColumnCapturedAt, values[len(values)-1]); err != nil {
		return nil, err
	}

	buf.WriteString("}\n")
	return buf.Bytes(), nil
}

// Close flushes buffers and closes the underlying file.
func (jw *JSONWriter) Close() error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	if err := jw.writer.Flush(); err != nil {
		return fmt.Errorf("flush json writer: %w", err)
	}
	return jw.file.Close()
}

// Validate ensures the JSON file has data.
func (jw *JSONWriter) Validate() error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	if jw.rows > 0 {
		return nil
	}
	info, err := jw.file.Stat()
	if err != nil {
		return fmt.Errorf("stat json file: %w", err)
	}
	if info.Size() <= 0 {
		return fmt.Errorf("json file %s is empty", jw.file.Name())
	}
	return nil
}

// NewWriter builds the OutputWriter for format ("csv", "json", or "dual").
// For dual output the JSONL file sits next to filename with a .jsonl suffix.
func NewWriter(format, filename string) (OutputWriter, error) {
	switch format {
	case "csv":
		return NewCSVWriter(filename)
	case "json":
		return NewJSONWriter(filename)
	case "dual":
		return NewDualWriter(filename, strings.TrimSuffix(filename, filepath.Ext(filename))+".jsonl")
	default:
		return nil, fmt.Errorf("unknown output format %q", format)
	}
}

func ensureDir(filename string) error {
	dir := filepath.Dir(filename)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}
