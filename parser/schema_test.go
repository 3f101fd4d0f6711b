package parser

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseSchemaErrors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{name: "empty", yaml: "fields: []", wantErr: "no fields"},
		{name: "no name", yaml: "fields:\n  - css: a", wantErr: "name cannot be empty"},
		{name: "duplicate", yaml: "fields:\n  - {name: A, css: a}\n  - {name: A, css: b}", wantErr: "duplicate"},
		{name: "two locators", yaml: "fields:\n  - {name: A, css: a, xpath: //a}", wantErr: "not both"},
		{name: "no locator", yaml: "fields:\n  - {name: A}", wantErr: "missing locator"},
		{name: "bad xpath", yaml: "fields:\n  - {name: A, xpath: '//td['}", wantErr: "invalid xpath"},
		{name: "bad css", yaml: "fields:\n  - {name: A, css: 'td['}", wantErr: "invalid css"},
		{name: "bad postprocess", yaml: "fields:\n  - {name: A, css: a, postprocess: shout}", wantErr: "unknown postprocess"},
		{name: "bad index", yaml: "fields:\n  - {name: A, css: a, postprocess: 'line:x'}", wantErr: "invalid index"},
		{name: "not yaml", yaml: "fields: [", wantErr: "decode schema"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSchema([]byte(tt.yaml))
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestDefaultSchemaRoundTripsThroughFile(t *testing.T) {
	def := DefaultSchema()
	data, err := def.YAML()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	path := filepath.Join(t.TempDir(), "schema.yaml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	loaded, err := LoadSchema(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if strings.Join(loaded.Names(), ",") != strings.Join(def.Names(), ",") {
		t.Fatalf("names=%v, want %v", loaded.Names(), def.Names())
	}
	if got := loaded.Required(); len(got) != 2 || got[0] != "Contract Number" || got[1] != "Contractor" {
		t.Fatalf("required=%v", got)
	}
}

func TestLoadSchemaMissingFile(t *testing.T) {
	if _, err := LoadSchema(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestPostprocessors(t *testing.T) {
	tests := []struct {
		ref    string
		in     string
		want   string
		wantOK bool
	}{
		{"join_lines", "a\nb\nc", "a, b, c", true},
		{"collapse", " a \t b\nc ", "a b c", true},
		{"lower", "ACME", "acme", true},
		{"line:1", "name\nphone\nemail", "phone", true},
		{"line:5", "name\nphone", "", false},
		{"quoted:1", "doSomething('https://x/terms.pdf','other')", "https://x/terms.pdf", true},
		{"quoted:3", "doSomething('https://x/terms.pdf','other')", "other", true},
		{"quoted:1", "noQuotesHere()", "", false},
		{"line:1", "name\n  \nemail", "", false},
		{"quoted:1", "open(' ',' ')", "", false},
		{"join_lines", "", "", true},
		{"collapse", "   ", "", true},
		{"lower", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			post, err := ParsePostprocess(tt.ref)
			if err != nil {
				t.Fatalf("parse %q: %v", tt.ref, err)
			}
			got, ok := post(tt.in)
			if got != tt.want || ok != tt.wantOK {
				t.Fatalf("%s(%q) = %q/%v, want %q/%v", tt.ref, tt.in, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestDocumentLinks(t *testing.T) {
	doc, err := NewDocument("https://host.test/ElibMain/contractorList.do?contractorListFor=A", `
		<a href="contractorInfo.do?contractorName=A+ONE">one</a>
		<a href="https://host.test/ElibMain/contractorInfo.do?contractorName=A+ONE">dup</a>
		<a href="/ElibMain/home.do">home</a>
		<a>no href</a>
		<a href="  ">blank</a>`)
	if err != nil {
		t.Fatalf("new document: %v", err)
	}

	links := doc.Links()
	want := []string{
		"https://host.test/ElibMain/contractorInfo.do?contractorName=A+ONE",
		"https://host.test/ElibMain/home.do",
	}
	if strings.Join(links, " ") != strings.Join(want, " ") {
		t.Fatalf("links=%v, want %v", links, want)
	}
}

func TestTextRendering(t *testing.T) {
	doc, err := NewDocument("https://host.test/", `<div id="x">  Line <b>one</b><br/>Line&nbsp;two<script>ignored()</script><p>para</p></div>`)
	if err != nil {
		t.Fatalf("new document: %v", err)
	}
	fs := &FieldSpec{Name: "x", CSS: "#x"}
	s := &Schema{Fields: []FieldSpec{*fs}}
	if err := s.Compile(); err != nil {
		t.Fatalf("compile: %v", err)
	}

	values := doc.Lookup(&s.Fields[0])
	if len(values) != 1 {
		t.Fatalf("values=%v", values)
	}
	if want := "Line one\nLine two\npara"; values[0] != want {
		t.Fatalf("text=%q, want %q", values[0], want)
	}
}
