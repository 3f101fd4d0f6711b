package parser

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/cvantienen/gsaScrape/models"
)

const detailURL = "https://www.gsaelibrary.gsa.gov/ElibMain/contractorInfo.do?contractNumber=47QTCA19D00AB&contractorName=ACME+FEDERAL+SOLUTIONS+LLC&executeQuery=YES"

func loadDetail(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile("testdata/detail.html")
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	return string(data)
}

func mustDocument(t *testing.T, raw string) *Document {
	t.Helper()
	doc, err := NewDocument(detailURL, raw)
	if err != nil {
		t.Fatalf("new document: %v", err)
	}
	return doc
}

func TestExtractDetailPage(t *testing.T) {
	schema := DefaultSchema()
	doc := mustDocument(t, loadDetail(t))
	captured := time.Date(2025, 11, 4, 13, 9, 13, 0, time.UTC)

	outcome := Extract(doc, schema, captured)
	if outcome.Kind != models.OutcomeSuccess {
		t.Fatalf("kind=%v missing=%v, want success", outcome.Kind, outcome.Missing)
	}
	if got := len(outcome.Record.Fields); got != len(schema.Fields) {
		t.Fatalf("fields=%d, want %d", got, len(schema.Fields))
	}
	if outcome.Record.SourceURL != detailURL || !outcome.Record.CapturedAt.Equal(captured) {
		t.Fatalf("record metadata = %q %v", outcome.Record.SourceURL, outcome.Record.CapturedAt)
	}

	want := map[string]string{
		"Contract Number":                "47QTCA19D00AB",
		"Contractor":                     "ACME FEDERAL SOLUTIONS LLC",
		"Address":                        "123 MAIN ST, SUITE 400, ARLINGTON, VA 22201-1234",
		"Phone":                          "(703) 555-0100",
		"Email":                          "sales@acme.test",
		"Web Address":                    "www.acme.test",
		"SAM UEI":                        "ABCDEF123456",
		"NAICS":                          "541512",
		"Current Option Period End Date": "Sep 30, 2029",
		"Ultimate Contract End Date":     "Sep 30, 2039",
		"Govt POC Name":                  "Jane Officer",
		"Govt POC Phone":                 "(202) 555-0199",
		"Govt POC Email":                 "jane.officer@gsa.test",
		"Terms":                          "https://www.gsaelibrary.gsa.gov/ElibMain/terms/47QTCA19D00AB.pdf",
		"Clauses":                        "https://www.gsaelibrary.gsa.gov/ElibMain/clauses.do?contractNumber=47QTCA19D00AB",
		"Status":                         "Active Contract",
		"Source":                         "MAS",
		"SINs":                           "54151S | 54151HACS | OLM",
	}
	for name, expected := range want {
		got, found := outcome.Record.Get(name)
		if !found {
			t.Errorf("%s: not found", name)
			continue
		}
		if got != expected {
			t.Errorf("%s=%q, want %q", name, got, expected)
		}
	}
}

func TestExtractMissingOptionalField(t *testing.T) {
	raw := strings.Replace(loadDetail(t),
		`<tr><td><font>Email:</font></td><td><font><a href="mailto:sales@acme.test">sales@acme.test</a></font></td></tr>`, "", 1)
	outcome := Extract(mustDocument(t, raw), DefaultSchema(), time.Now())

	if outcome.Kind != models.OutcomeSuccess {
		t.Fatalf("kind=%v, want success", outcome.Kind)
	}
	if _, found := outcome.Record.Get("Email"); found {
		t.Fatalf("Email should be absent")
	}
}

func TestExtractMissingRequiredField(t *testing.T) {
	raw := strings.Replace(loadDetail(t), "Contract #:", "Order #:", 1)
	outcome := Extract(mustDocument(t, raw), DefaultSchema(), time.Now())

	if outcome.Kind != models.OutcomePartial {
		t.Fatalf("kind=%v, want partial", outcome.Kind)
	}
	if len(outcome.Missing) != 1 || outcome.Missing[0] != "Contract Number" {
		t.Fatalf("missing=%v, want [Contract Number]", outcome.Missing)
	}
	if v, found := outcome.Record.Get("Contractor"); !found || v == "" {
		t.Fatalf("remaining fields should still be extracted")
	}
}

func TestExtractNeverFailsOnArbitraryDocuments(t *testing.T) {
	schema := DefaultSchema()
	inputs := []string{
		"",
		"<html></html>",
		"not html at all <<<>>>",
		"<table><tr><td><font>Contract #:</font></td></tr></table>",
		strings.Repeat("<div>", 500) + "deep" + strings.Repeat("</div>", 500),
	}

	for _, raw := range inputs {
		doc := mustDocument(t, raw)
		outcome := Extract(doc, schema, time.Now())
		if outcome.Kind == models.OutcomeFailure {
			t.Fatalf("input %.20q produced a failure outcome", raw)
		}
		if got := len(outcome.Record.Fields); got != len(schema.Fields) {
			t.Fatalf("input %.20q: fields=%d, want %d", raw, got, len(schema.Fields))
		}
	}
}

func TestExtractDetailTrigger(t *testing.T) {
	schema, err := ParseSchema([]byte(`
fields:
  - name: Terms
    css: "a.terms"
    attribute: onclick
    postprocess: "quoted:1"
`))
	if err != nil {
		t.Fatalf("parse schema: %v", err)
	}

	present := mustDocument(t, `<a class="terms" onclick="doSomething('https://x/terms.pdf','other')">terms</a>`)
	outcome := Extract(present, schema, time.Now())
	if got, found := outcome.Record.Get("Terms"); !found || got != "https://x/terms.pdf" {
		t.Fatalf("terms=%q/%v, want https://x/terms.pdf", got, found)
	}

	absent := mustDocument(t, `<a class="other" href="/">home</a>`)
	outcome = Extract(absent, schema, time.Now())
	if _, found := outcome.Record.Get("Terms"); found {
		t.Fatalf("missing trigger should be absent")
	}

	noAttr := mustDocument(t, `<a class="terms" href="/">terms</a>`)
	outcome = Extract(noAttr, schema, time.Now())
	if _, found := outcome.Record.Get("Terms"); found {
		t.Fatalf("trigger without onclick should be absent")
	}
}

func TestExtractMultiValued(t *testing.T) {
	schema, err := ParseSchema([]byte(`
fields:
  - name: SINs
    xpath: "//ul[@id='sins']/li"
    multi: true
`))
	if err != nil {
		t.Fatalf("parse schema: %v", err)
	}

	doc := mustDocument(t, `<ul id="sins"><li>SIN1</li><li> SIN2 </li><li>SIN3</li></ul>`)
	if got, _ := Extract(doc, schema, time.Now()).Record.Get("SINs"); got != "SIN1 | SIN2 | SIN3" {
		t.Fatalf("sins=%q, want %q", got, "SIN1 | SIN2 | SIN3")
	}

	empty := mustDocument(t, `<ul id="sins"></ul>`)
	if _, found := Extract(empty, schema, time.Now()).Record.Get("SINs"); found {
		t.Fatalf("zero matches should be absent")
	}
}

func TestEmptyElementIsNotAbsent(t *testing.T) {
	schema, err := ParseSchema([]byte(`
fields:
  - name: Phone
    css: "span.phone"
`))
	if err != nil {
		t.Fatalf("parse schema: %v", err)
	}
	doc := mustDocument(t, `<span class="phone">   </span>`)
	got, found := Extract(doc, schema, time.Now()).Record.Get("Phone")
	if !found || got != "" {
		t.Fatalf("phone=%q/%v, want empty and found", got, found)
	}
}

func TestValidateRecord(t *testing.T) {
	tests := []struct {
		name    string
		record  *models.Record
		wantErr bool
	}{
		{name: "nil", record: nil, wantErr: true},
		{name: "no url", record: &models.Record{Fields: []models.Field{{Name: "a"}}}, wantErr: true},
		{name: "no fields", record: &models.Record{SourceURL: detailURL}, wantErr: true},
		{name: "valid", record: &models.Record{SourceURL: detailURL, Fields: []models.Field{{Name: "a"}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidateRecord(tt.record); (err != nil) != tt.wantErr {
				t.Fatalf("ValidateRecord() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestContractorName(t *testing.T) {
	tests := []struct {
		link string
		want string
	}{
		{detailURL, "ACME FEDERAL SOLUTIONS LLC"},
		{"https://host/contractorInfo.do?contractorName=SMITH+%26+SONS%2C+INC.", "SMITH & SONS, INC."},
		{"https://host/contractorInfo.do?contractorName=O%27BRIEN%20GROUP&x=%zz", "O'BRIEN GROUP"},
		{"https://host/contractorInfo.do?contractNumber=1", "https://host/contractorInfo.do?contractNumber=1"},
		{"::not a url", "::not a url"},
	}

	for _, tt := range tests {
		if got := ContractorName(tt.link); got != tt.want {
			t.Errorf("ContractorName(%q) = %q, want %q", tt.link, got, tt.want)
		}
	}
}
