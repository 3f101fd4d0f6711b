package parser

// labelValue locates the value cell next to the label cell whose text
// contains label, the layout used throughout the contractor detail page.
func labelValue(label, tail string) string {
	return "//td[font[contains(text(), '" + label + "')]]/following-sibling::td/font" + tail
}

// summaryColumn locates the links in column n of the row following the
// "Source" header of the contract summary table.
func summaryColumn(n string) string {
	return "//table//tr[td/font[contains(text(), 'Source')]]/following-sibling::tr[1]/td[" + n + "]//a"
}

const pocCell = "//td[font[contains(text(), 'Govt. POC:')]]/font[2]"

// DefaultSchema returns the built-in contractor schema. Operators override
// it with a YAML file when the upstream page layout changes.
func DefaultSchema() *Schema {
	s := &Schema{Fields: []FieldSpec{
		{Name: "Contract Number", XPath: labelValue("Contract #:", ""), Required: true},
		{Name: "Contractor", XPath: labelValue("Contractor:", ""), Required: true},
		{Name: "Address", XPath: labelValue("Address:", ""), Postprocess: "join_lines"},
		{Name: "Phone", XPath: labelValue("Call:", "")},
		{Name: "Email", XPath: labelValue("Email:", "/a")},
		{Name: "Web Address", XPath: labelValue("Web Address:", "/a")},
		{Name: "SAM UEI", XPath: labelValue("SAM UEI:", "")},
		{Name: "NAICS", XPath: labelValue("NAICS:", "")},
		{Name: "Current Option Period End Date", XPath: labelValue("Current Option Period End Date :", "")},
		{Name: "Ultimate Contract End Date", XPath: labelValue("Ultimate Contract End Date :", "")},
		{Name: "Govt POC Name", XPath: pocCell, Postprocess: "line:0"},
		{Name: "Govt POC Phone", XPath: pocCell, Postprocess: "line:1"},
		{Name: "Govt POC Email", XPath: pocCell, Postprocess: "line:2"},
		{Name: "Terms", XPath: "//a[contains(@onclick, 'Terms')]", Attribute: "onclick", Postprocess: "quoted:1"},
		{Name: "Clauses", XPath: "//a[contains(text(), 'Clauses')]", Attribute: "href"},
		{Name: "Status", XPath: labelValue("Contract Status:", ""), Postprocess: "collapse"},
		{Name: "Source", XPath: summaryColumn("1")},
		{Name: "SINs", XPath: summaryColumn("7"), Multi: true},
	}}
	if err := s.Compile(); err != nil {
		panic("parser: default schema: " + err.Error())
	}
	return s
}
