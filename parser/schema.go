package parser

import (
	"fmt"
	"os"
	"strings"

	"github.com/andybalholm/cascadia"
	"github.com/antchfx/xpath"
	"gopkg.in/yaml.v3"
)

// FieldSpec is one named extraction rule. Exactly one of XPath or CSS must
// be set. An empty Attribute selects the element's rendered text.
type FieldSpec struct {
	Name        string `yaml:"name"`
	XPath       string `yaml:"xpath,omitempty"`
	CSS         string `yaml:"css,omitempty"`
	Attribute   string `yaml:"attribute,omitempty"`
	Multi       bool   `yaml:"multi,omitempty"`
	Postprocess string `yaml:"postprocess,omitempty"`
	Required    bool   `yaml:"required,omitempty"`

	xpath *xpath.Expr
	css   cascadia.Selector
	post  Postprocessor
}

// Schema is the ordered set of fields extracted from every detail page.
type Schema struct {
	Fields []FieldSpec `yaml:"fields"`
}

// LoadSchema reads and compiles a YAML schema file.
func LoadSchema(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	s, err := ParseSchema(data)
	if err != nil {
		return nil, fmt.Errorf("schema %s: %w", path, err)
	}
	return s, nil
}

// ParseSchema decodes and compiles a YAML schema.
func ParseSchema(data []byte) (*Schema, error) {
	var s Schema
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode schema: %w", err)
	}
	if err := s.Compile(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Compile validates every field and prepares its locator and postprocessor.
// A compiled schema never fails at extraction time.
func (s *Schema) Compile() error {
	if len(s.Fields) == 0 {
		return fmt.Errorf("schema has no fields")
	}

	seen := make(map[string]struct{}, len(s.Fields))
	for i := range s.Fields {
		f := &s.Fields[i]
		f.Name = strings.TrimSpace(f.Name)
		if f.Name == "" {
			return fmt.Errorf("field %d: name cannot be empty", i)
		}
		if _, dup := seen[f.Name]; dup {
			return fmt.Errorf("field %q: duplicate name", f.Name)
		}
		seen[f.Name] = struct{}{}

		switch {
		case f.XPath != "" && f.CSS != "":
			return fmt.Errorf("field %q: set xpath or css, not both", f.Name)
		case f.XPath != "":
			expr, err := xpath.Compile(f.XPath)
			if err != nil {
				return fmt.Errorf("field %q: invalid xpath: %w", f.Name, err)
			}
			f.xpath, f.css = expr, nil
		case f.CSS != "":
			sel, err := cascadia.Compile(f.CSS)
			if err != nil {
				return fmt.Errorf("field %q: invalid css selector: %w", f.Name, err)
			}
			f.css, f.xpath = sel, nil
		default:
			return fmt.Errorf("field %q: missing locator", f.Name)
		}

		post, err := ParsePostprocess(f.Postprocess)
		if err != nil {
			return fmt.Errorf("field %q: %w", f.Name, err)
		}
		f.post = post
	}
	return nil
}

// Names returns the field names in schema order.
func (s *Schema) Names() []string {
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
	}
	return names
}

// Required returns the names of the required fields.
func (s *Schema) Required() []string {
	var names []string
	for _, f := range s.Fields {
		if f.Required {
			names = append(names, f.Name)
		}
	}
	return names
}

// YAML encodes the schema in the format LoadSchema reads.
func (s *Schema) YAML() ([]byte, error) {
	return yaml.Marshal(s)
}
