// Package schema describes the spreadsheet layout: which fields a lead row
// carries, in sheet order, and how each column filters.
//
// Two layouts ship embedded (leads-11 and leads-12). A deployment whose
// sheet differs can point SCHEMA_FILE at its own YAML document.
package schema

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/JonMunkholm/leaddesk/internal/table"
)

//go:embed variants/*.yaml
var variants embed.FS

// ColumnSpec is one column as written in a schema document.
type ColumnSpec struct {
	Key      string `yaml:"key"`
	Label    string `yaml:"label"`
	Filter   string `yaml:"filter"`
	Hideable bool   `yaml:"hideable"`
}

// Schema is a parsed, validated layout.
type Schema struct {
	Name    string       `yaml:"name"`
	Target  string       `yaml:"target"` // key of the column holding the recipient number
	Columns []ColumnSpec `yaml:"columns"`
}

// Variants lists the embedded schema names.
func Variants() []string {
	entries, err := variants.ReadDir("variants")
	if err != nil {
		return nil
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, strings.TrimSuffix(e.Name(), ".yaml"))
	}
	return out
}

// Load returns the schema from path when set, otherwise the embedded variant.
func Load(variant, path string) (*Schema, error) {
	if path != "" {
		return LoadFile(path)
	}
	return LoadVariant(variant)
}

// LoadVariant parses one of the embedded layouts.
func LoadVariant(name string) (*Schema, error) {
	b, err := variants.ReadFile("variants/" + name + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("unknown schema variant %q (have %s)", name, strings.Join(Variants(), ", "))
	}
	return Parse(b)
}

// LoadFile parses a schema document from disk.
func LoadFile(path string) (*Schema, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema file: %w", err)
	}
	return Parse(b)
}

// Parse decodes and validates a schema document.
func Parse(b []byte) (*Schema, error) {
	var s Schema
	if err := yaml.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("parse schema: %w", err)
	}
	for i := range s.Columns {
		if s.Columns[i].Filter == "" {
			s.Columns[i].Filter = string(table.KindNone)
		}
		if s.Columns[i].Label == "" {
			s.Columns[i].Label = s.Columns[i].Key
		}
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks that keys are unique and non-empty, filter kinds are
// known, and the target column exists.
func (s *Schema) Validate() error {
	var errs []error
	if len(s.Columns) == 0 {
		errs = append(errs, errors.New("schema has no columns"))
	}

	seen := make(map[string]bool, len(s.Columns))
	for i, c := range s.Columns {
		switch {
		case c.Key == "":
			errs = append(errs, fmt.Errorf("column %d: key is empty", i))
		case seen[c.Key]:
			errs = append(errs, fmt.Errorf("column %d: duplicate key %q", i, c.Key))
		}
		seen[c.Key] = true
		if !table.FilterKind(c.Filter).Valid() {
			errs = append(errs, fmt.Errorf("column %q: unknown filter kind %q", c.Key, c.Filter))
		}
	}

	if s.Target == "" {
		errs = append(errs, errors.New("schema target column is not set"))
	} else if !seen[s.Target] {
		errs = append(errs, fmt.Errorf("schema target column %q is not a column", s.Target))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid schema %q: %w", s.Name, errors.Join(errs...))
	}
	return nil
}

// Keys returns the field keys in sheet order.
func (s *Schema) Keys() []string {
	out := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		out[i] = c.Key
	}
	return out
}

// TableColumns converts the schema into table engine columns.
func (s *Schema) TableColumns() []table.Column {
	out := make([]table.Column, len(s.Columns))
	for i, c := range s.Columns {
		out[i] = table.Column{
			Key:      c.Key,
			Label:    c.Label,
			Kind:     table.FilterKind(c.Filter),
			Hideable: c.Hideable,
		}
	}
	return out
}

// Record maps one sheet row positionally onto the schema's fields. Missing
// trailing cells become empty strings; extra cells are ignored.
func (s *Schema) Record(id string, cells []string) table.Record {
	values := make(map[string]string, len(s.Columns))
	for i, c := range s.Columns {
		if i < len(cells) {
			values[c.Key] = strings.TrimSpace(cells[i])
		} else {
			values[c.Key] = ""
		}
	}
	return table.NewRecord(id, values)
}
