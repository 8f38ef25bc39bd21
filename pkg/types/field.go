package types

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Field types. The set is closed: cell encode/decode switches over these
// exhaustively, and adding a type means adding a switch arm.
const (
	FieldTypeText           = "text"
	FieldTypeNumber         = "number"
	FieldTypeDate           = "date"
	FieldTypeSelect         = "select"
	FieldTypeMultiSelect    = "multiSelect"
	FieldTypeCheckbox       = "checkbox"
	FieldTypeURL            = "url"
	FieldTypeLink           = "link"
	FieldTypeFormula        = "formula"
	FieldTypeRating         = "rating"
	FieldTypeCreatedTime    = "createdTime"
	FieldTypeCreatedBy      = "createdBy"
	FieldTypeLastEditedTime = "lastEditedTime"
	FieldTypeLastEditedBy   = "lastEditedBy"
	FieldTypeFile           = "file"
	FieldTypeTitle          = "title"
)

// validFieldTypes is the set of recognized field type values.
var validFieldTypes = map[string]bool{
	FieldTypeText:           true,
	FieldTypeNumber:         true,
	FieldTypeDate:           true,
	FieldTypeSelect:         true,
	FieldTypeMultiSelect:    true,
	FieldTypeCheckbox:       true,
	FieldTypeURL:            true,
	FieldTypeLink:           true,
	FieldTypeFormula:        true,
	FieldTypeRating:         true,
	FieldTypeCreatedTime:    true,
	FieldTypeCreatedBy:      true,
	FieldTypeLastEditedTime: true,
	FieldTypeLastEditedBy:   true,
	FieldTypeFile:           true,
	FieldTypeTitle:          true,
}

// IsValidFieldType reports whether the given string is a recognized field type.
func IsValidFieldType(ft string) bool {
	return validFieldTypes[ft]
}

// Reserved physical columns present in every data table. The system field
// types (createdTime, createdBy, ...) read from these; user fields get a
// generated column of their own.
const (
	ColumnRowID          = "_id"
	ColumnTitle          = "title"
	ColumnCreatedTime    = "_created_time"
	ColumnCreatedBy      = "_created_by"
	ColumnLastEditedTime = "_last_edited_time"
	ColumnLastEditedBy   = "_last_edited_by"
)

// Field is a logical, typed column definition layered over a physical
// storage column. The TableColumnName never changes after creation; the
// user-facing Name may, which decouples renames from storage.
type Field struct {
	Name            string          // User-facing label; mutable.
	Type            string          // One of the FieldType constants.
	TableID         string          // Owning logical table id.
	TableColumnName string          // Stable physical column identifier.
	Property        json.RawMessage // Type-specific configuration, JSON-encoded.
	CreatedAt       string          // RFC 3339 timestamp of creation.
}

// Field operation errors.
var (
	ErrUnknownFieldType = errors.New("unknown field type")
	ErrReadOnlyField    = errors.New("field is computed and cannot be written directly")
	ErrTooManyOptions   = errors.New("too many distinct values for a select field")
	ErrFieldNotFound    = errors.New("field not found")
	ErrDuplicateTitle   = errors.New("table already has a title field")
)

// SelectOption is one entry of a select or multiSelect field's vocabulary.
type SelectOption struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SelectProperty configures select and multiSelect fields. The option list
// is self-maintaining: encoding a value that names an unseen option appends
// it and signals a property update side effect.
type SelectProperty struct {
	Options []SelectOption `json:"options"`
}

// OptionByName returns the option with the given display name.
func (p *SelectProperty) OptionByName(name string) (SelectOption, bool) {
	for _, o := range p.Options {
		if o.Name == name {
			return o, true
		}
	}
	return SelectOption{}, false
}

// OptionByID returns the option with the given id.
func (p *SelectProperty) OptionByID(id string) (SelectOption, bool) {
	for _, o := range p.Options {
		if o.ID == id {
			return o, true
		}
	}
	return SelectOption{}, false
}

// LinkProperty configures link fields: which table the relation targets.
type LinkProperty struct {
	LinkTableID string `json:"linkTableId"`
}

// FormulaProperty configures formula fields. Expr is a SQL scalar expression
// over sibling columns, re-evaluated whenever a referenced column changes.
type FormulaProperty struct {
	Expr string `json:"expr"`
}

// RatingProperty configures rating fields.
type RatingProperty struct {
	Max int `json:"max"` // Maximum rating value; 5 when zero.
}

// ParseSelectProperty decodes a field's property as a select vocabulary.
// A nil or empty property yields an empty option list.
func ParseSelectProperty(f *Field) (SelectProperty, error) {
	var p SelectProperty
	if len(f.Property) == 0 {
		return p, nil
	}
	if err := json.Unmarshal(f.Property, &p); err != nil {
		return p, fmt.Errorf("parsing select property of field %q: %w", f.Name, err)
	}
	return p, nil
}

// ParseLinkProperty decodes a field's property as a link configuration.
func ParseLinkProperty(f *Field) (LinkProperty, error) {
	var p LinkProperty
	if len(f.Property) == 0 {
		return p, nil
	}
	if err := json.Unmarshal(f.Property, &p); err != nil {
		return p, fmt.Errorf("parsing link property of field %q: %w", f.Name, err)
	}
	return p, nil
}

// ParseFormulaProperty decodes a field's property as a formula configuration.
func ParseFormulaProperty(f *Field) (FormulaProperty, error) {
	var p FormulaProperty
	if len(f.Property) == 0 {
		return p, nil
	}
	if err := json.Unmarshal(f.Property, &p); err != nil {
		return p, fmt.Errorf("parsing formula property of field %q: %w", f.Name, err)
	}
	return p, nil
}
