package types

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// EncodeResult is the outcome of encoding a typed cell value for storage.
// For option-bearing fields the encode step may extend the field's option
// vocabulary; PropertyChanged signals that the caller must persist the
// updated Property back to the field definition.
type EncodeResult struct {
	Raw             any             // Value to bind into the physical column.
	Property        json.RawMessage // Updated field property, when changed.
	PropertyChanged bool
}

// EncodeCell converts a typed cell value into its raw SQL representation for
// the given field. The switch over field types is exhaustive; an
// unrecognized type is a configuration error that callers must surface.
//
// Computed and system-maintained fields (formula, link, createdTime,
// createdBy, lastEditedTime, lastEditedBy) reject direct writes with
// ErrReadOnlyField; their values are produced by the recomputation engine or
// the table manager itself.
func EncodeCell(field *Field, value any) (EncodeResult, error) {
	switch field.Type {
	case FieldTypeText, FieldTypeURL, FieldTypeTitle, FieldTypeFile:
		if value == nil {
			return EncodeResult{Raw: nil}, nil
		}
		return EncodeResult{Raw: fmt.Sprint(value)}, nil

	case FieldTypeDate:
		return encodeDate(value)

	case FieldTypeNumber:
		return encodeNumber(field, value)

	case FieldTypeRating:
		return encodeRating(field, value)

	case FieldTypeCheckbox:
		return encodeCheckbox(value)

	case FieldTypeSelect:
		return encodeSelect(field, value)

	case FieldTypeMultiSelect:
		return encodeMultiSelect(field, value)

	case FieldTypeLink, FieldTypeFormula,
		FieldTypeCreatedTime, FieldTypeCreatedBy,
		FieldTypeLastEditedTime, FieldTypeLastEditedBy:
		return EncodeResult{}, fmt.Errorf("encoding field %q of type %s: %w",
			field.Name, field.Type, ErrReadOnlyField)

	default:
		return EncodeResult{}, fmt.Errorf("encoding field %q: %w: %s",
			field.Name, ErrUnknownFieldType, field.Type)
	}
}

// DecodeCell converts a raw SQL value into its typed cell representation for
// the given field. Like EncodeCell the type switch is exhaustive.
func DecodeCell(field *Field, raw any) (any, error) {
	switch field.Type {
	case FieldTypeText, FieldTypeURL, FieldTypeTitle, FieldTypeFile,
		FieldTypeDate, FieldTypeCreatedTime, FieldTypeCreatedBy,
		FieldTypeLastEditedTime, FieldTypeLastEditedBy:
		if raw == nil {
			return "", nil
		}
		return fmt.Sprint(raw), nil

	case FieldTypeNumber:
		if raw == nil {
			return nil, nil
		}
		f, err := toFloat(raw)
		if err != nil {
			return nil, fmt.Errorf("decoding field %q: %w", field.Name, err)
		}
		return f, nil

	case FieldTypeRating:
		if raw == nil {
			return int64(0), nil
		}
		f, err := toFloat(raw)
		if err != nil {
			return nil, fmt.Errorf("decoding field %q: %w", field.Name, err)
		}
		return int64(f), nil

	case FieldTypeCheckbox:
		if raw == nil {
			return false, nil
		}
		f, err := toFloat(raw)
		if err != nil {
			return nil, fmt.Errorf("decoding field %q: %w", field.Name, err)
		}
		return f != 0, nil

	case FieldTypeSelect:
		return decodeSelect(field, raw)

	case FieldTypeMultiSelect:
		return decodeMultiSelect(field, raw)

	case FieldTypeLink, FieldTypeFormula:
		// Link cells hold the reverse-link display cache and formula cells
		// hold the computed value; both are stored in final form.
		return raw, nil

	default:
		return nil, fmt.Errorf("decoding field %q: %w: %s",
			field.Name, ErrUnknownFieldType, field.Type)
	}
}

func encodeDate(value any) (EncodeResult, error) {
	switch v := value.(type) {
	case nil:
		return EncodeResult{Raw: nil}, nil
	case time.Time:
		return EncodeResult{Raw: v.Format("2006-01-02")}, nil
	case string:
		return EncodeResult{Raw: v}, nil
	default:
		return EncodeResult{}, fmt.Errorf("encoding date: unsupported value type %T", value)
	}
}

func encodeNumber(field *Field, value any) (EncodeResult, error) {
	if value == nil {
		return EncodeResult{Raw: nil}, nil
	}
	f, err := toFloat(value)
	if err != nil {
		return EncodeResult{}, fmt.Errorf("encoding field %q: %w", field.Name, err)
	}
	return EncodeResult{Raw: f}, nil
}

func encodeRating(field *Field, value any) (EncodeResult, error) {
	if value == nil {
		return EncodeResult{Raw: nil}, nil
	}
	f, err := toFloat(value)
	if err != nil {
		return EncodeResult{}, fmt.Errorf("encoding field %q: %w", field.Name, err)
	}
	max := 5.0
	var p RatingProperty
	if len(field.Property) > 0 {
		if err := json.Unmarshal(field.Property, &p); err == nil && p.Max > 0 {
			max = float64(p.Max)
		}
	}
	if f < 0 {
		f = 0
	}
	if f > max {
		f = max
	}
	return EncodeResult{Raw: int64(f)}, nil
}

func encodeCheckbox(value any) (EncodeResult, error) {
	switch v := value.(type) {
	case nil:
		return EncodeResult{Raw: int64(0)}, nil
	case bool:
		if v {
			return EncodeResult{Raw: int64(1)}, nil
		}
		return EncodeResult{Raw: int64(0)}, nil
	default:
		f, err := toFloat(value)
		if err != nil {
			return EncodeResult{}, fmt.Errorf("encoding checkbox: unsupported value type %T", value)
		}
		if f != 0 {
			return EncodeResult{Raw: int64(1)}, nil
		}
		return EncodeResult{Raw: int64(0)}, nil
	}
}

// encodeSelect maps an option name to its stored option id, appending a new
// option to the vocabulary when the name is unseen.
func encodeSelect(field *Field, value any) (EncodeResult, error) {
	if value == nil || value == "" {
		return EncodeResult{Raw: nil}, nil
	}
	name, ok := value.(string)
	if !ok {
		return EncodeResult{}, fmt.Errorf("encoding field %q: select value must be a string, got %T",
			field.Name, value)
	}
	prop, err := ParseSelectProperty(field)
	if err != nil {
		return EncodeResult{}, err
	}
	if opt, found := prop.OptionByName(name); found {
		return EncodeResult{Raw: opt.ID}, nil
	}
	opt := SelectOption{ID: NewOptionID(), Name: name}
	prop.Options = append(prop.Options, opt)
	encoded, err := json.Marshal(prop)
	if err != nil {
		return EncodeResult{}, fmt.Errorf("encoding select property of field %q: %w", field.Name, err)
	}
	return EncodeResult{Raw: opt.ID, Property: encoded, PropertyChanged: true}, nil
}

// encodeMultiSelect maps a list of option names to a comma-joined list of
// option ids, appending unseen names to the vocabulary.
func encodeMultiSelect(field *Field, value any) (EncodeResult, error) {
	var names []string
	switch v := value.(type) {
	case nil:
		return EncodeResult{Raw: nil}, nil
	case []string:
		names = v
	case string:
		if v == "" {
			return EncodeResult{Raw: nil}, nil
		}
		names = strings.Split(v, ",")
	default:
		return EncodeResult{}, fmt.Errorf("encoding field %q: multiSelect value must be a string list, got %T",
			field.Name, value)
	}

	prop, err := ParseSelectProperty(field)
	if err != nil {
		return EncodeResult{}, err
	}
	ids := make([]string, 0, len(names))
	changed := false
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		opt, found := prop.OptionByName(name)
		if !found {
			opt = SelectOption{ID: NewOptionID(), Name: name}
			prop.Options = append(prop.Options, opt)
			changed = true
		}
		ids = append(ids, opt.ID)
	}
	res := EncodeResult{Raw: strings.Join(ids, ",")}
	if changed {
		encoded, err := json.Marshal(prop)
		if err != nil {
			return EncodeResult{}, fmt.Errorf("encoding select property of field %q: %w", field.Name, err)
		}
		res.Property = encoded
		res.PropertyChanged = true
	}
	return res, nil
}

func decodeSelect(field *Field, raw any) (any, error) {
	if raw == nil || raw == "" {
		return "", nil
	}
	id := fmt.Sprint(raw)
	prop, err := ParseSelectProperty(field)
	if err != nil {
		return nil, err
	}
	if opt, found := prop.OptionByID(id); found {
		return opt.Name, nil
	}
	// Unknown ids decode to their raw form rather than dropping data.
	return id, nil
}

func decodeMultiSelect(field *Field, raw any) (any, error) {
	if raw == nil || raw == "" {
		return []string{}, nil
	}
	prop, err := ParseSelectProperty(field)
	if err != nil {
		return nil, err
	}
	ids := strings.Split(fmt.Sprint(raw), ",")
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if opt, found := prop.OptionByID(id); found {
			names = append(names, opt.Name)
		} else {
			names = append(names, id)
		}
	}
	return names, nil
}

// NewOptionID generates a compact id for a select option.
func NewOptionID() string {
	return ShortID(NewEntityID())
}

// toFloat coerces the numeric representations that arrive from SQL scans and
// JSON decoding into a float64.
func toFloat(value any) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, fmt.Errorf("parsing number %q: %w", v, err)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("unsupported numeric value type %T", value)
	}
}
