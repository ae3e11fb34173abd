package domain

// FieldType is the value type a canonical attribute carries.
type FieldType string

const (
	TypeString FieldType = "string"
	TypeInt    FieldType = "int"
	TypeFloat  FieldType = "float"
)

// Field describes one canonical attribute of the building schema.
type Field struct {
	Key      string
	Label    string
	Required bool
	Type     FieldType
	// Default is applied when an optional field is unmapped or absent.
	Default any
}

// Fields is the fixed canonical attribute schema. Source datasets map their
// own column names onto these keys; the analysis pipeline only ever sees the
// canonical keys.
var Fields = []Field{
	{Key: "id", Label: "ID", Required: true, Type: TypeString},
	{Key: "buildingUse", Label: "buildingUse", Required: true, Type: TypeString},
	{Key: "year", Label: "Year of construction", Required: false, Type: TypeInt, Default: 0},
	{Key: "gfa", Label: "Gross floor Area", Required: true, Type: TypeFloat},
	{Key: "roof", Label: "Roof Area", Required: false, Type: TypeFloat, Default: 0.0},
	{Key: "height", Label: "Height", Required: false, Type: TypeFloat, Default: 10.0},
	{Key: "floors", Label: "Num of floors", Required: false, Type: TypeInt, Default: 0},
}

// FieldByKey looks up a schema field.
func FieldByKey(key string) (Field, bool) {
	for _, f := range Fields {
		if f.Key == key {
			return f, true
		}
	}
	return Field{}, false
}

// RequiredKeys returns the canonical keys the analysis pipeline cannot run
// without.
func RequiredKeys() []string {
	var out []string
	for _, f := range Fields {
		if f.Required {
			out = append(out, f.Key)
		}
	}
	return out
}

// Mapping maps canonical attribute keys to source column names. An absent or
// empty entry means the attribute is unmapped.
type Mapping map[string]string

// Clone returns a copy so callers cannot mutate a persisted mapping in place.
func (m Mapping) Clone() Mapping {
	out := make(Mapping, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Empty returns a mapping with every canonical attribute unmapped.
func Empty() Mapping {
	out := make(Mapping, len(Fields))
	for _, f := range Fields {
		out[f.Key] = ""
	}
	return out
}

// Record holds one building's canonical attribute values. Values are typed
// per the schema; a required attribute that could not be resolved carries the
// Unresolved marker instead of crashing the import.
type Record map[string]any

// Unresolved is the sentinel standing in for a required attribute that could
// not be resolved from the source mapping. It survives a JSON round trip.
const Unresolved = "__unresolved__"

// IsUnresolved reports whether a record value is the unresolved marker.
func IsUnresolved(v any) bool {
	s, ok := v.(string)
	return ok && s == Unresolved
}

// UnresolvedKeys lists the record's canonical keys carrying the marker.
func (r Record) UnresolvedKeys() []string {
	var out []string
	for _, f := range Fields {
		if IsUnresolved(r[f.Key]) {
			out = append(out, f.Key)
		}
	}
	return out
}

// String returns the string value of a canonical key, or "".
func (r Record) String(key string) string {
	s, _ := r[key].(string)
	return s
}

// Float returns the numeric value of a canonical key. JSON round trips turn
// ints into float64, so both are accepted.
func (r Record) Float(key string) float64 {
	switch v := r[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}

// Int returns the integer value of a canonical key.
func (r Record) Int(key string) int {
	switch v := r[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}
