package types

// AllowedValue is one entry of a field's allowed-value table. Depending on
// the field type Jira populates either Name (components, versions, priority)
// or Value (options).
type AllowedValue struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Value string `json:"value"`
}

// FieldMeta describes a single field of an issue type as reported by the
// createmeta endpoint.
type FieldMeta struct {
	Key           string         `json:"key"`
	FieldID       string         `json:"fieldId"`
	Name          string         `json:"name"`
	Required      bool           `json:"required"`
	HasDefault    bool           `json:"hasDefaultValue"`
	Schema        FieldType      `json:"schema"`
	AllowedValues []AllowedValue `json:"allowedValues"`
}

// FieldType carries the type tag of a field's schema declaration.
type FieldType struct {
	Type string `json:"type"`
}

// IssueTypeSchema is the field schema for one (project, issue type) pair.
// Fetched once per pair and immutable for the duration of a run.
type IssueTypeSchema struct {
	Fields []FieldMeta `json:"fields"`
}

// Field returns the descriptor for the given field key, or nil when the
// schema does not declare it.
func (s IssueTypeSchema) Field(key string) *FieldMeta {
	for i := range s.Fields {
		if s.Fields[i].Key == key {
			return &s.Fields[i]
		}
	}
	return nil
}

// IssueType is one entry of a project's issue type list.
type IssueType struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
