package payload

import (
	"fmt"
	"strings"

	"github.com/dfcarvalho/jira-epic-helper/pkg/types"
)

// ValidationError reports a schema constraint violated while building a
// payload. It always names the offending field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("field %q: %s", e.Field, e.Reason)
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// richTextFields are string fields that must be sent as ADF documents.
var richTextFields = map[string]bool{
	"description": true,
	"environment": true,
}

// handler encodes one input value according to its field's schema type.
type handler func(b *builder, f *types.FieldMeta, value any) (any, error)

// handlers is the closed dispatch table from schema type tag to encoding.
// Adding a field type is a one-line addition here; a type without an entry
// is an explicit validation error, never a silent pass-through.
var handlers = map[string]handler{
	"string":     handleString,
	"array":      handleArray,
	"attachment": handleIDList,
	"boolean":    handleBoolean,
	"component":  handleIDList,
	"date":       handleDate,
	"datetime":   handleDate,
	"issuetype":  handleIssueType,
	"number":     handleNumber,
	"option":     handleOption,
	"priority":   handlePriority,
	"project":    handleProject,
	"user":       handleUser,
	"version":    handleIDList,
	"issuelink":  handleKeyRef,
	"parent":     handleKeyRef,
}

type builder struct {
	issueTypeID string
}

// Build turns a flat map of field values into a Jira create payload that
// satisfies the given issue-type schema. It validates that every input key
// exists in the schema, that enumerated values are allowed, that primitives
// have the right kind, and that every required field is either supplied or
// has a declared default. Inputs are not mutated; the first violation wins.
func Build(schema types.IssueTypeSchema, issueTypeID string, values map[string]any) (map[string]any, error) {
	b := &builder{issueTypeID: issueTypeID}
	fields := make(map[string]any, len(values))

	for key, value := range values {
		meta := schema.Field(key)
		if meta == nil {
			return nil, invalid(key, "not valid for this issue type")
		}
		encoded, err := b.encode(meta, key, value)
		if err != nil {
			return nil, err
		}
		fields[meta.FieldID] = encoded
	}

	var missing []string
	for _, f := range schema.Fields {
		if !f.Required || f.HasDefault {
			continue
		}
		if _, ok := values[f.Key]; !ok {
			missing = append(missing, f.Key)
		}
	}
	if len(missing) > 0 {
		return nil, invalid(missing[0],
			"missing required fields without default values: %s", strings.Join(missing, ", "))
	}

	return map[string]any{"fields": fields, "update": map[string]any{}}, nil
}

func (b *builder) encode(meta *types.FieldMeta, key string, value any) (any, error) {
	if richTextFields[key] && meta.Schema.Type == "string" {
		s, ok := value.(string)
		if !ok {
			return nil, invalid(key, "expected string for rich-text field, got %T", value)
		}
		return adfDocument(s), nil
	}
	h, ok := handlers[meta.Schema.Type]
	if !ok {
		return nil, invalid(key, "no handler for field type %q", meta.Schema.Type)
	}
	return h(b, meta, value)
}

func handleString(_ *builder, _ *types.FieldMeta, value any) (any, error) {
	return value, nil
}

// handleArray validates items against the allowed-value table when the field
// carries one (components, fix versions and similar), mapping names to ids.
// Free-form arrays such as labels pass through untouched.
func handleArray(_ *builder, f *types.FieldMeta, value any) (any, error) {
	allowed := allowedByName(f)
	if len(allowed) == 0 {
		return value, nil
	}
	items, err := stringItems(f, value)
	if err != nil {
		return nil, err
	}
	var unresolved []string
	out := make([]map[string]string, 0, len(items))
	for _, item := range items {
		id, ok := allowed[item]
		if !ok {
			unresolved = append(unresolved, item)
			continue
		}
		out = append(out, map[string]string{"id": id})
	}
	if len(unresolved) > 0 {
		return nil, invalid(f.Key, "invalid values %q", unresolved)
	}
	return out, nil
}

// handleIDList covers component, version and attachment fields: a list of
// {id} objects, resolving input names through the allowed-value table when
// one exists.
func handleIDList(_ *builder, f *types.FieldMeta, value any) (any, error) {
	items, err := stringItems(f, value)
	if err != nil {
		return nil, err
	}
	allowed := allowedByName(f)
	out := make([]map[string]string, 0, len(items))
	for _, item := range items {
		id := item
		if len(allowed) > 0 {
			resolved, ok := allowed[item]
			if !ok {
				return nil, invalid(f.Key, "invalid value %q", item)
			}
			id = resolved
		}
		out = append(out, map[string]string{"id": id})
	}
	return out, nil
}

func handleBoolean(_ *builder, f *types.FieldMeta, value any) (any, error) {
	if _, ok := value.(bool); !ok {
		return nil, invalid(f.Key, "expected boolean, got %T", value)
	}
	return value, nil
}

func handleDate(_ *builder, f *types.FieldMeta, value any) (any, error) {
	s, ok := value.(string)
	if !ok || len(strings.Split(s, "-")) != 3 {
		return nil, invalid(f.Key, "expected date format YYYY-MM-DD")
	}
	return s, nil
}

func handleIssueType(b *builder, _ *types.FieldMeta, _ any) (any, error) {
	return map[string]string{"id": b.issueTypeID}, nil
}

func handleNumber(_ *builder, f *types.FieldMeta, value any) (any, error) {
	switch value.(type) {
	case int, int32, int64, float32, float64:
		return value, nil
	default:
		return nil, invalid(f.Key, "expected number, got %T", value)
	}
}

func handleOption(_ *builder, f *types.FieldMeta, value any) (any, error) {
	allowed := make(map[string]string, len(f.AllowedValues))
	for _, v := range f.AllowedValues {
		allowed[v.Value] = v.ID
	}
	s, _ := value.(string)
	id, ok := allowed[s]
	if !ok {
		return nil, invalid(f.Key, "invalid value %q", value)
	}
	return map[string]string{"id": id}, nil
}

func handlePriority(_ *builder, f *types.FieldMeta, value any) (any, error) {
	allowed := allowedByName(f)
	s, _ := value.(string)
	id, ok := allowed[s]
	if !ok {
		return nil, invalid(f.Key, "invalid value %q for priority", value)
	}
	return map[string]string{"id": id}, nil
}

func handleProject(_ *builder, _ *types.FieldMeta, value any) (any, error) {
	return map[string]any{"id": value}, nil
}

func handleUser(_ *builder, _ *types.FieldMeta, value any) (any, error) {
	return map[string]any{"accountId": value}, nil
}

func handleKeyRef(_ *builder, _ *types.FieldMeta, value any) (any, error) {
	return map[string]any{"key": value}, nil
}

func allowedByName(f *types.FieldMeta) map[string]string {
	if len(f.AllowedValues) == 0 {
		return nil
	}
	out := make(map[string]string, len(f.AllowedValues))
	for _, v := range f.AllowedValues {
		if v.Name != "" {
			out[v.Name] = v.ID
		}
	}
	return out
}

// stringItems coerces a JSON/YAML decoded array into []string.
func stringItems(f *types.FieldMeta, value any) ([]string, error) {
	switch v := value.(type) {
	case []string:
		return v, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, invalid(f.Key, "expected string items, got %T", item)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, invalid(f.Key, "expected array, got %T", value)
	}
}
