// Package schemas provides JSON Schema validation for trace attachments.
package schemas

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed trace.schema.json
var traceSchemaJSON []byte

// rootField is how gojsonschema names the document root.
const rootField = "(root)"

// Schema is a compiled JSON Schema. It is safe for concurrent use.
type Schema struct {
	name   string
	schema *gojsonschema.Schema
}

// SchemaLoadError represents errors loading or parsing the schema itself
type SchemaLoadError struct {
	Path    string
	Message string
	Cause   error
}

func (e *SchemaLoadError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("failed to load schema %s: %s: %v", e.Path, e.Message, e.Cause)
	}
	return fmt.Sprintf("failed to load schema %s: %s", e.Path, e.Message)
}

func (e *SchemaLoadError) Unwrap() error {
	return e.Cause
}

// Violation is a single field-addressed schema failure.
type Violation struct {
	// Path addresses the offending node, e.g. "steps[0].action". For a
	// missing required property it names the missing child.
	Path string `json:"path"`
	// Location is the node the constraint was checked on. It differs from
	// Path only for required-property failures. Empty means the root object.
	Location string `json:"location"`
	Rule     string `json:"rule"`
	Message  string `json:"message"`

	segments []string
}

// String renders the violation the way it is shown to issue reporters.
func (v Violation) String() string {
	if v.Location == "" {
		return "Root object " + v.Message
	}
	return fmt.Sprintf("Field %q %s", v.Location, v.Message)
}

// Outcome is the result of validating one document.
type Outcome struct {
	Violations []Violation
}

// Valid reports whether the document satisfied the schema.
func (o Outcome) Valid() bool {
	return len(o.Violations) == 0
}

// Messages returns the rendered violations in order.
func (o Outcome) Messages() []string {
	msgs := make([]string, 0, len(o.Violations))
	for _, v := range o.Violations {
		msgs = append(msgs, v.String())
	}
	return msgs
}

// Err returns a *ValidationError for an invalid outcome and nil otherwise.
func (o Outcome) Err() error {
	if o.Valid() {
		return nil
	}
	return &ValidationError{Violations: o.Violations}
}

// ValidationError represents a schema validation error with field paths
type ValidationError struct {
	Violations []Violation
}

func (ve *ValidationError) Error() string {
	var sb strings.Builder
	sb.WriteString("validation failed:\n")
	for i, v := range ve.Violations {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, v.String()))
	}
	return sb.String()
}

// Compile parses and compiles a schema document.
func Compile(name string, content []byte) (*Schema, error) {
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(content))
	if err != nil {
		return nil, &SchemaLoadError{
			Path:    name,
			Message: "schema compilation failed",
			Cause:   err,
		}
	}
	return &Schema{name: name, schema: compiled}, nil
}

// TraceSchema compiles the embedded trace document schema.
func TraceSchema() (*Schema, error) {
	return Compile("trace.schema.json", traceSchemaJSON)
}

// Name returns the name the schema was compiled under.
func (s *Schema) Name() string {
	return s.name
}

// Validate checks a decoded JSON value against the schema and collects every
// violation. It has no side effects; validating the same value twice yields
// the same outcome.
func (s *Schema) Validate(doc any) Outcome {
	result, err := s.schema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return Outcome{Violations: []Violation{{
			Rule:    "load",
			Message: fmt.Sprintf("could not be read as JSON: %v", err),
		}}}
	}

	if result.Valid() {
		return Outcome{}
	}

	violations := make([]Violation, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		violations = append(violations, translate(desc))
	}
	sortViolations(violations)

	return Outcome{Violations: violations}
}

// ValidateFile reads a JSON file and validates it against the schema.
// It returns a *ValidationError when the document does not conform.
func (s *Schema) ValidateFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to parse %s as JSON: %w", path, err)
	}

	return s.Validate(doc).Err()
}

// translate maps a gojsonschema error onto a Violation.
func translate(desc gojsonschema.ResultError) Violation {
	segments := fieldSegments(desc.Field())
	details := desc.Details()

	v := Violation{
		Location: joinSegments(segments),
		Rule:     desc.Type(),
	}

	switch desc.Type() {
	case "required":
		property := fmt.Sprint(details["property"])
		v.Message = fmt.Sprintf("must have required property '%s'", property)
		segments = append(segments, property)
	case "invalid_type":
		v.Message = fmt.Sprintf("must be %v", details["expected"])
	default:
		v.Message = desc.Description()
	}

	v.segments = segments
	v.Path = joinSegments(segments)
	return v
}

// fieldSegments splits a gojsonschema field ("steps.0.action") into segments.
func fieldSegments(field string) []string {
	if field == "" || field == rootField {
		return nil
	}
	field = strings.TrimPrefix(field, rootField+".")
	return strings.Split(field, ".")
}

// joinSegments renders segments as a dotted path with bracketed indexes.
func joinSegments(segments []string) string {
	var sb strings.Builder
	for _, seg := range segments {
		if isIndex(seg) {
			sb.WriteString("[" + seg + "]")
			continue
		}
		if sb.Len() > 0 {
			sb.WriteByte('.')
		}
		sb.WriteString(seg)
	}
	return sb.String()
}

func isIndex(seg string) bool {
	_, err := strconv.Atoi(seg)
	return err == nil
}

// sortViolations orders violations by path, comparing array indexes numerically.
func sortViolations(violations []Violation) {
	sort.SliceStable(violations, func(i, j int) bool {
		return lessSegments(violations[i].segments, violations[j].segments)
	})
}

func lessSegments(a, b []string) bool {
	for k := 0; k < len(a) && k < len(b); k++ {
		if a[k] == b[k] {
			continue
		}
		ai, aErr := strconv.Atoi(a[k])
		bi, bErr := strconv.Atoi(b[k])
		if aErr == nil && bErr == nil {
			return ai < bi
		}
		return a[k] < b[k]
	}
	return len(a) < len(b)
}
