package descriptor

import "fmt"

// SchemaError reports a malformed or incomplete descriptor. Field is the
// dotted path of the offending value, e.g. "plugins[0].options.releaseRules[3]".
type SchemaError struct {
	Field  string
	Reason string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema: %s: %s", e.Field, e.Reason)
}

func schemaErr(field, format string, args ...interface{}) *SchemaError {
	return &SchemaError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// SerializationError reports a configured value that has no representation
// in the exported form.
type SerializationError struct {
	Path string
	Err  error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("serialize %s: %v", e.Path, e.Err)
}

func (e *SerializationError) Unwrap() error {
	return e.Err
}
