package resolve

import "fmt"

// UnresolvedPlaceholderError reports a placeholder with no value and no
// declared default.
type UnresolvedPlaceholderError struct {
	Token    string // the placeholder as written, e.g. ${REGISTRY}
	Variable string
	Message  string // from ${VAR:?message}, if any
}

func (e *UnresolvedPlaceholderError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("unresolved placeholder %s: %s", e.Token, e.Message)
	}
	return fmt.Sprintf("unresolved placeholder %s: %s is not set and has no default", e.Token, e.Variable)
}

// TemplateError reports a syntactically broken template.
type TemplateError struct {
	Template string
	Offset   int
	Reason   string
}

func (e *TemplateError) Error() string {
	return fmt.Sprintf("invalid template %q at offset %d: %s", e.Template, e.Offset, e.Reason)
}

// InvalidReferenceError reports a fully substituted string that is not a
// valid image reference.
type InvalidReferenceError struct {
	Reference string
	Err       error
}

func (e *InvalidReferenceError) Error() string {
	return fmt.Sprintf("invalid image reference %q: %v", e.Reference, e.Err)
}

func (e *InvalidReferenceError) Unwrap() error { return e.Err }
