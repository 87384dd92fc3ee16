package build

import (
	"context"
	"fmt"
)

// Builder produces one image from a resolved target.
type Builder interface {
	Name() string
	Build(ctx context.Context, req Request) (*Output, error)
}

// Request is a fully resolved build invocation.
type Request struct {
	Target     string
	Context    string // absolute context directory
	Dockerfile string // absolute Dockerfile path
	Reference  string
	Args       map[string]string
}

// Output is what a builder reports back. It may be non-nil alongside an
// error so callers can still inspect the captured log.
type Output struct {
	ImageID  string
	Progress Progress
	Log      string
}

// ContextNotFoundError reports a build context directory that does not exist.
type ContextNotFoundError struct {
	Target string
	Path   string
}

func (e *ContextNotFoundError) Error() string {
	return fmt.Sprintf("%s: context not found: %s", e.Target, e.Path)
}

// BuilderExecutionError reports a builder that failed or exited non-zero.
type BuilderExecutionError struct {
	Target   string
	Builder  string
	ExitCode int    // -1 when the process never produced one
	Step     string // failing instruction, "" when buildx reported none
	LastLine string // last non-empty line of builder output
	Err      error
}

func (e *BuilderExecutionError) Error() string {
	msg := fmt.Sprintf("%s: %s exited with code %d", e.Target, e.Builder, e.ExitCode)
	if e.Step != "" {
		msg += " at " + e.Step
	}
	if e.LastLine != "" {
		msg += ": " + e.LastLine
	}
	return msg
}

func (e *BuilderExecutionError) Unwrap() error { return e.Err }
