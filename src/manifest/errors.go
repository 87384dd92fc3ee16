package manifest

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// Problem is a single defect found while loading a manifest.
type Problem struct {
	Line    int    // 1-based line in the manifest, 0 when unknown
	Service string // service the problem belongs to, empty for document-level problems
	Message string
}

func (p *Problem) Error() string {
	var b strings.Builder
	if p.Line > 0 {
		fmt.Fprintf(&b, "line %d: ", p.Line)
	}
	if p.Service != "" {
		fmt.Fprintf(&b, "services.%s: ", p.Service)
	}
	b.WriteString(p.Message)
	return b.String()
}

// ParseError reports a malformed or incomplete manifest. It is fatal to the
// whole run: no target is built when loading fails.
type ParseError struct {
	Path string
	errs *multierror.Error
}

func (e *ParseError) Error() string {
	problems := e.Problems()
	where := "manifest"
	if e.Path != "" {
		where = e.Path
	}
	if len(problems) == 1 {
		return fmt.Sprintf("%s: %v", where, problems[0])
	}
	lines := make([]string, 0, len(problems))
	for _, p := range problems {
		lines = append(lines, "  - "+p.Error())
	}
	return fmt.Sprintf("%s: %d problems:\n%s", where, len(problems), strings.Join(lines, "\n"))
}

// Problems returns every defect collected while loading.
func (e *ParseError) Problems() []error {
	if e.errs == nil {
		return nil
	}
	return e.errs.Errors
}

// problems accumulates defects for a single load.
type problems struct {
	errs *multierror.Error
}

func (p *problems) add(line int, service, format string, args ...any) {
	p.errs = multierror.Append(p.errs, &Problem{
		Line:    line,
		Service: service,
		Message: fmt.Sprintf(format, args...),
	})
}

func (p *problems) wrap(err error) {
	p.errs = multierror.Append(p.errs, err)
}

func (p *problems) err(path string) error {
	if p.errs.ErrorOrNil() == nil {
		return nil
	}
	return &ParseError{Path: path, errs: p.errs}
}
