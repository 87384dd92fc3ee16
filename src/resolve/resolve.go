// Package resolve substitutes compose-style placeholders in image reference
// templates and build args, using the compose-spec interpolation engine.
//
// Supported forms:
//
//	${VAR}            value of VAR
//	$VAR              value of VAR
//	${VAR:-default}   VAR if set and non-empty, else default
//	${VAR-default}    VAR if set, else default
//	${VAR:?message}   VAR if set and non-empty, else an error carrying message
//	${VAR?message}    VAR if set, else an error carrying message
//	${VAR:+alt}       alt if VAR is set and non-empty, else empty
//	${VAR+alt}        alt if VAR is set, else empty
//	$$                a literal $
//
// Defaults may themselves contain placeholders.
package resolve

import (
	"errors"
	"strings"

	"github.com/compose-spec/compose-go/v2/template"
	"github.com/google/go-containerregistry/pkg/name"
)

// Reference resolves an image reference template. Every placeholder must
// resolve to a value or a default, and the result must be a valid image
// reference.
func Reference(tmpl string, ctx Context) (string, error) {
	ref, err := Expand(tmpl, ctx)
	if err != nil {
		return "", err
	}
	if _, err := name.ParseReference(ref); err != nil {
		return "", &InvalidReferenceError{Reference: ref, Err: err}
	}
	return ref, nil
}

// Expand substitutes every placeholder in s. An unset variable referenced
// without a default is an UnresolvedPlaceholderError. Placeholders nested in
// a default follow compose and fall back to empty.
func Expand(s string, ctx Context) (string, error) {
	sub := &substitution{ctx: ctx, strict: true, template: s}
	return sub.run(s, 0)
}

// ExpandLenient substitutes placeholders like Expand, but unset variables
// without a default become empty strings. ${VAR:?msg} still fails.
func ExpandLenient(s string, ctx Context) (string, error) {
	sub := &substitution{ctx: ctx, template: s}
	return sub.run(s, 0)
}

// ExpandArgs resolves compose build args. A nil value inherits the variable
// of the same name from ctx, and the arg is dropped when ctx does not set it
// so the Dockerfile's ARG default applies. Other values go through
// ExpandLenient.
func ExpandArgs(args map[string]*string, ctx Context) (map[string]string, error) {
	if args == nil {
		return nil, nil
	}
	out := make(map[string]string, len(args))
	for k, v := range args {
		if v == nil {
			if inherited, ok := ctx.Lookup(k); ok {
				out[k] = inherited
			}
			continue
		}
		ev, err := ExpandLenient(*v, ctx)
		if err != nil {
			return nil, err
		}
		out[k] = ev
	}
	return out, nil
}

// substitution drives template.SubstituteWithOptions one placeholder at a
// time so unset variables and error offsets can be reported against the
// full template.
type substitution struct {
	ctx      Context
	strict   bool
	template string
}

func (s *substitution) lookup(name string) (string, bool) {
	if s.ctx == nil {
		return "", false
	}
	return s.ctx.Lookup(name)
}

// run substitutes text, which starts at offset base of the full template.
func (s *substitution) run(text string, base int) (string, error) {
	pos := 0
	replace := func(match string, mapping template.Mapping, cfg *template.Config) (string, error) {
		at := pos + strings.Index(text[pos:], match)
		pos = at + len(match)
		return s.replace(match, base+at, mapping, cfg)
	}
	out, err := template.SubstituteWithOptions(text, s.lookup,
		template.WithoutLogging,
		template.WithReplacementFunction(replace))
	if err != nil {
		return "", err
	}
	return out, nil
}

// replace resolves one pattern match found at offset. A braced placeholder
// with a modifier matches greedily up to the last closing brace, so the
// text after the placeholder proper is substituted separately.
func (s *substitution) replace(match string, offset int, mapping template.Mapping, cfg *template.Config) (string, error) {
	head, rest := splitPlaceholder(match)

	value, found, err := template.DefaultReplacementAppliedFunc(head, mapping, cfg)
	if err != nil {
		return "", s.translate(err, head, offset)
	}
	if !found && s.strict {
		return "", &UnresolvedPlaceholderError{Token: head, Variable: strings.Trim(head, "${}")}
	}
	if rest == "" {
		return value, nil
	}

	tail, err := s.run(rest, offset+len(head))
	if err != nil {
		return "", err
	}
	return value + tail, nil
}

// translate maps compose template errors onto this package's error types.
func (s *substitution) translate(err error, head string, offset int) error {
	var missing *template.MissingRequiredError
	if errors.As(err, &missing) {
		return &UnresolvedPlaceholderError{Token: head, Variable: missing.Variable, Message: missing.Reason}
	}

	var invalid *template.InvalidTemplateError
	if errors.As(err, &invalid) {
		// A nested default reports its own text; locate it inside head.
		if invalid.Template != "" {
			if i := strings.Index(head, invalid.Template); i > 0 {
				offset += i
			}
		}
		return &TemplateError{Template: s.template, Offset: offset, Reason: "malformed placeholder in " + head}
	}
	return err
}

// splitPlaceholder cuts match after the brace that closes its first
// placeholder, counting braces the same way the compose engine does.
func splitPlaceholder(match string) (string, string) {
	open := 0
	for i := 0; i < len(match); i++ {
		switch match[i] {
		case '}':
			open--
			if open == 0 {
				return match[:i+1], match[i+1:]
			}
		case '{':
			open++
			i++
		}
	}
	return match, ""
}
