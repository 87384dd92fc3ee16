// Package manifest loads compose-shaped build manifests: a "services" map of
// service name to build context, Dockerfile and image reference template.
package manifest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultFile is the manifest looked up when none is given.
const DefaultFile = "build.yaml"

// Target is one named unit of work: a build context and the image it produces.
type Target struct {
	Name       string             // service name, unique within a manifest
	Context    string             // build context, relative to the manifest directory
	Dockerfile string             // optional, relative to the context
	Image      string             // image reference template, e.g. ${REGISTRY:-opea}/x:${TAG:-latest}
	Args       map[string]*string // build args; values may hold placeholders, nil inherits from the environment
	Line       int                // line of the service key
}

// Manifest is a loaded build manifest. Targets keep declaration order.
type Manifest struct {
	Path    string
	Dir     string
	Targets []Target
}

// Load reads and parses the manifest at path. Relative build contexts are
// anchored at the manifest's directory.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		var p problems
		p.wrap(fmt.Errorf("reading manifest: %w", err))
		return nil, p.err(path)
	}

	dir := filepath.Dir(path)
	if abs, absErr := filepath.Abs(dir); absErr == nil {
		dir = abs
	}

	m, err := Parse(data, dir)
	if err != nil {
		var pe *ParseError
		if errors.As(err, &pe) {
			pe.Path = path
		}
		return nil, err
	}
	m.Path = path
	return m, nil
}

// Parse decodes manifest bytes. dir is recorded as the base directory for
// build contexts.
func Parse(data []byte, dir string) (*Manifest, error) {
	var p problems

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		p.wrap(fmt.Errorf("invalid YAML: %w", err))
		return nil, p.err("")
	}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		p.add(0, "", "document is empty")
		return nil, p.err("")
	}

	root := deref(doc.Content[0])
	if root.Kind != yaml.MappingNode {
		p.add(root.Line, "", "top level must be a mapping")
		return nil, p.err("")
	}

	services := lookup(root, "services")
	if services == nil {
		p.add(root.Line, "", "missing required key \"services\"")
		return nil, p.err("")
	}
	services = deref(services)
	if services.Kind != yaml.MappingNode {
		p.add(services.Line, "", "\"services\" must be a mapping")
		return nil, p.err("")
	}
	if len(services.Content) == 0 {
		p.add(services.Line, "", "no services declared")
		return nil, p.err("")
	}

	m := &Manifest{Dir: dir}
	seen := make(map[string]int, len(services.Content)/2)

	for i := 0; i+1 < len(services.Content); i += 2 {
		key := services.Content[i]
		name := strings.TrimSpace(key.Value)

		if name == "" {
			p.add(key.Line, "", "service name must not be empty")
			continue
		}
		if first, dup := seen[name]; dup {
			p.add(key.Line, name, "duplicate service (first declared on line %d)", first)
			continue
		}
		seen[name] = key.Line

		t, ok := parseService(name, key.Line, deref(services.Content[i+1]), &p)
		if ok {
			m.Targets = append(m.Targets, t)
		}
	}

	if err := p.err(""); err != nil {
		return nil, err
	}
	return m, nil
}

func parseService(name string, line int, node *yaml.Node, p *problems) (Target, bool) {
	t := Target{Name: name, Line: line}

	if node.Kind != yaml.MappingNode {
		p.add(node.Line, name, "service must be a mapping")
		return t, false
	}

	ok := true

	build := lookup(node, "build")
	switch {
	case build == nil:
		p.add(line, name, "missing required key \"build\"")
		ok = false
	default:
		build = deref(build)
		switch build.Kind {
		case yaml.ScalarNode:
			// compose short form: build: ./dir
			t.Context = strings.TrimSpace(build.Value)
		case yaml.MappingNode:
			t.Context = scalar(lookup(build, "context"))
			t.Dockerfile = scalar(lookup(build, "dockerfile"))
			args, err := buildArgs(lookup(build, "args"))
			if err != nil {
				p.add(build.Line, name, "build.args: %v", err)
				ok = false
			}
			t.Args = args
		default:
			p.add(build.Line, name, "\"build\" must be a string or a mapping")
			ok = false
		}
		if ok && t.Context == "" {
			p.add(build.Line, name, "missing required key \"build.context\"")
			ok = false
		}
	}

	image := lookup(node, "image")
	t.Image = scalar(image)
	if t.Image == "" {
		p.add(line, name, "missing required key \"image\"")
		ok = false
	}

	return t, ok
}

// Select returns the targets with the given names, in declaration order.
// An empty selection returns every target.
func (m *Manifest) Select(names []string) ([]Target, error) {
	if len(names) == 0 {
		return m.Targets, nil
	}

	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}

	var out []Target
	for _, t := range m.Targets {
		if want[t.Name] {
			out = append(out, t)
			delete(want, t.Name)
		}
	}

	if len(want) > 0 {
		var p problems
		for _, n := range names {
			if want[n] {
				p.add(0, n, "selected service is not declared in the manifest")
				delete(want, n)
			}
		}
		return nil, p.err(m.Path)
	}
	return out, nil
}

// Names lists target names in declaration order.
func (m *Manifest) Names() []string {
	names := make([]string, len(m.Targets))
	for i, t := range m.Targets {
		names[i] = t.Name
	}
	return names
}

// deref follows YAML aliases to the anchored node.
func deref(n *yaml.Node) *yaml.Node {
	for n != nil && n.Kind == yaml.AliasNode && n.Alias != nil {
		n = n.Alias
	}
	return n
}

// lookup returns the value node for key in a mapping node, or nil.
func lookup(m *yaml.Node, key string) *yaml.Node {
	if m == nil || m.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}
	return nil
}

func scalar(n *yaml.Node) string {
	n = deref(n)
	if n == nil || n.Kind != yaml.ScalarNode {
		return ""
	}
	return strings.TrimSpace(n.Value)
}

// buildArgs accepts both compose forms for args: a mapping, or a list of
// KEY=VALUE strings. A null mapping value or a bare KEY list entry has no
// value of its own and is recorded as nil.
func buildArgs(n *yaml.Node) (map[string]*string, error) {
	n = deref(n)
	if n == nil {
		return nil, nil
	}

	out := make(map[string]*string)
	switch n.Kind {
	case yaml.MappingNode:
		for i := 0; i+1 < len(n.Content); i += 2 {
			key := n.Content[i].Value
			v := deref(n.Content[i+1])
			if v.Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("value for %q must be a scalar", key)
			}
			if v.Tag == "!!null" {
				out[key] = nil
				continue
			}
			value := v.Value
			out[key] = &value
		}
	case yaml.SequenceNode:
		for _, item := range n.Content {
			item = deref(item)
			if item.Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("list entries must be KEY=VALUE strings")
			}
			k, v, ok := strings.Cut(item.Value, "=")
			if !ok {
				out[k] = nil
				continue
			}
			out[k] = &v
		}
	default:
		return nil, fmt.Errorf("must be a mapping or a list")
	}
	return out, nil
}
