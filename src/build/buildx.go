package build

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"
)

// Runner executes an external command, writing combined output to out.
type Runner interface {
	Run(ctx context.Context, name string, args []string, out io.Writer) error
}

// ExecRunner runs commands with os/exec. The process is killed when ctx is
// cancelled.
type ExecRunner struct{}

// Run implements Runner.
func (ExecRunner) Run(ctx context.Context, name string, args []string, out io.Writer) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = out
	cmd.Stderr = out
	return cmd.Run()
}

// ImageLookup finds the local image ID for a reference.
type ImageLookup interface {
	ImageID(ctx context.Context, ref string) (string, error)
}

// Buildx wraps docker buildx build.
type Buildx struct {
	Executable string
	Platforms  []string
	Push       bool
	NoCache    bool
	Verbose    bool
	Stderr     io.Writer
	Runner     Runner
	Images     ImageLookup // optional; fills Output.ImageID after a --load build
}

// NewBuildx creates a Buildx builder that runs executable through os/exec.
func NewBuildx(executable string, verbose bool) *Buildx {
	if executable == "" {
		executable = "docker"
	}
	return &Buildx{
		Executable: executable,
		Verbose:    verbose,
		Stderr:     os.Stderr,
		Runner:     ExecRunner{},
	}
}

// Name implements Builder.
func (bx *Buildx) Name() string { return "docker buildx" }

// Build runs one buildx invocation and parses its plain-progress output.
func (bx *Buildx) Build(ctx context.Context, req Request) (*Output, error) {
	args := bx.buildArgs(req)

	var buf bytes.Buffer
	var out io.Writer = &buf
	if bx.Verbose && bx.Stderr != nil {
		fmt.Fprintf(bx.Stderr, "exec: %s %s\n", bx.Executable, strings.Join(args, " "))
		out = io.MultiWriter(&buf, bx.Stderr)
	}

	err := bx.Runner.Run(ctx, bx.Executable, args, out)
	log := buf.String()
	result := &Output{Log: log, Progress: ParseProgress(log)}

	if err != nil {
		be := &BuilderExecutionError{
			Target:   req.Target,
			Builder:  bx.Name(),
			ExitCode: exitCode(err),
			LastLine: lastLine(log),
			Err:      err,
		}
		if step, ok := result.Progress.Failed(); ok {
			be.Step = step.String()
		}
		return result, be
	}

	if bx.Images != nil && !bx.Push {
		if id, lerr := bx.Images.ImageID(ctx, req.Reference); lerr == nil {
			result.ImageID = id
		}
	}
	return result, nil
}

// buildArgs constructs the docker buildx build argument list.
func (bx *Buildx) buildArgs(req Request) []string {
	args := []string{"buildx", "build", "--progress", "plain"}

	if req.Dockerfile != "" {
		args = append(args, "--file", req.Dockerfile)
	}

	args = append(args, "--tag", req.Reference)

	// Sorted so identical requests produce identical command lines.
	keys := make([]string, 0, len(req.Args))
	for k := range req.Args {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, "--build-arg", fmt.Sprintf("%s=%s", k, req.Args[k]))
	}

	if len(bx.Platforms) > 0 {
		args = append(args, "--platform", strings.Join(bx.Platforms, ","))
	}
	if bx.NoCache {
		args = append(args, "--no-cache")
	}

	if bx.Push {
		args = append(args, "--push")
	} else {
		args = append(args, "--load")
	}

	dir := req.Context
	if dir == "" {
		dir = "."
	}
	return append(args, dir)
}

func exitCode(err error) int {
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		return ee.ExitCode()
	}
	return -1
}

// lastLine returns the last non-blank line of s.
func lastLine(s string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if l := strings.TrimSpace(lines[i]); l != "" {
			return l
		}
	}
	return ""
}
