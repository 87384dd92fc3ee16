package build

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const plainProgress = `#1 [internal] load build definition from Dockerfile
#1 DONE 0.0s
#5 [base 1/3] FROM docker.io/library/python:3.11-slim@sha256:0b23cfb7425d065008b778022a17b1551c82f8b4866ee5a7a200084b7e2eafbf
#5 DONE 2.1s
#6 [base 2/3] COPY requirements.txt /home/user/
#6 CACHED
#7 [base 3/3] RUN pip install --no-cache-dir -r /home/user/requirements.txt
#7 DONE 44.8s
#8 exporting to image
#8 DONE 1.2s
`

type fakeRunner struct {
	name   string
	args   []string
	output string
	err    error
}

func (f *fakeRunner) Run(_ context.Context, name string, args []string, out io.Writer) error {
	f.name = name
	f.args = args
	fmt.Fprint(out, f.output)
	return f.err
}

type fakeLookup struct{ id string }

func (f fakeLookup) ImageID(context.Context, string) (string, error) { return f.id, nil }

func TestBuildxArgs(t *testing.T) {
	bx := NewBuildx("docker", false)
	bx.Platforms = []string{"linux/amd64", "linux/arm64"}
	bx.NoCache = true

	args := bx.buildArgs(Request{
		Context:    "/src/GenAIComps",
		Dockerfile: "/src/GenAIComps/comps/embeddings/src/Dockerfile",
		Reference:  "opea/embedding:latest",
		Args:       map[string]string{"no_proxy": "", "http_proxy": "http://proxy:3128"},
	})

	assert.Equal(t, []string{
		"buildx", "build", "--progress", "plain",
		"--file", "/src/GenAIComps/comps/embeddings/src/Dockerfile",
		"--tag", "opea/embedding:latest",
		"--build-arg", "http_proxy=http://proxy:3128",
		"--build-arg", "no_proxy=",
		"--platform", "linux/amd64,linux/arm64",
		"--no-cache",
		"--load",
		"/src/GenAIComps",
	}, args)

	bx.Push = true
	args = bx.buildArgs(Request{Reference: "opea/x:v2"})
	assert.Contains(t, args, "--push")
	assert.NotContains(t, args, "--load")
	assert.Equal(t, ".", args[len(args)-1])
}

func TestBuildxBuildSuccess(t *testing.T) {
	runner := &fakeRunner{output: plainProgress}
	bx := &Buildx{Executable: "/usr/bin/docker", Runner: runner, Images: fakeLookup{id: "sha256:abc"}}

	out, err := bx.Build(context.Background(), Request{Target: "embedding", Context: "/src", Reference: "opea/embedding:latest"})
	require.NoError(t, err)

	assert.Equal(t, "/usr/bin/docker", runner.name)
	assert.Equal(t, "sha256:abc", out.ImageID)
	assert.Len(t, out.Progress.Steps, 3)
	assert.Equal(t, 1, out.Progress.Cached())
}

func TestBuildxBuildSkipsLookupOnPush(t *testing.T) {
	bx := &Buildx{Executable: "docker", Push: true, Runner: &fakeRunner{}, Images: fakeLookup{id: "sha256:abc"}}

	out, err := bx.Build(context.Background(), Request{Target: "embedding", Reference: "opea/embedding:latest"})
	require.NoError(t, err)
	assert.Empty(t, out.ImageID)
}

func TestBuildxBuildFailure(t *testing.T) {
	runner := &fakeRunner{
		output: "#7 [base 3/3] RUN pip install\n#7 ERROR: process did not complete successfully\n\nERROR: failed to solve: exit code: 1\n",
		err:    errors.New("exit status 1"),
	}
	bx := &Buildx{Executable: "docker", Runner: runner}

	out, err := bx.Build(context.Background(), Request{Target: "retriever", Reference: "opea/retriever:latest"})
	require.Error(t, err)
	require.NotNil(t, out)

	var be *BuilderExecutionError
	require.True(t, errors.As(err, &be))
	assert.Equal(t, "retriever", be.Target)
	assert.Equal(t, -1, be.ExitCode)
	assert.Equal(t, "ERROR: failed to solve: exit code: 1", be.LastLine)
	assert.Equal(t, "[base 3/3] RUN pip install", be.Step)
	assert.Contains(t, err.Error(), "retriever: docker buildx exited with code -1 at [base 3/3] RUN pip install")
}

func TestBuildxVerboseStreams(t *testing.T) {
	var stderr bytes.Buffer
	bx := &Buildx{Executable: "docker", Verbose: true, Stderr: &stderr, Runner: &fakeRunner{output: "#1 DONE 0.1s\n"}}

	_, err := bx.Build(context.Background(), Request{Target: "x", Reference: "opea/x:latest"})
	require.NoError(t, err)
	assert.Contains(t, stderr.String(), "exec: docker buildx build")
	assert.Contains(t, stderr.String(), "#1 DONE 0.1s")
}

func TestExecRunnerExitCode(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}

	var out bytes.Buffer
	err := ExecRunner{}.Run(context.Background(), "sh", []string{"-c", "echo building; echo broken >&2; exit 3"}, &out)
	require.Error(t, err)
	assert.Equal(t, 3, exitCode(err))
	assert.Equal(t, "broken", lastLine(out.String()))
}

func TestLastLine(t *testing.T) {
	assert.Equal(t, "", lastLine(""))
	assert.Equal(t, "b", lastLine("a\nb\n\n  \n"))
}
