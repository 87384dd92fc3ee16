package output

import (
	"bytes"
	"encoding/xml"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sofmeright/buildmatrix/src/build"
)

var sampleResults = []build.BuildResult{
	{
		Target: "embedding", Outcome: build.Succeeded, Reference: "opea/embedding:latest", Duration: 1500 * time.Millisecond,
		Progress: build.Progress{Steps: []build.Step{
			{ID: 5, Stage: "base", Position: "1/4", Instruction: "FROM", Args: "python:3.11-slim", Cached: true},
			{ID: 6, Stage: "base", Position: "2/4", Instruction: "COPY", Args: "requirements.txt /home/user/", Cached: true},
			{ID: 7, Stage: "base", Position: "3/4", Instruction: "RUN", Args: "pip install -r requirements.txt", Duration: 1200 * time.Millisecond},
			{ID: 8, Stage: "base", Position: "4/4", Instruction: "COPY", Args: "comps /home/user/comps", Cached: true},
		}},
	},
	{Target: "chatqna", Outcome: build.Failed, Reason: "context is not a directory", Reference: "opea/chatqna:latest"},
	{Target: "chatqna-ui", Outcome: build.Skipped, Reason: "context not found", Reference: "opea/chatqna-ui:latest"},
	{
		Target: "retriever", Outcome: build.Failed, Reference: "opea/retriever:latest",
		Reason: "retriever: docker buildx exited with code 1: ERROR: failed to solve",
		Err:    &build.BuilderExecutionError{Target: "retriever", ExitCode: 1},
	},
}

func TestBuildSummaryPlain(t *testing.T) {
	var buf bytes.Buffer
	s := build.Summarize(sampleResults, false, false)

	BuildSummary(&buf, sampleResults, s, 2*time.Second, false)
	out := buf.String()

	assert.Contains(t, out, "── Build ")
	assert.Contains(t, out, "2.0s")
	assert.Contains(t, out, "embedding")
	assert.Contains(t, out, "✓")
	assert.Contains(t, out, "(3/4 cached)")
	assert.Contains(t, out, "slowest 1.2s [base 3/4] RUN pip install -r requirements.txt")
	assert.Contains(t, out, "✗")
	assert.Contains(t, out, "context is not a directory")
	assert.Contains(t, out, "⊘")
	assert.Contains(t, out, "4 targets: 1 succeeded, 2 failed, 1 skipped")
	assert.Contains(t, out, "total")
	assert.NotContains(t, out, "\033[")

	// rows keep declaration order
	assert.Less(t, strings.Index(out, "embedding"), strings.Index(out, "chatqna"))
	assert.Less(t, strings.Index(out, "chatqna-ui"), strings.Index(out, "retriever"))
}

func TestSummaryLine(t *testing.T) {
	s := build.Summary{Total: 7, Succeeded: 6, Failed: 1}
	assert.Equal(t, "7 targets: 6 succeeded, 1 failed, 0 skipped", SummaryLine(s, false))

	s = build.Summary{Total: 2, Skipped: 2, Cancelled: true}
	assert.Equal(t, "2 targets: 0 succeeded, 0 failed, 2 skipped (cancelled)", SummaryLine(s, false))

	assert.Contains(t, SummaryLine(build.Summary{Total: 1, Failed: 1}, true), ansiRed)
}

func TestOutcomeIcon(t *testing.T) {
	assert.Equal(t, "✓", OutcomeIcon(build.Succeeded, false))
	assert.Equal(t, "✗", OutcomeIcon(build.Failed, false))
	assert.Equal(t, "⊘", OutcomeIcon(build.Skipped, false))
	assert.Equal(t, "⊘", OutcomeIcon("pending", false))
	assert.Equal(t, ansiRed+"✗"+ansiReset, OutcomeIcon(build.Failed, true))
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "<1ms", FormatDuration(0))
	assert.Equal(t, "250ms", FormatDuration(250*time.Millisecond))
	assert.Equal(t, "1.5s", FormatDuration(1500*time.Millisecond))
	assert.Equal(t, "2m3.0s", FormatDuration(123*time.Second))
}

func TestDryRunDetailNamesBaseImages(t *testing.T) {
	r := build.BuildResult{
		Outcome: build.Succeeded, Reason: build.ReasonDryRun, Reference: "opea/chatqna-ui:latest",
		BaseImages: []string{"node:20", "nginx:alpine"},
	}
	assert.Equal(t, "opea/chatqna-ui:latest (dry run, from node:20, nginx:alpine)", resultDetail(r, false))

	r.BaseImages = nil
	assert.Equal(t, "opea/chatqna-ui:latest (dry run)", resultDetail(r, false))
}

func TestRunHeader(t *testing.T) {
	var buf bytes.Buffer
	RunHeader(&buf, []KV{
		{Key: "Manifest", Value: "build.yaml"},
		{Key: "Parallel", Value: "4"},
		{Key: "Builder", Value: "docker buildx"},
	})

	lines := strings.Split(strings.Trim(buf.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "    Manifest  build.yaml       Parallel  4", lines[0])
	assert.Equal(t, "    Builder   docker buildx", lines[1])
}

func TestUseColorRespectsNoColor(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	assert.False(t, UseColor())
}

func TestSectionMarkersOnlyOnGitLab(t *testing.T) {
	var buf bytes.Buffer
	t.Setenv("GITLAB_CI", "")
	SectionStart(&buf, "build", "Build")
	assert.Empty(t, buf.String())

	t.Setenv("GITLAB_CI", "true")
	SectionStart(&buf, "build", "Build")
	SectionEnd(&buf, "build")
	assert.Contains(t, buf.String(), "section_start:")
	assert.Contains(t, buf.String(), "section_end:")
}

func TestWriteBuildJUnit(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")

	require.NoError(t, WriteBuildJUnit(dir, "build.yaml", sampleResults, 3*time.Second))

	data, err := os.ReadFile(filepath.Join(dir, JUnitFile))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte(xml.Header)))

	var root JUnitTestSuites
	require.NoError(t, xml.Unmarshal(data, &root))
	assert.Equal(t, 4, root.Tests)
	assert.Equal(t, 2, root.Failures)
	assert.Equal(t, 1, root.Skipped)
	require.Len(t, root.Suites, 1)

	cases := root.Suites[0].Cases
	require.Len(t, cases, 4)
	assert.Nil(t, cases[0].Failure)
	assert.Nil(t, cases[0].Skipped)
	assert.Equal(t, "1.500", cases[0].Time)
	assert.Contains(t, cases[0].SystemOut, "[base 2/4] COPY requirements.txt /home/user/  CACHED\n")
	assert.Contains(t, cases[0].SystemOut, "[base 3/4] RUN pip install -r requirements.txt  1.2s\n")
	assert.Empty(t, cases[1].SystemOut)
	require.NotNil(t, cases[1].Failure)
	assert.Equal(t, "context", cases[1].Failure.Type)
	require.NotNil(t, cases[2].Skipped)
	assert.Equal(t, "context not found", cases[2].Skipped.Message)
	require.NotNil(t, cases[3].Failure)
	assert.Equal(t, "build", cases[3].Failure.Type)
}

func TestFailureType(t *testing.T) {
	r := build.BuildResult{Outcome: build.Failed, Reason: "unresolved placeholder ${REGISTRY}", Err: errors.New("x")}
	assert.Equal(t, "resolve", failureType(r))
}
