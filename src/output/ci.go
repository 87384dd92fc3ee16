package output

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sofmeright/buildmatrix/src/build"
)

// CI environment detection.

func IsCI() bool {
	return os.Getenv("CI") == "true"
}

func IsGitLabCI() bool {
	return os.Getenv("GITLAB_CI") == "true"
}

// GitLab collapsible section helpers.

func SectionStart(w io.Writer, id, name string) {
	if !IsGitLabCI() {
		return
	}
	ts := time.Now().Unix()
	fmt.Fprintf(w, "\033[0Ksection_start:%d:%s\r\033[0K%s\n", ts, id, name)
}

func SectionEnd(w io.Writer, id string) {
	if !IsGitLabCI() {
		return
	}
	ts := time.Now().Unix()
	fmt.Fprintf(w, "\033[0Ksection_end:%d:%s\r\033[0K\n", ts, id)
}

// JUnit XML types for GitLab test reporting.

type JUnitTestSuites struct {
	XMLName  xml.Name         `xml:"testsuites"`
	Name     string           `xml:"name,attr"`
	Tests    int              `xml:"tests,attr"`
	Failures int              `xml:"failures,attr"`
	Skipped  int              `xml:"skipped,attr"`
	Time     string           `xml:"time,attr"`
	Suites   []JUnitTestSuite `xml:"testsuite"`
}

type JUnitTestSuite struct {
	Name     string          `xml:"name,attr"`
	Tests    int             `xml:"tests,attr"`
	Failures int             `xml:"failures,attr"`
	Skipped  int             `xml:"skipped,attr"`
	Time     string          `xml:"time,attr"`
	Cases    []JUnitTestCase `xml:"testcase"`
}

type JUnitTestCase struct {
	Name      string        `xml:"name,attr"`
	Classname string        `xml:"classname,attr"`
	Time      string        `xml:"time,attr"`
	Failure   *JUnitFailure `xml:"failure,omitempty"`
	Skipped   *JUnitSkipped `xml:"skipped,omitempty"`
	SystemOut string        `xml:"system-out,omitempty"`
}

type JUnitFailure struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
	Body    string `xml:",chardata"`
}

type JUnitSkipped struct {
	Message string `xml:"message,attr"`
}

// JUnitFile is the report name written by WriteBuildJUnit.
const JUnitFile = "build.xml"

// WriteBuildJUnit writes build results as JUnit XML for GitLab test
// reporting. The manifest becomes one suite; each target is a test case.
func WriteBuildJUnit(dir, manifest string, results []build.BuildResult, elapsed time.Duration) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating report dir: %w", err)
	}

	suite := JUnitTestSuite{
		Name: "buildmatrix/" + manifest,
		Time: fmt.Sprintf("%.3f", elapsed.Seconds()),
	}

	for _, r := range results {
		tc := JUnitTestCase{
			Name:      r.Target,
			Classname: "buildmatrix.build",
			Time:      fmt.Sprintf("%.3f", r.Duration.Seconds()),
			SystemOut: stepLog(r.Progress),
		}

		switch r.Outcome {
		case build.Failed:
			body := r.Reason
			if r.Reference != "" {
				body = fmt.Sprintf("image: %s\n%s", r.Reference, r.Reason)
			}
			tc.Failure = &JUnitFailure{
				Message: firstLine(r.Reason),
				Type:    failureType(r),
				Body:    body,
			}
			suite.Failures++
		case build.Skipped:
			tc.Skipped = &JUnitSkipped{Message: r.Reason}
			suite.Skipped++
		}

		suite.Cases = append(suite.Cases, tc)
		suite.Tests++
	}

	root := JUnitTestSuites{
		Name:     "buildmatrix",
		Tests:    suite.Tests,
		Failures: suite.Failures,
		Skipped:  suite.Skipped,
		Time:     suite.Time,
		Suites:   []JUnitTestSuite{suite},
	}

	path := filepath.Join(dir, JUnitFile)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	if _, err := io.WriteString(f, xml.Header); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	enc := xml.NewEncoder(f)
	enc.Indent("", "  ")
	if err := enc.Encode(root); err != nil {
		return fmt.Errorf("encoding junit xml: %w", err)
	}
	_, err = io.WriteString(f, "\n")
	return err
}

func failureType(r build.BuildResult) string {
	var be *build.BuilderExecutionError
	if errors.As(r.Err, &be) {
		return "build"
	}
	if r.Reason == build.ReasonNotDirectory {
		return "context"
	}
	return "resolve"
}

// stepLog lists a target's build steps, one per line with its timing.
func stepLog(p build.Progress) string {
	var b strings.Builder
	for _, s := range p.Steps {
		status := FormatDuration(s.Duration)
		switch {
		case s.Error != "":
			status = "ERROR " + s.Error
		case s.Cached:
			status = "CACHED"
		}
		fmt.Fprintf(&b, "%s  %s\n", s, status)
	}
	return b.String()
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// CIHeader prints a compact pipeline context block at the start of a CI run.
func CIHeader(w io.Writer) {
	if !IsCI() {
		return
	}
	parts := []string{}
	if tag := os.Getenv("CI_COMMIT_TAG"); tag != "" {
		parts = append(parts, fmt.Sprintf("tag=%s", tag))
	}
	if sha := os.Getenv("CI_COMMIT_SHORT_SHA"); sha != "" {
		parts = append(parts, fmt.Sprintf("sha=%s", sha))
	} else if sha := os.Getenv("CI_COMMIT_SHA"); sha != "" && len(sha) >= 8 {
		parts = append(parts, fmt.Sprintf("sha=%s", sha[:8]))
	}
	if pipe := os.Getenv("CI_PIPELINE_ID"); pipe != "" {
		parts = append(parts, fmt.Sprintf("pipeline=%s", pipe))
	}
	if runner := os.Getenv("CI_RUNNER_DESCRIPTION"); runner != "" {
		parts = append(parts, fmt.Sprintf("runner=%s", runner))
	}
	if len(parts) > 0 {
		fmt.Fprintf(w, "  ci: %s\n", strings.Join(parts, "  "))
	}
}
