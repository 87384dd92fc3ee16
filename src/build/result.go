package build

import "time"

// Outcome is the terminal state of one target.
type Outcome string

const (
	Succeeded Outcome = "succeeded"
	Failed    Outcome = "failed"
	Skipped   Outcome = "skipped"
)

// Reasons attached to skipped and dry-run results.
const (
	ReasonCancelled       = "cancelled"
	ReasonContextNotFound = "context not found"
	ReasonNotDirectory    = "context is not a directory"
	ReasonDryRun          = "dry run"
)

// BuildResult captures the outcome of a single target.
type BuildResult struct {
	Target     string
	Outcome    Outcome
	Reason     string // why the target failed or was skipped
	Reference  string // resolved image reference, "" when resolution failed
	Duration   time.Duration
	ImageID    string
	Progress   Progress // instruction steps reported by the builder
	BaseImages []string // dry run only: external images the Dockerfile starts from
	Err        error
}

// Summary aggregates a run's results into the process exit status.
type Summary struct {
	Total     int
	Succeeded int
	Failed    int
	Skipped   int
	Cancelled bool
	Strict    bool
}

// Summarize counts outcomes. cancelled marks a run interrupted before every
// target finished; strict makes skipped targets count as failures.
func Summarize(results []BuildResult, cancelled, strict bool) Summary {
	s := Summary{Total: len(results), Cancelled: cancelled, Strict: strict}
	for _, r := range results {
		switch r.Outcome {
		case Succeeded:
			s.Succeeded++
		case Failed:
			s.Failed++
		case Skipped:
			s.Skipped++
		}
	}
	return s
}

// OK reports whether the run counts as successful.
func (s Summary) OK() bool {
	if s.Failed > 0 || s.Cancelled {
		return false
	}
	return !(s.Strict && s.Skipped > 0)
}

// ExitCode is 0 for a successful run, 1 otherwise.
func (s Summary) ExitCode() int {
	if s.OK() {
		return 0
	}
	return 1
}
