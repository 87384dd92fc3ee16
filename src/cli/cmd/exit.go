package cmd

import (
	"errors"
	"fmt"

	"github.com/sofmeright/buildmatrix/src/config"
	"github.com/sofmeright/buildmatrix/src/manifest"
)

// Exit codes.
const (
	ExitOK      = 0
	ExitFailure = 1 // a build failed, the run was cancelled, or a runtime error
	ExitUsage   = 2 // bad manifest, bad config, bad flags
)

// ExitError carries a process exit code up to main. Err may be nil when
// everything worth saying has already been printed.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

func usageError(err error) error {
	return &ExitError{Code: ExitUsage, Err: err}
}

// ExitCode maps an error returned by Execute to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	var ee *ExitError
	if errors.As(err, &ee) {
		return ee.Code
	}

	var pe *manifest.ParseError
	var ve *config.ValidationError
	if errors.As(err, &pe) || errors.As(err, &ve) {
		return ExitUsage
	}
	return ExitFailure
}
