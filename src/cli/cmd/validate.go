package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sofmeright/buildmatrix/src/build"
	"github.com/sofmeright/buildmatrix/src/output"
	"github.com/sofmeright/buildmatrix/src/resolve"
)

func newValidateCmd(s *session) *cobra.Command {
	f := &varFlags{}

	cmd := &cobra.Command{
		Use:   "validate [MANIFEST]",
		Short: "Check the manifest and resolve every image reference",
		Long: `Load the manifest and resolve every service's image reference and
build args against the current placeholder values. Nothing is built and
build contexts are not checked.`,
		Args: maxArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.runValidate(cmd, args, f)
		},
	}
	f.register(cmd)
	return cmd
}

func (s *session) runValidate(_ *cobra.Command, args []string, f *varFlags) error {
	w := s.app.Stdout
	color := output.UseColor()

	m, targets, err := s.loadManifest(args, f.selected)
	if err != nil {
		return err
	}

	vars, err := s.resolutionContext(m.Dir, f)
	if err != nil {
		return err
	}

	sec := output.NewSection(w, "Validate", 0, color)
	failed := 0
	for _, t := range targets {
		ref, err := resolve.Reference(t.Image, vars)
		if err == nil {
			_, err = resolve.ExpandArgs(t.Args, vars)
		}
		if err != nil {
			failed++
			sec.Row("%s  %-20s %s", output.OutcomeIcon(build.Failed, color), t.Name, err)
			continue
		}
		sec.Row("%s  %-20s %s", output.OutcomeIcon(build.Succeeded, color), t.Name, ref)
	}
	sec.Separator()
	sec.Row("%d services, %d unresolved", len(targets), failed)
	sec.Close()

	if failed > 0 {
		return &ExitError{Code: ExitFailure, Err: fmt.Errorf("%d of %d image references did not resolve", failed, len(targets))}
	}
	return nil
}
