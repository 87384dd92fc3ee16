package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/sofmeright/buildmatrix/src/build"
	"github.com/sofmeright/buildmatrix/src/output"
)

type buildFlags struct {
	varFlags

	parallel  int
	dryRun    bool
	strict    bool
	push      bool
	noCache   bool
	platforms []string
	junitDir  string
}

func newBuildCmd(s *session) *cobra.Command {
	f := &buildFlags{}

	cmd := &cobra.Command{
		Use:   "build [MANIFEST]",
		Short: "Build every service in the manifest",
		Long: `Build every service declared in a compose build manifest.

Each service's image reference is resolved from placeholders such as
${REGISTRY:-opea}/name:${TAG:-latest}, then built with docker buildx.
Up to --parallel builds run at once. One failing service never stops
the others; results are reported in manifest order.`,
		Args: maxArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.runBuild(cmd, args, f)
		},
	}

	f.register(cmd)
	cmd.Flags().IntVar(&f.parallel, "parallel", 1, "number of builds to run at once")
	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "resolve and check every service without building")
	cmd.Flags().BoolVar(&f.strict, "strict", false, "treat skipped services as failures")
	cmd.Flags().BoolVar(&f.push, "push", false, "push images instead of loading them into the daemon")
	cmd.Flags().BoolVar(&f.noCache, "no-cache", false, "build without cache")
	cmd.Flags().StringSliceVar(&f.platforms, "platform", nil, "target platforms (comma-separated)")
	cmd.Flags().StringVar(&f.junitDir, "junit", "", "write a JUnit report to DIR/build.xml")

	return cmd
}

func (s *session) runBuild(cmd *cobra.Command, args []string, f *buildFlags) error {
	ctx := cmd.Context()
	w := s.app.Stdout
	color := output.UseColor()
	start := time.Now()

	parallel := s.cfg.Parallel
	if cmd.Flags().Changed("parallel") {
		parallel = f.parallel
	}
	if parallel < 1 {
		return usageError(fmt.Errorf("--parallel must be at least 1, got %d", parallel))
	}

	m, targets, err := s.loadManifest(args, f.selected)
	if err != nil {
		return err
	}

	vars, err := s.resolutionContext(m.Dir, &f.varFlags)
	if err != nil {
		return err
	}

	bcfg := s.cfg.Builder
	bcfg.Push = bcfg.Push || f.push
	bcfg.NoCache = bcfg.NoCache || f.noCache
	if cmd.Flags().Changed("platform") {
		bcfg.Platforms = f.platforms
	}
	strict := s.cfg.Strict || f.strict

	var builder build.Builder
	builderName := "none (dry run)"
	if !f.dryRun {
		factory := s.app.NewBuilder
		if factory == nil {
			factory = DockerBuilder
		}
		b, cleanup, err := factory(ctx, BuilderOptions{
			Config:  bcfg,
			Verbose: s.verbose,
			Stderr:  s.app.Stderr,
			Log:     s.log,
		})
		if err != nil {
			return fmt.Errorf("creating builder: %w", err)
		}
		defer cleanup()
		builder = b
		builderName = b.Name()
	}

	output.CIHeader(w)
	output.RunHeader(w, []output.KV{
		{Key: "Manifest", Value: m.Path},
		{Key: "Services", Value: fmt.Sprintf("%d of %d", len(targets), len(m.Targets))},
		{Key: "Parallel", Value: fmt.Sprint(parallel)},
		{Key: "Builder", Value: builderName},
		{Key: "Platforms", Value: platformsLabel(bcfg.Platforms)},
		{Key: "Output", Value: outputLabel(bcfg.Push, f.dryRun)},
	})

	coord := &build.Coordinator{
		Builder:  builder,
		Vars:     vars,
		Dir:      m.Dir,
		Parallel: parallel,
		DryRun:   f.dryRun,
		Log:      s.log,
	}

	output.SectionStart(w, "buildmatrix_build", "Build")
	results, runErr := coord.Run(ctx, targets)
	output.SectionEnd(w, "buildmatrix_build")

	cancelled := runErr != nil && ctx.Err() != nil
	if runErr != nil && !cancelled {
		return runErr
	}

	summary := build.Summarize(results, cancelled, strict)
	output.BuildSummary(w, results, summary, time.Since(start), color)

	if f.junitDir != "" {
		if err := output.WriteBuildJUnit(f.junitDir, m.Path, results, time.Since(start)); err != nil {
			s.log.WithError(err).Error("junit report not written")
		}
	}

	if cancelled {
		return &ExitError{Code: ExitFailure, Err: runErr}
	}
	if code := summary.ExitCode(); code != ExitOK {
		return &ExitError{Code: code}
	}
	return nil
}

func platformsLabel(p []string) string {
	if len(p) == 0 {
		return "builder default"
	}
	return strings.Join(p, ",")
}

func outputLabel(push, dryRun bool) string {
	switch {
	case dryRun:
		return "none"
	case push:
		return "push"
	default:
		return "load"
	}
}
