package build

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/sofmeright/buildmatrix/src/logging"
	"github.com/sofmeright/buildmatrix/src/manifest"
	"github.com/sofmeright/buildmatrix/src/resolve"
)

// DefaultDockerfile is used when a target names no Dockerfile.
const DefaultDockerfile = "Dockerfile"

// Coordinator runs every target of a manifest through a Builder with at
// most Parallel builds in flight.
type Coordinator struct {
	Builder  Builder
	Vars     resolve.Context
	Dir      string // manifest directory; contexts resolve against it
	Parallel int
	DryRun   bool
	Log      logrus.FieldLogger
}

// Run builds targets and returns exactly one result per target, in the
// order given. Individual target failures never abort the run. When ctx is
// cancelled, undispatched targets are skipped and the returned error wraps
// ctx.Err().
func (c *Coordinator) Run(ctx context.Context, targets []manifest.Target) ([]BuildResult, error) {
	if c.Parallel < 1 {
		return nil, fmt.Errorf("parallel must be at least 1, got %d", c.Parallel)
	}
	if c.Builder == nil && !c.DryRun {
		return nil, errors.New("no builder configured")
	}
	if c.Log == nil {
		c.Log = logging.Discard()
	}

	// Indexed by declaration position; each worker writes only its own slot.
	results := make([]BuildResult, len(targets))

	sem := semaphore.NewWeighted(int64(c.Parallel))
	var g errgroup.Group

	dispatched := 0
	for i, t := range targets {
		if ctx.Err() != nil {
			break
		}
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		dispatched++
		g.Go(func() error {
			defer sem.Release(1)
			results[i] = c.build(ctx, t)
			return nil
		})
	}
	_ = g.Wait()

	for i := dispatched; i < len(targets); i++ {
		name := targets[i].Name
		c.Log.WithField("target", name).Warn("not started: run cancelled")
		results[i] = BuildResult{Target: name, Outcome: Skipped, Reason: ReasonCancelled, Err: ctx.Err()}
	}

	if err := ctx.Err(); err != nil {
		return results, fmt.Errorf("build run interrupted: %w", err)
	}
	return results, nil
}

// build takes one target from Pending to a terminal outcome.
func (c *Coordinator) build(ctx context.Context, t manifest.Target) BuildResult {
	start := time.Now()
	log := c.Log.WithField("target", t.Name)

	result := BuildResult{Target: t.Name}
	done := func(o Outcome, reason string, err error) BuildResult {
		result.Outcome = o
		result.Reason = reason
		result.Err = err
		result.Duration = time.Since(start)
		return result
	}

	if ctx.Err() != nil {
		log.Warn("not started: run cancelled")
		return done(Skipped, ReasonCancelled, ctx.Err())
	}

	ref, err := resolve.Reference(t.Image, c.Vars)
	if err != nil {
		log.WithError(err).Error("cannot resolve image reference")
		return done(Failed, err.Error(), err)
	}
	result.Reference = ref
	log = log.WithField("reference", ref)

	args, err := resolve.ExpandArgs(t.Args, c.Vars)
	if err != nil {
		log.WithError(err).Error("cannot resolve build args")
		return done(Failed, err.Error(), err)
	}

	contextDir := c.contextPath(t.Context)
	info, err := os.Stat(contextDir)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		cerr := &ContextNotFoundError{Target: t.Name, Path: contextDir}
		log.WithField("context", contextDir).Warn("skipped: context not found")
		return done(Skipped, ReasonContextNotFound, cerr)
	case err != nil:
		log.WithError(err).Error("cannot stat context")
		return done(Failed, err.Error(), err)
	case !info.IsDir():
		log.WithField("context", contextDir).Error("context is not a directory")
		return done(Failed, ReasonNotDirectory, fmt.Errorf("%s: %s: %s", t.Name, ReasonNotDirectory, contextDir))
	}

	dockerfile := t.Dockerfile
	if dockerfile == "" {
		dockerfile = DefaultDockerfile
	}
	if !filepath.IsAbs(dockerfile) {
		dockerfile = filepath.Join(contextDir, dockerfile)
	}

	if c.DryRun {
		if df := c.inspect(log, dockerfile); df != nil {
			result.BaseImages = df.BaseImages()
		}
		log.Info("dry run: build not executed")
		return done(Succeeded, ReasonDryRun, nil)
	}

	log.Debugf("building with %s", c.Builder.Name())
	out, err := c.Builder.Build(ctx, Request{
		Target:     t.Name,
		Context:    contextDir,
		Dockerfile: dockerfile,
		Reference:  ref,
		Args:       args,
	})
	if out != nil {
		result.ImageID = out.ImageID
		result.Progress = out.Progress
	}
	if err != nil {
		log.WithError(err).Error("build failed")
		return done(Failed, err.Error(), err)
	}

	fields := logrus.Fields{
		"duration": time.Since(start).Round(time.Millisecond),
		"steps":    len(result.Progress.Steps),
		"cached":   result.Progress.Cached(),
	}
	if slow, ok := result.Progress.Slowest(); ok {
		fields["slowest"] = slow.String()
	}
	log.WithFields(fields).Info("built")
	return done(Succeeded, "", nil)
}

func (c *Coordinator) contextPath(dir string) string {
	if filepath.IsAbs(dir) {
		return filepath.Clean(dir)
	}
	return filepath.Join(c.Dir, dir)
}

// inspect parses the Dockerfile for a dry run and logs its stages at debug
// level. A missing or unreadable Dockerfile is not an error here; the real
// build reports it.
func (c *Coordinator) inspect(log logrus.FieldLogger, path string) *DockerfileInfo {
	df, err := ParseDockerfile(path)
	if err != nil {
		log.WithError(err).Warn("dockerfile not readable")
		return nil
	}
	log.WithFields(logrus.Fields{
		"dockerfile": path,
		"stages":     len(df.Stages),
		"base":       df.BaseImages(),
		"args":       df.Args,
	}).Debug("dockerfile")
	return df
}

