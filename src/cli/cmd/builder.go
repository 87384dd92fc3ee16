package cmd

import (
	"context"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sofmeright/buildmatrix/src/build"
	"github.com/sofmeright/buildmatrix/src/config"
)

const preflightTimeout = 5 * time.Second

// BuilderOptions configures the builder for one run.
type BuilderOptions struct {
	Config  config.BuilderConfig
	Verbose bool
	Stderr  io.Writer
	Log     logrus.FieldLogger
}

// BuilderFactory creates the builder for a run. cleanup is called when the
// run is over.
type BuilderFactory func(ctx context.Context, o BuilderOptions) (b build.Builder, cleanup func(), err error)

// DockerBuilder returns a buildx builder. When the Docker daemon answers,
// it is used to report image IDs; when it does not, builds still run and the
// failure is logged.
func DockerBuilder(ctx context.Context, o BuilderOptions) (build.Builder, func(), error) {
	bx := build.NewBuildx(o.Config.Executable, o.Verbose)
	bx.Stderr = o.Stderr
	bx.Platforms = o.Config.Platforms
	bx.Push = o.Config.Push
	bx.NoCache = o.Config.NoCache

	cleanup := func() {}

	daemon, err := build.NewDaemon()
	if err != nil {
		o.Log.WithError(err).Warn("docker client unavailable")
		return bx, cleanup, nil
	}

	pctx, cancel := context.WithTimeout(ctx, preflightTimeout)
	defer cancel()
	apiVersion, err := daemon.Preflight(pctx)
	if err != nil {
		o.Log.WithError(err).Warn("docker daemon preflight failed")
		_ = daemon.Close()
		return bx, cleanup, nil
	}

	o.Log.WithField("api", apiVersion).Debug("docker daemon reachable")
	bx.Images = daemon
	return bx, func() { _ = daemon.Close() }, nil
}
