package build

import (
	"context"
	"fmt"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
)

// DockerAPI is the subset of the Docker SDK the daemon helpers use.
type DockerAPI interface {
	Ping(ctx context.Context) (types.Ping, error)
	ImageList(ctx context.Context, options image.ListOptions) ([]image.Summary, error)
	Close() error
}

// Daemon talks to the local Docker daemon.
type Daemon struct {
	api DockerAPI
}

// NewDaemon connects using DOCKER_HOST and friends from the environment.
func NewDaemon() (*Daemon, error) {
	c, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("docker client: %w", err)
	}
	return &Daemon{api: c}, nil
}

// NewDaemonWithAPI wraps an existing client.
func NewDaemonWithAPI(api DockerAPI) *Daemon {
	return &Daemon{api: api}
}

// Preflight pings the daemon and returns its API version.
func (d *Daemon) Preflight(ctx context.Context) (string, error) {
	ping, err := d.api.Ping(ctx)
	if err != nil {
		return "", fmt.Errorf("docker daemon unreachable: %w", err)
	}
	return ping.APIVersion, nil
}

// ImageID implements ImageLookup.
func (d *Daemon) ImageID(ctx context.Context, ref string) (string, error) {
	images, err := d.api.ImageList(ctx, image.ListOptions{
		Filters: filters.NewArgs(filters.Arg("reference", ref)),
	})
	if err != nil {
		return "", fmt.Errorf("listing images for %s: %w", ref, err)
	}
	if len(images) == 0 {
		return "", fmt.Errorf("image %s not found in daemon", ref)
	}
	return images[0].ID, nil
}

// Close releases the client connection.
func (d *Daemon) Close() error {
	return d.api.Close()
}
