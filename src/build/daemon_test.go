package build

import (
	"context"
	"errors"
	"testing"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/image"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDockerAPI struct {
	pingErr error
	images  []image.Summary
	filter  string
	closed  bool
}

func (f *fakeDockerAPI) Ping(context.Context) (types.Ping, error) {
	if f.pingErr != nil {
		return types.Ping{}, f.pingErr
	}
	return types.Ping{APIVersion: "1.47"}, nil
}

func (f *fakeDockerAPI) ImageList(_ context.Context, options image.ListOptions) ([]image.Summary, error) {
	refs := options.Filters.Get("reference")
	if len(refs) > 0 {
		f.filter = refs[0]
	}
	return f.images, nil
}

func (f *fakeDockerAPI) Close() error {
	f.closed = true
	return nil
}

func TestDaemonPreflight(t *testing.T) {
	d := NewDaemonWithAPI(&fakeDockerAPI{})
	v, err := d.Preflight(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1.47", v)

	d = NewDaemonWithAPI(&fakeDockerAPI{pingErr: errors.New("connection refused")})
	_, err = d.Preflight(context.Background())
	assert.ErrorContains(t, err, "docker daemon unreachable")
}

func TestDaemonImageID(t *testing.T) {
	api := &fakeDockerAPI{images: []image.Summary{{ID: "sha256:1234"}}}
	d := NewDaemonWithAPI(api)

	id, err := d.ImageID(context.Background(), "opea/embedding:latest")
	require.NoError(t, err)
	assert.Equal(t, "sha256:1234", id)
	assert.Equal(t, "opea/embedding:latest", api.filter)

	api.images = nil
	_, err = d.ImageID(context.Background(), "opea/embedding:latest")
	assert.Error(t, err)

	require.NoError(t, d.Close())
	assert.True(t, api.closed)
}
