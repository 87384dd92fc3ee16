package build

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDockerfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Dockerfile")
	require.NoError(t, os.WriteFile(path, []byte(`# syntax=docker/dockerfile:1
ARG IMAGE_NAME=python
FROM --platform=$BUILDPLATFORM node:20 AS ui
ARG http_proxy
EXPOSE 5173 8080/tcp
FROM ${IMAGE_NAME}:3.11-slim AS base
FROM base
COPY --from=ui /app/dist /srv
HEALTHCHECK CMD curl -f http://localhost:8080/ || exit 1
`), 0o644))

	info, err := ParseDockerfile(path)
	require.NoError(t, err)

	assert.Equal(t, path, info.Path)
	require.Len(t, info.Stages, 3)
	assert.Equal(t, Stage{Name: "ui", BaseImage: "node:20", Line: 3}, info.Stages[0])
	assert.Equal(t, []string{"IMAGE_NAME", "http_proxy"}, info.Args)
	assert.Equal(t, []string{"node:20", "${IMAGE_NAME}:3.11-slim"}, info.BaseImages())
}

func TestParseDockerfileMissing(t *testing.T) {
	_, err := ParseDockerfile(filepath.Join(t.TempDir(), "Dockerfile"))
	assert.Error(t, err)
}
