package gitver

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSig = &object.Signature{
	Name:  "Build Bot",
	Email: "bot@example.com",
	When:  time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
}

func initRepo(t *testing.T) (string, *git.Repository) {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInitWithOptions(dir, &git.PlainInitOptions{
		InitOptions: git.InitOptions{DefaultBranch: plumbing.NewBranchReferenceName("main")},
	})
	require.NoError(t, err)
	return dir, repo
}

func commit(t *testing.T, dir string, repo *git.Repository, file string) plumbing.Hash {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, file), []byte(file), 0o644))
	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add(file)
	require.NoError(t, err)
	hash, err := wt.Commit("add "+file, &git.CommitOptions{Author: testSig, Committer: testSig})
	require.NoError(t, err)
	return hash
}

func TestDetectVersionUntagged(t *testing.T) {
	dir, repo := initRepo(t)
	hash := commit(t, dir, repo, "build.yaml")

	v, err := DetectVersion(dir)
	require.NoError(t, err)

	sha := hash.String()[:7]
	assert.Equal(t, sha, v.SHA)
	assert.Equal(t, "main", v.Branch)
	assert.Equal(t, "0.0.0-dev+"+sha, v.Version)
	assert.False(t, v.IsRelease)
	assert.Empty(t, v.Tag)
}

func TestDetectVersionAtTag(t *testing.T) {
	dir, repo := initRepo(t)
	hash := commit(t, dir, repo, "build.yaml")
	_, err := repo.CreateTag("v1.2.3", hash, nil)
	require.NoError(t, err)

	v, err := DetectVersion(dir)
	require.NoError(t, err)

	assert.Equal(t, "1.2.3", v.Version)
	assert.Equal(t, "v1.2.3", v.Tag)
	assert.Equal(t, "1", v.Major)
	assert.Equal(t, "2", v.Minor)
	assert.Equal(t, "3", v.Patch)
	assert.True(t, v.IsRelease)
	assert.False(t, v.IsPrerelease)
}

func TestDetectVersionAnnotatedPrerelease(t *testing.T) {
	dir, repo := initRepo(t)
	hash := commit(t, dir, repo, "build.yaml")
	_, err := repo.CreateTag("v2.0.0-rc.1", hash, &git.CreateTagOptions{Tagger: testSig, Message: "rc"})
	require.NoError(t, err)

	v, err := DetectVersion(dir)
	require.NoError(t, err)

	assert.Equal(t, "2.0.0-rc.1", v.Version)
	assert.Equal(t, "rc.1", v.Prerelease)
	assert.True(t, v.IsPrerelease)
	assert.True(t, v.IsRelease)
}

func TestDetectVersionAfterTag(t *testing.T) {
	dir, repo := initRepo(t)
	first := commit(t, dir, repo, "build.yaml")
	_, err := repo.CreateTag("v1.0.0", first, nil)
	require.NoError(t, err)
	_, err = repo.CreateTag("not-a-version", first, nil)
	require.NoError(t, err)
	second := commit(t, dir, repo, "Dockerfile")

	v, err := DetectVersion(dir)
	require.NoError(t, err)

	sha := second.String()[:7]
	assert.Equal(t, "1.0.0-dev+"+sha, v.Version)
	assert.Equal(t, "v1.0.0", v.Tag)
	assert.False(t, v.IsRelease)
}

func TestDetectVersionFromSubdirectory(t *testing.T) {
	dir, repo := initRepo(t)
	commit(t, dir, repo, "build.yaml")
	sub := filepath.Join(dir, "docker_image_build")
	require.NoError(t, os.MkdirAll(sub, 0o755))

	v, err := DetectVersion(sub)
	require.NoError(t, err)
	assert.Equal(t, "main", v.Branch)
}

func TestDetectVersionNoRepository(t *testing.T) {
	_, err := DetectVersion(t.TempDir())
	assert.Error(t, err)
}

func TestVariables(t *testing.T) {
	release := &VersionInfo{Version: "1.2.3", SHA: "abc1234", Branch: "release/1.2", IsRelease: true}
	vars := release.Variables(true)
	assert.Equal(t, map[string]string{
		"GIT_SHA":     "abc1234",
		"GIT_BRANCH":  "release-1.2",
		"GIT_VERSION": "1.2.3",
		"TAG":         "1.2.3",
	}, vars)

	dev := &VersionInfo{Version: "1.2.3-dev+abc1234", SHA: "abc1234", Branch: "main"}
	vars = dev.Variables(true)
	assert.Equal(t, "abc1234", vars["TAG"])
	assert.Equal(t, "1.2.3-dev-abc1234", vars["GIT_VERSION"])

	_, ok := dev.Variables(false)["TAG"]
	assert.False(t, ok)
}
