// Package gitver derives version metadata from the git repository that holds
// a manifest. The result feeds the lowest layer of the resolution context:
// GIT_SHA, GIT_BRANCH, GIT_VERSION and, on request, TAG.
package gitver

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
)

// VersionInfo holds resolved version metadata from git.
type VersionInfo struct {
	Version      string // full version: "1.2.3", "1.2.3-rc.1", "1.2.3-dev+abc1234", "0.0.0-dev+abc1234"
	Base         string // major.minor.patch without prerelease
	Major        string
	Minor        string
	Patch        string
	Prerelease   string // "rc.1", or "" for stable
	Tag          string // nearest semver tag as written, "" when none
	SHA          string // short HEAD hash
	Branch       string // "HEAD" when detached
	IsRelease    bool   // HEAD is exactly at Tag
	IsPrerelease bool
}

const shortSHALen = 7

// DetectVersion opens the repository containing rootDir (searching parent
// directories) and resolves version info from HEAD and its nearest semver tag.
func DetectVersion(rootDir string) (*VersionInfo, error) {
	repo, err := git.PlainOpenWithOptions(rootDir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("opening git repository at %s: %w", rootDir, err)
	}

	head, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("reading HEAD: %w", err)
	}

	v := &VersionInfo{
		SHA:    head.Hash().String()[:shortSHALen],
		Branch: "HEAD",
	}
	if head.Name().IsBranch() {
		v.Branch = head.Name().Short()
	}

	tagged, err := semverTags(repo)
	if err != nil {
		return nil, err
	}

	tag, ver, distance, err := nearestTag(repo, head.Hash(), tagged)
	if err != nil {
		return nil, err
	}

	if ver == nil {
		v.Version = fmt.Sprintf("0.0.0-dev+%s", v.SHA)
		v.Base = "0.0.0"
		v.Major, v.Minor, v.Patch = "0", "0", "0"
		return v, nil
	}

	v.Tag = tag
	v.Major = fmt.Sprint(ver.Major())
	v.Minor = fmt.Sprint(ver.Minor())
	v.Patch = fmt.Sprint(ver.Patch())
	v.Base = fmt.Sprintf("%s.%s.%s", v.Major, v.Minor, v.Patch)
	v.Prerelease = ver.Prerelease()
	v.IsPrerelease = v.Prerelease != ""
	v.IsRelease = distance == 0

	v.Version = v.Base
	if v.IsPrerelease {
		v.Version += "-" + v.Prerelease
	}
	if !v.IsRelease {
		v.Version = fmt.Sprintf("%s-dev+%s", v.Version, v.SHA)
	}
	return v, nil
}

// Variables returns the git-derived placeholder values. With tag set, TAG is
// included: the version for a release checkout, the short SHA otherwise.
func (v *VersionInfo) Variables(tag bool) map[string]string {
	vars := map[string]string{
		"GIT_SHA":     v.SHA,
		"GIT_BRANCH":  SanitizeTag(v.Branch),
		"GIT_VERSION": SanitizeTag(v.Version),
	}
	if tag {
		if v.IsRelease {
			vars["TAG"] = SanitizeTag(v.Version)
		} else {
			vars["TAG"] = v.SHA
		}
	}
	return vars
}

// SanitizeTag replaces characters not allowed in image tags.
func SanitizeTag(s string) string {
	r := strings.NewReplacer(
		"/", "-",
		" ", "-",
		"+", "-",
	)
	return r.Replace(s)
}

type taggedVersion struct {
	name    string
	version *semver.Version
}

// semverTags maps commit hashes to the semver tags pointing at them.
// Annotated tags are peeled to their commit. Non-semver tags are ignored.
func semverTags(repo *git.Repository) (map[plumbing.Hash][]taggedVersion, error) {
	refs, err := repo.Tags()
	if err != nil {
		return nil, fmt.Errorf("listing tags: %w", err)
	}

	out := make(map[plumbing.Hash][]taggedVersion)
	err = refs.ForEach(func(ref *plumbing.Reference) error {
		name := ref.Name().Short()
		ver, perr := semver.NewVersion(name)
		if perr != nil {
			return nil
		}

		hash := ref.Hash()
		if tagObj, terr := repo.TagObject(hash); terr == nil {
			commit, cerr := tagObj.Commit()
			if cerr != nil {
				return nil
			}
			hash = commit.Hash
		}

		out[hash] = append(out[hash], taggedVersion{name: name, version: ver})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reading tags: %w", err)
	}
	return out, nil
}

// nearestTag walks history from head and returns the highest semver tag on
// the first tagged commit, plus how many commits were walked to reach it.
func nearestTag(repo *git.Repository, head plumbing.Hash, tagged map[plumbing.Hash][]taggedVersion) (string, *semver.Version, int, error) {
	if len(tagged) == 0 {
		return "", nil, 0, nil
	}

	iter, err := repo.Log(&git.LogOptions{From: head})
	if err != nil {
		return "", nil, 0, fmt.Errorf("walking history: %w", err)
	}
	defer iter.Close()

	var (
		bestName string
		best     *semver.Version
		distance int
	)
	err = iter.ForEach(func(c *object.Commit) error {
		tags, ok := tagged[c.Hash]
		if !ok {
			distance++
			return nil
		}
		for _, tv := range tags {
			if best == nil || tv.version.GreaterThan(best) {
				best, bestName = tv.version, tv.name
			}
		}
		return storer.ErrStop
	})
	if err != nil && !errors.Is(err, storer.ErrStop) {
		return "", nil, 0, fmt.Errorf("walking history: %w", err)
	}
	return bestName, best, distance, nil
}
