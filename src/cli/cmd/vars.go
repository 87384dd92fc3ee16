package cmd

import (
	"github.com/spf13/cobra"

	"github.com/sofmeright/buildmatrix/src/gitver"
	"github.com/sofmeright/buildmatrix/src/manifest"
	"github.com/sofmeright/buildmatrix/src/resolve"
)

// varFlags are the resolution-context flags shared by build and validate.
type varFlags struct {
	envFiles   []string
	sets       []string
	selected   []string
	tagFromGit bool
}

func (v *varFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringArrayVar(&v.envFiles, "env-file", nil, "dotenv file with placeholder values (repeatable, later files win)")
	cmd.Flags().StringArrayVar(&v.sets, "set", nil, "placeholder value KEY=VALUE (repeatable, highest priority)")
	cmd.Flags().StringSliceVar(&v.selected, "select", nil, "only these services (repeatable or comma-separated)")
	cmd.Flags().BoolVar(&v.tagFromGit, "tag-from-git", false, "set TAG from the git version of the manifest's repository")
}

// loadManifest reads the manifest named by args, config, or the default,
// narrowed to the selected services.
func (s *session) loadManifest(args []string, selected []string) (*manifest.Manifest, []manifest.Target, error) {
	path := manifest.DefaultFile
	switch {
	case len(args) > 0:
		path = args[0]
	case s.cfg.Manifest != "":
		path = s.cfg.Manifest
	}

	m, err := manifest.Load(path)
	if err != nil {
		return nil, nil, usageError(err)
	}

	targets := m.Targets
	if len(selected) > 0 {
		targets, err = m.Select(selected)
		if err != nil {
			return nil, nil, usageError(err)
		}
	}
	return m, targets, nil
}

// resolutionContext layers placeholder sources, highest priority first: --set,
// process environment, env files, config variables, git.
func (s *session) resolutionContext(dir string, v *varFlags) (resolve.Context, error) {
	sets, err := resolve.ParseAssignments(v.sets)
	if err != nil {
		return nil, usageError(err)
	}

	files := append(append([]string{}, s.cfg.EnvFiles...), v.envFiles...)
	fileVars, err := resolve.LoadEnvFiles(files...)
	if err != nil {
		return nil, usageError(err)
	}

	tagFromGit := v.tagFromGit || s.cfg.TagFromGit
	gitVars := resolve.Map{}
	info, err := gitver.DetectVersion(dir)
	switch {
	case err == nil:
		gitVars = resolve.Map(info.Variables(tagFromGit))
		s.log.WithField("version", info.Version).Debug("git version detected")
	case tagFromGit:
		s.log.WithError(err).Warn("--tag-from-git: no git version available")
	default:
		s.log.WithError(err).Debug("git version not detected")
	}

	return resolve.Layered{
		sets,
		s.app.Environ,
		fileVars,
		resolve.Map(s.cfg.Variables),
		gitVars,
	}, nil
}
