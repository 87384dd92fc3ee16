package build

import (
	"bufio"
	"os"
	"regexp"
	"strings"
)

var (
	// FROM [--platform=...] <image> [AS <name>]
	fromRe = regexp.MustCompile(`(?i)^FROM\s+(?:--platform=\S+\s+)?(\S+)(?:\s+AS\s+(\S+))?`)
	// ARG <name>[=<default>]
	argRe = regexp.MustCompile(`(?i)^ARG\s+(\S+?)(?:=.*)?$`)
)

// DockerfileInfo describes a parsed Dockerfile.
type DockerfileInfo struct {
	Path   string
	Stages []Stage
	Args   []string
}

// Stage describes a single FROM stage in a Dockerfile.
type Stage struct {
	Name      string // alias from "AS name", empty if unnamed
	BaseImage string
	Line      int
}

// BaseImages returns the external images the Dockerfile builds from, in
// order, excluding references to earlier stages.
func (d *DockerfileInfo) BaseImages() []string {
	stages := make(map[string]bool, len(d.Stages))
	var out []string
	for _, s := range d.Stages {
		if !stages[strings.ToLower(s.BaseImage)] {
			out = append(out, s.BaseImage)
		}
		if s.Name != "" {
			stages[strings.ToLower(s.Name)] = true
		}
	}
	return out
}

// ParseDockerfile extracts stages and declared build args from a Dockerfile.
// Regex based, one instruction per line; continuation lines are not joined.
func ParseDockerfile(path string) (*DockerfileInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info := &DockerfileInfo{Path: path}
	scanner := bufio.NewScanner(f)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if m := fromRe.FindStringSubmatch(line); m != nil {
			stage := Stage{
				BaseImage: m[1],
				Line:      lineNum,
			}
			if len(m) > 2 {
				stage.Name = m[2]
			}
			info.Stages = append(info.Stages, stage)
			continue
		}

		if m := argRe.FindStringSubmatch(line); m != nil {
			info.Args = append(info.Args, m[1])
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return info, nil
}
