package build

import (
	"bufio"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Step is one Dockerfile instruction as reported by buildx plain progress.
type Step struct {
	ID          int
	Stage       string // "base", "stage-1", "linux/amd64 base"
	Position    string // "2/7"
	Instruction string // FROM, COPY, RUN, ...
	Args        string // shortened for display
	Cached      bool
	Duration    time.Duration // zero for cache hits
	Error       string        // set when buildx reported ERROR for this step
}

// String renders the step the way buildx prints it: [base 3/3] RUN pip install ...
func (s Step) String() string {
	head := fmt.Sprintf("[%s %s] %s", s.Stage, s.Position, s.Instruction)
	if s.Args == "" {
		return head
	}
	return head + " " + s.Args
}

// Progress is the parsed form of one buildx --progress plain log.
type Progress struct {
	Steps []Step // finished or failed instruction steps, by vertex id
}

const maxStepArgs = 48

var (
	// #7 [base 3/3] RUN pip install -r requirements.txt
	stepRe = regexp.MustCompile(`^#(\d+) \[([^\]]+) (\d+/\d+)\] (\S+)\s*(.*)$`)
	// #7 CACHED / #7 DONE 44.8s / #7 ERROR: process ... did not complete
	statusRe = regexp.MustCompile(`^#(\d+) (?:(CACHED)|DONE (\d+(?:\.\d+)?)s|ERROR: (.*))$`)
)

// ParseProgress extracts instruction steps from buildx plain-progress
// output. Internal vertices (load build definition, exporting, metadata
// lookups) carry no [stage n/m] prefix and are ignored, as are log lines
// a step prints while running.
func ParseProgress(log string) Progress {
	steps := make(map[int]*Step)
	finished := make(map[int]bool)

	sc := bufio.NewScanner(strings.NewReader(log))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())

		if m := stepRe.FindStringSubmatch(line); m != nil {
			id, _ := strconv.Atoi(m[1])
			if _, seen := steps[id]; seen {
				continue
			}
			steps[id] = &Step{
				ID:          id,
				Stage:       m[2],
				Position:    m[3],
				Instruction: strings.ToUpper(m[4]),
				Args:        shorten(m[5], maxStepArgs),
			}
			continue
		}

		m := statusRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		id, _ := strconv.Atoi(m[1])
		s, ok := steps[id]
		if !ok {
			continue
		}
		switch {
		case m[2] != "":
			s.Cached = true
		case m[3] != "":
			s.Duration, _ = time.ParseDuration(m[3] + "s")
		default:
			s.Error = m[4]
		}
		finished[id] = true
	}

	ids := make([]int, 0, len(finished))
	for id := range finished {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	var p Progress
	for _, id := range ids {
		p.Steps = append(p.Steps, *steps[id])
	}
	return p
}

// Cached counts cache hits.
func (p Progress) Cached() int {
	n := 0
	for _, s := range p.Steps {
		if s.Cached {
			n++
		}
	}
	return n
}

// Slowest returns the step that took longest to execute. Cache hits and
// sub-millisecond steps never qualify.
func (p Progress) Slowest() (Step, bool) {
	var (
		best  Step
		found bool
	)
	for _, s := range p.Steps {
		if s.Duration >= time.Millisecond && s.Duration > best.Duration {
			best, found = s, true
		}
	}
	return best, found
}

// Failed returns the first step buildx reported an error for.
func (p Progress) Failed() (Step, bool) {
	for _, s := range p.Steps {
		if s.Error != "" {
			return s, true
		}
	}
	return Step{}, false
}

func shorten(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
