package resolve

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
)

// LoadEnvFiles reads dotenv files into a Map. Files later in the list
// override earlier ones. The process environment is not modified.
func LoadEnvFiles(paths ...string) (Map, error) {
	out := Map{}
	for _, path := range paths {
		vars, err := godotenv.Read(path)
		if err != nil {
			return nil, fmt.Errorf("reading env file %s: %w", path, err)
		}
		for k, v := range vars {
			out[k] = v
		}
	}
	return out, nil
}

// ParseAssignments parses KEY=VALUE strings, as given to --set.
func ParseAssignments(pairs []string) (Map, error) {
	out := make(Map, len(pairs))
	for _, kv := range pairs {
		k, v, ok := cutAssignment(kv)
		if !ok {
			return nil, fmt.Errorf("invalid assignment %q: want KEY=VALUE", kv)
		}
		out[k] = v
	}
	return out, nil
}

var variableName = regexp.MustCompile(`^[_A-Za-z][_A-Za-z0-9]*$`)

func cutAssignment(kv string) (string, string, bool) {
	k, v, ok := strings.Cut(kv, "=")
	if !ok || !variableName.MatchString(k) {
		return "", "", false
	}
	return k, v, true
}
