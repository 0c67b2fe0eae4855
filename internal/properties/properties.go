package properties

import (
	"bufio"
	"os"
	"strings"
)

// Load reads a flat key=value properties file and returns a snapshot map.
// Blank lines and lines starting with '#' are skipped. Only the first '='
// splits a line, so values may themselves contain '='. Read failures
// degrade to an empty map: the settings view is non-critical and must not
// fail a client connection.
func Load(path string) map[string]string {
	out := make(map[string]string)
	f, err := os.Open(path)
	if err != nil {
		return out
	}
	defer func() { _ = f.Close() }()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		k, v, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key := strings.TrimSpace(k)
		if key == "" {
			continue
		}
		out[key] = strings.TrimSpace(v)
	}
	return out
}
