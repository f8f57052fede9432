package meta

import (
	"os"
	"strings"
)

const envPrefix = "${env."

// ExpandEnv replaces ${env.KEY} with the value of the environment variable
// KEY, empty when unset. Expressions whose key is not made of letters, digits
// or '_' and unterminated expressions are kept literally.
func ExpandEnv(text string) string {
	if !strings.Contains(text, envPrefix) {
		return text
	}
	var b strings.Builder
	b.Grow(len(text))
	rest := text
	for {
		before, after, found := strings.Cut(rest, envPrefix)
		b.WriteString(before)
		if !found {
			return b.String()
		}
		end := strings.IndexByte(after, '}')
		if end < 0 {
			b.WriteString(envPrefix)
			b.WriteString(after)
			return b.String()
		}
		key := after[:end]
		if !isEnvKey(key) {
			b.WriteString(envPrefix)
			rest = after
			continue
		}
		b.WriteString(os.Getenv(key))
		rest = after[end+1:]
	}
}

func isEnvKey(key string) bool {
	for _, r := range key {
		if !(r == '_' || r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z') {
			return false
		}
	}
	return true
}
