// Package naming generates memorable default names for pastes created
// without one.
package naming

import (
	"fmt"
	"math/rand"
	"strings"
)

var adjectives = []string{
	"amber", "bold", "brisk", "calm", "clever", "crisp", "deft", "eager",
	"fuzzy", "gentle", "keen", "lively", "mellow", "nimble", "plucky",
	"quiet", "rapid", "sly", "sturdy", "swift", "tidy", "vivid", "witty",
	"zesty",
}

var nouns = []string{
	"badger", "beacon", "cedar", "comet", "falcon", "fjord", "gecko",
	"harbor", "heron", "lantern", "maple", "meadow", "otter", "pebble",
	"pine", "quill", "raven", "reef", "sparrow", "spruce", "summit",
	"thicket", "walnut", "willow",
}

// RandomName returns an adjective-noun pair like "brisk-otter".
func RandomName() string {
	return fmt.Sprintf("%s-%s",
		adjectives[rand.Intn(len(adjectives))],
		nouns[rand.Intn(len(nouns))])
}

// Fallback derives a name from content when generation is undesirable:
// the first non-empty line, trimmed and capped.
func Fallback(content string) string {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if len(line) > 48 {
			line = line[:48]
		}
		return line
	}
	return RandomName()
}
