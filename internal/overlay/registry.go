// Designer token registry. Lets content authors bind bespoke token
// strings (e.g. "KINGS_PEACE") to canonical effects without touching
// the built-in grammar. Loaded from a YAML file at startup.
package overlay

import (
	"fmt"
	"os"
	"strings"

	"github.com/agnivade/levenshtein"
	"gopkg.in/yaml.v3"

	"github.com/talgya/wardsim/internal/faction"
)

// Registry maps exact token strings (trimmed, upper-cased) to tokens.
type Registry struct {
	entries map[string]Token
}

// registryFile is the YAML layout of a designer token file.
type registryFile struct {
	Tokens []registryEntry `yaml:"tokens"`
}

type registryEntry struct {
	Match   string  `yaml:"match"`
	Kind    string  `yaml:"kind"`
	Faction string  `yaml:"faction,omitempty"`
	Item    string  `yaml:"item,omitempty"`
	Value   float64 `yaml:"value,omitempty"`
}

var kindsByName = func() map[string]Kind {
	m := make(map[string]Kind, len(kindNames))
	for k, name := range kindNames {
		m[name] = k
	}
	return m
}()

// LoadRegistry reads a designer token registry from a YAML file.
func LoadRegistry(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read token registry: %w", err)
	}

	var file registryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse token registry: %w", err)
	}

	reg := &Registry{entries: make(map[string]Token, len(file.Tokens))}
	for _, e := range file.Tokens {
		kind, ok := kindsByName[strings.ToUpper(strings.TrimSpace(e.Kind))]
		if !ok {
			return nil, fmt.Errorf("token registry: unknown kind %q for match %q", e.Kind, e.Match)
		}
		reg.entries[normalizeMatch(e.Match)] = Token{
			Kind:    kind,
			Faction: faction.Normalize(e.Faction),
			Item:    strings.ToLower(strings.TrimSpace(e.Item)),
			Value:   e.Value,
		}
	}
	return reg, nil
}

// NewRegistry builds a registry from an explicit match → token map.
func NewRegistry(entries map[string]Token) *Registry {
	reg := &Registry{entries: make(map[string]Token, len(entries))}
	for match, tok := range entries {
		reg.entries[normalizeMatch(match)] = tok
	}
	return reg
}

// Resolve looks up a token string by exact normalized match.
func (r *Registry) Resolve(raw string) (Token, bool) {
	if r == nil {
		return Token{}, false
	}
	tok, ok := r.entries[normalizeMatch(raw)]
	return tok, ok
}

// Suggest returns the nearest registered match for an unrecognized
// token, for authoring diagnostics. Returns "" when nothing is close
// (edit distance > 3).
func (r *Registry) Suggest(raw string) string {
	if r == nil {
		return ""
	}
	needle := normalizeMatch(raw)
	best := ""
	bestDist := 4
	for match := range r.entries {
		d := levenshtein.ComputeDistance(needle, match)
		if d < bestDist {
			best = match
			bestDist = d
		}
	}
	return best
}

func normalizeMatch(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
