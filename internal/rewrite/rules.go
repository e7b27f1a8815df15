// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package rewrite

import (
	_ "embed"
	"fmt"
	"os"
	"sort"

	"go.yaml.in/yaml/v3"
)

//go:embed rules.yaml
var defaultRules []byte

// Block is a destination open/close tag pair.
type Block struct {
	Open  string `yaml:"open" json:"open"`
	Close string `yaml:"close" json:"close"`
}

// Rules are the built-in conversion tables. Fields map a simple marker
// ("=client_name") to a destination tag; Loops and Conditionals map a
// start marker to the block it opens. Rules are read-only once loaded.
type Rules struct {
	Fields       map[string]string `yaml:"fields" json:"fields"`
	Loops        map[string]Block  `yaml:"loops" json:"loops"`
	Conditionals map[string]Block  `yaml:"conditionals" json:"conditionals"`
}

// DefaultRules returns the embedded rule tables.
func DefaultRules() (Rules, error) {
	return ParseRules(defaultRules)
}

// MustDefaultRules is DefaultRules for callers that treat a broken embedded
// table as a programming error.
func MustDefaultRules() Rules {
	r, err := DefaultRules()
	if err != nil {
		panic(err)
	}
	return r
}

// LoadRules reads rule tables from a YAML file. An empty path returns the
// embedded defaults.
func LoadRules(path string) (Rules, error) {
	if path == "" {
		return DefaultRules()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, fmt.Errorf("reading rules %s: %w", path, err)
	}
	r, err := ParseRules(data)
	if err != nil {
		return Rules{}, fmt.Errorf("parsing rules %s: %w", path, err)
	}
	return r, nil
}

// ParseRules decodes YAML rule tables and checks that every block has both
// tags.
func ParseRules(data []byte) (Rules, error) {
	var r Rules
	if err := yaml.Unmarshal(data, &r); err != nil {
		return Rules{}, err
	}
	if r.Fields == nil {
		r.Fields = map[string]string{}
	}
	if r.Loops == nil {
		r.Loops = map[string]Block{}
	}
	if r.Conditionals == nil {
		r.Conditionals = map[string]Block{}
	}
	for name, tbl := range map[string]map[string]Block{"loops": r.Loops, "conditionals": r.Conditionals} {
		for k, b := range tbl {
			if b.Open == "" || b.Close == "" {
				return Rules{}, fmt.Errorf("%s entry %q needs open and close tags", name, k)
			}
		}
	}
	return r, nil
}

func sortedBlockKeys(m map[string]Block) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
