// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets reads credentials kept as one plain-text file per key.
// The file name is the key and its trimmed contents are the value; an
// environment variable stands in for a missing file.
//
// Known keys: openai-api-key for AI fix suggestions and merge-data-token,
// the bearer token sent when a schema instance is fetched over HTTP.
package secrets

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pdiddy/template-converter/pkg/types"
)

// Known key file names.
const (
	OpenAIKey      = "openai-api-key"
	MergeDataToken = "merge-data-token"
)

// envNames maps a key file name to the environment variable consulted
// when the file is absent.
var envNames = map[string]string{
	OpenAIKey:      "OPENAI_API_KEY",
	MergeDataToken: "TEMPLATE_CONVERTER_MERGE_DATA_TOKEN",
}

// Lookup returns the named secret from loaded, falling back to its
// environment variable. The empty string means the secret is not set.
func Lookup(loaded map[string]string, name string) string {
	if v := loaded[name]; v != "" {
		return v
	}
	if env, ok := envNames[name]; ok {
		return strings.TrimSpace(os.Getenv(env))
	}
	return ""
}

// Apply fills the credentials cfg leaves empty from loaded secrets.
func Apply(cfg *types.Config, loaded map[string]string) {
	if cfg.AI.APIKey == "" {
		cfg.AI.APIKey = Lookup(loaded, OpenAIKey)
	}
	if cfg.Source.Token == "" {
		cfg.Source.Token = Lookup(loaded, MergeDataToken)
	}
}

// Keys returns the loaded key names in order. Values are never listed.
func Keys(loaded map[string]string) []string {
	keys := make([]string, 0, len(loaded))
	for k := range loaded {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Load reads the key files in dir, warning on stderr about unreadable ones.
func Load(dir string) (map[string]string, error) {
	return LoadFrom(dir, os.Stderr)
}

// LoadFrom reads the key files in dir. A missing directory yields an empty
// map. Dotfiles, subdirectories and empty files are ignored; an unreadable
// file is reported to warn and skipped.
func LoadFrom(dir string, warn io.Writer) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	loaded := make(map[string]string, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			fmt.Fprintf(warn, "warning: skipping secret %s: %v\n", name, err)
			continue
		}
		if v := strings.TrimSpace(string(data)); v != "" {
			loaded[name] = v
		}
	}
	return loaded, nil
}
