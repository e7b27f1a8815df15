// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package source loads schema instances from local files or over HTTP.
// Remote instances are fetched with an optional bearer token and the
// shared retry policy.
package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/pdiddy/template-converter/internal/httputil"
	"github.com/pdiddy/template-converter/internal/schema"
	"github.com/pdiddy/template-converter/pkg/types"
)

// maxBody caps the size of a fetched instance.
const maxBody = 64 << 20

// acceptHeader asks JSON:API services for their native type first.
const acceptHeader = "application/vnd.api+json, application/json;q=0.9, application/yaml;q=0.5"

// Loader resolves a schema reference to a decoded instance.
type Loader struct {
	client *httputil.Client
	token  string
}

// NewLoader builds a Loader from cfg. Retry notices go to log.
func NewLoader(cfg types.SourceConfig, log io.Writer) *Loader {
	return &Loader{client: httputil.NewClient(cfg.HTTPConfig, log), token: cfg.Token}
}

// IsURL reports whether ref is an http or https URL.
func IsURL(ref string) bool {
	u, err := url.Parse(ref)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// Load returns the instance ref points at: a URL is fetched, anything else
// is read from disk.
func (l *Loader) Load(ctx context.Context, ref string) (any, error) {
	if IsURL(ref) {
		return l.Fetch(ctx, ref)
	}
	return schema.LoadInstance(ref)
}

// Fetch downloads and decodes the instance at rawURL. Any non-2xx status
// after retries is an error carrying the status and a body excerpt.
func (l *Loader) Fetch(ctx context.Context, rawURL string) (any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building request for %s: %w", rawURL, err)
	}
	req.Header.Set("Accept", acceptHeader)
	if l.token != "" {
		req.Header.Set("Authorization", "Bearer "+l.token)
	}

	resp, err := l.client.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", rawURL, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetching %s: %s: %s", rawURL, resp.Status, excerpt(body))
	}

	v, err := schema.Decode(body, extension(rawURL, resp.Header.Get("Content-Type")))
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", rawURL, err)
	}
	return v, nil
}

// extension picks a decoder hint from the content type, falling back to
// the URL path.
func extension(rawURL, contentType string) string {
	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "json"):
		return ".json"
	case strings.Contains(ct, "yaml"):
		return ".yaml"
	}
	if u, err := url.Parse(rawURL); err == nil {
		return path.Ext(u.Path)
	}
	return ""
}

func excerpt(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}
