// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package suggest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"

	"github.com/pdiddy/template-converter/pkg/types"
)

const instructions = `You map fields between two document template dialects.

Source fields use merge-field markers: "=path" for values, "name:each(var)" and
"name:endEach" for loops, "cond:if" / "cond:endIf" / ":else" for conditionals.
Destination tags use single braces: {path} for values, {#path}...{/path} for
loops and conditions, {^path}...{/path} for inverted conditions.

For each unresolved source field, propose the destination path whose data
matches it, using only the destination paths listed. Inside a loop, paths are
relative to the loop item. Report a confidence between 0 and 1 and a short
reason. Omit fields you cannot place.`

// retryWaits are the pauses before the second and third attempts.
var retryWaits = []time.Duration{20 * time.Second, 60 * time.Second}

var responseSchema = generateSchema[Response]()

// OpenAI is a Backend calling the OpenAI Responses API with a strict JSON
// schema for Response.
type OpenAI struct {
	client    openai.Client
	model     string
	maxTokens int64
}

// NewOpenAI returns a backend for cfg. An empty API key is an error.
func NewOpenAI(cfg types.AIConfig, opts ...option.RequestOption) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai: API key is empty (set .secrets/openai-api-key or OPENAI_API_KEY)")
	}
	if cfg.Model == "" {
		return nil, errors.New("openai: model is empty")
	}
	if cfg.MaxOutputTokens <= 0 {
		cfg.MaxOutputTokens = types.DefaultConfig().AI.MaxOutputTokens
	}
	opts = append([]option.RequestOption{option.WithAPIKey(cfg.APIKey)}, opts...)
	return &OpenAI{
		client:    openai.NewClient(opts...),
		model:     cfg.Model,
		maxTokens: cfg.MaxOutputTokens,
	}, nil
}

// Suggest sends prompt and decodes the structured response.
func (o *OpenAI) Suggest(ctx context.Context, prompt string) (Response, error) {
	params := responses.ResponseNewParams{
		Model:           o.model,
		MaxOutputTokens: openai.Int(o.maxTokens),
		Instructions:    openai.String(instructions),
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: []responses.ResponseInputItemUnionParam{
				responses.ResponseInputItemParamOfMessage(prompt, responses.EasyInputMessageRoleUser),
			},
		},
		Text: responses.ResponseTextConfigParam{
			Format: responses.ResponseFormatTextConfigUnionParam{
				OfJSONSchema: &responses.ResponseFormatTextJSONSchemaConfigParam{
					Name:        "MappingSuggestions",
					Schema:      responseSchema,
					Strict:      openai.Bool(true),
					Description: openai.String("Destination paths for unresolved source fields"),
					Type:        "json_schema",
				},
			},
		},
	}

	resp, err := o.callWithRetry(ctx, params)
	if err != nil {
		return Response{}, err
	}
	var out Response
	if err := decodeModelJSON(resp.OutputText(), &out); err != nil {
		return Response{}, fmt.Errorf("decoding suggestions: %w", err)
	}
	return out, nil
}

func (o *OpenAI) callWithRetry(ctx context.Context, params responses.ResponseNewParams) (*responses.Response, error) {
	for attempt := 0; ; attempt++ {
		resp, err := o.client.Responses.New(ctx, params)
		if err == nil {
			return resp, nil
		}
		if !transient(err) || attempt >= len(retryWaits) {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryWaits[attempt]):
		}
	}
}

// transient reports rate limits and server errors.
func transient(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500
	}
	return false
}

// decodeModelJSON unmarshals a model response, falling back to the first
// top-level JSON object when the model wraps it in extra text.
func decodeModelJSON(text string, v any) error {
	s := strings.TrimSpace(text)
	if s == "" {
		return io.ErrUnexpectedEOF
	}
	if err := json.Unmarshal([]byte(s), v); err == nil {
		return nil
	}
	start, end := strings.IndexByte(s, '{'), strings.LastIndexByte(s, '}')
	if start < 0 || end <= start {
		return fmt.Errorf("no JSON object in model output (len=%d)", len(s))
	}
	return json.Unmarshal([]byte(s[start:end+1]), v)
}

// generateSchema reflects T into a JSON schema that satisfies strict
// structured output: every object closed and every property required.
func generateSchema[T any]() map[string]any {
	r := jsonschema.Reflector{
		AllowAdditionalProperties:  false,
		DoNotReference:             true,
		RequiredFromJSONSchemaTags: true,
	}
	var v T
	data, err := json.Marshal(r.Reflect(v))
	if err != nil {
		panic(err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		panic(err)
	}
	closeObjects(m)
	return m
}

func closeObjects(schema map[string]any) {
	props, _ := schema["properties"].(map[string]any)
	if t, _ := schema["type"].(string); t == "object" {
		schema["additionalProperties"] = false
		required := make([]string, 0, len(props))
		for name := range props {
			required = append(required, name)
		}
		if len(required) > 0 {
			sort.Strings(required)
			schema["required"] = required
		}
	}
	for _, p := range props {
		if pm, ok := p.(map[string]any); ok {
			closeObjects(pm)
		}
	}
	if items, ok := schema["items"].(map[string]any); ok {
		closeObjects(items)
	}
}
