package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"item-resolver/internal/core"

	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/responses"
	"github.com/openai/openai-go/shared"
	"github.com/openai/openai-go/shared/constant"
)

// Assistant asks an LLM to adjudicate an ambiguous suggestion group against
// its ranked candidates. Its verdict is advisory: it is printed next to the
// group during review and never mutates storage.
type Assistant struct {
	client *openai.Client
}

func NewAssistant(apiKey string) *Assistant {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &Assistant{client: &client}
}

func (a *Assistant) PickMatch(ctx context.Context, group *core.SuggestionGroup) (*core.MatchDecision, error) {
	if len(group.Suggestions) == 0 {
		return &core.MatchDecision{IsNewItem: true, Confidence: 1.0, Reasoning: "no candidates scored above zero"}, nil
	}

	var candidates strings.Builder
	for _, s := range group.Suggestions {
		fmt.Fprintf(&candidates, "- SKU %s: %s (similarity %.2f)\n", s.ItemSKU, s.ItemName, s.Score)
	}

	prompt := fmt.Sprintf(`You are an expert restaurant inventory manager.
An OCR-extracted invoice line must be resolved to a canonical inventory item.
Pick the candidate that denotes the same real-world product, or declare that
none do and a new catalog item is needed.
Rules:
1. candidate_sku MUST be one of the listed SKUs, or empty when is_new_item is true.
2. Pack size and unit of measure differences alone do not make products different.
3. Provide a confidence score (0.0-1.0) and brief reasoning.

Invoice line (vendor %q): %q
Normalized description: %q

Candidates:
%s`, group.VendorName, group.RawDescription, group.Normalized, candidates.String())

	schemaStruct := generateSchema()
	schemaJSON, err := json.Marshal(schemaStruct)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	var schemaMap map[string]any
	if err := json.Unmarshal(schemaJSON, &schemaMap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal schema to map: %w", err)
	}

	params := responses.ResponseNewParams{
		Model: shared.ResponsesModel(shared.ChatModelGPT4o),
		Input: responses.ResponseNewParamsInputUnion{
			OfString: param.NewOpt(prompt),
		},
		Text: responses.ResponseTextConfigParam{
			Format: responses.ResponseFormatTextConfigUnionParam{
				OfJSONSchema: &responses.ResponseFormatTextJSONSchemaConfigParam{
					Type:        constant.JSONSchema("json_schema"),
					Name:        "match_decision",
					Strict:      param.NewOpt(true),
					Schema:      schemaMap,
					Description: param.NewOpt("A verdict resolving an invoice line to a catalog candidate"),
				},
			},
		},
	}

	resp, err := a.client.Responses.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai responses error: %w", err)
	}

	content := resp.OutputText()
	if content == "" {
		return nil, fmt.Errorf("empty response content")
	}

	var decision core.MatchDecision
	if err := json.Unmarshal([]byte(content), &decision); err != nil {
		return nil, fmt.Errorf("failed to parse completion: %w", err)
	}

	if !decision.IsNewItem && !knownSKU(group, decision.CandidateSKU) {
		return nil, fmt.Errorf("assistant chose unknown SKU %q", decision.CandidateSKU)
	}
	return &decision, nil
}

func knownSKU(group *core.SuggestionGroup, sku string) bool {
	for _, s := range group.Suggestions {
		if s.ItemSKU == sku {
			return true
		}
	}
	return false
}

func generateSchema() interface{} {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v core.MatchDecision
	return reflector.Reflect(v)
}
