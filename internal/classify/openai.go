package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/invopop/jsonschema"
	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
)

// OpenAI classifies titles with a chat model constrained to the canonical
// category list via structured output. Falls back to the keyword rules when
// the model answers outside the vocabulary.
type OpenAI struct {
	client openai.Client
	model  string
}

func NewOpenAI(apiKey, model string) (*OpenAI, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("openai api key not configured")
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAI{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}, nil
}

type categorization struct {
	Category string `json:"category" jsonschema_description:"One of the allowed category names, verbatim"`
}

var categorizationSchema = func() any {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	return reflector.Reflect(categorization{})
}()

func (p *OpenAI) Categorize(ctx context.Context, title string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	system := fmt.Sprintf(`Classify an activity title into exactly one category.
Categories: %s
Rules: use "Intimate / Quality Time" for family and personal time (calls with parents, dates). Use "Work (active)" for focused work and meetings. Use "Work (passive)" only for background listening or reading. Use "Life essentials" for meals, hygiene and household upkeep.`,
		strings.Join(CanonicalCategories, ", "))

	resp, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: p.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(fmt.Sprintf("Title: %q", title)),
		},
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &shared.ResponseFormatJSONSchemaParam{
				JSONSchema: shared.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:        "categorization",
					Description: openai.String("The chosen category"),
					Schema:      categorizationSchema,
					Strict:      openai.Bool(true),
				},
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("openai categorize: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai categorize: empty response")
	}

	var out categorization
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &out); err != nil {
		return "", fmt.Errorf("openai categorize: parsing response: %w", err)
	}

	for _, c := range CanonicalCategories {
		if strings.EqualFold(strings.TrimSpace(out.Category), c) {
			return c, nil
		}
	}
	return Suggest(title, ""), nil
}
