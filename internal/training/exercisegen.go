package training

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"

	"github.com/jhellman/mesoapp/internal/errors"
)

// ExerciseGenerator fills in exercise details from a bare name using the
// OpenAI API.
type ExerciseGenerator struct {
	client openai.Client
}

// NewExerciseGenerator creates a generator backed by the OpenAI API.
func NewExerciseGenerator(apiKey string) *ExerciseGenerator {
	return &ExerciseGenerator{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
	}
}

// Generate produces a complete exercise for the given name. muscleGroups is
// the allowed vocabulary; the model is constrained to it through the response
// schema and the result is validated against it again.
func (g *ExerciseGenerator) Generate(ctx context.Context, name string, muscleGroups []string) (Exercise, error) {
	if name == "" {
		return Exercise{}, errors.New("exercise name cannot be empty")
	}

	prompt := fmt.Sprintf(`Generate a detailed exercise description for "%s".
Include the appropriate category (full_body, upper, or lower), whether the
exercise is weighted or bodyweight, the primary and secondary muscle groups it
targets, and a markdown description following this exact structure:

## Instructions
[Provide 3-5 numbered steps explaining how to perform the exercise correctly]

## Common Mistakes
[List 3-4 common form errors as bullet points]

## Resources
[Include 2-3 placeholder links for videos and guides]

Important guidelines:
- Instructions should be clear, concise, and focus on proper form
- Use simple, direct language that beginners can understand
- Highlight safety considerations where relevant
- For the Resources section, use placeholder URLs (https://example.com/resource-name)

The description should be comprehensive yet concise, totaling around 150-200 words.`, name)

	chat, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &shared.ResponseFormatJSONSchemaParam{
				JSONSchema: shared.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:        "exercise",
					Description: openai.String("Detailed information about a fitness exercise"),
					Schema:      exerciseJSONSchema{muscleGroups: muscleGroups},
					Strict:      openai.Bool(true),
				},
			},
		},
		Model: openai.ChatModelGPT4o,
	})
	if err != nil {
		return Exercise{}, fmt.Errorf("chat completion: %w", err)
	}
	if len(chat.Choices) == 0 {
		return Exercise{}, errors.New("chat completion returned no choices")
	}

	var exercise Exercise
	if err = json.Unmarshal([]byte(chat.Choices[0].Message.Content), &exercise); err != nil {
		return Exercise{}, fmt.Errorf("parse exercise response: %w", err)
	}
	exercise.ID = 0

	if exercise.Name == "" || exercise.Category == "" || exercise.DescriptionMarkdown == "" {
		return Exercise{}, errors.New("generated exercise is missing required fields")
	}
	if exercise.ExerciseType == "" {
		exercise.ExerciseType = ExerciseTypeWeighted
	}
	if len(exercise.PrimaryMuscleGroups) == 0 {
		return Exercise{}, errors.New("generated exercise has no primary muscle groups")
	}
	for _, group := range slices.Concat(exercise.PrimaryMuscleGroups, exercise.SecondaryMuscleGroups) {
		if !slices.Contains(muscleGroups, group) {
			return Exercise{}, fmt.Errorf("invalid muscle group %q", group)
		}
	}

	return exercise, nil
}

// exerciseJSONSchema renders the structured-output schema with the allowed
// muscle group names baked into the enums.
type exerciseJSONSchema struct {
	muscleGroups []string
}

func (ejs exerciseJSONSchema) MarshalJSON() ([]byte, error) {
	muscleGroupsJSON, err := json.Marshal(ejs.muscleGroups)
	if err != nil {
		return nil, fmt.Errorf("marshal muscle groups: %w", err)
	}

	return fmt.Appendf(nil, `{
		  "type": "object",
		  "additionalProperties": false,
		  "required": [
			"name",
			"category",
			"exercise_type",
			"description_markdown",
			"primary_muscle_groups",
			"secondary_muscle_groups"
		  ],
		  "properties": {
			"name": {
			  "type": "string",
			  "description": "Name of the exercise"
			},
			"category": {
			  "type": "string",
			  "description": "Category of the exercise",
			  "enum": ["full_body", "upper", "lower"]
			},
			"exercise_type": {
			  "type": "string",
			  "description": "Whether the exercise uses external load",
			  "enum": ["weighted", "bodyweight"]
			},
			"description_markdown": {
			  "type": "string",
			  "description": "Markdown description of the exercise"
			},
			"primary_muscle_groups": {
			  "type": "array",
			  "description": "Primary muscle groups targeted by the exercise",
			  "items": {
				"type": "string",
				"enum": %s
			  }
			},
			"secondary_muscle_groups": {
			  "type": "array",
			  "description": "Secondary muscle groups targeted by the exercise",
			  "items": {
				"type": "string",
				"enum": %s
			  }
			}
		  }
		}`, muscleGroupsJSON, muscleGroupsJSON), nil
}
