package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.uber.org/zap"
)

// classifierInstruction constrains the model to the intent envelope the
// dialogue understands. The intent set must stay in sync with the Intent
// constants.
const classifierInstruction = `You classify messages sent to a city services assistant.
Respond with a single JSON object and nothing else:
{"intent": "...", "entities": {...}, "confidence": 0.0}

Intents: STATUS_CHECK, REPORT_ISSUE, ESCALATE, GENERAL_INQUIRY, GREETING, CONFIRM, RESTART.
Entities to extract when present: request_number (format NN-NNNNNNNN), issue_type, location, description, topic.
Confidence is your certainty in [0,1].`

// OpenAIClassifier implements intent classification with the OpenAI Chat
// Completions API constrained to a JSON envelope.
type OpenAIClassifier struct {
	client openai.Client
	model  string
	logger *zap.Logger
}

// NewOpenAIClassifier creates an OpenAI-backed classifier. An empty model
// falls back to gpt-4o-mini.
func NewOpenAIClassifier(apiKey, model string, logger *zap.Logger) *OpenAIClassifier {
	if model == "" {
		model = openai.ChatModelGPT4oMini
	}
	return &OpenAIClassifier{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
		logger: logger,
	}
}

// Classify sends the history and message to the model and parses the JSON
// envelope out of the completion.
func (c *OpenAIClassifier) Classify(ctx context.Context, text string, history []Turn) (*Classification, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(history)+2)
	messages = append(messages, openai.SystemMessage(classifierInstruction))
	for _, turn := range history {
		if turn.Role == "user" {
			messages = append(messages, openai.UserMessage(turn.Text))
		} else {
			messages = append(messages, openai.AssistantMessage(turn.Text))
		}
	}
	messages = append(messages, openai.UserMessage(text))

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages:            messages,
		Model:               c.model,
		Temperature:         openai.Float(0),
		MaxCompletionTokens: openai.Int(256),
	})
	if err != nil {
		return nil, NewUnavailableError("openai", "chat completion failed", err)
	}
	if len(resp.Choices) == 0 {
		return nil, NewInvalidResponseError("openai", "no choices returned", nil)
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	content = stripCodeFence(content)

	var wire classifyResponse
	if err := json.Unmarshal([]byte(content), &wire); err != nil {
		return nil, NewInvalidResponseError("openai", fmt.Sprintf("unparseable envelope: %q", content), err)
	}

	result := &Classification{
		Intent:     ParseIntent(wire.Intent),
		Entities:   wire.Entities,
		Confidence: clampConfidence(wire.Confidence),
	}

	c.logger.Debug("message classified",
		zap.String("provider", "openai"),
		zap.String("intent", string(result.Intent)),
		zap.Float64("confidence", result.Confidence))

	return result, nil
}

// stripCodeFence removes a markdown code fence the model sometimes wraps the
// JSON in despite the instruction.
func stripCodeFence(content string) string {
	if !strings.HasPrefix(content, "```") {
		return content
	}
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	return strings.TrimSpace(content)
}
