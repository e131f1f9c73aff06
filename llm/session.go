package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/toolmesh/broker/broker"
)

const defaultSystemPrompt = `You are a helpful assistant with access to tools.
Use a tool whenever it can answer the question more accurately than you can.
Keep responses concise and practical.`

const (
	defaultMaxTokens = 1024
	defaultMaxTurns  = 10
)

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithModel overrides the default model.
func WithModel(model anthropic.Model) SessionOption {
	return func(s *Session) { s.model = model }
}

// WithSystemPrompt overrides the default system prompt.
func WithSystemPrompt(prompt string) SessionOption {
	return func(s *Session) { s.system = prompt }
}

// WithMaxTokens sets the per-response token budget.
func WithMaxTokens(n int64) SessionOption {
	return func(s *Session) { s.maxTokens = n }
}

// WithMaxTurns bounds the number of model round trips per Run call.
func WithMaxTurns(n int) SessionOption {
	return func(s *Session) { s.maxTurns = n }
}

// WithLogger sets the structured logger for session operations.
func WithLogger(logger *slog.Logger) SessionOption {
	return func(s *Session) { s.logger = logger }
}

// Session runs multi-turn conversations with an Anthropic model, routing
// tool use through a broker. Conversation history accumulates across Run
// calls, so follow-up prompts see earlier turns.
//
// A Session is not safe for concurrent use; run one conversation per
// Session.
type Session struct {
	client anthropic.Client
	broker *broker.Broker

	model     anthropic.Model
	system    string
	maxTokens int64
	maxTurns  int
	logger    *slog.Logger

	messages []anthropic.MessageParam
}

// NewSession creates a Session backed by the given broker. Every tool in
// the broker's registry is advertised to the model.
func NewSession(apiKey string, b *broker.Broker, opts ...SessionOption) (*Session, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key cannot be empty")
	}
	if b == nil {
		return nil, fmt.Errorf("broker cannot be nil")
	}

	s := &Session{
		client:    anthropic.NewClient(option.WithAPIKey(apiKey)),
		broker:    b,
		model:     anthropic.ModelClaudeSonnet4_5,
		system:    defaultSystemPrompt,
		maxTokens: defaultMaxTokens,
		maxTurns:  defaultMaxTurns,
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Run sends a user prompt and drives the conversation until the model
// stops requesting tools, returning the model's final text.
func (s *Session) Run(ctx context.Context, prompt string) (string, error) {
	s.messages = append(s.messages, anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)))

	tools := anthropicTools(DefsFromDescriptors(s.broker.ListTools()))

	for turn := 0; turn < s.maxTurns; turn++ {
		resp, err := s.client.Messages.New(ctx, anthropic.MessageNewParams{
			Model:     s.model,
			MaxTokens: s.maxTokens,
			System: []anthropic.TextBlockParam{
				{Text: s.system},
			},
			Messages: s.messages,
			Tools:    tools,
		})
		if err != nil {
			return "", fmt.Errorf("anthropic: %w", err)
		}

		s.messages = append(s.messages, resp.ToParam())

		var text strings.Builder
		var calls []ToolCall
		for _, block := range resp.Content {
			switch variant := block.AsAny().(type) {
			case anthropic.TextBlock:
				text.WriteString(variant.Text)
			case anthropic.ToolUseBlock:
				calls = append(calls, ToolCall{
					ID:        variant.ID,
					Name:      variant.Name,
					Arguments: variant.JSON.Input.Raw(),
				})
			}
		}

		if len(calls) == 0 {
			return text.String(), nil
		}

		blocks := make([]anthropic.ContentBlockParamUnion, 0, len(calls))
		for _, call := range calls {
			result := s.invokeTool(ctx, call)
			blocks = append(blocks, anthropic.NewToolResultBlock(result.ToolCallID, result.Content, result.IsError))
		}
		s.messages = append(s.messages, anthropic.NewUserMessage(blocks...))
	}

	return "", fmt.Errorf("conversation exceeded %d turns without completing", s.maxTurns)
}

// invokeTool routes a single tool call through the broker. The tool call
// ID becomes the invocation's correlation id, so the broker's result is
// guaranteed to belong to this call.
func (s *Session) invokeTool(ctx context.Context, call ToolCall) ToolResult {
	args, err := call.ArgumentsMap()
	if err != nil {
		return NewToolError(call.ID, err.Error())
	}

	s.logger.Debug("invoking tool",
		"tool", call.Name,
		"correlation_id", call.ID,
	)

	res := s.broker.Invoke(ctx, broker.Request{
		CorrelationID: call.ID,
		Tool:          call.Name,
		Arguments:     args,
	})
	if !res.OK {
		return NewToolError(call.ID, fmt.Sprintf("%s: %s", res.ErrorKind, res.ErrorMessage))
	}

	return NewToolResult(call.ID, res.Payload)
}

// anthropicTools converts tool definitions into the wire format the
// Messages API expects.
func anthropicTools(defs []ToolDef) []anthropic.ToolUnionParam {
	tools := make([]anthropic.ToolUnionParam, 0, len(defs))
	for _, def := range defs {
		tools = append(tools, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        def.Name,
				Description: anthropic.String(def.Description),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: def.Schema.Properties,
					Required:   def.Schema.Required,
				},
			},
		})
	}
	return tools
}
