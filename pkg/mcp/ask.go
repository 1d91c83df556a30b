package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/papercomputeco/askstream/pkg/ask"
	"github.com/papercomputeco/askstream/pkg/session"
)

var (
	askToolName    = "ask"
	askDescription = "Ask the retrieval-augmented ask service a question. Returns the complete answer and the source passages it was grounded on. Pass a thread to keep related questions in one conversation."
)

// AskInput represents the input arguments for the ask tool.
type AskInput struct {
	Question string `json:"question" jsonschema:"the question to ask"`
	Thread   string `json:"thread,omitempty" jsonschema:"optional conversation thread ID; questions on the same thread are answered one at a time"`
}

// AskOutput represents the output of the ask tool.
type AskOutput struct {
	Question string       `json:"question"`
	Thread   string       `json:"thread,omitempty"`
	Answer   string       `json:"answer"`
	Sources  []ask.Source `json:"sources"`
}

// handleAsk processes an ask request.
func (s *Server) handleAsk(ctx context.Context, _ *mcp.CallToolRequest, input AskInput) (*mcp.CallToolResult, AskOutput, error) {
	logger := s.config.Logger

	if input.Question == "" {
		return errorResult("question must not be empty"), AskOutput{}, nil
	}

	logger.Debug("MCP ask request",
		"question", input.Question,
		"thread", input.Thread,
	)

	t := s.thread(input.Thread)
	msg, err := t.Ask(ctx, input.Question)
	if err != nil {
		logger.Error("MCP ask failed", "thread", input.Thread, "error", err)
		return errorResult(fmt.Sprintf("Ask failed: %s", session.Describe(err))), AskOutput{}, nil
	}

	output := AskOutput{
		Question: input.Question,
		Thread:   input.Thread,
		Sources:  []ask.Source{},
	}
	if msg != nil {
		output.Answer = msg.Content
		if len(msg.Sources) > 0 {
			output.Sources = msg.Sources
		}
	}

	jsonBytes, err := json.Marshal(output)
	if err != nil {
		logger.Error("failed to marshal ask output", "error", err)
		return errorResult(fmt.Sprintf("Failed to serialize result: %v", err)), AskOutput{}, nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(jsonBytes)},
		},
	}, output, nil
}

func errorResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}
