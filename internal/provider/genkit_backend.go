package provider

import (
	"context"
	"fmt"

	"github.com/baidakovil/rca"
	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
)

// genkitBackend is the network-bound ChatBackend for remote and
// local-served provider kinds.
type genkitBackend struct {
	g           *genkit.Genkit
	model       string
	temperature float64
	tools       []ai.Tool
}

// Generate implements rca.ChatBackend.
func (b *genkitBackend) Generate(ctx context.Context, history []rca.Message) (*rca.ModelReply, error) {
	messages := make([]*ai.Message, 0, len(history))
	for _, msg := range history {
		messages = append(messages, convertMessage(msg))
	}

	opts := []ai.GenerateOption{
		ai.WithModelName(b.model),
		ai.WithMessages(messages...),
		ai.WithConfig(&ai.GenerationCommonConfig{Temperature: b.temperature}),
	}
	if len(b.tools) > 0 {
		refs := make([]ai.ToolRef, 0, len(b.tools))
		for _, tool := range b.tools {
			refs = append(refs, tool)
		}
		opts = append(opts, ai.WithTools(refs...))
		// Tool requests come back to the agent loop instead of running
		// inside the transport
		opts = append(opts, ai.WithReturnToolRequests(true))
	}

	resp, err := genkit.Generate(ctx, b.g, opts...)
	if err != nil {
		return nil, fmt.Errorf("model generation failed: %w", err)
	}

	reply := &rca.ModelReply{Text: resp.Text()}

	if resp.Message != nil {
		for _, part := range resp.Message.Content {
			if !part.IsToolRequest() {
				continue
			}
			req := part.ToolRequest
			input, ok := req.Input.(map[string]interface{})
			if !ok && req.Input != nil {
				input = map[string]interface{}{"value": req.Input}
			}
			reply.ToolCalls = append(reply.ToolCalls, rca.ToolCall{
				Name:  req.Name,
				Input: input,
				Ref:   req.Ref,
			})
		}
	}

	return reply, nil
}

// convertMessage maps a history entry onto the transport's message type.
func convertMessage(msg rca.Message) *ai.Message {
	switch msg.Role {
	case rca.RoleSystem:
		return ai.NewMessage(ai.RoleSystem, nil, ai.NewTextPart(msg.Content))
	case rca.RoleAssistant:
		return ai.NewMessage(ai.RoleModel, nil, ai.NewTextPart(msg.Content))
	case rca.RoleTool:
		return ai.NewMessage(ai.RoleTool, nil, ai.NewToolResponsePart(&ai.ToolResponse{
			Name:   msg.ToolName,
			Output: map[string]interface{}{"content": msg.Content},
		}))
	default:
		return ai.NewMessage(ai.RoleUser, nil, ai.NewTextPart(msg.Content))
	}
}
