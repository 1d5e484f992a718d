package provider

import (
	"context"
	"fmt"

	"github.com/baidakovil/rca"
)

// deterministicBackend is the "fake" provider: a pure function of the
// history with no network or transport dependency. It keeps the whole
// runtime usable without credentials and gives tests a stable reply.
type deterministicBackend struct{}

// NewDeterministicBackend creates the echo backend.
func NewDeterministicBackend() rca.ChatBackend {
	return deterministicBackend{}
}

// Generate implements rca.ChatBackend. The reply echoes the most recent
// user message; when the history ends with a tool result the echo
// covers that instead, so tool round trips stay observable.
func (deterministicBackend) Generate(_ context.Context, history []rca.Message) (*rca.ModelReply, error) {
	for i := len(history) - 1; i >= 0; i-- {
		msg := history[i]
		switch msg.Role {
		case rca.RoleTool:
			return &rca.ModelReply{
				Text: fmt.Sprintf("[provider=fake][tool:%s] %s", msg.ToolName, msg.Content),
			}, nil
		case rca.RoleUser:
			return &rca.ModelReply{
				Text: fmt.Sprintf("[provider=fake][echo] %s", msg.Content),
			}, nil
		}
	}
	return nil, fmt.Errorf("history contains no user message")
}
