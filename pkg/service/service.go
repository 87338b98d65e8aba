// Package service defines the conversation contract with the external
// tool-calling service, the turn item model consumed by sessions, and the
// OpenAI-backed implementation.
package service

import "context"

// ItemKind is the closed set of turn item variants a session dispatches on.
type ItemKind int

const (
	KindToolCall ItemKind = iota
	KindMessage
	KindSearchCall
	KindReasoning
	KindOther
)

// Item is one element of a turn's output.
type Item struct {
	Kind ItemKind

	// Tool call fields, set when Kind == KindToolCall.
	Name      string
	CallID    string
	Arguments string

	// Message fields, set when Kind == KindMessage. Citations lists the
	// documentation filenames attached to the message text.
	Text      string
	Citations []string

	// Raw summarizes items the session does not recognize.
	Raw string
}

// ToolOutput feeds the result of a handled tool call back into the
// conversation.
type ToolOutput struct {
	CallID string
	Output string
}

// Request describes one turn request. PreviousID is the continuation token
// of the prior turn; it is empty only on the opening turn, which carries
// the system message.
type Request struct {
	PreviousID  string
	System      string
	Messages    []string
	ToolOutputs []ToolOutput
}

// Turn is one response from the service: the new continuation token and
// the ordered items produced by the agent.
type Turn struct {
	ID    string
	Items []Item
}

// TurnService is the conversation collaborator injected into every session.
// Implementations must keep the fixed tool catalogue attached to each
// request so the agent can always act.
type TurnService interface {
	CreateTurn(ctx context.Context, req Request) (*Turn, error)
}
