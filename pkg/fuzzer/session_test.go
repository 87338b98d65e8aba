package fuzzer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tact-lang/llm-fuzz/pkg/compiler"
	"github.com/tact-lang/llm-fuzz/pkg/logging"
	"github.com/tact-lang/llm-fuzz/pkg/service"
)

var errScriptExhausted = errors.New("script exhausted")

// scriptedService plays back a fixed sequence of turns and records every
// request the session issues.
type scriptedService struct {
	turns []service.Turn
	calls []service.Request
	next  int
}

func (s *scriptedService) CreateTurn(_ context.Context, req service.Request) (*service.Turn, error) {
	s.calls = append(s.calls, req)
	if s.next >= len(s.turns) {
		return nil, errScriptExhausted
	}
	turn := s.turns[s.next]
	s.next++
	return &turn, nil
}

type stubGateway struct {
	result compiler.Result
	err    error
	ids    []string
	codes  []string
}

func (g *stubGateway) Compile(_ context.Context, snippetID, code string) (compiler.Result, error) {
	g.ids = append(g.ids, snippetID)
	g.codes = append(g.codes, code)
	return g.result, g.err
}

type memorySink struct {
	mu     sync.Mutex
	bodies []string
	err    error
}

func (m *memorySink) Append(body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.bodies = append(m.bodies, body)
	return nil
}

func testLogger() *slog.Logger {
	return logging.New(io.Discard, slog.LevelDebug, false)
}

func toolCall(name, callID, args string) service.Item {
	return service.Item{Kind: service.KindToolCall, Name: name, CallID: callID, Arguments: args}
}

func TestSessionCompileBugThenConfirmedReport(t *testing.T) {
	t.Parallel()

	svc := &scriptedService{turns: []service.Turn{
		{ID: "r1", Items: []service.Item{toolCall(service.ToolCompile, "c1", `{"code":"broken"}`)}},
		{ID: "r2", Items: []service.Item{toolCall(service.ToolReport, "c2", `{"reason":"confirmed crash","found_issue":true}`)}},
		{ID: "r3"},
	}}
	gateway := &stubGateway{result: compiler.Result{
		Output:    "internal compiler error: stack overflow",
		Succeeded: false,
		Path:      "tmp/broken.tact",
	}}
	sink := &memorySink{}

	session := NewSession(7, svc, gateway, sink, testLogger())
	require.NoError(t, session.Run(context.Background(), "known"))

	// The gateway saw the decoded snippet under the session's namespace.
	require.Equal(t, []string{"broken"}, gateway.codes)
	snippetID := session.RunPrefix() + "_1"
	assert.Equal(t, []string{snippetID}, gateway.ids)

	require.Len(t, svc.calls, 3)

	// The opening request seeds the conversation.
	opening := svc.calls[0]
	assert.Empty(t, opening.PreviousID)
	assert.Contains(t, opening.System, "known")
	require.Len(t, opening.Messages, 1)

	// The compile result went back verbatim, together with the report
	// directive referencing the snippet and its output.
	resultReq := svc.calls[1]
	assert.Equal(t, "r1", resultReq.PreviousID)
	require.Len(t, resultReq.ToolOutputs, 1)
	assert.Equal(t, "c1", resultReq.ToolOutputs[0].CallID)
	assert.Equal(t, "internal compiler error: stack overflow", resultReq.ToolOutputs[0].Output)
	require.Len(t, resultReq.Messages, 1)
	assert.Contains(t, resultReq.Messages[0], snippetID)
	assert.Contains(t, resultReq.Messages[0], "internal compiler error: stack overflow")

	// The report was acknowledged and no further turn was requested.
	ack := svc.calls[2]
	assert.Equal(t, "r2", ack.PreviousID)
	require.Len(t, ack.ToolOutputs, 1)
	assert.Equal(t, "c2", ack.ToolOutputs[0].CallID)

	// Exactly one sink record, naming agent and snippet.
	require.Len(t, sink.bodies, 1)
	assert.Contains(t, sink.bodies[0], "## Reported Issue by Agent 7")
	assert.Contains(t, sink.bodies[0], "confirmed crash")
	assert.Contains(t, sink.bodies[0], "broken.tact")

	summary := session.Summary()
	assert.True(t, summary.Reported)
	assert.Equal(t, "confirmed crash", summary.Reason)
	assert.Equal(t, []string{"tmp/broken.tact"}, summary.Snippets)
}

func TestSessionBugDirectiveTruncatesLongOutput(t *testing.T) {
	t.Parallel()

	longOutput := strings.Repeat("x", 500)
	svc := &scriptedService{turns: []service.Turn{
		{ID: "r1", Items: []service.Item{toolCall(service.ToolCompile, "c1", `{"code":"a"}`)}},
	}}
	gateway := &stubGateway{result: compiler.Result{Output: longOutput, Succeeded: false, Path: "tmp/a.tact"}}

	session := NewSession(1, svc, gateway, &memorySink{}, testLogger())
	err := session.Run(context.Background(), "")
	require.ErrorIs(t, err, errScriptExhausted)

	require.Len(t, svc.calls, 2)
	require.Len(t, svc.calls[1].Messages, 1)
	directive := svc.calls[1].Messages[0]
	assert.Contains(t, directive, strings.Repeat("x", 200)+"...")
	assert.NotContains(t, directive, strings.Repeat("x", 201))
}

func TestSessionExpectedFailureCarriesNoDirective(t *testing.T) {
	t.Parallel()

	svc := &scriptedService{turns: []service.Turn{
		{ID: "r1", Items: []service.Item{toolCall(service.ToolCompile, "c1", `{"code":"a"}`)}},
		{ID: "r2", Items: []service.Item{toolCall(service.ToolCompile, "c2", `{"code":"b"}`)}},
	}}
	gateway := &stubGateway{result: compiler.Result{Output: "tact compilation failed", Succeeded: false, Path: "tmp/a.tact"}}

	session := NewSession(1, svc, gateway, &memorySink{}, testLogger())
	err := session.Run(context.Background(), "")
	require.ErrorIs(t, err, errScriptExhausted)

	// Two compiles, strictly increasing snippet identifiers, no directives.
	prefix := session.RunPrefix()
	assert.Equal(t, []string{prefix + "_1", prefix + "_2"}, gateway.ids)
	assert.Empty(t, svc.calls[1].Messages)
	assert.Empty(t, svc.calls[2].Messages)
}

func TestSessionFalseReportContinues(t *testing.T) {
	t.Parallel()

	svc := &scriptedService{turns: []service.Turn{
		{ID: "r1", Items: []service.Item{toolCall(service.ToolReport, "c1", `{"reason":"stuck in a loop","found_issue":false}`)}},
		{ID: "r2"},
		{ID: "r3", Items: []service.Item{toolCall(service.ToolReport, "c2", `{"reason":"real issue","found_issue":true}`)}},
		{ID: "r4"},
	}}
	sink := &memorySink{}

	session := NewSession(3, svc, &stubGateway{}, sink, testLogger())
	require.NoError(t, session.Run(context.Background(), ""))

	require.Len(t, svc.calls, 4)

	// The false report was acknowledged, then the session was prodded on.
	assert.Equal(t, "c1", svc.calls[1].ToolOutputs[0].CallID)
	require.Len(t, svc.calls[2].Messages, 1)
	assert.Equal(t, continuationInstruction, svc.calls[2].Messages[0])
	assert.Equal(t, "r2", svc.calls[2].PreviousID)

	// Only the confirmed report reached the sink.
	require.Len(t, sink.bodies, 1)
	assert.Contains(t, sink.bodies[0], "real issue")
	assert.NotContains(t, sink.bodies[0], "stuck in a loop")
}

func TestSessionEmptyTurnRequestsContinuation(t *testing.T) {
	t.Parallel()

	svc := &scriptedService{turns: []service.Turn{{ID: "r1"}}}

	session := NewSession(1, svc, &stubGateway{}, &memorySink{}, testLogger())
	err := session.Run(context.Background(), "")
	require.ErrorIs(t, err, errScriptExhausted)

	require.Len(t, svc.calls, 2)
	assert.Equal(t, "r1", svc.calls[1].PreviousID)
	require.Len(t, svc.calls[1].Messages, 1)
	assert.Equal(t, continuationInstruction, svc.calls[1].Messages[0])
}

func TestSessionMalformedCompileArgumentsAreSkipped(t *testing.T) {
	t.Parallel()

	svc := &scriptedService{turns: []service.Turn{
		{ID: "r1", Items: []service.Item{toolCall(service.ToolCompile, "c1", `{not json`)}},
	}}
	gateway := &stubGateway{}

	session := NewSession(1, svc, gateway, &memorySink{}, testLogger())
	err := session.Run(context.Background(), "")
	require.ErrorIs(t, err, errScriptExhausted)

	// The gateway was never invoked and the session asked to continue.
	assert.Empty(t, gateway.ids)
	require.Len(t, svc.calls, 2)
	require.Len(t, svc.calls[1].Messages, 1)
	assert.Equal(t, continuationInstruction, svc.calls[1].Messages[0])
}

func TestSessionObservationItemsNeverAlterControlFlow(t *testing.T) {
	t.Parallel()

	svc := &scriptedService{turns: []service.Turn{
		{ID: "r1", Items: []service.Item{
			{Kind: service.KindMessage, Text: "exploring initOf", Citations: []string{"expressions.md", "contracts.md"}},
			{Kind: service.KindSearchCall},
			{Kind: service.KindReasoning},
			{Kind: service.KindOther, Raw: "web_search_call"},
		}},
		{ID: "r2", Items: []service.Item{
			{Kind: service.KindMessage, Text: "still exploring", Citations: []string{"contracts.md"}},
			toolCall(service.ToolReport, "c1", `{"reason":"mismatch","found_issue":true}`),
		}},
		{ID: "r3"},
	}}
	sink := &memorySink{}

	session := NewSession(2, svc, &stubGateway{}, sink, testLogger())
	require.NoError(t, session.Run(context.Background(), ""))

	// Observation-only turn ended in a continuation request.
	require.Len(t, svc.calls, 3)
	require.Len(t, svc.calls[1].Messages, 1)
	assert.Equal(t, continuationInstruction, svc.calls[1].Messages[0])

	// Citations are accumulated across turns, deduplicated and sorted; no
	// snippets were compiled.
	require.Len(t, sink.bodies, 1)
	body := sink.bodies[0]
	assert.Contains(t, body, "- contracts.md\n- expressions.md")
	assert.Contains(t, body, "No code snippets compiled in this session.")
	assert.Equal(t, 1, strings.Count(body, "contracts.md"))
}

func TestSessionHandlesOneCompilePerTurn(t *testing.T) {
	t.Parallel()

	svc := &scriptedService{turns: []service.Turn{
		{ID: "r1", Items: []service.Item{
			toolCall(service.ToolCompile, "c1", `{"code":"first"}`),
			toolCall(service.ToolCompile, "c2", `{"code":"second"}`),
			toolCall(service.ToolReport, "c3", `{"reason":"x","found_issue":true}`),
		}},
	}}
	gateway := &stubGateway{result: compiler.Result{Output: "tact compilation failed", Succeeded: false, Path: "tmp/a.tact"}}
	sink := &memorySink{}

	session := NewSession(1, svc, gateway, sink, testLogger())
	err := session.Run(context.Background(), "")
	require.ErrorIs(t, err, errScriptExhausted)

	// Only the first compile was dispatched; the trailing tool calls wait
	// for the agent's next response, which the script never delivers.
	assert.Equal(t, []string{"first"}, gateway.codes)
	require.Len(t, svc.calls, 2)
	require.Len(t, svc.calls[1].ToolOutputs, 1)
	assert.Equal(t, "c1", svc.calls[1].ToolOutputs[0].CallID)
	assert.Empty(t, sink.bodies)
}

func TestSessionMalformedCompileThenValidCompileInOneTurn(t *testing.T) {
	t.Parallel()

	svc := &scriptedService{turns: []service.Turn{
		{ID: "r1", Items: []service.Item{
			toolCall(service.ToolCompile, "c1", `{broken`),
			toolCall(service.ToolCompile, "c2", `{"code":"valid"}`),
		}},
	}}
	gateway := &stubGateway{result: compiler.Result{Output: "ok", Succeeded: true, Path: "snippets/a.tact"}}

	session := NewSession(1, svc, gateway, &memorySink{}, testLogger())
	err := session.Run(context.Background(), "")
	require.ErrorIs(t, err, errScriptExhausted)

	// The malformed call is skipped and scanning continues to the next
	// item in the same turn.
	assert.Equal(t, []string{"valid"}, gateway.codes)
	assert.Equal(t, []string{session.RunPrefix() + "_1"}, gateway.ids)
	require.Len(t, svc.calls, 2)
	require.Len(t, svc.calls[1].ToolOutputs, 1)
	assert.Equal(t, "c2", svc.calls[1].ToolOutputs[0].CallID)
}

func TestSessionMalformedReportArgumentsDefaultToFalse(t *testing.T) {
	t.Parallel()

	svc := &scriptedService{turns: []service.Turn{
		{ID: "r1", Items: []service.Item{toolCall(service.ToolReport, "c1", `{broken`)}},
		{ID: "r2"},
	}}
	sink := &memorySink{}

	session := NewSession(1, svc, &stubGateway{}, sink, testLogger())
	err := session.Run(context.Background(), "")
	require.ErrorIs(t, err, errScriptExhausted)

	// Nothing was persisted and the session kept going.
	assert.Empty(t, sink.bodies)
	require.Len(t, svc.calls, 3)
	assert.Equal(t, "c1", svc.calls[1].ToolOutputs[0].CallID)
}

func TestSessionGatewayErrorIsReportedToAgent(t *testing.T) {
	t.Parallel()

	svc := &scriptedService{turns: []service.Turn{
		{ID: "r1", Items: []service.Item{toolCall(service.ToolCompile, "c1", `{"code":"a"}`)}},
	}}
	gateway := &stubGateway{err: errors.New("disk full")}

	session := NewSession(1, svc, gateway, &memorySink{}, testLogger())
	err := session.Run(context.Background(), "")
	require.ErrorIs(t, err, errScriptExhausted)

	require.Len(t, svc.calls, 2)
	assert.Contains(t, svc.calls[1].ToolOutputs[0].Output, "disk full")
	// A local gateway failure is not classified as a bug.
	assert.Empty(t, svc.calls[1].Messages)
	// The failed attempt is not recorded as an artifact.
	assert.Empty(t, session.Summary().Snippets)
}

func TestSessionSinkFailureSurfacesAsTerminalError(t *testing.T) {
	t.Parallel()

	svc := &scriptedService{turns: []service.Turn{
		{ID: "r1", Items: []service.Item{toolCall(service.ToolReport, "c1", `{"reason":"x","found_issue":true}`)}},
	}}
	sink := &memorySink{err: errors.New("store unavailable")}

	session := NewSession(1, svc, &stubGateway{}, sink, testLogger())
	err := session.Run(context.Background(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "record issue")
}

func TestSessionRunPrefixesAreUnique(t *testing.T) {
	t.Parallel()

	// Identities are never reused by the pool, so every session carries a
	// distinct id; the random part additionally separates sessions across
	// process restarts.
	seen := make(map[string]struct{})
	for i := 0; i < 1000; i++ {
		session := NewSession(i+1, nil, nil, nil, testLogger())
		seen[session.RunPrefix()] = struct{}{}
	}
	assert.Len(t, seen, 1000)
}
