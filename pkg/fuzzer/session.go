// Package fuzzer contains the session state machine driving one fuzzing
// conversation and the worker pool that keeps a fixed number of sessions
// alive.
package fuzzer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/tact-lang/llm-fuzz/pkg/compiler"
	"github.com/tact-lang/llm-fuzz/pkg/logging"
	"github.com/tact-lang/llm-fuzz/pkg/service"
)

// Gateway compiles one snippet under a unique identifier.
type Gateway interface {
	Compile(ctx context.Context, snippetID, code string) (compiler.Result, error)
}

// Sink records confirmed issue reports.
type Sink interface {
	Append(body string) error
}

// Summary describes what a session did over its lifetime.
type Summary struct {
	AgentID   int
	RunPrefix string
	Snippets  []string
	Citations []string
	Reported  bool
	Reason    string
}

const reportAcknowledgement = "\n\nIssue reported. Stopping agent.\n\n"

// Session owns one conversation with the tool-calling service. It is not
// safe for concurrent use; each session runs on its own goroutine.
type Session struct {
	id      int
	prefix  string
	svc     service.TurnService
	gateway Gateway
	sink    Sink
	log     *slog.Logger

	snippetSeq int
	snippets   []string
	citations  map[string]struct{}
	reported   bool
	reason     string
}

// NewSession builds a session with a fresh artifact namespace. The random
// prefix component keeps snippet paths distinct even across process
// restarts that reuse agent IDs.
func NewSession(id int, svc service.TurnService, gateway Gateway, sink Sink, log *slog.Logger) *Session {
	prefix := fmt.Sprintf("agent%d_%s", id, strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return &Session{
		id:        id,
		prefix:    prefix,
		svc:       svc,
		gateway:   gateway,
		sink:      sink,
		log:       log.With(slog.Int("agent", id)),
		citations: make(map[string]struct{}),
	}
}

func (s *Session) RunPrefix() string { return s.prefix }

// Summary reports the session's accumulated state. Call after Run returns.
func (s *Session) Summary() Summary {
	return Summary{
		AgentID:   s.id,
		RunPrefix: s.prefix,
		Snippets:  append([]string{}, s.snippets...),
		Citations: s.sortedCitations(),
		Reported:  s.reported,
		Reason:    s.reason,
	}
}

// Run drives the conversation until the agent files a confirmed issue. The
// returned error reflects an unrecoverable service or sink failure; failed
// compiles and malformed tool calls are ordinary outcomes handled in place.
func (s *Session) Run(ctx context.Context, knownIssues string) error {
	turn, err := s.svc.CreateTurn(ctx, service.Request{
		System:   systemPrompt(knownIssues),
		Messages: []string{openingInstruction},
	})
	if err != nil {
		return fmt.Errorf("open conversation: %w", err)
	}
	s.log.Info("conversation opened", slog.String("turn", turn.ID))

	for {
		next, done, err := s.processTurn(ctx, turn)
		if err != nil {
			return err
		}
		if done {
			s.log.Log(ctx, logging.LevelSuccess, "session finished with confirmed issue")
			return nil
		}
		turn = next
	}
}

// processTurn handles one response from the service and issues the next
// request. At most one compile call is dispatched per turn; items after it
// are deferred to the agent's next response.
func (s *Session) processTurn(ctx context.Context, turn *service.Turn) (*service.Turn, bool, error) {
	if len(turn.Items) == 0 {
		next, err := s.requestContinuation(ctx, turn.ID)
		return next, false, err
	}

	s.collectCitations(turn)

	for _, item := range turn.Items {
		switch item.Kind {
		case service.KindToolCall:
			switch item.Name {
			case service.ToolCompile:
				next, handled, err := s.handleCompile(ctx, turn.ID, item)
				if err != nil {
					return nil, false, err
				}
				if handled {
					return next, false, nil
				}
				// Malformed arguments: skip and keep scanning.
			case service.ToolReport:
				return s.handleReport(ctx, turn.ID, item)
			default:
				s.log.Warn("unknown tool requested", slog.String("tool", item.Name))
			}
		case service.KindMessage:
			s.log.Info("agent message", slog.String("text", truncate(item.Text, maxExcerptLen)))
		case service.KindSearchCall:
			s.log.Info("agent is searching the documentation")
		case service.KindReasoning:
			s.log.Info("agent is thinking")
		case service.KindOther:
			s.log.Info("unrecognized item", slog.String("item", truncate(item.Raw, maxExcerptLen)))
		}
	}

	// No actionable tool call in this turn; the session must never idle.
	next, err := s.requestContinuation(ctx, turn.ID)
	return next, false, err
}

// handleCompile dispatches one compile tool call and sends its output back
// as the next turn's input. The handled flag is false when the arguments
// could not be decoded, in which case no request was issued.
func (s *Session) handleCompile(ctx context.Context, turnID string, item service.Item) (*service.Turn, bool, error) {
	var args service.CompileArguments
	if err := json.Unmarshal([]byte(item.Arguments), &args); err != nil {
		s.log.Error("could not parse compile_snippet arguments", slog.Any("error", err))
		return nil, false, nil
	}

	s.snippetSeq++
	snippetID := fmt.Sprintf("%s_%d", s.prefix, s.snippetSeq)
	s.log.Info("compiling snippet", slog.String("snippet", snippetID))

	result, err := s.gateway.Compile(ctx, snippetID, args.Code)
	output := result.Output
	if err != nil {
		// Local gateway trouble is reported back to the agent as the tool
		// output rather than ending the session.
		s.log.Error("compile gateway failure", slog.String("snippet", snippetID), slog.Any("error", err))
		output = fmt.Sprintf("compile_snippet failed: %v", err)
	} else {
		s.snippets = append(s.snippets, result.Path)
		if result.Succeeded {
			s.log.Log(ctx, logging.LevelSuccess, "snippet compiled", slog.String("path", result.Path))
		} else {
			s.log.Warn("snippet rejected by compiler", slog.String("snippet", snippetID))
		}
	}

	req := service.Request{
		PreviousID:  turnID,
		ToolOutputs: []service.ToolOutput{{CallID: item.CallID, Output: output}},
	}
	if err == nil && compiler.LooksLikeBug(result.Output, result.Succeeded) {
		s.log.Warn("potential bug discovered in compiler output", slog.String("snippet", snippetID))
		req.Messages = append(req.Messages, bugReportDirective(snippetID, result.Output))
	}

	next, err := s.svc.CreateTurn(ctx, req)
	if err != nil {
		return nil, false, fmt.Errorf("return compile result: %w", err)
	}
	return next, true, nil
}

// handleReport persists a confirmed issue and terminates the session, or
// acknowledges a self-diagnosed malfunction and prods the agent onward.
func (s *Session) handleReport(ctx context.Context, turnID string, item service.Item) (*service.Turn, bool, error) {
	var args service.ReportArguments
	if err := json.Unmarshal([]byte(item.Arguments), &args); err != nil {
		args = service.ReportArguments{Reason: "No reason provided due to a malformed tool call.", FoundIssue: false}
	}
	s.log.Warn("report_issue invoked",
		slog.Bool("found_issue", args.FoundIssue),
		slog.String("reason", truncate(args.Reason, maxExcerptLen)))

	if args.FoundIssue {
		if err := s.sink.Append(s.reportBody(args.Reason)); err != nil {
			return nil, false, fmt.Errorf("record issue: %w", err)
		}
		s.reported = true
		s.reason = args.Reason
		s.log.Info("issue recorded in report store")
	} else {
		s.log.Info("found_issue is false; report discarded")
	}

	next, err := s.svc.CreateTurn(ctx, service.Request{
		PreviousID:  turnID,
		ToolOutputs: []service.ToolOutput{{CallID: item.CallID, Output: reportAcknowledgement}},
	})
	if err != nil {
		return nil, false, fmt.Errorf("acknowledge report: %w", err)
	}

	if args.FoundIssue {
		return nil, true, nil
	}

	// A false report is the agent flagging its own malfunction; push it to
	// resume fuzzing instead of stopping.
	next, err = s.requestContinuation(ctx, next.ID)
	return next, false, err
}

func (s *Session) requestContinuation(ctx context.Context, previousID string) (*service.Turn, error) {
	next, err := s.svc.CreateTurn(ctx, service.Request{
		PreviousID: previousID,
		Messages:   []string{continuationInstruction},
	})
	if err != nil {
		return nil, fmt.Errorf("request continuation: %w", err)
	}
	return next, nil
}

func (s *Session) collectCitations(turn *service.Turn) {
	for _, item := range turn.Items {
		if item.Kind != service.KindMessage {
			continue
		}
		for _, name := range item.Citations {
			s.citations[name] = struct{}{}
		}
	}
}

func (s *Session) sortedCitations() []string {
	names := make([]string, 0, len(s.citations))
	for name := range s.citations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// reportBody renders the self-contained report block appended to the
// shared store.
func (s *Session) reportBody(reason string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "\n\n## Reported Issue by Agent %d\n\n", s.id)
	fmt.Fprintf(&b, "**Issue:**\n%s\n\n", reason)

	b.WriteString("**Compiled Code Snippets:**\n")
	if len(s.snippets) == 0 {
		b.WriteString("No code snippets compiled in this session.\n")
	} else {
		for _, path := range s.snippets {
			fmt.Fprintf(&b, "- [%s](%s)\n", filepath.Base(path), path)
		}
	}

	b.WriteString("\n**Cited Documentation Files:**\n")
	cited := s.sortedCitations()
	if len(cited) == 0 {
		b.WriteString("No cited documentation files.\n")
	} else {
		for _, name := range cited {
			fmt.Fprintf(&b, "- %s\n", name)
		}
	}
	b.WriteString("\n")

	return b.String()
}
