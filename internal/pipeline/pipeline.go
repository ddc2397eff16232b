// Package pipeline implements the five-phase query orchestrator that turns
// a single question into a streamed, progressively rendered answer: query
// understanding, parallel retrieval, context assembly, streamed generation,
// and post-processing.
package pipeline

import (
	"context"
	"time"

	"ragserver/internal/events"
	"ragserver/internal/logging"
	"ragserver/internal/model"
	"ragserver/internal/ports"
	"ragserver/internal/promptasm"
	"ragserver/internal/ragerr"
	"ragserver/internal/retrieve"
)

// Metrics is the seam every stage reports counts and timings through.
type Metrics interface {
	IncCounter(name string, labels map[string]string)
	ObserveHistogram(name string, value float64, labels map[string]string)
}

// Pipeline wires the retrieval engine, session store, prompt assembler, and
// LLM port into the five ask phases.
type Pipeline struct {
	Relational ports.RelationalStore
	Sessions   ports.SessionStore
	Retrieval  *retrieve.Engine
	LLM        ports.LLM
	Prompt     promptasm.Config
	Metrics    Metrics
}

// New constructs a Pipeline from its dependencies.
func New(relational ports.RelationalStore, sessions ports.SessionStore, retrieval *retrieve.Engine, llm ports.LLM, promptCfg promptasm.Config, m Metrics) *Pipeline {
	return &Pipeline{Relational: relational, Sessions: sessions, Retrieval: retrieval, LLM: llm, Prompt: promptCfg, Metrics: m}
}

// Options carries the per-request knobs from the HTTP layer.
type Options struct {
	Language        string
	TopK            int
	EnableExpansion bool
	ExpansionCount  int
}

// Result is the non-streaming equivalent of the events.Complete payload.
type Result struct {
	Answer            string
	ContextCount      int
	ExpandedQuestions []string
	Truncated         bool
}

// Ask runs the full five-phase pipeline and returns the ordered event
// stream on em. The caller ranges over em.Events() until it closes.
// Authorization is checked before any event is emitted; a failure there
// emits a single error event and closes the stream. A cancelled context
// closes the stream with no terminal event at all.
func (p *Pipeline) Ask(ctx context.Context, em *events.Emitter, sessionID, query, ownerID string, fileIDs []string, opts Options) {
	if err := p.authorize(ctx, fileIDs, ownerID); err != nil {
		if ctx.Err() != nil {
			em.Abort()
			return
		}
		p.countAsk("error")
		em.EmitError(string(ragerr.KindOf(err)), err.Error())
		return
	}

	result, err := p.run(ctx, em, sessionID, query, ownerID, fileIDs, opts, true)
	if err != nil {
		if ctx.Err() != nil {
			em.Abort()
			return
		}
		p.countAsk("error")
		em.EmitError(string(ragerr.KindOf(err)), err.Error())
		return
	}

	p.countAsk("complete")
	em.EmitComplete(events.Complete{
		Answer:            result.Answer,
		ContextCount:      result.ContextCount,
		ExpandedQuestions: result.ExpandedQuestions,
		Truncated:         result.Truncated,
	})
}

// AskSync runs the same five phases without streaming token events and
// returns the final answer as a single value.
func (p *Pipeline) AskSync(ctx context.Context, sessionID, query, ownerID string, fileIDs []string, opts Options) (Result, error) {
	if err := p.authorize(ctx, fileIDs, ownerID); err != nil {
		return Result{}, err
	}
	return p.run(ctx, nil, sessionID, query, ownerID, fileIDs, opts, false)
}

// authorize checks that every referenced file exists and is owned by the
// requester, before any phase starts and before anything is emitted.
func (p *Pipeline) authorize(ctx context.Context, fileIDs []string, ownerID string) error {
	for _, fid := range fileIDs {
		file, err := p.Relational.GetFile(ctx, fid)
		if err != nil {
			return ragerr.Wrap(ragerr.NotFound, "lookup file "+fid, err)
		}
		if file.OwnerID != ownerID {
			return ragerr.New(ragerr.Forbidden, "requester does not own file "+fid)
		}
	}
	return nil
}

func (p *Pipeline) run(ctx context.Context, em *events.Emitter, sessionID, query, ownerID string, fileIDs []string, opts Options, streaming bool) (Result, error) {
	if ctx.Err() != nil {
		return Result{}, ctx.Err()
	}

	k := opts.TopK
	if k <= 0 {
		k = 5
	}
	expansionCount := opts.ExpansionCount
	if expansionCount <= 0 {
		expansionCount = 3
	}

	// Phase 1 — query understanding.
	emitProgress(em, 1, 0)
	phaseStart := time.Now()
	subQuestions := []string{query}
	if opts.EnableExpansion {
		subQuestions = p.Retrieval.Expand(ctx, query, expansionCount)
	}
	p.observePhase(1, phaseStart)
	emitProgressExpanded(em, 1, 100, len(subQuestions))

	// Phase 2 — parallel retrieval.
	emitProgress(em, 2, 0)
	phaseStart = time.Now()
	contexts, err := p.Retrieval.Search(ctx, subQuestions, fileIDs, k)
	if err != nil {
		return Result{}, err
	}
	p.observePhase(2, phaseStart)
	emitProgressChunks(em, 2, 100, len(contexts))

	// Phase 3 — context assembly.
	emitProgress(em, 3, 0)
	phaseStart = time.Now()
	history, err := p.recentHistory(ctx, sessionID)
	if err != nil {
		logging.Log.WithError(err).Warn("session history lookup failed, proceeding without history")
		history = nil
	}
	messages, err := promptasm.Build(query, contexts, history, opts.Language, p.Prompt)
	if err != nil {
		return Result{}, ragerr.Wrap(ragerr.Internal, "assembling prompt", err)
	}
	p.observePhase(3, phaseStart)
	emitProgress(em, 3, 100)

	// Phase 4 — response generation.
	emitProgress(em, 4, 0)
	phaseStart = time.Now()
	answer, truncated, err := p.generate(ctx, em, messages, streaming)
	if err != nil {
		return Result{}, err
	}
	if ctx.Err() != nil {
		return Result{}, ctx.Err()
	}
	p.observePhase(4, phaseStart)
	emitProgress(em, 4, 100)

	// Phase 5 — post-processing.
	emitProgress(em, 5, 0)
	p.recordTurn(ctx, sessionID, ownerID, fileIDs, query, answer)

	return Result{
		Answer:            answer,
		ContextCount:      len(contexts),
		ExpandedQuestions: subQuestions,
		Truncated:         truncated,
	}, nil
}

// generate invokes the LLM in streaming or non-streaming mode depending on
// the caller. A mid-stream transport error preserves the partial answer and
// is reported via the truncated flag rather than aborting the pipeline, so
// the user still receives what was produced.
func (p *Pipeline) generate(ctx context.Context, em *events.Emitter, messages []ports.ChatMessage, streaming bool) (string, bool, error) {
	if !streaming {
		answer, err := p.LLM.Chat(ctx, messages)
		if err != nil {
			return "", false, ragerr.Wrap(ragerr.LLMFailed, "chat completion", err)
		}
		return answer, false, nil
	}

	deltas, err := p.LLM.ChatStream(ctx, messages)
	if err != nil {
		return "", false, ragerr.Wrap(ragerr.LLMFailed, "starting chat stream", err)
	}

	var answer string
	truncated := false
	for delta := range deltas {
		if delta.Err != nil {
			logging.Log.WithError(delta.Err).Warn("llm stream terminated early, answer truncated")
			truncated = true
			break
		}
		if delta.Text != "" {
			answer += delta.Text
			em.EmitToken(delta.Text)
		}
		if delta.Done {
			break
		}
	}
	if ctx.Err() != nil {
		return answer, truncated, ctx.Err()
	}
	return answer, truncated, nil
}

func (p *Pipeline) recentHistory(ctx context.Context, sessionID string) ([]model.Message, error) {
	if sessionID == "" || p.Sessions == nil {
		return nil, nil
	}
	window := p.Prompt.HistoryWindow
	if window <= 0 {
		window = 10
	}
	return p.Sessions.Recent(ctx, sessionID, window)
}

// recordTurn appends the user question and assistant answer to the session.
// Failures here are logged and swallowed: the user must still receive
// their answer.
func (p *Pipeline) recordTurn(ctx context.Context, sessionID, ownerID string, fileIDs []string, query, answer string) {
	if sessionID == "" || p.Sessions == nil {
		return
	}
	if err := p.Sessions.CreateIfAbsent(ctx, sessionID, ownerID, fileIDs); err != nil {
		logging.Log.WithError(err).Warn("session creation failed")
	}
	if err := p.Sessions.Append(ctx, sessionID, model.RoleUser, query, nil); err != nil {
		logging.Log.WithError(err).Warn("appending user message failed")
	}
	if err := p.Sessions.Append(ctx, sessionID, model.RoleAssistant, answer, nil); err != nil {
		logging.Log.WithError(err).Warn("appending assistant message failed")
	}
}

func (p *Pipeline) countAsk(outcome string) {
	if p.Metrics != nil {
		p.Metrics.IncCounter("ask_total", map[string]string{"outcome": outcome})
	}
}

func (p *Pipeline) observePhase(phase int, start time.Time) {
	if p.Metrics != nil {
		p.Metrics.ObserveHistogram("ask_phase_seconds", time.Since(start).Seconds(), map[string]string{"phase": phaseLabel(phase)})
	}
}

func phaseLabel(phase int) string {
	return string('0' + rune(phase))
}

func emitProgress(em *events.Emitter, phase, pct int) {
	if em != nil {
		em.EmitProgress(phase, pct)
	}
}

func emitProgressExpanded(em *events.Emitter, phase, pct, n int) {
	if em != nil {
		em.EmitProgressExpanded(phase, pct, n)
	}
}

func emitProgressChunks(em *events.Emitter, phase, pct, n int) {
	if em != nil {
		em.EmitProgressChunks(phase, pct, n)
	}
}
