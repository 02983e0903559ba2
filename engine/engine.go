package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hupe1980/agentrun/core"
	"github.com/hupe1980/agentrun/logging"
	"github.com/hupe1980/agentrun/model"
	"github.com/hupe1980/agentrun/store"
	"github.com/hupe1980/agentrun/tool"
)

// maxToolRounds bounds the generate/execute loop of one call so a model that
// keeps requesting tools cannot spin forever.
const maxToolRounds = 10

// ExecuteRequest describes one inbound message on one conversation thread.
type ExecuteRequest struct {
	AgentID  string
	Message  string
	Images   []string // ordered image URLs following the text
	ThreadID string
	Debug    bool
}

// ExecuteResult is the collected outcome of one execution.
type ExecuteResult struct {
	// Answer is the user-visible reply: the concatenated text of model
	// turns. Empty when the run produced no visible text.
	Answer string

	// Segments is the full ordered trace. In debug mode it includes the
	// rendered prompt and history snapshots.
	Segments []Segment
}

// EngineOptions configures an Engine.
type EngineOptions struct {
	Logger logging.Logger
}

// Engine drives compiled pipelines against inbound messages, producing an
// ordered stream of labeled, timed segments.
type Engine struct {
	cache  *Cache
	skills store.SkillStore
	logger logging.Logger
}

// NewEngine constructs an Engine over a pipeline cache. The skill store is
// handed to tools at invocation time.
func NewEngine(cache *Cache, skills store.SkillStore, optFns ...func(o *EngineOptions)) *Engine {
	opts := EngineOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Engine{
		cache:  cache,
		skills: skills,
		logger: logging.OrNoOp(opts.Logger),
	}
}

// Stream runs one execution and emits segments as steps complete. An unknown
// agent or a failed build surfaces as the returned error before any segment
// is produced; failures mid-run arrive on the error channel after the
// already-emitted segments. Both channels close when the run ends. Callers
// may abandon the stream by canceling ctx; emitted segments stand and the
// cache is unaffected.
func (e *Engine) Stream(ctx context.Context, req ExecuteRequest) (<-chan Segment, <-chan error, error) {
	start := time.Now()
	pipe, outcome, err := e.cache.GetOrBuild(ctx, req.AgentID)
	if err != nil {
		return nil, nil, err
	}

	segCh := make(chan Segment, 16)
	errCh := make(chan error, 1)
	go func() {
		defer close(segCh)
		defer close(errCh)
		e.run(ctx, pipe, outcome, start, req, segCh, errCh)
	}()
	return segCh, errCh, nil
}

// Execute is a collector over Stream: it drains the segment stream and
// projects the final answer.
func (e *Engine) Execute(ctx context.Context, req ExecuteRequest) (*ExecuteResult, error) {
	segCh, errCh, err := e.Stream(ctx, req)
	if err != nil {
		return nil, err
	}

	var segments []Segment
	for seg := range segCh {
		segments = append(segments, seg)
	}
	if err := <-errCh; err != nil {
		return nil, err
	}
	return &ExecuteResult{Answer: Answer(segments), Segments: segments}, nil
}

func (e *Engine) run(ctx context.Context, pipe *Pipeline, outcome Outcome, start time.Time, req ExecuteRequest, segCh chan<- Segment, errCh chan<- error) {
	logger := logging.WithAgent(e.logger, req.AgentID, req.ThreadID)
	threadKey := core.ThreadKey(req.AgentID, req.ThreadID)

	emit := func(s Segment) bool {
		select {
		case <-ctx.Done():
			return false
		case segCh <- s:
			return true
		}
	}

	if !emit(Segment{
		Kind:  KindInput,
		Label: fmt.Sprintf("[ Thread: %s ]", req.ThreadID),
		Text:  req.Message,
	}) {
		return
	}
	// The cache lookup or build is the first timed boundary of the trace.
	if !emit(Segment{
		Kind:     KindStatus,
		Label:    fmt.Sprintf("[ Agent: %s ]", outcome),
		Duration: time.Since(start),
	}) {
		return
	}

	history, err := pipe.Memory.History(ctx, threadKey)
	if err != nil {
		errCh <- err
		return
	}

	userContent := core.NewUserContent(req.Message, req.Images...)
	contents := append(history, userContent)
	newTurns := []core.Content{userContent}
	defs := pipe.ToolDefinitions()
	tokenLimit := pipe.Model.Info().InputTokenLimit
	promptTokens := len(pipe.Prompt) / bytesPerToken

	last := time.Now()
	for round := 0; round < maxToolRounds; round++ {
		modelStart := time.Now()
		final, err := collectResponse(ctx, pipe.Model, model.Request{
			Instructions: pipe.Prompt,
			Contents:     boundContents(contents, tokenLimit, promptTokens),
			Tools:        defs,
		})
		logging.ModelCall(logger, pipe.Model.Info().Name, time.Since(modelStart), err)
		if err != nil {
			errCh <- err
			return
		}

		assistant := final.Content
		calls := assistant.FunctionCalls()
		text := assistant.Text()
		if text == "" {
			text = ThinkingPlaceholder
		}
		now := time.Now()
		if !emit(Segment{
			Kind:     KindModel,
			Label:    "[ Agent: ]",
			Text:     text,
			Duration: now.Sub(last),
		}) {
			return
		}
		last = now

		contents = append(contents, assistant)
		newTurns = append(newTurns, assistant)

		if len(calls) == 0 {
			break
		}

		for _, call := range calls {
			response := e.executeCall(ctx, pipe, req, call, logger)
			now := time.Now()
			if !emit(Segment{
				Kind:     KindTool,
				Label:    fmt.Sprintf("[ Skill: %s ]", call.Name),
				Text:     renderToolResult(response),
				Duration: now.Sub(last),
			}) {
				return
			}
			last = now

			contents = append(contents, response)
			newTurns = append(newTurns, response)
		}
	}

	if err := pipe.Memory.Append(ctx, threadKey, newTurns...); err != nil {
		errCh <- err
		return
	}

	if req.Debug {
		e.emitDebug(ctx, pipe, threadKey, emit)
	}

	emit(Segment{
		Kind:     KindTotal,
		Label:    "[ Total ]",
		Duration: time.Since(start),
	})
}

// executeCall runs one tool invocation and packages its result (or failure)
// as tool-role content for the next model round.
func (e *Engine) executeCall(ctx context.Context, pipe *Pipeline, req ExecuteRequest, call core.FunctionCall, logger logging.Logger) core.Content {
	t := pipe.findTool(call.Name)
	if t == nil {
		return core.NewFunctionResponseContent(call.ID, call.Name, nil,
			fmt.Errorf("unknown tool %q", call.Name))
	}

	args := map[string]any{}
	if call.Arguments != "" {
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			return core.NewFunctionResponseContent(call.ID, call.Name, nil,
				fmt.Errorf("invalid arguments: %w", err))
		}
	}

	toolCtx := tool.NewContext(ctx, req.AgentID, req.ThreadID, call.ID, e.skills, logger)
	start := time.Now()
	result, err := t.Call(toolCtx, args)
	logging.ToolCall(logger, call.Name, time.Since(start), err)
	return core.NewFunctionResponseContent(call.ID, call.Name, result, err)
}

// emitDebug adds the rendered prompt and the persisted history snapshot to
// the trace. History retrieval failure degrades to an empty block; it never
// fails the call.
func (e *Engine) emitDebug(ctx context.Context, pipe *Pipeline, threadKey string, emit func(Segment) bool) {
	if !emit(Segment{
		Kind:  KindPrompt,
		Label: "[ System Prompt ]",
		Text:  pipe.Prompt,
	}) {
		return
	}

	history, err := pipe.Memory.History(ctx, threadKey)
	if err != nil {
		e.logger.Warn("engine.debug.history_unavailable", "thread_key", threadKey, "error", err.Error())
		return
	}
	for _, turn := range history {
		text := turn.Text()
		if text == "" {
			if calls := turn.FunctionCalls(); len(calls) > 0 {
				text = fmt.Sprintf("(function call: %s)", calls[0].Name)
			} else if responses := turn.FunctionResponses(); len(responses) > 0 {
				text = fmt.Sprintf("(function response: %s)", responses[0].Name)
			}
		}
		if !emit(Segment{
			Kind:  KindHistory,
			Label: fmt.Sprintf("[ %s ]", turn.Role),
			Role:  turn.Role,
			Text:  text,
		}) {
			return
		}
	}
}

// collectResponse drains one Generate invocation down to its final response,
// concatenating partial text chunks along the way.
func collectResponse(ctx context.Context, m model.Model, req model.Request) (model.Response, error) {
	respCh, errCh := m.Generate(ctx, req)

	var (
		final   model.Response
		partial string
		got     bool
	)
	for resp := range respCh {
		if resp.Partial {
			partial += resp.Content.Text()
			continue
		}
		final = resp
		got = true
	}
	if err := <-errCh; err != nil {
		return model.Response{}, err
	}
	if !got {
		if partial == "" {
			return model.Response{}, fmt.Errorf("model produced no response")
		}
		final = model.Response{
			Content:      core.NewAssistantContent(partial),
			FinishReason: "stop",
		}
	}
	if final.Content.Role == "" {
		final.Content.Role = "assistant"
	}
	return final, nil
}

// renderToolResult flattens a tool response content into display text.
func renderToolResult(c core.Content) string {
	responses := c.FunctionResponses()
	if len(responses) == 0 {
		return ""
	}
	fr := responses[0]
	if fr.Error != "" {
		return "error: " + fr.Error
	}
	raw, err := json.Marshal(fr.Response)
	if err != nil {
		return fmt.Sprintf("%v", fr.Response)
	}
	return string(raw)
}
