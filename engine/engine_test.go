package engine

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentrun/core"
	"github.com/hupe1980/agentrun/logging"
	"github.com/hupe1980/agentrun/memory"
	"github.com/hupe1980/agentrun/model"
	"github.com/hupe1980/agentrun/skill"
	"github.com/hupe1980/agentrun/store"
)

// scriptedModel plays back a fixed sequence of responses, then falls through
// to a terminal text completion.
type scriptedModel struct {
	info      model.Info
	responses []model.Response
	calls     int
}

func newScriptedModel(responses ...model.Response) *scriptedModel {
	return &scriptedModel{
		info:      model.Info{Name: "scripted", Provider: "test", SupportsTools: true},
		responses: responses,
	}
}

func toolCallRound(calls ...core.FunctionCall) model.Response {
	parts := make([]core.Part, 0, len(calls))
	for _, fc := range calls {
		parts = append(parts, core.FunctionCallPart{FunctionCall: fc})
	}
	return model.Response{
		Content:      core.Content{Role: "assistant", Parts: parts},
		FinishReason: "tool_calls",
	}
}

func textRound(text string) model.Response {
	return model.Response{
		Content:      core.Content{Role: "assistant", Parts: []core.Part{core.TextPart{Text: text}}},
		FinishReason: "stop",
	}
}

func (m *scriptedModel) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	respCh := make(chan model.Response, 1)
	errCh := make(chan error, 1)
	m.calls++

	resp := textRound("done")
	if len(m.responses) > 0 {
		resp = m.responses[0]
		m.responses = m.responses[1:]
	}
	respCh <- resp
	close(respCh)
	close(errCh)
	return respCh, errCh
}

func (m *scriptedModel) Info() model.Info { return m.info }

// testHarness bundles the collaborators of one engine under test.
type testHarness struct {
	store  *store.InMemory
	memory *memory.InMemoryStore
	cache  *Cache
	engine *Engine
}

func newTestHarness(t *testing.T, bind ModelBinder) *testHarness {
	t.Helper()
	st := store.NewInMemory()
	mem := memory.NewInMemoryStore()
	builder := NewBuilder(st, st, mem, skill.NewRegistry(), bind)
	cache := NewCache(builder, nil)
	return &testHarness{
		store:  st,
		memory: mem,
		cache:  cache,
		engine: NewEngine(cache, st),
	}
}

func staticBinder(m model.Model) ModelBinder {
	return BinderFunc(func(string, ModelParams) (model.Model, error) {
		return m, nil
	})
}

func segmentsOfKind(segments []Segment, kind Kind) []Segment {
	var out []Segment
	for _, s := range segments {
		if s.Kind == kind {
			out = append(out, s)
		}
	}
	return out
}

func TestEngineExecuteEndToEnd(t *testing.T) {
	ctx := context.Background()
	h := newTestHarness(t, staticBinder(newScriptedModel(textRound("hello there"))))
	h.store.PutConfig(store.AgentConfig{ID: "agent1", Name: "Ada", Model: "gpt-4o-mini"})

	result, err := h.engine.Execute(ctx, ExecuteRequest{
		AgentID: "agent1", Message: "hi", ThreadID: "t1",
	})
	require.NoError(t, err)

	assert.Equal(t, "hello there", result.Answer)
	assert.Equal(t, int64(1), h.cache.Builds())

	statuses := segmentsOfKind(result.Segments, KindStatus)
	require.Len(t, statuses, 1)
	assert.Contains(t, statuses[0].Label, "cold start")

	// A second call with unchanged config performs zero additional builds.
	_, err = h.engine.Execute(ctx, ExecuteRequest{
		AgentID: "agent1", Message: "hi again", ThreadID: "t1",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), h.cache.Builds())

	// Both turns of both calls landed in memory under the thread key.
	history, err := h.memory.History(ctx, core.ThreadKey("agent1", "t1"))
	require.NoError(t, err)
	assert.Len(t, history, 4)
}

func TestEngineUnknownAgent(t *testing.T) {
	h := newTestHarness(t, staticBinder(newScriptedModel()))

	_, _, err := h.engine.Stream(context.Background(), ExecuteRequest{
		AgentID: "ghost", Message: "hi", ThreadID: "t1",
	})
	assert.True(t, core.IsNotFound(err))
	assert.Equal(t, int64(0), h.cache.Builds())
}

func TestEngineToolRound(t *testing.T) {
	ctx := context.Background()
	m := newScriptedModel(
		toolCallRound(core.FunctionCall{ID: "fc1", Name: "current_time", Arguments: "{}"}),
		textRound("it is late"),
	)
	h := newTestHarness(t, staticBinder(m))
	h.store.PutConfig(store.AgentConfig{
		ID: "agent1", Model: "gpt-4o-mini", CommonSkills: []string{"current_time"},
	})

	result, err := h.engine.Execute(ctx, ExecuteRequest{
		AgentID: "agent1", Message: "what time is it", ThreadID: "t1",
	})
	require.NoError(t, err)

	assert.Equal(t, "it is late", result.Answer)

	tools := segmentsOfKind(result.Segments, KindTool)
	require.Len(t, tools, 1)
	assert.Contains(t, tools[0].Label, "current_time")
	assert.Contains(t, tools[0].Text, "utc")

	// The tool call round produced no visible text.
	models := segmentsOfKind(result.Segments, KindModel)
	require.Len(t, models, 2)
	assert.Equal(t, ThinkingPlaceholder, models[0].Text)
}

func TestEngineDebugProjection(t *testing.T) {
	ctx := context.Background()
	m := newScriptedModel(
		toolCallRound(core.FunctionCall{ID: "fc1", Name: "current_time", Arguments: "{}"}),
		model.Response{Content: core.Content{Role: "assistant"}, FinishReason: "stop"},
	)
	h := newTestHarness(t, staticBinder(m))
	h.store.PutConfig(store.AgentConfig{
		ID: "agent1", Model: "gpt-4o-mini", CommonSkills: []string{"current_time"},
	})

	result, err := h.engine.Execute(ctx, ExecuteRequest{
		AgentID: "agent1", Message: "hi", ThreadID: "t1", Debug: true,
	})
	require.NoError(t, err)

	// Normal projection over the same stream is empty; the debug trace still
	// carries the placeholder model turns.
	assert.Empty(t, result.Answer)
	models := segmentsOfKind(result.Segments, KindModel)
	require.NotEmpty(t, models)
	for _, s := range models {
		assert.Equal(t, ThinkingPlaceholder, s.Text)
	}

	prompts := segmentsOfKind(result.Segments, KindPrompt)
	require.Len(t, prompts, 1)
	assert.NotEmpty(t, prompts[0].Text)

	history := segmentsOfKind(result.Segments, KindHistory)
	assert.NotEmpty(t, history)

	totals := segmentsOfKind(result.Segments, KindTotal)
	require.Len(t, totals, 1)
}

func TestEngineInstrumentationLogs(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	logger := logging.NewLogger(&logging.LoggerConfig{Level: logging.LogLevelInfo, Format: "json", Output: &buf})

	m := newScriptedModel(
		toolCallRound(core.FunctionCall{ID: "fc1", Name: "current_time", Arguments: "{}"}),
		textRound("it is late"),
	)
	st := store.NewInMemory()
	mem := memory.NewInMemoryStore()
	builder := NewBuilder(st, st, mem, skill.NewRegistry(), staticBinder(m))
	cache := NewCache(builder, nil)
	eng := NewEngine(cache, st, func(o *EngineOptions) { o.Logger = logger })

	st.PutConfig(store.AgentConfig{
		ID: "agent1", Model: "gpt-4o-mini", CommonSkills: []string{"current_time"},
	})

	_, err := eng.Execute(ctx, ExecuteRequest{AgentID: "agent1", Message: "time?", ThreadID: "t1"})
	require.NoError(t, err)

	// Model rounds and tool invocations are instrumented with the agent
	// and thread scope attached.
	out := buf.String()
	assert.Contains(t, out, "Model call completed")
	assert.Contains(t, out, "Tool execution completed")
	assert.Contains(t, out, `"agent_id":"agent1"`)
	assert.Contains(t, out, `"thread_id":"t1"`)
	assert.Contains(t, out, `"tool_name":"current_time"`)
}

func TestEngineInputEcho(t *testing.T) {
	ctx := context.Background()
	h := newTestHarness(t, staticBinder(newScriptedModel()))
	h.store.PutConfig(store.AgentConfig{ID: "agent1", Model: "gpt-4o-mini"})

	result, err := h.engine.Execute(ctx, ExecuteRequest{
		AgentID: "agent1", Message: "echo me", ThreadID: "t7",
	})
	require.NoError(t, err)

	require.NotEmpty(t, result.Segments)
	first := result.Segments[0]
	assert.Equal(t, KindInput, first.Kind)
	assert.Contains(t, first.Label, "t7")
	assert.Equal(t, "echo me", first.Text)

	last := result.Segments[len(result.Segments)-1]
	assert.Equal(t, KindTotal, last.Kind)
}
