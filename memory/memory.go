// Package memory defines durable conversational memory for compiled
// pipelines. A store is opened once per process against a shared connection
// pool; the thread key is supplied at invocation time, never at build time.
// A missing thread is an empty history, not an error.
package memory

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hupe1980/agentrun/core"
)

// Store persists ordered conversation turns per thread key.
type Store interface {
	// History returns the full ordered message history for a thread key.
	// Unknown keys yield an empty slice.
	History(ctx context.Context, threadKey string) ([]core.Content, error)

	// Append atomically appends one batch of turns to a thread.
	Append(ctx context.Context, threadKey string, contents ...core.Content) error
}

// partRecord is the wire form of a core.Part. A closed type tag keeps the
// heterogeneous part set round-trippable through JSON.
type partRecord struct {
	Type     string                 `json:"type"`
	Text     string                 `json:"text,omitempty"`
	URL      string                 `json:"url,omitempty"`
	Call     *core.FunctionCall     `json:"call,omitempty"`
	Response *core.FunctionResponse `json:"response,omitempty"`
}

type contentRecord struct {
	Role  string       `json:"role"`
	Parts []partRecord `json:"parts"`
}

// EncodeContent serializes role-based content for persistence.
func EncodeContent(c core.Content) ([]byte, error) {
	rec := contentRecord{Role: c.Role, Parts: make([]partRecord, 0, len(c.Parts))}
	for _, p := range c.Parts {
		switch part := p.(type) {
		case core.TextPart:
			rec.Parts = append(rec.Parts, partRecord{Type: "text", Text: part.Text})
		case core.ImagePart:
			rec.Parts = append(rec.Parts, partRecord{Type: "image", URL: part.URL})
		case core.FunctionCallPart:
			fc := part.FunctionCall
			rec.Parts = append(rec.Parts, partRecord{Type: "function_call", Call: &fc})
		case core.FunctionResponsePart:
			fr := part.FunctionResponse
			rec.Parts = append(rec.Parts, partRecord{Type: "function_response", Response: &fr})
		default:
			return nil, fmt.Errorf("unsupported part type %T", p)
		}
	}
	return json.Marshal(rec)
}

// DecodeContent deserializes content previously written by EncodeContent.
func DecodeContent(data []byte) (core.Content, error) {
	var rec contentRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return core.Content{}, fmt.Errorf("decode content: %w", err)
	}
	c := core.Content{Role: rec.Role, Parts: make([]core.Part, 0, len(rec.Parts))}
	for _, p := range rec.Parts {
		switch p.Type {
		case "text":
			c.Parts = append(c.Parts, core.TextPart{Text: p.Text})
		case "image":
			c.Parts = append(c.Parts, core.ImagePart{URL: p.URL})
		case "function_call":
			if p.Call != nil {
				c.Parts = append(c.Parts, core.FunctionCallPart{FunctionCall: *p.Call})
			}
		case "function_response":
			if p.Response != nil {
				c.Parts = append(c.Parts, core.FunctionResponsePart{FunctionResponse: *p.Response})
			}
		default:
			return core.Content{}, fmt.Errorf("unsupported part record type %q", p.Type)
		}
	}
	return c, nil
}
