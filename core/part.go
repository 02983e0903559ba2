package core

import "strings"

// Part represents a polymorphic segment of role-based content. Concrete part
// types implement the unexported isPart marker enabling a closed set.
type Part interface{ isPart() }

// TextPart is a plain text content segment.
type TextPart struct {
	Text     string         // Plain UTF-8 text
	Metadata map[string]any // Optional producer-provided metadata
}

// isPart implements the Part interface for TextPart.
func (TextPart) isPart() {}

// ImagePart references an image by URL. Inbound messages carry an ordered
// list of these after the leading text part.
type ImagePart struct {
	URL      string // External retrieval URL
	Detail   string // Optional provider hint ("low", "high", "auto")
	Metadata map[string]any
}

// isPart implements the Part interface for ImagePart.
func (ImagePart) isPart() {}

// FunctionCall describes a tool/function invocation request.
type FunctionCall struct {
	ID        string `json:"id,omitempty"`        // Optional stable id (can be supplied later)
	Name      string `json:"name"`                // Tool / function name
	Arguments string `json:"arguments,omitempty"` // Serialized argument payload (e.g. JSON)
}

// FunctionCallPart wraps a FunctionCall as a content part.
type FunctionCallPart struct {
	FunctionCall FunctionCall
	Metadata     map[string]any
}

// isPart implements the Part interface for FunctionCallPart.
func (FunctionCallPart) isPart() {}

// FunctionResponse describes the outcome of a function call.
type FunctionResponse struct {
	ID       string      `json:"id,omitempty"`       // Matches originating FunctionCall ID
	Name     string      `json:"name"`               // Function name
	Response interface{} `json:"response,omitempty"` // Successful result (any shape)
	Error    string      `json:"error,omitempty"`    // Populated on failure
}

// FunctionResponsePart wraps a FunctionResponse as a content part.
type FunctionResponsePart struct {
	FunctionResponse FunctionResponse
	Metadata         map[string]any
}

// isPart implements the Part interface for FunctionResponsePart.
func (FunctionResponsePart) isPart() {}

// Content holds role + ordered parts.
type Content struct {
	Role  string `json:"role,omitempty"` // Conversation role (user, assistant, tool, system,...)
	Parts []Part `json:"parts"`          // Ordered heterogeneous parts
}

// Text concatenates all text parts in order. Non-text parts are skipped.
func (c Content) Text() string {
	var b strings.Builder
	for _, p := range c.Parts {
		if tp, ok := p.(TextPart); ok {
			b.WriteString(tp.Text)
		}
	}
	return b.String()
}

// Images returns the URLs of all image parts preserving order.
func (c Content) Images() []string {
	var urls []string
	for _, p := range c.Parts {
		if ip, ok := p.(ImagePart); ok {
			urls = append(urls, ip.URL)
		}
	}
	return urls
}

// FunctionCalls extracts all function call parts preserving order.
func (c Content) FunctionCalls() []FunctionCall {
	var calls []FunctionCall
	for _, p := range c.Parts {
		if fc, ok := p.(FunctionCallPart); ok {
			calls = append(calls, fc.FunctionCall)
		}
	}
	return calls
}

// FunctionResponses extracts all function response parts preserving order.
func (c Content) FunctionResponses() []FunctionResponse {
	var responses []FunctionResponse
	for _, p := range c.Parts {
		if fr, ok := p.(FunctionResponsePart); ok {
			responses = append(responses, fr.FunctionResponse)
		}
	}
	return responses
}

// NewUserContent builds user content from a text body plus ordered image URLs.
func NewUserContent(text string, images ...string) Content {
	parts := make([]Part, 0, len(images)+1)
	parts = append(parts, TextPart{Text: text})
	for _, url := range images {
		parts = append(parts, ImagePart{URL: url})
	}
	return Content{Role: "user", Parts: parts}
}

// NewAssistantContent builds assistant content from a plain text response.
func NewAssistantContent(text string) Content {
	return Content{Role: "assistant", Parts: []Part{TextPart{Text: text}}}
}

// NewFunctionResponseContent records the completion result (or error) of a
// tool invocation as tool-role content. If err is non-nil its message is
// copied into the response Error field.
func NewFunctionResponseContent(id, name string, result interface{}, err error) Content {
	fr := FunctionResponse{ID: id, Name: name, Response: result}
	if err != nil {
		fr.Error = err.Error()
	}
	return Content{Role: "tool", Parts: []Part{FunctionResponsePart{FunctionResponse: fr}}}
}
