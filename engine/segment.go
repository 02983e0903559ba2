package engine

import (
	"fmt"
	"strings"
	"time"
)

// Kind tags one execution segment.
type Kind string

const (
	// KindInput echoes the thread identity and the inbound message.
	KindInput Kind = "input"

	// KindStatus reports cache lifecycle transitions (cold start, rebuild,
	// reuse) with the lookup/build duration.
	KindStatus Kind = "status"

	// KindModel is one model turn.
	KindModel Kind = "model"

	// KindTool is one tool execution turn.
	KindTool Kind = "tool"

	// KindTotal closes the stream with the total wall-clock duration.
	KindTotal Kind = "total"

	// KindPrompt carries the rendered system prompt (debug mode only).
	KindPrompt Kind = "prompt"

	// KindHistory carries one persisted history turn (debug mode only).
	KindHistory Kind = "history"
)

// ThinkingPlaceholder is emitted as the payload of a model turn that produced
// no visible text, such as a pure tool call round.
const ThinkingPlaceholder = "[ Agent is thinking ... ]"

// Segment is one labeled, timed unit of execution output. Segments arrive in
// step order; Duration measures the wall clock since the previous step
// boundary.
type Segment struct {
	Kind     Kind
	Label    string
	Text     string
	Role     string // speaker role for history segments
	Duration time.Duration
}

// String renders the segment the way a terminal consumer prints it.
func (s Segment) String() string {
	var b strings.Builder
	if s.Label != "" {
		b.WriteString(s.Label)
		b.WriteString("\n")
	}
	if s.Text != "" {
		b.WriteString(s.Text)
		b.WriteString("\n")
	}
	if s.Duration > 0 {
		fmt.Fprintf(&b, "cost: %.3f seconds\n", s.Duration.Seconds())
	}
	return b.String()
}

// Answer projects the user-visible answer out of a recorded segment stream:
// the concatenated text of model turns, placeholders excluded.
func Answer(segments []Segment) string {
	var parts []string
	for _, s := range segments {
		if s.Kind != KindModel || s.Text == "" || s.Text == ThinkingPlaceholder {
			continue
		}
		parts = append(parts, s.Text)
	}
	return strings.Join(parts, "\n")
}
