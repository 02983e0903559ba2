package engine

import (
	"fmt"

	"github.com/hupe1980/agentrun/core"
)

// Token estimation constants. The 4-bytes-per-token ratio is the usual rough
// heuristic for English chat text; images count as a flat block since the
// runtime only carries their URLs.
const (
	bytesPerToken      = 4
	contentOverhead    = 4 // role plus framing per content
	imageTokenEstimate = 128
)

// estimateTokens approximates the token cost of one content without calling a
// tokenizer. Over-estimation is preferred over under-estimation: trimming one
// turn too many is harmless, overflowing the provider context is not.
func estimateTokens(c core.Content) int {
	tokens := contentOverhead
	for _, p := range c.Parts {
		switch part := p.(type) {
		case core.TextPart:
			tokens += len(part.Text)/bytesPerToken + 1
		case core.ImagePart:
			tokens += imageTokenEstimate
		case core.FunctionCallPart:
			tokens += (len(part.FunctionCall.Name)+len(part.FunctionCall.Arguments))/bytesPerToken + 1
		case core.FunctionResponsePart:
			fr := part.FunctionResponse
			tokens += (len(fr.Name)+len(fr.Error)+len(fmt.Sprintf("%v", fr.Response)))/bytesPerToken + 1
		}
	}
	return tokens
}

// boundContents trims the oldest turns so the estimated token cost of the
// remainder fits within limit minus reserved (the system prompt share). The
// newest content is always kept, even when it alone exceeds the budget, so a
// call can never be trimmed down to nothing. A non-positive limit means the
// binding declared no context budget and the input passes through unchanged.
func boundContents(contents []core.Content, limit, reserved int) []core.Content {
	if limit <= 0 || len(contents) == 0 {
		return contents
	}

	budget := limit - reserved
	used := estimateTokens(contents[len(contents)-1])
	start := len(contents) - 1
	for i := len(contents) - 2; i >= 0; i-- {
		cost := estimateTokens(contents[i])
		if used+cost > budget {
			break
		}
		used += cost
		start = i
	}

	// A window must not open on tool-role responses whose originating
	// assistant call was trimmed away; providers reject such orphans.
	for start < len(contents)-1 && contents[start].Role == "tool" {
		start++
	}
	return contents[start:]
}
