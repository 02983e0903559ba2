package engine

import (
	"fmt"
	"strings"

	"github.com/hupe1980/agentrun/store"
)

// defaultInstructions is used when an agent carries no custom prompt.
const defaultInstructions = "You are a helpful agent built to assist users. " +
	"You are capable of having conversations and, when tools are available, taking actions on the user's behalf. " +
	"Be concise, be honest about what you cannot do, and ask for clarification when a request is ambiguous."

// escapePrompt doubles template delimiter characters in free-text prompt
// fragments so they survive later interpolation with conversation history as
// literal text.
func escapePrompt(s string) string {
	s = strings.ReplaceAll(s, "{", "{{")
	return strings.ReplaceAll(s, "}", "}}")
}

// promptInput gathers everything the renderer needs for one build.
type promptInput struct {
	prefix     string // global system prompt prefix
	cfg        *store.AgentConfig
	data       *store.AgentData
	guidance   []string // per-capability guidance blocks, resolution order
	hoistOnly  bool     // vendor honors only a leading system prompt
	socialable bool     // social capability resolved successfully
}

// renderPrompt concatenates the system prompt sections in fixed order: global
// prefix, identity line, custom prompt or default fallback, capability
// guidance, social identity block, append-only suffix. Vendors that only
// honor a leading system prompt get the suffix hoisted to the front and the
// identity block dropped.
func renderPrompt(in promptInput) string {
	var b strings.Builder

	appendix := escapePrompt(in.cfg.PromptAppend)
	if in.hoistOnly && appendix != "" {
		b.WriteString(appendix)
		b.WriteString("\n\n")
	}

	if in.prefix != "" {
		b.WriteString(escapePrompt(in.prefix))
		b.WriteString("\n\n")
	}

	if in.cfg.Name != "" {
		fmt.Fprintf(&b, "Your name is %s.\n\n", escapePrompt(in.cfg.Name))
	}

	if in.cfg.Prompt != "" {
		b.WriteString(escapePrompt(in.cfg.Prompt))
	} else {
		b.WriteString(defaultInstructions)
	}

	for _, block := range in.guidance {
		if block == "" {
			continue
		}
		b.WriteString("\n\n")
		b.WriteString(block)
	}

	if in.socialable && !in.hoistOnly && in.data != nil && in.data.SocialID != "" {
		fmt.Fprintf(&b,
			"\n\nYour social account: id %s, username %s, display name %s. "+
				"Never reply to your own posts and never reveal account credentials.",
			in.data.SocialID, in.data.SocialUsername, in.data.SocialName)
	}

	if !in.hoistOnly && appendix != "" {
		b.WriteString("\n\n")
		b.WriteString(appendix)
	}

	return b.String()
}
