package skill

import (
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/hupe1980/agentrun/tool"
)

const socialGuidance = `You can read your social timeline and publish posts with your social tools. ` +
	`Keep posts short and never publish anything the user has not asked for.`

func resolveSocial(c Social, env Env) (*Resolution, error) {
	maxLen := 280
	if v, ok := c.Config["max_post_length"].(float64); ok && v > 0 {
		maxLen = int(v)
	}

	res := &Resolution{Guidance: socialGuidance}
	for _, name := range c.Skills {
		t, ok := socialTool(name, maxLen)
		if !ok {
			env.Logger.Warn("skill.social.unknown", "skill", name)
			continue
		}
		res.Tools = append(res.Tools, t)
	}
	return res, nil
}

func socialTool(name string, maxLen int) (tool.Tool, bool) {
	switch name {
	case "get_timeline":
		return tool.NewFunctionTool(
			"get_timeline",
			"Get the most recent posts published by this agent.",
			map[string]any{"type": "object", "properties": map[string]any{}},
			func(tc *tool.Context, _ map[string]any) (any, error) {
				row, err := tc.Skills().GetAgentData(tc.Context(), tc.AgentID(), "social", "timeline")
				if err != nil {
					return nil, err
				}
				if row == nil {
					return map[string]any{"posts": []any{}}, nil
				}
				return row, nil
			},
		), true
	case "post":
		return tool.NewFunctionTool(
			"post",
			"Publish a post to the agent's social timeline.",
			map[string]any{
				"type": "object",
				"properties": map[string]any{
					"text": map[string]any{"type": "string"},
				},
				"required": []string{"text"},
			},
			func(tc *tool.Context, args map[string]any) (any, error) {
				text, _ := args["text"].(string)
				if len(text) == 0 || len(text) > maxLen {
					return nil, tool.NewToolError("post",
						"post text must be between 1 and "+strconv.Itoa(maxLen)+" characters",
						"VALIDATION_ERROR")
				}

				row, err := tc.Skills().GetAgentData(tc.Context(), tc.AgentID(), "social", "timeline")
				if err != nil {
					return nil, err
				}
				posts, _ := row["posts"].([]any)
				post := map[string]any{
					"id":         uuid.NewString(),
					"text":       text,
					"created_at": time.Now().UTC().Format(time.RFC3339),
				}
				posts = append([]any{post}, posts...)
				if err := tc.Skills().SaveAgentData(tc.Context(), tc.AgentID(), "social", "timeline",
					map[string]any{"posts": posts}); err != nil {
					return nil, err
				}
				return post, nil
			},
		), true
	default:
		return nil, false
	}
}
