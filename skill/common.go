package skill

import (
	"time"

	"github.com/google/uuid"

	"github.com/hupe1980/agentrun/tool"
)

func resolveCommon(c Common, env Env) (*Resolution, error) {
	res := &Resolution{}
	for _, name := range c.Skills {
		t, ok := commonTool(name)
		if !ok {
			env.Logger.Warn("skill.common.unknown", "skill", name)
			continue
		}
		res.Tools = append(res.Tools, t)
	}
	return res, nil
}

func commonTool(name string) (tool.Tool, bool) {
	switch name {
	case "current_time":
		return tool.NewFunctionTool(
			"current_time",
			"Get the current date and time in UTC.",
			map[string]any{"type": "object", "properties": map[string]any{}},
			func(_ *tool.Context, _ map[string]any) (any, error) {
				return map[string]any{"utc": time.Now().UTC().Format(time.RFC3339)}, nil
			},
		), true
	case "generate_id":
		return tool.NewFunctionTool(
			"generate_id",
			"Generate a random unique identifier.",
			map[string]any{"type": "object", "properties": map[string]any{}},
			func(_ *tool.Context, _ map[string]any) (any, error) {
				return map[string]any{"id": uuid.NewString()}, nil
			},
		), true
	case "remember":
		return tool.NewFunctionTool(
			"remember",
			"Store a note under a key so it can be recalled in later conversations.",
			map[string]any{
				"type": "object",
				"properties": map[string]any{
					"key":  map[string]any{"type": "string"},
					"note": map[string]any{"type": "string"},
				},
				"required": []string{"key", "note"},
			},
			func(tc *tool.Context, args map[string]any) (any, error) {
				key, _ := args["key"].(string)
				note, _ := args["note"].(string)
				if err := tc.Skills().SaveAgentData(tc.Context(), tc.AgentID(), "common", "note:"+key,
					map[string]any{"note": note}); err != nil {
					return nil, err
				}
				return map[string]any{"stored": true, "key": key}, nil
			},
		), true
	case "recall":
		return tool.NewFunctionTool(
			"recall",
			"Recall a note previously stored under a key.",
			map[string]any{
				"type": "object",
				"properties": map[string]any{
					"key": map[string]any{"type": "string"},
				},
				"required": []string{"key"},
			},
			func(tc *tool.Context, args map[string]any) (any, error) {
				key, _ := args["key"].(string)
				row, err := tc.Skills().GetAgentData(tc.Context(), tc.AgentID(), "common", "note:"+key)
				if err != nil {
					return nil, err
				}
				if row == nil {
					return map[string]any{"found": false, "key": key}, nil
				}
				return map[string]any{"found": true, "key": key, "note": row["note"]}, nil
			},
		), true
	default:
		return nil, false
	}
}
