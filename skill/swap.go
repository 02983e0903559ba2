package skill

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/hupe1980/agentrun/tool"
)

const swapGuidance = `You can quote and execute token swaps with your swap tools. ` +
	`Always quote a route first and report the expected output amount before executing a swap.`

func resolveSwap(c Swap, env Env) (*Resolution, error) {
	slippage := 0.5
	if v, ok := c.Config["slippage_percent"].(float64); ok {
		slippage = v
	}

	res := &Resolution{Guidance: swapGuidance}
	for _, name := range c.Skills {
		t, ok := swapTool(name, slippage)
		if !ok {
			env.Logger.Warn("skill.swap.unknown", "skill", name)
			continue
		}
		res.Tools = append(res.Tools, t)
	}
	return res, nil
}

func swapTool(name string, slippage float64) (tool.Tool, bool) {
	switch name {
	case "get_route":
		return tool.NewFunctionTool(
			"get_route",
			"Quote the best swap route between two tokens for a given input amount.",
			map[string]any{
				"type": "object",
				"properties": map[string]any{
					"token_in":  map[string]any{"type": "string"},
					"token_out": map[string]any{"type": "string"},
					"amount_in": map[string]any{"type": "number"},
				},
				"required": []string{"token_in", "token_out", "amount_in"},
			},
			func(tc *tool.Context, args map[string]any) (any, error) {
				tokenIn, _ := args["token_in"].(string)
				tokenOut, _ := args["token_out"].(string)
				amountIn, _ := args["amount_in"].(float64)

				route := map[string]any{
					"route_id":   uuid.NewString(),
					"token_in":   tokenIn,
					"token_out":  tokenOut,
					"amount_in":  amountIn,
					"amount_out": amountIn * (1 - slippage/100),
					"slippage":   slippage,
				}
				// The quote is parked per thread so execute_swap can pick it up.
				if err := tc.Skills().SaveThreadData(tc.Context(), tc.ThreadID(), tc.AgentID(),
					"swap", "last_route", route); err != nil {
					return nil, err
				}
				return route, nil
			},
		), true
	case "execute_swap":
		return tool.NewFunctionTool(
			"execute_swap",
			"Execute a previously quoted swap route by its route id.",
			map[string]any{
				"type": "object",
				"properties": map[string]any{
					"route_id": map[string]any{"type": "string"},
				},
				"required": []string{"route_id"},
			},
			func(tc *tool.Context, args map[string]any) (any, error) {
				routeID, _ := args["route_id"].(string)
				route, err := tc.Skills().GetThreadData(tc.Context(), tc.ThreadID(), "swap", "last_route")
				if err != nil {
					return nil, err
				}
				if route == nil || route["route_id"] != routeID {
					return nil, tool.NewToolError("execute_swap",
						fmt.Sprintf("no quoted route %q, call get_route first", routeID),
						"EXECUTION_ERROR")
				}
				return map[string]any{
					"tx_id":      uuid.NewString(),
					"route_id":   routeID,
					"amount_out": route["amount_out"],
					"status":     "confirmed",
				}, nil
			},
		), true
	default:
		return nil, false
	}
}
