package skill

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/hupe1980/agentrun/store"
	"github.com/hupe1980/agentrun/tool"
)

// walletRecord is the serialized wallet credential kept in agent runtime
// data. It is generated exactly once, on the first successful build.
type walletRecord struct {
	ID      string `json:"id"`
	Address string `json:"address"`
	Network string `json:"network"`
}

const walletGuidance = `You have an onchain wallet on the %s network. ` +
	`You can check its details and balances and move funds with your wallet tools. ` +
	`Always confirm the destination address with the user before transferring funds.`

func resolveWallet(_ context.Context, c Wallet, env Env) (*Resolution, error) {
	network := c.Network
	if network == "" {
		network = "base-mainnet"
	}

	res := &Resolution{
		Guidance: fmt.Sprintf(walletGuidance, network),
	}

	// The wallet credential is a first-build artifact. When runtime data
	// already carries one, reuse it; otherwise generate and hand it up for a
	// conditional write.
	record := walletRecord{}
	if env.Data != nil && env.Data.WalletData != "" {
		if err := json.Unmarshal([]byte(env.Data.WalletData), &record); err != nil {
			return nil, fmt.Errorf("corrupt wallet data: %w", err)
		}
	} else {
		id := uuid.NewString()
		record = walletRecord{
			ID:      id,
			Address: "0x" + strings.ReplaceAll(id, "-", ""),
			Network: network,
		}
		raw, err := json.Marshal(record)
		if err != nil {
			return nil, fmt.Errorf("encode wallet data: %w", err)
		}
		data := string(raw)
		res.Artifact = &store.DataDelta{WalletData: &data}
	}

	for _, name := range c.Skills {
		t, ok := walletTool(name, record)
		if !ok {
			env.Logger.Warn("skill.wallet.unknown", "skill", name)
			continue
		}
		res.Tools = append(res.Tools, t)
	}
	return res, nil
}

func walletTool(name string, record walletRecord) (tool.Tool, bool) {
	switch name {
	case "get_wallet_details":
		return tool.NewFunctionTool(
			"get_wallet_details",
			"Get the address and network of the agent's onchain wallet.",
			map[string]any{"type": "object", "properties": map[string]any{}},
			func(_ *tool.Context, _ map[string]any) (any, error) {
				return map[string]any{
					"address": record.Address,
					"network": record.Network,
				}, nil
			},
		), true
	case "get_balance":
		return tool.NewFunctionTool(
			"get_balance",
			"Get the wallet balance of an asset symbol.",
			map[string]any{
				"type": "object",
				"properties": map[string]any{
					"asset": map[string]any{"type": "string", "description": "Asset symbol, e.g. ETH or USDC"},
				},
				"required": []string{"asset"},
			},
			func(tc *tool.Context, args map[string]any) (any, error) {
				asset, _ := args["asset"].(string)
				row, err := tc.Skills().GetAgentData(tc.Context(), tc.AgentID(), "wallet", "balance:"+asset)
				if err != nil {
					return nil, err
				}
				balance := any(0.0)
				if row != nil {
					balance = row["amount"]
				}
				return map[string]any{"asset": asset, "balance": balance, "address": record.Address}, nil
			},
		), true
	case "transfer":
		return tool.NewFunctionTool(
			"transfer",
			"Transfer an amount of an asset from the agent wallet to a destination address.",
			map[string]any{
				"type": "object",
				"properties": map[string]any{
					"asset":  map[string]any{"type": "string"},
					"amount": map[string]any{"type": "number"},
					"to":     map[string]any{"type": "string", "description": "Destination address"},
				},
				"required": []string{"asset", "amount", "to"},
			},
			func(tc *tool.Context, args map[string]any) (any, error) {
				asset, _ := args["asset"].(string)
				amount, _ := args["amount"].(float64)
				to, _ := args["to"].(string)

				key := "balance:" + asset
				row, err := tc.Skills().GetAgentData(tc.Context(), tc.AgentID(), "wallet", key)
				if err != nil {
					return nil, err
				}
				balance := 0.0
				if row != nil {
					if v, ok := row["amount"].(float64); ok {
						balance = v
					}
				}
				if amount <= 0 || amount > balance {
					return nil, tool.NewToolError("transfer",
						fmt.Sprintf("insufficient %s balance: have %v, want %v", asset, balance, amount),
						"EXECUTION_ERROR")
				}
				if err := tc.Skills().SaveAgentData(tc.Context(), tc.AgentID(), "wallet", key,
					map[string]any{"amount": balance - amount}); err != nil {
					return nil, err
				}
				return map[string]any{
					"tx_id":  uuid.NewString(),
					"asset":  asset,
					"amount": amount,
					"to":     to,
					"from":   record.Address,
				}, nil
			},
		), true
	default:
		return nil, false
	}
}
