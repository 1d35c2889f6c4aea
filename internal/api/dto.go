package api

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"main/internal/condition"
	"main/internal/model"
	"main/internal/model/enum"
)

// ConditionNodeRequest is one node of the predicate tree, recursive.
type ConditionNodeRequest struct {
	Op       string                 `json:"op" binding:"required"` // leaf | and | or | not
	Children []ConditionNodeRequest `json:"children,omitempty"`

	Kind        string `json:"kind,omitempty"`
	Symbol      string `json:"symbol,omitempty"`
	Operator    string `json:"operator,omitempty"`
	Threshold   string `json:"threshold,omitempty"`
	Indicator   string `json:"indicator,omitempty"`
	WindowStart string `json:"windowStart,omitempty"`
	WindowEnd   string `json:"windowEnd,omitempty"`
}

// ConditionRequest defines the entry condition of an auto-order.
type ConditionRequest struct {
	Symbol          string               `json:"symbol,omitempty"`
	CooldownSeconds int                  `json:"cooldownSeconds"`
	ReArm           string               `json:"reArm,omitempty"` // ON_FALSE | AFTER_COOLDOWN
	Root            ConditionNodeRequest `json:"root" binding:"required"`
}

// AutoOrderRequest creates one condition-bound order template.
type AutoOrderRequest struct {
	UserID     string           `json:"userId"`
	AccountID  string           `json:"accountId" binding:"required"`
	StrategyID string           `json:"strategyId"`
	Symbol     string           `json:"symbol" binding:"required"`
	Side       string           `json:"side" binding:"required"`
	OrderType  string           `json:"orderType" binding:"required"`
	Quantity   string           `json:"quantity" binding:"required"`
	LimitPrice string           `json:"limitPrice,omitempty"`
	ExpiresAt  *time.Time       `json:"expiresAt,omitempty"`
	Condition  ConditionRequest `json:"condition" binding:"required"`
}

// StopRequest activates an emergency stop.
type StopRequest struct {
	Level        string `json:"level" binding:"required"`
	TargetID     string `json:"targetId,omitempty"`
	Reason       string `json:"reason" binding:"required"`
	ConfirmToken string `json:"confirmToken" binding:"required"`
	TriggeredBy  string `json:"triggeredBy,omitempty"`
}

func parseSide(s string) (enum.OrderSide, error) {
	switch strings.ToUpper(s) {
	case "BUY":
		return enum.OrderSideBuy, nil
	case "SELL":
		return enum.OrderSideSell, nil
	default:
		return 0, fmt.Errorf("unknown side %q", s)
	}
}

func parseOrderType(s string) (enum.OrderType, error) {
	switch strings.ToUpper(s) {
	case "LIMIT":
		return enum.OrderTypeLimit, nil
	case "MARKET":
		return enum.OrderTypeMarket, nil
	default:
		return 0, fmt.Errorf("unknown order type %q", s)
	}
}

func parseStopLevel(s string) (enum.StopLevel, error) {
	switch strings.ToUpper(s) {
	case "GLOBAL":
		return enum.StopLevelGlobal, nil
	case "USER":
		return enum.StopLevelUser, nil
	case "ACCOUNT":
		return enum.StopLevelAccount, nil
	case "SYMBOL":
		return enum.StopLevelSymbol, nil
	case "STRATEGY":
		return enum.StopLevelStrategy, nil
	default:
		return 0, fmt.Errorf("unknown stop level %q", s)
	}
}

func parseReArm(s string) (enum.ReArmPolicy, error) {
	switch strings.ToUpper(s) {
	case "", "ON_FALSE":
		return enum.ReArmOnFalse, nil
	case "AFTER_COOLDOWN":
		return enum.ReArmAfterCooldown, nil
	default:
		return 0, fmt.Errorf("unknown re-arm policy %q", s)
	}
}

func parseConditionKind(s string) (enum.ConditionKind, error) {
	switch strings.ToUpper(s) {
	case "PRICE":
		return enum.ConditionKindPrice, nil
	case "VOLUME":
		return enum.ConditionKindVolume, nil
	case "TIME_WINDOW":
		return enum.ConditionKindTimeWindow, nil
	case "INDICATOR":
		return enum.ConditionKindIndicator, nil
	case "MARKET_ALERT":
		return enum.ConditionKindMarketAlert, nil
	default:
		return 0, fmt.Errorf("unknown condition kind %q", s)
	}
}

func parseOperator(s string) (enum.Operator, error) {
	switch strings.ToUpper(s) {
	case ">", "GT":
		return enum.OperatorGT, nil
	case ">=", "GTE":
		return enum.OperatorGTE, nil
	case "<", "LT":
		return enum.OperatorLT, nil
	case "<=", "LTE":
		return enum.OperatorLTE, nil
	case "==", "EQ":
		return enum.OperatorEQ, nil
	case "!=", "NEQ":
		return enum.OperatorNEQ, nil
	case "CROSS_UP":
		return enum.OperatorCrossUp, nil
	case "CROSS_DOWN":
		return enum.OperatorCrossDown, nil
	default:
		return 0, fmt.Errorf("unknown operator %q", s)
	}
}

// buildCondition turns the recursive request into an immutable tree.
func buildCondition(req ConditionRequest, fallbackSymbol string) (condition.Condition, error) {
	symbol := req.Symbol
	if symbol == "" {
		symbol = fallbackSymbol
	}

	rearm, err := parseReArm(req.ReArm)
	if err != nil {
		return condition.Condition{}, err
	}

	builder := condition.NewBuilder()
	root, err := buildNode(builder, req.Root, symbol)
	if err != nil {
		return condition.Condition{}, err
	}
	tree, err := builder.Build(root)
	if err != nil {
		return condition.Condition{}, err
	}

	return condition.Condition{
		Symbol:          symbol,
		Tree:            tree,
		CooldownSeconds: req.CooldownSeconds,
		ReArm:           rearm,
	}, nil
}

func buildNode(builder *condition.Builder, node ConditionNodeRequest, fallbackSymbol string) (int32, error) {
	switch strings.ToLower(node.Op) {
	case "leaf":
		leaf, err := buildLeaf(node, fallbackSymbol)
		if err != nil {
			return 0, err
		}
		return builder.Leaf(leaf), nil
	case "and", "or":
		if len(node.Children) == 0 {
			return 0, fmt.Errorf("%s node requires children", node.Op)
		}
		children := make([]int32, 0, len(node.Children))
		for _, child := range node.Children {
			idx, err := buildNode(builder, child, fallbackSymbol)
			if err != nil {
				return 0, err
			}
			children = append(children, idx)
		}
		if strings.ToLower(node.Op) == "and" {
			return builder.And(children...), nil
		}
		return builder.Or(children...), nil
	case "not":
		if len(node.Children) != 1 {
			return 0, fmt.Errorf("not node requires exactly one child")
		}
		child, err := buildNode(builder, node.Children[0], fallbackSymbol)
		if err != nil {
			return 0, err
		}
		return builder.Not(child), nil
	default:
		return 0, fmt.Errorf("unknown node op %q", node.Op)
	}
}

func buildLeaf(node ConditionNodeRequest, fallbackSymbol string) (condition.Leaf, error) {
	kind, err := parseConditionKind(node.Kind)
	if err != nil {
		return condition.Leaf{}, err
	}

	leaf := condition.Leaf{
		Kind:          kind,
		Symbol:        node.Symbol,
		IndicatorName: node.Indicator,
		WindowStart:   node.WindowStart,
		WindowEnd:     node.WindowEnd,
	}
	if leaf.Symbol == "" {
		leaf.Symbol = fallbackSymbol
	}

	if kind != enum.ConditionKindTimeWindow {
		if kind != enum.ConditionKindMarketAlert {
			op, err := parseOperator(node.Operator)
			if err != nil {
				return condition.Leaf{}, err
			}
			leaf.Operator = op
			threshold, err := decimal.NewFromString(node.Threshold)
			if err != nil {
				return condition.Leaf{}, fmt.Errorf("bad threshold %q: %w", node.Threshold, err)
			}
			leaf.Threshold = threshold
		} else {
			// market-alert leaves validate as EQ against zero
			leaf.Operator = enum.OperatorEQ
		}
	}
	return leaf, nil
}

func (r AutoOrderRequest) toModel() (model.AutoOrder, error) {
	side, err := parseSide(r.Side)
	if err != nil {
		return model.AutoOrder{}, err
	}
	orderType, err := parseOrderType(r.OrderType)
	if err != nil {
		return model.AutoOrder{}, err
	}
	quantity, err := decimal.NewFromString(r.Quantity)
	if err != nil {
		return model.AutoOrder{}, fmt.Errorf("bad quantity %q: %w", r.Quantity, err)
	}

	auto := model.AutoOrder{
		UserID:     r.UserID,
		AccountID:  r.AccountID,
		StrategyID: r.StrategyID,
		Symbol:     r.Symbol,
		Side:       side,
		OrderType:  orderType,
		Quantity:   quantity,
		ExpiresAt:  r.ExpiresAt,
	}
	if r.LimitPrice != "" {
		price, err := decimal.NewFromString(r.LimitPrice)
		if err != nil {
			return model.AutoOrder{}, fmt.Errorf("bad limit price %q: %w", r.LimitPrice, err)
		}
		auto.LimitPrice = price
	}
	return auto, nil
}
