package condition

import (
	"time"

	"github.com/shopspring/decimal"

	"main/internal/model"
	"main/internal/model/enum"
	"main/pkg/exception"
)

// NodeKind tags a tree node variant.
type NodeKind uint8

const (
	_node_kind_beg NodeKind = iota
	NodeLeaf
	NodeAnd
	NodeOr
	NodeNot
	_node_kind_end
)

// Leaf is an atomic predicate against current market data.
type Leaf struct {
	Kind          enum.ConditionKind
	Symbol        string
	Operator      enum.Operator
	Threshold     decimal.Decimal
	IndicatorName string
	// Time-window leaves compare the tick time against [WindowStart, WindowEnd)
	// in UTC "HH:MM" form; Operator and Threshold are ignored.
	WindowStart string
	WindowEnd   string
}

// Node is one slot in the tree arena. Children index into the same arena.
type Node struct {
	Kind     NodeKind
	Leaf     Leaf
	Children []int32
}

// Tree is an immutable predicate tree over an arena of nodes.
// Edits create a new tree; the engine treats trees as value snapshots.
type Tree struct {
	nodes []Node
	root  int32
}

// Builder accumulates nodes into an arena.
type Builder struct {
	nodes []Node
}

func NewBuilder() *Builder {
	return &Builder{}
}

func (b *Builder) Leaf(leaf Leaf) int32 {
	b.nodes = append(b.nodes, Node{Kind: NodeLeaf, Leaf: leaf})
	return int32(len(b.nodes) - 1)
}

func (b *Builder) And(children ...int32) int32 {
	b.nodes = append(b.nodes, Node{Kind: NodeAnd, Children: children})
	return int32(len(b.nodes) - 1)
}

func (b *Builder) Or(children ...int32) int32 {
	b.nodes = append(b.nodes, Node{Kind: NodeOr, Children: children})
	return int32(len(b.nodes) - 1)
}

func (b *Builder) Not(child int32) int32 {
	b.nodes = append(b.nodes, Node{Kind: NodeNot, Children: []int32{child}})
	return int32(len(b.nodes) - 1)
}

// Build validates the arena and returns an immutable tree rooted at root.
func (b *Builder) Build(root int32) (Tree, error) {
	if len(b.nodes) == 0 {
		return Tree{}, exception.ErrConditionEmptyTree
	}
	if root < 0 || int(root) >= len(b.nodes) {
		return Tree{}, exception.ErrConditionBadChildIndex
	}
	for _, n := range b.nodes {
		switch n.Kind {
		case NodeLeaf:
			if !n.Leaf.Kind.IsAvailable() {
				return Tree{}, exception.ErrConditionUnknownNode
			}
			if n.Leaf.Kind == enum.ConditionKindTimeWindow {
				if _, err := parseClock(n.Leaf.WindowStart); err != nil {
					return Tree{}, err
				}
				if _, err := parseClock(n.Leaf.WindowEnd); err != nil {
					return Tree{}, err
				}
			} else if !n.Leaf.Operator.IsAvailable() {
				return Tree{}, exception.ErrConditionBadOperator
			}
		case NodeAnd, NodeOr:
			if len(n.Children) == 0 {
				return Tree{}, exception.ErrConditionNoChildren
			}
		case NodeNot:
			if len(n.Children) != 1 {
				return Tree{}, exception.ErrConditionNoChildren
			}
		default:
			return Tree{}, exception.ErrConditionUnknownNode
		}
		for _, c := range n.Children {
			if c < 0 || int(c) >= len(b.nodes) {
				return Tree{}, exception.ErrConditionBadChildIndex
			}
		}
	}
	nodes := make([]Node, len(b.nodes))
	copy(nodes, b.nodes)
	return Tree{nodes: nodes, root: root}, nil
}

// Snapshot is the market view a tree evaluates against.
type Snapshot struct {
	Ticks map[string]model.Tick
	// Prev holds the previous tick per symbol, required by cross operators.
	Prev map[string]model.Tick
	Now  time.Time
}

type tri uint8

const (
	triFalse tri = iota
	triTrue
	triUnknown
)

// Evaluate walks the tree with short-circuit combinators. Missing data
// yields unknown: false under AND, non-deciding under OR. The root result
// collapses unknown to false so the engine never fires on a data gap.
func (t Tree) Evaluate(snap Snapshot) (bool, []model.LeafEvidence) {
	if len(t.nodes) == 0 {
		return false, nil
	}
	var evidence []model.LeafEvidence
	result := t.eval(t.root, snap, &evidence)
	return result == triTrue, evidence
}

func (t Tree) eval(idx int32, snap Snapshot, evidence *[]model.LeafEvidence) tri {
	node := t.nodes[idx]
	switch node.Kind {
	case NodeLeaf:
		return evalLeaf(node.Leaf, snap, evidence)
	case NodeAnd:
		out := triTrue
		for _, c := range node.Children {
			switch t.eval(c, snap, evidence) {
			case triFalse, triUnknown:
				return triFalse
			}
		}
		return out
	case NodeOr:
		sawUnknown := false
		for _, c := range node.Children {
			switch t.eval(c, snap, evidence) {
			case triTrue:
				return triTrue
			case triUnknown:
				sawUnknown = true
			}
		}
		if sawUnknown {
			return triUnknown
		}
		return triFalse
	case NodeNot:
		switch t.eval(node.Children[0], snap, evidence) {
		case triTrue:
			return triFalse
		case triFalse:
			return triTrue
		default:
			return triUnknown
		}
	default:
		return triUnknown
	}
}

func evalLeaf(leaf Leaf, snap Snapshot, evidence *[]model.LeafEvidence) tri {
	if leaf.Kind == enum.ConditionKindTimeWindow {
		return evalTimeWindow(leaf, snap, evidence)
	}

	tick, ok := snap.Ticks[leaf.Symbol]
	if !ok {
		return triUnknown
	}

	var observed decimal.Decimal
	switch leaf.Kind {
	case enum.ConditionKindPrice:
		observed = tick.Price
	case enum.ConditionKindVolume:
		observed = tick.Volume
	case enum.ConditionKindIndicator:
		v, ok := tick.IndicatorValues[leaf.IndicatorName]
		if !ok {
			return triUnknown
		}
		observed = v
	case enum.ConditionKindMarketAlert:
		result := tick.MarketAlert
		appendEvidence(evidence, leaf, decimal.Zero, result)
		return boolToTri(result)
	default:
		return triUnknown
	}

	if observed.IsZero() && leaf.Kind == enum.ConditionKindPrice {
		return triUnknown
	}

	result, ok := compare(leaf, observed, snap)
	if !ok {
		return triUnknown
	}
	appendEvidence(evidence, leaf, observed, result)
	return boolToTri(result)
}

func compare(leaf Leaf, observed decimal.Decimal, snap Snapshot) (bool, bool) {
	switch leaf.Operator {
	case enum.OperatorGT:
		return observed.GreaterThan(leaf.Threshold), true
	case enum.OperatorGTE:
		return observed.GreaterThanOrEqual(leaf.Threshold), true
	case enum.OperatorLT:
		return observed.LessThan(leaf.Threshold), true
	case enum.OperatorLTE:
		return observed.LessThanOrEqual(leaf.Threshold), true
	case enum.OperatorEQ:
		return observed.Equal(leaf.Threshold), true
	case enum.OperatorNEQ:
		return !observed.Equal(leaf.Threshold), true
	case enum.OperatorCrossUp, enum.OperatorCrossDown:
		prev, ok := snap.Prev[leaf.Symbol]
		if !ok {
			return false, false
		}
		prevValue, ok := leafValue(leaf, prev)
		if !ok {
			return false, false
		}
		if leaf.Operator == enum.OperatorCrossUp {
			return prevValue.LessThanOrEqual(leaf.Threshold) && observed.GreaterThan(leaf.Threshold), true
		}
		return prevValue.GreaterThanOrEqual(leaf.Threshold) && observed.LessThan(leaf.Threshold), true
	default:
		return false, false
	}
}

func leafValue(leaf Leaf, tick model.Tick) (decimal.Decimal, bool) {
	switch leaf.Kind {
	case enum.ConditionKindPrice:
		return tick.Price, !tick.Price.IsZero()
	case enum.ConditionKindVolume:
		return tick.Volume, true
	case enum.ConditionKindIndicator:
		v, ok := tick.IndicatorValues[leaf.IndicatorName]
		return v, ok
	default:
		return decimal.Zero, false
	}
}

func evalTimeWindow(leaf Leaf, snap Snapshot, evidence *[]model.LeafEvidence) tri {
	start, err := parseClock(leaf.WindowStart)
	if err != nil {
		return triUnknown
	}
	end, err := parseClock(leaf.WindowEnd)
	if err != nil {
		return triUnknown
	}
	now := snap.Now.UTC()
	minute := now.Hour()*60 + now.Minute()

	var result bool
	if start <= end {
		result = minute >= start && minute < end
	} else {
		// window wraps midnight
		result = minute >= start || minute < end
	}
	appendEvidence(evidence, leaf, decimal.NewFromInt(int64(minute)), result)
	return boolToTri(result)
}

func parseClock(s string) (int, error) {
	if len(s) != 5 || s[2] != ':' {
		return 0, exception.ErrConditionBadTimeWindow
	}
	h := int(s[0]-'0')*10 + int(s[1]-'0')
	m := int(s[3]-'0')*10 + int(s[4]-'0')
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, exception.ErrConditionBadTimeWindow
	}
	return h*60 + m, nil
}

func appendEvidence(evidence *[]model.LeafEvidence, leaf Leaf, observed decimal.Decimal, result bool) {
	if evidence == nil {
		return
	}
	*evidence = append(*evidence, model.LeafEvidence{
		Kind:      leaf.Kind,
		Symbol:    leaf.Symbol,
		Operator:  leaf.Operator,
		Threshold: leaf.Threshold,
		Observed:  observed,
		Result:    result,
	})
}

func boolToTri(b bool) tri {
	if b {
		return triTrue
	}
	return triFalse
}
