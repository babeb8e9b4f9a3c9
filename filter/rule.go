package filter

import (
	"context"

	"github.com/rushteam/cinerec/core"
	"github.com/rushteam/cinerec/pkg/dsl"
)

// RuleFilter 是规则过滤器：用 CEL 表达式描述过滤条件，
// 表达式返回 true 时该物品被过滤。
//
// 示例：
//   - `label.recall_source == "hot"` → 过滤纯热门召回的物品
//   - `item.score < 0.1` → 过滤低分物品
type RuleFilter struct {
	// Rules 是 CEL 表达式列表，命中任意一条即过滤
	Rules []string
}

func (f *RuleFilter) Name() string {
	return "filter.rule"
}

func (f *RuleFilter) ShouldFilter(
	_ context.Context,
	rctx *core.RecommendContext,
	item *core.Item,
) (bool, error) {
	if item == nil {
		return true, nil
	}
	if len(f.Rules) == 0 {
		return false, nil
	}

	eval := dsl.NewEval(item, rctx)
	for _, rule := range f.Rules {
		hit, err := eval.Evaluate(rule)
		if err != nil {
			// 规则有误时跳过该条，不影响其余规则
			continue
		}
		if hit {
			return true, nil
		}
	}
	return false, nil
}
