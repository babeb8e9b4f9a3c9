package pipeline

import (
	"context"

	"github.com/rushteam/cinerec/core"
)

// Pipeline 是 cinerec 的核心抽象：把推荐逻辑拆成可组合的 Node 链
// （召回 → 过滤 → 融合排序 → 多样性重排 → 截断）。
type Pipeline struct {
	Nodes []Node
}

func (p *Pipeline) Run(
	ctx context.Context,
	rctx *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	cur := items
	for _, node := range p.Nodes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		next, err := node.Process(ctx, rctx, cur)
		if err != nil {
			return nil, err
		}
		cur = next
	}
	return cur, nil
}
