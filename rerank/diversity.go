package rerank

import (
	"context"

	"github.com/rushteam/cinerec/content"
	"github.com/rushteam/cinerec/core"
	"github.com/rushteam/cinerec/pipeline"
)

// Diversity 是多样性重排 Node：贪心选取，对与已选影片内容过于相似的
// 候选做乘性降权（有效分 = 融合分 × (1 - Penalty × 与已选的最大相似度)），
// 每轮选有效分最高的一个。Penalty 为 0 时退化为原始排序。
//
// 只重排前 Window 个候选（0 表示全部），其余保持原序追加。
type Diversity struct {
	Index   *content.Index
	Penalty float64
	Window  int
}

func (n *Diversity) Name() string {
	return "rerank.diversity"
}

func (n *Diversity) Kind() pipeline.Kind {
	return pipeline.KindReRank
}

func (n *Diversity) Process(
	_ context.Context,
	_ *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	if len(items) <= 1 || n.Penalty <= 0 || n.Index == nil {
		return items, nil
	}

	window := n.Window
	if window <= 0 || window > len(items) {
		window = len(items)
	}

	pool := make([]*core.Item, window)
	copy(pool, items[:window])

	out := make([]*core.Item, 0, len(items))
	selected := make([]int64, 0, window)

	for len(pool) > 0 {
		bestIdx := 0
		bestScore := n.effective(pool[0], selected)
		for i := 1; i < len(pool); i++ {
			s := n.effective(pool[i], selected)
			// 同分时保持原序（pool 本身即原序）
			if s > bestScore {
				bestIdx = i
				bestScore = s
			}
		}
		pick := pool[bestIdx]
		out = append(out, pick)
		selected = append(selected, pick.ID)
		pool = append(pool[:bestIdx], pool[bestIdx+1:]...)
	}

	out = append(out, items[window:]...)
	return out, nil
}

// effective 计算候选在已选集合下的有效分。
func (n *Diversity) effective(it *core.Item, selected []int64) float64 {
	if it == nil {
		return 0
	}
	maxSim := 0.0
	for _, id := range selected {
		if s := n.Index.Similarity(it.ID, id); s > maxSim {
			maxSim = s
		}
	}
	return it.Score * (1 - n.Penalty*maxSim)
}
