package filter

import (
	"context"

	"github.com/rushteam/cinerec/core"
)

// SeenFilter 过滤用户已经看过（评过分）的影片，以及请求显式排除的影片。
// 排除集合永远优先：无论某部影片在融合打分里多高，都不会出现在结果里。
type SeenFilter struct {
	// Rated 返回用户已评分的影片 ID 集合（可为 nil）
	Rated func(userID int64) map[int64]struct{}
}

func (f *SeenFilter) Name() string {
	return "filter.seen"
}

func (f *SeenFilter) ShouldFilter(
	_ context.Context,
	rctx *core.RecommendContext,
	item *core.Item,
) (bool, error) {
	if item == nil {
		return true, nil
	}
	if rctx.Excluded(item.ID) {
		return true, nil
	}
	if f.Rated != nil {
		if _, ok := f.Rated(rctx.UserID)[item.ID]; ok {
			return true, nil
		}
	}
	return false, nil
}
