package recall

import (
	"context"
	"sort"

	"github.com/rushteam/cinerec/content"
	"github.com/rushteam/cinerec/core"
	"github.com/rushteam/cinerec/pipeline"
)

// Content 是内容相似召回源：从用户的高分历史与偏好种子出发，
// 在特征向量索引里找近邻作为候选。
// Content 同时实现了 Source 和 Node 接口，可以直接在 Pipeline 中使用。
type Content struct {
	Index *content.Index
	// Liked 返回用户的高分历史影片 ID（无历史时返回空）
	Liked func(userID int64) []int64
	// PerSeed 每个出发点取多少近邻（0 表示默认 20）
	PerSeed int
}

func (r *Content) Name() string        { return "recall.content" }
func (r *Content) Kind() pipeline.Kind { return pipeline.KindRecall }

func (r *Content) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	_ []*core.Item,
) ([]*core.Item, error) {
	return r.Recall(ctx, rctx)
}

func (r *Content) Recall(
	_ context.Context,
	rctx *core.RecommendContext,
) ([]*core.Item, error) {
	if r.Index == nil {
		return nil, nil
	}
	perSeed := r.PerSeed
	if perSeed <= 0 {
		perSeed = 20
	}

	best := make(map[int64]float64)

	// 历史出发：每部高分影片取近邻
	if r.Liked != nil {
		for _, movieID := range r.Liked(rctx.UserID) {
			for _, sm := range r.Index.TopSimilar(movieID, perSeed) {
				if sm.Score > best[sm.MovieID] {
					best[sm.MovieID] = sm.Score
				}
			}
		}
	}

	// 种子出发：把偏好种子投影成向量后对全目录打分
	if len(rctx.Seeds) > 0 {
		seedVec := r.Index.SeedVector(rctx.Seeds)
		if len(seedVec) > 0 {
			type scored struct {
				id    int64
				score float64
			}
			var hits []scored
			for movieID := range r.Index.Vectors {
				if s, ok := r.Index.SeedScore(seedVec, movieID); ok && s > 0 {
					hits = append(hits, scored{movieID, s})
				}
			}
			sort.Slice(hits, func(i, j int) bool {
				if hits[i].score != hits[j].score {
					return hits[i].score > hits[j].score
				}
				return hits[i].id < hits[j].id
			})
			if len(hits) > perSeed {
				hits = hits[:perSeed]
			}
			for _, h := range hits {
				if h.score > best[h.id] {
					best[h.id] = h.score
				}
			}
		}
	}

	ids := make([]int64, 0, len(best))
	for id := range best {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if best[ids[i]] != best[ids[j]] {
			return best[ids[i]] > best[ids[j]]
		}
		return ids[i] < ids[j]
	})

	out := make([]*core.Item, 0, len(ids))
	for _, id := range ids {
		it := core.NewItem(id)
		it.Score = best[id]
		out = append(out, it)
	}
	return out, nil
}
