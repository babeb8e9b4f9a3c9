package rank

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/rushteam/cinerec/coldstart"
	"github.com/rushteam/cinerec/content"
	"github.com/rushteam/cinerec/core"
	"github.com/rushteam/cinerec/mf"
	"github.com/rushteam/cinerec/pipeline"
	"github.com/rushteam/cinerec/pkg/utils"
)

// FusionNode 是融合排序 Node：对每个候选收集协同/内容/流行度三路原始分，
// 在候选集内做 min/max 归一化，按冷启动判定把缺席信号的权重
// 等比例让渡给在场信号，最后加权求和并排序。
//
// 归一化的参照系是进入本节点的候选集（召回且过滤后），不是全目录；
// 融合分只承载候选之间的相对排序，不跨请求可比。
//
// 排序键：融合分降序 → 流行度降序 → 影片 ID 升序，保证结果确定。
type FusionNode struct {
	MF      *mf.Model
	Index   *content.Index
	Policy  *coldstart.Policy
	Weights core.FusionWeights

	// Popularity 返回影片的流行度先验分
	Popularity func(movieID int64) float64
	// History 返回用户评分历史与评分时间（内容分的出发点）
	History func(userID int64) (ratings map[int64]float64, times map[int64]int64)
	// HalfLifeDays 内容分的时间衰减半衰期（天）
	HalfLifeDays float64
	// Now 当前时间（默认 time.Now，测试可注入）
	Now func() time.Time
}

func (n *FusionNode) Name() string        { return "rank.fusion" }
func (n *FusionNode) Kind() pipeline.Kind { return pipeline.KindRank }

// rawSignals 是单个候选的三路原始分。
type rawSignals struct {
	item     *core.Item
	decision coldstart.Decision

	collab     float64
	hasCollab  bool
	content    float64
	hasContent bool
	popularity float64
}

func (n *FusionNode) Process(
	_ context.Context,
	rctx *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	if len(items) == 0 {
		return items, nil
	}

	weights := n.Weights
	if rctx.Weights != nil {
		weights = *rctx.Weights
	}

	var (
		history map[int64]float64
		times   map[int64]int64
	)
	if n.History != nil {
		history, times = n.History(rctx.UserID)
	}
	hasHistory := len(history) > 0
	hasSeeds := len(rctx.Seeds) > 0

	var seedVec map[string]float64
	if n.Index != nil && hasSeeds {
		seedVec = n.Index.SeedVector(rctx.Seeds)
	}

	now := time.Now()
	if n.Now != nil {
		now = n.Now()
	}

	// 第一遍：收集原始分
	rows := make([]*rawSignals, 0, len(items))
	for _, it := range items {
		if it == nil {
			continue
		}
		row := &rawSignals{item: it}

		userTrained := n.MF != nil && n.MF.KnowsUser(rctx.UserID)
		movieTrained := n.MF != nil && n.MF.KnowsMovie(it.ID)
		sig := coldstart.Signals{
			UserTrained:  userTrained,
			MovieTrained: movieTrained,
			HasHistory:   hasHistory,
			HasSeeds:     hasSeeds,
		}
		if n.MF != nil {
			sig.UserRatings = n.MF.UserRatingCount(rctx.UserID)
			sig.MovieRatings = n.MF.MovieRatingCount(it.ID)
		}
		row.decision = n.Policy.Decide(sig)

		if row.decision.UseCollaborative {
			if pred, ok := n.MF.Predict(rctx.UserID, it.ID); ok {
				row.collab = pred
				row.hasCollab = true
			}
		}

		if row.decision.UseContent && n.Index != nil && n.Index.Has(it.ID) {
			score := 0.0
			got := false
			if hasHistory {
				if s, ok := n.Index.UserScore(it.ID, history, times, n.HalfLifeDays, now); ok {
					score = s
					got = true
				}
			}
			if hasSeeds && len(seedVec) > 0 {
				if s, ok := n.Index.SeedScore(seedVec, it.ID); ok {
					if !got || s > score {
						score = s
					}
					got = true
				}
			}
			if got {
				row.content = score
				row.hasContent = true
			}
		}

		if n.Popularity != nil {
			row.popularity = n.Popularity(it.ID)
		}
		rows = append(rows, row)
	}

	// 第二遍：候选集内 min/max 归一化（max==min 时取 1.0）
	collabNorm := newNormalizer()
	contentNorm := newNormalizer()
	popNorm := newNormalizer()
	for _, row := range rows {
		if row.hasCollab {
			collabNorm.observe(row.collab)
		}
		if row.hasContent {
			contentNorm.observe(row.content)
		}
		popNorm.observe(row.popularity)
	}

	// 第三遍：权重让渡与加权求和
	for _, row := range rows {
		alpha, beta, gamma := 0.0, 0.0, weights.Gamma
		if row.hasCollab {
			alpha = n.Policy.DampAlpha(weights.Alpha, row.decision.LowConfidence)
		}
		if row.hasContent {
			beta = weights.Beta
		}
		total := alpha + beta + gamma

		bd := core.ScoreBreakdown{
			Popularity:    popNorm.scale(row.popularity),
			Alpha:         alpha,
			Beta:          beta,
			Gamma:         gamma,
			LowConfidence: row.decision.LowConfidence,
		}

		final := 0.0
		if total > 0 {
			if row.hasCollab {
				s := collabNorm.scale(row.collab)
				bd.Collaborative = &s
				final += alpha * s
			}
			if row.hasContent {
				s := contentNorm.scale(row.content)
				bd.Content = &s
				final += beta * s
			}
			final += gamma * bd.Popularity
			final /= total
		} else {
			// 三路权重全为零时退化为纯流行度排序
			final = bd.Popularity
		}
		bd.Final = final

		row.item.Score = final
		row.item.Breakdown = bd
		row.item.PutLabel("coldstart_state", utils.Label{
			Value:  string(row.decision.State),
			Source: "rank.fusion",
		})
	}

	out := make([]*core.Item, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.item)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		if out[i].Breakdown.Popularity != out[j].Breakdown.Popularity {
			return out[i].Breakdown.Popularity > out[j].Breakdown.Popularity
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// normalizer 做候选集内的 min/max 归一化。
type normalizer struct {
	min, max float64
	seen     bool
}

func newNormalizer() *normalizer {
	return &normalizer{min: math.Inf(1), max: math.Inf(-1)}
}

func (z *normalizer) observe(v float64) {
	z.seen = true
	if v < z.min {
		z.min = v
	}
	if v > z.max {
		z.max = v
	}
}

// scale 把 v 映射到 [0,1]；候选集内所有值相同时统一取 1.0。
func (z *normalizer) scale(v float64) float64 {
	if !z.seen {
		return 0
	}
	if z.max == z.min {
		return 1.0
	}
	return (v - z.min) / (z.max - z.min)
}
