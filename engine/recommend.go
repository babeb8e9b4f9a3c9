package engine

import (
	"context"
	"errors"

	"github.com/rushteam/cinerec/coldstart"
	"github.com/rushteam/cinerec/core"
	"github.com/rushteam/cinerec/filter"
	"github.com/rushteam/cinerec/pipeline"
	"github.com/rushteam/cinerec/pkg/utils"
	"github.com/rushteam/cinerec/rank"
	"github.com/rushteam/cinerec/recall"
	"github.com/rushteam/cinerec/rerank"
)

const defaultN = 10

// Recommend 执行一次推荐请求。
//
// 行为约定：
//   - 从未训练过模型时返回 NO_MODEL（唯一的硬错误）
//   - 请求超时（cfg.RequestTimeout 或调用方 ctx）降级返回流行度榜单，不报错
//   - 未知用户走冷启动链路：有种子走内容，无种子走流行度兜底
//   - 显式排除与已评分影片永远不出现在结果里
func (e *Engine) Recommend(ctx context.Context, rctx *core.RecommendContext) ([]*core.Item, error) {
	model := e.model.Load()
	if model == nil {
		return nil, core.NewDomainError(core.ModuleEngine, core.ErrorCodeNoModel,
			"engine: no model trained yet")
	}
	if rctx == nil {
		rctx = &core.RecommendContext{}
	}
	if rctx.N <= 0 {
		rctx.N = defaultN
	}

	// 请求级冷启动状态：可观测，排除规则可通过 rctx.labels 引用
	userState := e.policy.UserState(
		model.MF.KnowsUser(rctx.UserID),
		len(model.Snapshot.ByUser[rctx.UserID]) > 0,
		len(rctx.Seeds) > 0,
	)
	rctx.PutLabel("user_state", utils.Label{Value: string(userState), Source: "engine"})

	if e.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.RequestTimeout)
		defer cancel()
	}

	p := e.buildPipeline(model, rctx)

	type result struct {
		items []*core.Item
		err   error
	}
	done := make(chan result, 1)
	go func() {
		items, err := p.Run(ctx, rctx, nil)
		done <- result{items: items, err: err}
	}()

	select {
	case <-ctx.Done():
		// 超时降级：流行度榜单，永不报错
		return e.popularityFallback(model, rctx), nil
	case res := <-done:
		if res.err != nil {
			if errors.Is(res.err, context.DeadlineExceeded) || errors.Is(res.err, context.Canceled) {
				return e.popularityFallback(model, rctx), nil
			}
			return nil, res.err
		}
		attachReasons(res.items)
		return res.items, nil
	}
}

// buildPipeline 按当前模型组装请求级 Pipeline。
func (e *Engine) buildPipeline(model *Model, rctx *core.RecommendContext) *pipeline.Pipeline {
	history := func(userID int64) (map[int64]float64, map[int64]int64) {
		return model.Snapshot.ByUser[userID], model.Snapshot.Times[userID]
	}
	rated := func(userID int64) map[int64]struct{} {
		ratings := model.Snapshot.ByUser[userID]
		if len(ratings) == 0 {
			return nil
		}
		out := make(map[int64]struct{}, len(ratings))
		for id := range ratings {
			out[id] = struct{}{}
		}
		return out
	}

	nodes := []pipeline.Node{
		&recall.Fanout{
			Sources: []recall.Source{
				&recall.Catalog{MovieIDs: func() []int64 { return model.CatalogIDs }},
			},
			Dedup: true,
		},
		&filter.FilterNode{Filters: []filter.Filter{&filter.SeenFilter{Rated: rated}}},
		&rank.FusionNode{
			MF:      model.MF,
			Index:   model.Index,
			Policy:  e.policy,
			Weights: e.cfg.Weights,
			Popularity: func(movieID int64) float64 {
				return model.Popularity[movieID]
			},
			History:      history,
			HalfLifeDays: e.cfg.Content.RecencyHalfLifeDays,
		},
	}
	// 排除规则在融合打分之后执行：此时 item.score / item.breakdown /
	// coldstart_state 标签都已就绪，规则可以引用它们
	if len(e.cfg.ExcludeRules) > 0 {
		nodes = append(nodes, &filter.FilterNode{
			Filters: []filter.Filter{&filter.RuleFilter{Rules: e.cfg.ExcludeRules}},
		})
	}
	if e.cfg.DiversityPenalty > 0 {
		nodes = append(nodes, &rerank.Diversity{
			Index:   model.Index,
			Penalty: e.cfg.DiversityPenalty,
			Window:  rctx.N * 3,
		})
	}
	nodes = append(nodes, &rerank.TopNNode{N: rctx.N})

	return &pipeline.Pipeline{Nodes: nodes}
}

// popularityFallback 生成纯流行度榜单：按流行度降序，跳过排除集与已评分影片。
func (e *Engine) popularityFallback(model *Model, rctx *core.RecommendContext) []*core.Item {
	rated := model.Snapshot.ByUser[rctx.UserID]

	out := make([]*core.Item, 0, rctx.N)
	for _, movieID := range model.PopularityRank {
		if rctx.Excluded(movieID) {
			continue
		}
		if _, ok := rated[movieID]; ok {
			continue
		}
		it := core.NewItem(movieID)
		it.Score = model.Popularity[movieID]
		it.Breakdown = core.ScoreBreakdown{
			Popularity: model.Popularity[movieID],
			Final:      model.Popularity[movieID],
			Gamma:      1,
		}
		it.PutLabel("coldstart_state", utils.Label{
			Value:  string(coldstart.StatePopularityOnly),
			Source: "engine.fallback",
		})
		it.PutLabel("reason", utils.Label{Value: reasonPopular, Source: "engine.fallback"})
		out = append(out, it)
		if len(out) >= rctx.N {
			break
		}
	}
	return out
}

// 推荐理由文案（对外展示用，来自打分明细的主导信号）。
const (
	reasonCollaborative = "users with similar taste rated this highly"
	reasonContent       = "similar to movies you like"
	reasonPopular       = "popular with all users"
)

// attachReasons 根据打分明细的主导信号为每个结果补充 reason 标签。
func attachReasons(items []*core.Item) {
	for _, it := range items {
		if it == nil {
			continue
		}
		bd := it.Breakdown

		collab, contentPart := 0.0, 0.0
		if bd.Collaborative != nil {
			collab = bd.Alpha * *bd.Collaborative
		}
		if bd.Content != nil {
			contentPart = bd.Beta * *bd.Content
		}
		popular := bd.Gamma * bd.Popularity

		reason := reasonPopular
		switch {
		case collab >= contentPart && collab >= popular && bd.Collaborative != nil:
			reason = reasonCollaborative
		case contentPart >= popular && bd.Content != nil:
			reason = reasonContent
		}
		it.PutLabel("reason", utils.Label{Value: reason, Source: "engine"})
	}
}
