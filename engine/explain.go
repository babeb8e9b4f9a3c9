package engine

import (
	"github.com/rushteam/cinerec/coldstart"
	"github.com/rushteam/cinerec/content"
	"github.com/rushteam/cinerec/core"
)

// Explanation 是单个 (用户, 影片) 对的打分解释：原始信号值 + 冷启动状态。
// 与推荐结果里的归一化分不同，这里给出的是未归一化的原始值
// （协同分是预测评分，内容分是相似度，流行度是先验分）。
type Explanation struct {
	UserID  int64           `json:"user_id"`
	MovieID int64           `json:"movie_id"`
	State   coldstart.State `json:"state"`

	Collaborative *float64 `json:"collaborative,omitempty"` // 预测评分（已裁剪到评分区间）
	Content       *float64 `json:"content,omitempty"`       // 内容相似分 [0, 1]
	Popularity    float64  `json:"popularity"`              // 流行度先验

	LowConfidence bool   `json:"low_confidence,omitempty"`
	Reason        string `json:"reason"`
}

// Explain 解释用户与影片之间的各路信号。影片不在候选全集时返回 UNKNOWN_ENTITY。
func (e *Engine) Explain(userID, movieID int64) (*Explanation, error) {
	model := e.model.Load()
	if model == nil {
		return nil, core.NewDomainError(core.ModuleEngine, core.ErrorCodeNoModel,
			"engine: no model trained yet")
	}
	if !model.knows(movieID) {
		return nil, core.NewDomainError(core.ModuleEngine, core.ErrorCodeUnknownEntity,
			"engine: movie not in catalog")
	}

	history := model.Snapshot.ByUser[userID]
	times := model.Snapshot.Times[userID]

	sig := coldstart.Signals{
		UserTrained:  model.MF.KnowsUser(userID),
		MovieTrained: model.MF.KnowsMovie(movieID),
		UserRatings:  model.MF.UserRatingCount(userID),
		MovieRatings: model.MF.MovieRatingCount(movieID),
		HasHistory:   len(history) > 0,
	}
	decision := e.policy.Decide(sig)

	out := &Explanation{
		UserID:        userID,
		MovieID:       movieID,
		State:         decision.State,
		Popularity:    model.Popularity[movieID],
		LowConfidence: decision.LowConfidence,
	}

	if decision.UseCollaborative {
		if pred, ok := model.MF.Predict(userID, movieID); ok {
			out.Collaborative = &pred
		}
	}
	if decision.UseContent || decision.UseCollaborative {
		if s, ok := model.Index.UserScore(movieID, history, times,
			e.cfg.Content.RecencyHalfLifeDays, model.TrainedAt); ok {
			out.Content = &s
		}
	}

	switch {
	case out.Collaborative != nil:
		out.Reason = reasonCollaborative
	case out.Content != nil:
		out.Reason = reasonContent
	default:
		out.Reason = reasonPopular
	}
	return out, nil
}

// SimilarItems 返回与给定影片内容最相似的 k 部影片。
// 影片不在候选全集时返回 UNKNOWN_ENTITY；没有特征向量时返回空列表。
func (e *Engine) SimilarItems(movieID int64, k int) ([]content.ScoredMovie, error) {
	model := e.model.Load()
	if model == nil {
		return nil, core.NewDomainError(core.ModuleEngine, core.ErrorCodeNoModel,
			"engine: no model trained yet")
	}
	if !model.knows(movieID) {
		return nil, core.NewDomainError(core.ModuleEngine, core.ErrorCodeUnknownEntity,
			"engine: movie not in catalog")
	}
	return model.Index.TopSimilar(movieID, k), nil
}

// knows 判断影片是否在模型的候选全集中。
func (m *Model) knows(movieID int64) bool {
	if m.Index.Has(movieID) || m.MF.KnowsMovie(movieID) {
		return true
	}
	_, ok := m.Popularity[movieID]
	return ok
}
