// Package coldstart 实现冷启动策略：对每个 (用户, 影片) 对判定哪些信号可用，
// 协同数据缺席时把权重让给内容与流行度。
//
// 与其把冷启动分支散落在打分代码里，这里用显式状态机表达：
// 状态可枚举、转移确定、可独立测试。任何冷启动状态都不是错误：
// 终态 PopularityOnly 返回纯流行度榜单，而不是失败。
package coldstart

import "github.com/rushteam/cinerec/core"

// State 是冷启动状态机的命名状态。
type State string

const (
	// StateFull 协同 + 内容 + 流行度全部可用
	StateFull State = "full"
	// StateLowConfidence 协同分可用但评分数不足阈值，低置信
	StateLowConfidence State = "low_confidence"
	// StateColdUser 用户无协同数据：权重让给内容（有种子/历史时）与流行度
	StateColdUser State = "cold_user"
	// StateColdMovie 影片无协同数据：仅该影片退化为内容 + 流行度
	StateColdMovie State = "cold_movie"
	// StatePopularityOnly 终态兜底：纯流行度榜单，永不报错
	StatePopularityOnly State = "popularity_only"
)

// Signals 是一次判定的输入：训练快照与请求上下文能提供什么。
type Signals struct {
	UserTrained  bool // 用户是否有训练好的嵌入
	MovieTrained bool // 影片是否有训练好的嵌入
	UserRatings  int  // 训练快照中用户的评分条数
	MovieRatings int  // 训练快照中影片的评分条数
	HasHistory   bool // 用户是否有评分历史（内容分可从历史出发）
	HasSeeds     bool // 用户是否提供了偏好种子（内容分可从种子出发）
}

// Decision 是状态机对单个 (用户, 影片) 对的输出。
type Decision struct {
	State            State
	UseCollaborative bool
	LowConfidence    bool
	UseContent       bool
}

// Policy 按配置阈值执行状态判定。
type Policy struct {
	cfg core.ColdStartConfig
}

func New(cfg core.ColdStartConfig) *Policy {
	return &Policy{cfg: cfg}
}

// Decide 对一个 (用户, 影片) 对做信号可用性判定。
func (p *Policy) Decide(in Signals) Decision {
	contentUsable := in.HasHistory || in.HasSeeds

	switch {
	case !in.UserTrained && !contentUsable:
		// 完全未知的用户且无种子：纯流行度兜底
		return Decision{State: StatePopularityOnly}

	case !in.UserTrained:
		return Decision{State: StateColdUser, UseContent: true}

	case !in.MovieTrained:
		return Decision{State: StateColdMovie, UseContent: contentUsable}
	}

	low := in.UserRatings < p.cfg.MinUserRatings || in.MovieRatings < p.cfg.MinMovieRatings
	state := StateFull
	if low {
		state = StateLowConfidence
	}
	return Decision{
		State:            state,
		UseCollaborative: true,
		LowConfidence:    low,
		UseContent:       contentUsable,
	}
}

// UserState 给出用户级状态（请求级标签与观测用）。
func (p *Policy) UserState(userTrained, hasHistory, hasSeeds bool) State {
	switch {
	case !userTrained && !hasHistory && !hasSeeds:
		return StatePopularityOnly
	case !userTrained:
		return StateColdUser
	default:
		return StateFull
	}
}

// DampAlpha 按配置对低置信协同分的 α 做乘性降权。
func (p *Policy) DampAlpha(alpha float64, low bool) float64 {
	if low && p.cfg.DampLowConfidence {
		return alpha * p.cfg.LowConfidenceFactor
	}
	return alpha
}
