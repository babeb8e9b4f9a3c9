// Package mf 实现隐因子评分预测（带偏置项的矩阵分解，SGD 训练）。
//
// 预测分 = 全局偏置 + 用户偏置 + 影片偏置 + 用户向量·影片向量。
// 模型离线训练、在线查表；训练产物是不可变值，整体替换、从不原地修改。
package mf

import (
	"github.com/rushteam/cinerec/core"
)

// Model 是一次训练运行的产物：用户/影片嵌入与偏置项。
// 训练完成后只读；每次重训整体重建（replace, don't patch）。
type Model struct {
	Factors      int                 `json:"factors"`
	GlobalBias   float64             `json:"global_bias"`
	UserBias     map[int64]float64   `json:"user_bias"`
	MovieBias    map[int64]float64   `json:"movie_bias"`
	UserFactors  map[int64][]float64 `json:"user_factors"`
	MovieFactors map[int64][]float64 `json:"movie_factors"`

	// 训练快照中每个 id 的评分条数，冷启动策略据此判断低置信
	UserCounts  map[int64]int `json:"user_counts"`
	MovieCounts map[int64]int `json:"movie_counts"`

	// EpochRMSE 每轮训练后的训练集 RMSE，用于收敛观测
	EpochRMSE []float64 `json:"epoch_rmse"`

	Bounds core.RatingBounds `json:"bounds"`
}

// Predict 预测用户对影片的评分，裁剪到合法评分区间。
// 任一 id 未被训练（零嵌入，冷启动场景）时返回 (0, false)，
// 绝不悄悄编造一个默认分。
func (m *Model) Predict(userID, movieID int64) (float64, bool) {
	if m == nil {
		return 0, false
	}
	pu, uok := m.UserFactors[userID]
	qi, iok := m.MovieFactors[movieID]
	if !uok || !iok {
		return 0, false
	}

	pred := m.GlobalBias + m.UserBias[userID] + m.MovieBias[movieID]
	for f := 0; f < m.Factors; f++ {
		pred += pu[f] * qi[f]
	}
	return m.Bounds.Clip(pred), true
}

// KnowsUser 判断用户是否出现在训练快照中。
func (m *Model) KnowsUser(userID int64) bool {
	if m == nil {
		return false
	}
	_, ok := m.UserFactors[userID]
	return ok
}

// KnowsMovie 判断影片是否出现在训练快照中。
func (m *Model) KnowsMovie(movieID int64) bool {
	if m == nil {
		return false
	}
	_, ok := m.MovieFactors[movieID]
	return ok
}

// UserRatingCount 返回训练快照中该用户的评分条数。
func (m *Model) UserRatingCount(userID int64) int {
	if m == nil {
		return 0
	}
	return m.UserCounts[userID]
}

// MovieRatingCount 返回训练快照中该影片的评分条数。
func (m *Model) MovieRatingCount(movieID int64) int {
	if m == nil {
		return 0
	}
	return m.MovieCounts[movieID]
}
