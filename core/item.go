package core

import "github.com/rushteam/cinerec/pkg/utils"

// ScoreBreakdown 是单个候选影片的打分明细，随请求构建、随响应丢弃。
// Collaborative / Content 为 nil 表示该信号对这部影片不可用（冷启动重分配权重，
// 而不是按 0 参与加权）。
type ScoreBreakdown struct {
	Collaborative *float64 `json:"collaborative,omitempty"` // 归一化后的协同过滤分
	Content       *float64 `json:"content,omitempty"`       // 归一化后的内容相似分
	Popularity    float64  `json:"popularity"`              // 归一化后的流行度先验
	Final         float64  `json:"final"`                   // 融合后的最终分

	// 实际生效的权重（冷启动重分配之后）
	Alpha float64 `json:"alpha"`
	Beta  float64 `json:"beta"`
	Gamma float64 `json:"gamma"`

	// LowConfidence 表示协同分来自评分数不足的用户/影片
	LowConfidence bool `json:"low_confidence,omitempty"`
}

// Item 是推荐链路中的统一承载结构：分数、打分明细、标签。
// Labels 用于解释与策略驱动；Score 用于排序决策。
type Item struct {
	ID        int64
	Score     float64
	Breakdown ScoreBreakdown
	Labels    map[string]utils.Label
}

func NewItem(id int64) *Item {
	return &Item{
		ID:     id,
		Labels: make(map[string]utils.Label),
	}
}

// PutLabel 写入 Label；若已存在同名 key，则按默认 Merge 规则累积。
func (it *Item) PutLabel(key string, lbl utils.Label) {
	if it.Labels == nil {
		it.Labels = make(map[string]utils.Label)
	}
	if old, ok := it.Labels[key]; ok {
		it.Labels[key] = utils.MergeLabel(old, lbl)
		return
	}
	it.Labels[key] = lbl
}

// GetLabel 获取 Label。
func (it *Item) GetLabel(key string) (utils.Label, bool) {
	if it.Labels == nil {
		return utils.Label{}, false
	}
	lbl, ok := it.Labels[key]
	return lbl, ok
}
