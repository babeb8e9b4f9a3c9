package core

import "github.com/rushteam/cinerec/pkg/utils"

// RecommendContext 承载一次推荐请求的用户与参数信息，贯穿整个 Pipeline 透传。
type RecommendContext struct {
	UserID int64

	// N 期望返回的推荐数量
	N int

	// Exclude 请求方显式排除的影片（已曝光/已在播放列表等）。
	// 用户已评分的影片由 filter.Seen 另行排除。
	Exclude map[int64]struct{}

	// Seeds 是新用户的偏好种子：特征类别 -> token 列表（如 genre -> [sci-fi]）。
	// 没有评分历史时，内容信号可以从种子向量出发。
	Seeds map[string][]string

	// Weights 本次请求的融合权重；零值表示使用引擎配置的默认值。
	Weights *FusionWeights

	// Labels 是请求级标签，可驱动整个 Pipeline 行为（如 "new_user"）。
	Labels map[string]utils.Label

	// Params 请求级上下文参数（设备、场景等），供过滤规则引用。
	Params map[string]any
}

// Excluded 判断影片是否在显式排除集中。
func (rctx *RecommendContext) Excluded(movieID int64) bool {
	if rctx.Exclude == nil {
		return false
	}
	_, ok := rctx.Exclude[movieID]
	return ok
}

// PutLabel 写入请求级 Label。
func (rctx *RecommendContext) PutLabel(key string, lbl utils.Label) {
	if rctx.Labels == nil {
		rctx.Labels = make(map[string]utils.Label)
	}
	if old, ok := rctx.Labels[key]; ok {
		rctx.Labels[key] = utils.MergeLabel(old, lbl)
		return
	}
	rctx.Labels[key] = lbl
}
