package content

import (
	"math"
	"time"
)

const secondsPerDay = 86400

// UserScore 计算候选影片对某用户的内容分：
// 用户历史评分影片与候选影片相似度的加权平均，
// 权重 = 评分值 × 时间衰减（近期、高分的历史影片权重更大）。
//
// 用户没有评分历史时返回 (0, false)，内容信号缺席，交由冷启动策略处理。
func (idx *Index) UserScore(
	movieID int64,
	history map[int64]float64, // 用户评分历史：movie -> rating
	times map[int64]int64, // movie -> unix 秒（0 表示未知，不衰减）
	halfLifeDays float64,
	now time.Time,
) (float64, bool) {
	if idx == nil || len(history) == 0 {
		return 0, false
	}
	candidate, ok := idx.Vectors[movieID]
	if !ok {
		return 0, false
	}

	var weighted, total float64
	for ratedID, rating := range history {
		vec, ok := idx.Vectors[ratedID]
		if !ok {
			continue
		}
		w := rating
		if halfLifeDays > 0 {
			if ts := times[ratedID]; ts > 0 {
				ageDays := now.Sub(time.Unix(ts, 0)).Seconds() / secondsPerDay
				if ageDays > 0 {
					w *= math.Exp2(-ageDays / halfLifeDays)
				}
			}
		}
		sim := dotSparse(candidate, vec)
		if ratedID == movieID {
			sim = 1
		}
		weighted += w * sim
		total += w
	}
	if total == 0 {
		return 0, false
	}
	return weighted / total, true
}
