package core

// Rating 是一条用户对影片的评分。
// 同一 (UserID, MovieID) 至多保留一条，后写覆盖先写。
type Rating struct {
	UserID    int64
	MovieID   int64
	Value     float64
	Timestamp int64 // Unix 秒，可选（0 表示未知）
}

// RatingBounds 是评分的合法区间。MovieLens 风格数据默认 [0.5, 5.0]。
type RatingBounds struct {
	Min float64
	Max float64
}

// DefaultRatingBounds 返回默认评分区间。
func DefaultRatingBounds() RatingBounds {
	return RatingBounds{Min: 0.5, Max: 5.0}
}

// Clip 把预测值裁剪到合法区间内。
func (b RatingBounds) Clip(v float64) float64 {
	if v < b.Min {
		return b.Min
	}
	if v > b.Max {
		return b.Max
	}
	return v
}

// Valid 判断评分值是否落在区间内。
func (b RatingBounds) Valid(v float64) bool {
	return v >= b.Min && v <= b.Max
}
