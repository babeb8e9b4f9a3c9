// Package matrix 实现评分矩阵存储：内存稀疏矩阵 + 不可变快照。
//
// 写入端单写者串行（互斥锁），读端只通过 Snapshot 拿到的深拷贝视图访问，
// 训练与在线请求永远不会读到半更新状态。
package matrix

import (
	"math"
	"sync"
	"time"

	"github.com/rushteam/cinerec/core"
)

// RatingMatrix 是 (user, movie, rating) 三元组的内存稀疏存储。
// 同一 (user, movie) 至多一条记录，后写覆盖先写。
type RatingMatrix struct {
	mu     sync.RWMutex
	bounds core.RatingBounds
	byUser map[int64]map[int64]core.Rating
}

// New 创建一个评分矩阵，越界评分在摄入时被拒绝。
func New(bounds core.RatingBounds) *RatingMatrix {
	return &RatingMatrix{
		bounds: bounds,
		byUser: make(map[int64]map[int64]core.Rating),
	}
}

// Ingest 批量摄入评分，返回实际接受的条数。
// 值越界的记录被丢弃；重复 (user, movie) 以最后摄入的为准。
func (m *RatingMatrix) Ingest(ratings []core.Rating) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	accepted := 0
	for _, r := range ratings {
		if !m.bounds.Valid(r.Value) {
			continue
		}
		if m.byUser[r.UserID] == nil {
			m.byUser[r.UserID] = make(map[int64]core.Rating)
		}
		m.byUser[r.UserID][r.MovieID] = r
		accepted++
	}
	return accepted
}

// UserRatingCount 返回某用户的评分条数（冷启动阈值判断用）。
func (m *RatingMatrix) UserRatingCount(userID int64) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byUser[userID])
}

// MovieRatingCount 返回某影片收到的评分条数。
func (m *RatingMatrix) MovieRatingCount(movieID int64) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, ratings := range m.byUser {
		if _, ok := ratings[movieID]; ok {
			n++
		}
	}
	return n
}

// Len 返回矩阵中的评分总条数。
func (m *RatingMatrix) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, ratings := range m.byUser {
		n += len(ratings)
	}
	return n
}

// Snapshot 生成当前矩阵的不可变视图（深拷贝）。
// 训练任务在快照上运行，摄入新评分不影响已取走的快照。
func (m *RatingMatrix) Snapshot() *Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := &Snapshot{
		ByUser:  make(map[int64]map[int64]float64, len(m.byUser)),
		ByMovie: make(map[int64]map[int64]float64),
		Times:   make(map[int64]map[int64]int64, len(m.byUser)),
		TakenAt: time.Now(),
	}

	var sum float64
	for userID, ratings := range m.byUser {
		if len(ratings) == 0 {
			continue
		}
		values := make(map[int64]float64, len(ratings))
		times := make(map[int64]int64, len(ratings))
		for movieID, r := range ratings {
			values[movieID] = r.Value
			times[movieID] = r.Timestamp
			if snap.ByMovie[movieID] == nil {
				snap.ByMovie[movieID] = make(map[int64]float64)
			}
			snap.ByMovie[movieID][userID] = r.Value
			sum += r.Value
			snap.Count++
		}
		snap.ByUser[userID] = values
		snap.Times[userID] = times
	}
	if snap.Count > 0 {
		snap.GlobalMean = sum / float64(snap.Count)
	}
	return snap
}

// Snapshot 是评分矩阵的不可变视图：正排、倒排、时间戳与全局统计。
// 快照产出后不再修改；持有方可以无锁并发读取。
type Snapshot struct {
	ByUser     map[int64]map[int64]float64 // user -> movie -> rating
	ByMovie    map[int64]map[int64]float64 // movie -> user -> rating（转置视图）
	Times      map[int64]map[int64]int64   // user -> movie -> unix 秒
	Count      int
	GlobalMean float64
	TakenAt    time.Time
}

// UserRatingCount 返回快照中某用户的评分条数。
func (s *Snapshot) UserRatingCount(userID int64) int {
	return len(s.ByUser[userID])
}

// MovieRatingCount 返回快照中某影片的评分条数。
func (s *Snapshot) MovieRatingCount(movieID int64) int {
	return len(s.ByMovie[movieID])
}

// Popularity 计算流行度先验：收缩均值 × log(1+评分数)。
// 收缩均值把小样本影片往全局均值拉，避免"一条五星"霸榜；
// log 因子让被大量评分的影片获得更高先验。
func (s *Snapshot) Popularity(shrink float64) map[int64]float64 {
	out := make(map[int64]float64, len(s.ByMovie))
	for movieID, users := range s.ByMovie {
		var sum float64
		for _, v := range users {
			sum += v
		}
		n := float64(len(users))
		mean := (sum + shrink*s.GlobalMean) / (n + shrink)
		out[movieID] = mean * math.Log1p(n)
	}
	return out
}
