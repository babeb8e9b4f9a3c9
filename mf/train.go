package mf

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/rushteam/cinerec/core"
	"github.com/rushteam/cinerec/matrix"
)

// 误差绝对值超过该阈值视为数值发散（梯度爆炸），训练中止、保留旧模型。
const divergenceThreshold = 1e3

type triple struct {
	userID  int64
	movieID int64
	value   float64
}

// Train 在评分快照上训练隐因子模型。
//
// 每轮对全部观测三元组做一次随机顺序的 SGD 遍历：
//
//	err = r - (μ + bu + bi + pu·qi)
//	bu += lr·(err - reg·bu)        bi += lr·(err - reg·bi)
//	pu += lr·(err·qi - reg·pu)     qi += lr·(err·pu - reg·qi)
//
// 遍历顺序每轮用固定种子的 rng 洗牌，避免偏向摄入顺序；
// 固定 Seed 时整个训练过程确定可复现。
//
// 错误语义：
//   - 空快照 → INSUFFICIENT_DATA（训练不执行，调用方继续服务旧模型）
//   - 数值发散 → TRAINING_FAILED（训练中止，调用方保留旧模型）
func Train(snap *matrix.Snapshot, cfg core.MFConfig, bounds core.RatingBounds) (*Model, error) {
	if snap == nil || snap.Count == 0 {
		return nil, core.NewDomainError(core.ModuleMF, core.ErrorCodeInsufficientData,
			"mf: empty rating snapshot, nothing to train")
	}

	triples := collectTriples(snap)
	rng := rand.New(rand.NewSource(cfg.Seed))

	m := &Model{
		Factors:      cfg.Factors,
		GlobalBias:   snap.GlobalMean,
		UserBias:     make(map[int64]float64),
		MovieBias:    make(map[int64]float64),
		UserFactors:  make(map[int64][]float64),
		MovieFactors: make(map[int64][]float64),
		UserCounts:   make(map[int64]int, len(snap.ByUser)),
		MovieCounts:  make(map[int64]int, len(snap.ByMovie)),
		EpochRMSE:    make([]float64, 0, cfg.Epochs),
		Bounds:       bounds,
	}

	initStd := cfg.InitStdDev
	if initStd <= 0 {
		initStd = 0.1
	}

	// 初始化顺序必须确定（map 遍历顺序不确定），否则同种子也无法复现
	for _, t := range triples {
		if _, ok := m.UserFactors[t.userID]; !ok {
			m.UserFactors[t.userID] = randomVector(rng, cfg.Factors, initStd)
		}
		if _, ok := m.MovieFactors[t.movieID]; !ok {
			m.MovieFactors[t.movieID] = randomVector(rng, cfg.Factors, initStd)
		}
	}
	for userID, ratings := range snap.ByUser {
		m.UserCounts[userID] = len(ratings)
	}
	for movieID, users := range snap.ByMovie {
		m.MovieCounts[movieID] = len(users)
	}

	lr := cfg.LearningRate
	reg := cfg.Regularization

	for epoch := 0; epoch < cfg.Epochs; epoch++ {
		rng.Shuffle(len(triples), func(i, j int) {
			triples[i], triples[j] = triples[j], triples[i]
		})

		for _, t := range triples {
			pu := m.UserFactors[t.userID]
			qi := m.MovieFactors[t.movieID]

			pred := m.GlobalBias + m.UserBias[t.userID] + m.MovieBias[t.movieID]
			for f := 0; f < cfg.Factors; f++ {
				pred += pu[f] * qi[f]
			}

			err := t.value - pred
			if math.IsNaN(err) || math.Abs(err) > divergenceThreshold {
				return nil, core.NewDomainError(core.ModuleMF, core.ErrorCodeTrainingFailed,
					fmt.Sprintf("mf: numeric divergence at epoch %d (err=%g), aborting", epoch, err))
			}

			m.UserBias[t.userID] += lr * (err - reg*m.UserBias[t.userID])
			m.MovieBias[t.movieID] += lr * (err - reg*m.MovieBias[t.movieID])
			for f := 0; f < cfg.Factors; f++ {
				puf := pu[f]
				pu[f] += lr * (err*qi[f] - reg*puf)
				qi[f] += lr * (err*puf - reg*qi[f])
			}
		}

		m.EpochRMSE = append(m.EpochRMSE, m.rmse(triples))
	}

	return m, nil
}

// rmse 计算模型在给定三元组上的（未裁剪）均方根误差。
func (m *Model) rmse(triples []triple) float64 {
	if len(triples) == 0 {
		return 0
	}
	var sum float64
	for _, t := range triples {
		pu := m.UserFactors[t.userID]
		qi := m.MovieFactors[t.movieID]
		pred := m.GlobalBias + m.UserBias[t.userID] + m.MovieBias[t.movieID]
		for f := 0; f < m.Factors; f++ {
			pred += pu[f] * qi[f]
		}
		d := t.value - pred
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(triples)))
}

// collectTriples 把快照展开为 (user, movie, rating) 三元组，
// 按 (user, movie) 排序保证展开顺序确定。
func collectTriples(snap *matrix.Snapshot) []triple {
	triples := make([]triple, 0, snap.Count)
	for userID, ratings := range snap.ByUser {
		for movieID, value := range ratings {
			triples = append(triples, triple{userID: userID, movieID: movieID, value: value})
		}
	}
	sort.Slice(triples, func(i, j int) bool {
		if triples[i].userID != triples[j].userID {
			return triples[i].userID < triples[j].userID
		}
		return triples[i].movieID < triples[j].movieID
	})
	return triples
}

func randomVector(rng *rand.Rand, n int, std float64) []float64 {
	v := make([]float64, n)
	for i := range v {
		v[i] = rng.NormFloat64() * std
	}
	return v
}
