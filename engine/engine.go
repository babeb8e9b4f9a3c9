// Package engine 是 cinerec 的对外门面：组合评分矩阵、隐因子模型、
// 内容相似索引与冷启动策略，对外提供训练与推荐接口。
//
// 训练产物（Model）是不可变值，通过 atomic.Pointer 整体替换；
// 在线请求始终读取某一个完整的模型版本，训练失败时继续服务旧模型。
package engine

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rushteam/cinerec/coldstart"
	"github.com/rushteam/cinerec/content"
	"github.com/rushteam/cinerec/core"
	"github.com/rushteam/cinerec/matrix"
	"github.com/rushteam/cinerec/mf"
)

// Model 是一次训练运行的完整产物：隐因子模型、内容索引、流行度表
// 与训练时刻的评分快照。整体只读。
type Model struct {
	MF    *mf.Model
	Index *content.Index

	// Popularity 影片 -> 流行度先验分
	Popularity map[int64]float64
	// PopularityRank 按流行度降序（同分按 id 升序）的影片列表
	PopularityRank []int64

	// Snapshot 训练时刻的评分快照（在线内容分与已看过滤的依据）
	Snapshot *matrix.Snapshot

	// CatalogIDs 候选全集：目录与评分快照中出现过的影片并集，升序
	CatalogIDs []int64

	TrainedAt time.Time
}

// Engine 是推荐引擎。写入口（AddRatings/UpsertMovies/TrainModel）各自串行，
// 读入口（Recommend/SimilarItems/Explain）无锁读取当前模型。
type Engine struct {
	cfg    core.Config
	matrix *matrix.RatingMatrix
	policy *coldstart.Policy

	catalogMu sync.RWMutex
	catalog   map[int64]*core.Movie

	model atomic.Pointer[Model]
}

// New 创建引擎，配置在此处校验。
func New(cfg core.Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		cfg:     cfg,
		matrix:  matrix.New(cfg.Bounds),
		policy:  coldstart.New(cfg.ColdStart),
		catalog: make(map[int64]*core.Movie),
	}, nil
}

// Config 返回引擎配置的副本。
func (e *Engine) Config() core.Config { return e.cfg }

// AddRatings 摄入一批评分，返回实际接受的条数。
// 新评分只进入评分矩阵，不影响已发布的模型；下次 TrainModel 时生效。
func (e *Engine) AddRatings(ratings []core.Rating) int {
	return e.matrix.Ingest(ratings)
}

// UpsertMovies 新增或更新目录影片。已存在的影片做增量元数据合并（只增不删）。
func (e *Engine) UpsertMovies(movies []*core.Movie) {
	e.catalogMu.Lock()
	defer e.catalogMu.Unlock()
	for _, m := range movies {
		if m == nil {
			continue
		}
		if old, ok := e.catalog[m.ID]; ok {
			if m.Title != "" {
				old.Title = m.Title
			}
			if m.Year > 0 {
				old.Year = m.Year
			}
			old.MergeMetadata(m.Metadata)
			continue
		}
		cp := core.NewMovie(m.ID, m.Title, m.Year)
		cp.MergeMetadata(m.Metadata)
		e.catalog[m.ID] = cp
	}
}

// Movie 按 id 查询目录影片，返回拷贝。
func (e *Engine) Movie(movieID int64) (*core.Movie, bool) {
	e.catalogMu.RLock()
	defer e.catalogMu.RUnlock()
	m, ok := e.catalog[movieID]
	if !ok {
		return nil, false
	}
	return m.Clone(), true
}

// movieList 返回目录影片的深拷贝列表（内容索引构建用）。
// 训练遍历元数据时目录可能被并发刷新，拷贝必须在锁内完成。
func (e *Engine) movieList() []*core.Movie {
	e.catalogMu.RLock()
	defer e.catalogMu.RUnlock()
	out := make([]*core.Movie, 0, len(e.catalog))
	for _, m := range e.catalog {
		out = append(out, m.Clone())
	}
	return out
}

// TrainModel 执行一次全量训练：取快照 → SGD 训练 → 内容索引重建 →
// 流行度表 → 原子替换。任何一步失败都不触碰正在服务的模型。
//
// 评分与目录都为空时返回 INSUFFICIENT_DATA。
func (e *Engine) TrainModel(ctx context.Context) error {
	snap := e.matrix.Snapshot()
	movies := e.movieList()

	if snap.Count == 0 && len(movies) == 0 {
		return core.NewDomainError(core.ModuleEngine, core.ErrorCodeInsufficientData,
			"engine: no ratings and no catalog, nothing to train on")
	}

	var mfModel *mf.Model
	if snap.Count > 0 {
		var err error
		mfModel, err = mf.Train(snap, e.cfg.MF, e.cfg.Bounds)
		if err != nil {
			// 发散（TRAINING_FAILED）或数据不足：保留旧模型继续服务
			return err
		}
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	idx := content.Build(movies, e.cfg.Content)
	pop := snap.Popularity(e.cfg.PopularityShrink)

	model := &Model{
		MF:             mfModel,
		Index:          idx,
		Popularity:     pop,
		PopularityRank: rankByPopularity(pop),
		Snapshot:       snap,
		CatalogIDs:     e.catalogUnion(snap),
		TrainedAt:      time.Now(),
	}
	e.model.Store(model)
	return nil
}

// Model 返回当前服务中的模型（可能为 nil）。
func (e *Engine) Model() *Model {
	return e.model.Load()
}

// catalogUnion 合并目录与评分快照中的影片 id，升序。
func (e *Engine) catalogUnion(snap *matrix.Snapshot) []int64 {
	e.catalogMu.RLock()
	ids := make(map[int64]struct{}, len(e.catalog))
	for id := range e.catalog {
		ids[id] = struct{}{}
	}
	e.catalogMu.RUnlock()
	for id := range snap.ByMovie {
		ids[id] = struct{}{}
	}
	return sortedIDs(ids)
}

// sortedIDs 把 id 集合转成升序列表。
func sortedIDs(ids map[int64]struct{}) []int64 {
	out := make([]int64, 0, len(ids))
	for id := range ids {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// rankByPopularity 按流行度降序排列影片，同分按 id 升序。
func rankByPopularity(pop map[int64]float64) []int64 {
	out := make([]int64, 0, len(pop))
	for id := range pop {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool {
		if pop[out[i]] != pop[out[j]] {
			return pop[out[i]] > pop[out[j]]
		}
		return out[i] < out[j]
	})
	return out
}
