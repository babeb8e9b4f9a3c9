package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/rushteam/cinerec/content"
	"github.com/rushteam/cinerec/core"
	"github.com/rushteam/cinerec/matrix"
	"github.com/rushteam/cinerec/mf"
)

// 持久化布局：
//   <prefix>:mf      隐因子模型（见 mf.Save）
//   <prefix>:content 内容索引（见 content.Save）
//   <prefix>:pop     流行度表 JSON
//   <prefix>:snap    评分快照 JSON（在线内容分与已看过滤需要）

// SaveModel 把当前服务中的模型写入存储。没有模型时返回 NO_MODEL。
func (e *Engine) SaveModel(ctx context.Context, s core.Store, prefix string) error {
	model := e.model.Load()
	if model == nil {
		return core.NewDomainError(core.ModuleEngine, core.ErrorCodeNoModel,
			"engine: no model to save")
	}

	if model.MF != nil {
		if err := mf.Save(ctx, s, prefix+":mf", model.MF); err != nil {
			return fmt.Errorf("engine: save mf model: %w", err)
		}
	}
	if err := content.Save(ctx, s, prefix+":content", model.Index); err != nil {
		return fmt.Errorf("engine: save content index: %w", err)
	}

	pop, err := json.Marshal(model.Popularity)
	if err != nil {
		return fmt.Errorf("engine: marshal popularity: %w", err)
	}
	if err := s.Set(ctx, prefix+":pop", pop); err != nil {
		return err
	}

	snap, err := json.Marshal(model.Snapshot)
	if err != nil {
		return fmt.Errorf("engine: marshal snapshot: %w", err)
	}
	return s.Set(ctx, prefix+":snap", snap)
}

// LoadModel 从存储读回模型并原子替换当前服务模型。
// 隐因子部分允许缺失（纯内容/流行度模型）。
func (e *Engine) LoadModel(ctx context.Context, s core.Store, prefix string) error {
	mfModel, err := mf.Load(ctx, s, prefix+":mf")
	if err != nil && !core.IsStoreNotFound(err) {
		return fmt.Errorf("engine: load mf model: %w", err)
	}

	idx, err := content.Load(ctx, s, prefix+":content")
	if err != nil {
		if !core.IsStoreNotFound(err) {
			return fmt.Errorf("engine: load content index: %w", err)
		}
		idx = content.Build(nil, e.cfg.Content)
	}

	pop := make(map[int64]float64)
	if raw, err := s.Get(ctx, prefix+":pop"); err == nil {
		if err := json.Unmarshal(raw, &pop); err != nil {
			return fmt.Errorf("engine: unmarshal popularity: %w", err)
		}
	} else if !core.IsStoreNotFound(err) {
		return err
	}

	snap := emptySnapshot()
	if raw, err := s.Get(ctx, prefix+":snap"); err == nil {
		if err := json.Unmarshal(raw, snap); err != nil {
			return fmt.Errorf("engine: unmarshal snapshot: %w", err)
		}
	} else if !core.IsStoreNotFound(err) {
		return err
	}

	e.model.Store(&Model{
		MF:             mfModel,
		Index:          idx,
		Popularity:     pop,
		PopularityRank: rankByPopularity(pop),
		Snapshot:       snap,
		CatalogIDs:     catalogFromParts(mfModel, idx, pop),
		TrainedAt:      time.Now(),
	})
	return nil
}

// PublishPopularity 把流行度表导出为有序集合（热门召回的数据源）。
func (e *Engine) PublishPopularity(ctx context.Context, kv core.KeyValueStore, key string) error {
	model := e.model.Load()
	if model == nil {
		return core.NewDomainError(core.ModuleEngine, core.ErrorCodeNoModel,
			"engine: no model to publish")
	}
	for movieID, score := range model.Popularity {
		if err := kv.ZAdd(ctx, key, score, strconv.FormatInt(movieID, 10)); err != nil {
			return err
		}
	}
	return nil
}

func emptySnapshot() *matrix.Snapshot {
	return &matrix.Snapshot{
		ByUser:  make(map[int64]map[int64]float64),
		ByMovie: make(map[int64]map[int64]float64),
		Times:   make(map[int64]map[int64]int64),
	}
}

// catalogFromParts 从已加载的各部分重建候选全集。
func catalogFromParts(mfModel *mf.Model, idx *content.Index, pop map[int64]float64) []int64 {
	ids := make(map[int64]struct{})
	if mfModel != nil {
		for id := range mfModel.MovieFactors {
			ids[id] = struct{}{}
		}
	}
	if idx != nil {
		for id := range idx.Vectors {
			ids[id] = struct{}{}
		}
	}
	for id := range pop {
		ids[id] = struct{}{}
	}
	return sortedIDs(ids)
}
