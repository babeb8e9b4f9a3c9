package mf

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/rushteam/cinerec/core"
)

// 持久化布局：
//   - KeyValueStore 后端：嵌入表按 id 存成 Hash 字段
//     <prefix>:user  field=<user_id>  value={bias, factors, count}
//     <prefix>:movie field=<movie_id> value={bias, factors, count}
//     <prefix>:meta  field=model      value={factors, global_bias, bounds, epoch_rmse}
//   - 普通 Store 后端：整个模型 JSON 序列化到 <prefix> 一个 key
//
// 对存储而言全部是不透明字节；格式细节只属于本包。

type embeddingEntry struct {
	Bias    float64   `json:"bias"`
	Factors []float64 `json:"factors"`
	Count   int       `json:"count"`
}

type modelMeta struct {
	Factors    int               `json:"factors"`
	GlobalBias float64           `json:"global_bias"`
	Bounds     core.RatingBounds `json:"bounds"`
	EpochRMSE  []float64         `json:"epoch_rmse"`
}

// Save 把模型写入存储。后端实现 KeyValueStore 时按 id 分字段写入嵌入表，
// 否则整体序列化为一个 JSON blob。
func Save(ctx context.Context, s core.Store, prefix string, m *Model) error {
	if m == nil {
		return core.NewDomainError(core.ModuleMF, core.ErrorCodeInvalidInput, "mf: nil model")
	}

	kv, ok := s.(core.KeyValueStore)
	if !ok {
		data, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("mf: marshal model: %w", err)
		}
		return s.Set(ctx, prefix, data)
	}

	meta, err := json.Marshal(modelMeta{
		Factors:    m.Factors,
		GlobalBias: m.GlobalBias,
		Bounds:     m.Bounds,
		EpochRMSE:  m.EpochRMSE,
	})
	if err != nil {
		return fmt.Errorf("mf: marshal meta: %w", err)
	}
	if err := kv.HSet(ctx, prefix+":meta", "model", meta); err != nil {
		return err
	}

	for userID, factors := range m.UserFactors {
		entry, err := json.Marshal(embeddingEntry{
			Bias:    m.UserBias[userID],
			Factors: factors,
			Count:   m.UserCounts[userID],
		})
		if err != nil {
			return fmt.Errorf("mf: marshal user %d: %w", userID, err)
		}
		if err := kv.HSet(ctx, prefix+":user", strconv.FormatInt(userID, 10), entry); err != nil {
			return err
		}
	}
	for movieID, factors := range m.MovieFactors {
		entry, err := json.Marshal(embeddingEntry{
			Bias:    m.MovieBias[movieID],
			Factors: factors,
			Count:   m.MovieCounts[movieID],
		})
		if err != nil {
			return fmt.Errorf("mf: marshal movie %d: %w", movieID, err)
		}
		if err := kv.HSet(ctx, prefix+":movie", strconv.FormatInt(movieID, 10), entry); err != nil {
			return err
		}
	}
	return nil
}

// Load 从存储读回模型，与 Save 的布局对应。
func Load(ctx context.Context, s core.Store, prefix string) (*Model, error) {
	kv, ok := s.(core.KeyValueStore)
	if !ok {
		data, err := s.Get(ctx, prefix)
		if err != nil {
			return nil, err
		}
		var m Model
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("mf: unmarshal model: %w", err)
		}
		return &m, nil
	}

	rawMeta, err := kv.HGet(ctx, prefix+":meta", "model")
	if err != nil {
		return nil, err
	}
	var meta modelMeta
	if err := json.Unmarshal(rawMeta, &meta); err != nil {
		return nil, fmt.Errorf("mf: unmarshal meta: %w", err)
	}

	m := &Model{
		Factors:      meta.Factors,
		GlobalBias:   meta.GlobalBias,
		Bounds:       meta.Bounds,
		EpochRMSE:    meta.EpochRMSE,
		UserBias:     make(map[int64]float64),
		MovieBias:    make(map[int64]float64),
		UserFactors:  make(map[int64][]float64),
		MovieFactors: make(map[int64][]float64),
		UserCounts:   make(map[int64]int),
		MovieCounts:  make(map[int64]int),
	}

	users, err := kv.HGetAll(ctx, prefix+":user")
	if err != nil {
		return nil, err
	}
	for field, raw := range users {
		id, err := strconv.ParseInt(field, 10, 64)
		if err != nil {
			continue
		}
		var entry embeddingEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			return nil, fmt.Errorf("mf: unmarshal user %s: %w", field, err)
		}
		m.UserFactors[id] = entry.Factors
		m.UserBias[id] = entry.Bias
		m.UserCounts[id] = entry.Count
	}

	movies, err := kv.HGetAll(ctx, prefix+":movie")
	if err != nil {
		return nil, err
	}
	for field, raw := range movies {
		id, err := strconv.ParseInt(field, 10, 64)
		if err != nil {
			continue
		}
		var entry embeddingEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			return nil, fmt.Errorf("mf: unmarshal movie %s: %w", field, err)
		}
		m.MovieFactors[id] = entry.Factors
		m.MovieBias[id] = entry.Bias
		m.MovieCounts[id] = entry.Count
	}

	return m, nil
}
