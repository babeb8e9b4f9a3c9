package content

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/rushteam/cinerec/core"
)

// 持久化布局（与 mf 包对应）：
//   - KeyValueStore：<prefix>:vector field=<movie_id> value=稀疏向量 JSON，
//     <prefix>:meta field=idf value=IDF 表 JSON
//   - 普通 Store：整个 Index 序列化到 <prefix> 一个 key

// Save 把特征向量表写入存储。
func Save(ctx context.Context, s core.Store, prefix string, idx *Index) error {
	if idx == nil {
		return core.NewDomainError(core.ModuleContent, core.ErrorCodeInvalidInput, "content: nil index")
	}

	kv, ok := s.(core.KeyValueStore)
	if !ok {
		data, err := json.Marshal(idx)
		if err != nil {
			return fmt.Errorf("content: marshal index: %w", err)
		}
		return s.Set(ctx, prefix, data)
	}

	idf, err := json.Marshal(idx.IDF)
	if err != nil {
		return fmt.Errorf("content: marshal idf: %w", err)
	}
	if err := kv.HSet(ctx, prefix+":meta", "idf", idf); err != nil {
		return err
	}
	for movieID, vec := range idx.Vectors {
		raw, err := json.Marshal(vec)
		if err != nil {
			return fmt.Errorf("content: marshal vector %d: %w", movieID, err)
		}
		if err := kv.HSet(ctx, prefix+":vector", strconv.FormatInt(movieID, 10), raw); err != nil {
			return err
		}
	}
	return nil
}

// Load 从存储读回特征向量表。
func Load(ctx context.Context, s core.Store, prefix string) (*Index, error) {
	kv, ok := s.(core.KeyValueStore)
	if !ok {
		data, err := s.Get(ctx, prefix)
		if err != nil {
			return nil, err
		}
		var idx Index
		if err := json.Unmarshal(data, &idx); err != nil {
			return nil, fmt.Errorf("content: unmarshal index: %w", err)
		}
		return &idx, nil
	}

	idx := &Index{
		IDF:     make(map[string]float64),
		Vectors: make(map[int64]map[string]float64),
	}

	rawIDF, err := kv.HGet(ctx, prefix+":meta", "idf")
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(rawIDF, &idx.IDF); err != nil {
		return nil, fmt.Errorf("content: unmarshal idf: %w", err)
	}

	vectors, err := kv.HGetAll(ctx, prefix+":vector")
	if err != nil {
		return nil, err
	}
	for field, raw := range vectors {
		id, err := strconv.ParseInt(field, 10, 64)
		if err != nil {
			continue
		}
		var vec map[string]float64
		if err := json.Unmarshal(raw, &vec); err != nil {
			return nil, fmt.Errorf("content: unmarshal vector %s: %w", field, err)
		}
		idx.Vectors[id] = vec
	}
	return idx, nil
}
