// Package content 实现基于内容的相似度引擎：把影片元数据表示成
// TF-IDF 加权的稀疏向量，用余弦相似度度量两部影片的接近程度。
//
// 词表与向量在目录变更后整体重建，产物不可变，在线只读。
package content

import (
	"math"
	"sort"

	"github.com/rushteam/cinerec/core"
)

// ScoredMovie 是 (影片, 相似分) 二元组。
type ScoredMovie struct {
	MovieID int64   `json:"movie_id"`
	Score   float64 `json:"score"`
}

// Index 是内容相似度引擎的不可变产物：词表 IDF 与按影片的归一化向量。
type Index struct {
	// IDF token -> 逆文档频率（log(1 + N/df)，平滑避免零向量）
	IDF map[string]float64 `json:"idf"`

	// Vectors 影片 -> L2 归一化的 TF-IDF 稀疏向量
	Vectors map[int64]map[string]float64 `json:"vectors"`
}

// Build 对整个目录做向量化。
//
// 词表按文档频率截断：MaxVocab > 0 时只保留 df 最高的 MaxVocab 个 token
// （df 相同按字典序，保证确定性），其余 token 直接丢弃。
func Build(movies []*core.Movie, cfg core.ContentConfig) *Index {
	n := len(movies)
	idx := &Index{
		IDF:     make(map[string]float64),
		Vectors: make(map[int64]map[string]float64, n),
	}
	if n == 0 {
		return idx
	}

	// 文档频率
	df := make(map[string]int)
	tokensByMovie := make(map[int64][]string, n)
	for _, m := range movies {
		tokens := m.Tokens()
		tokensByMovie[m.ID] = tokens
		seen := make(map[string]bool, len(tokens))
		for _, t := range tokens {
			if !seen[t] {
				seen[t] = true
				df[t]++
			}
		}
	}

	// 词表截断
	kept := df
	if cfg.MaxVocab > 0 && len(df) > cfg.MaxVocab {
		type tokenDF struct {
			token string
			df    int
		}
		all := make([]tokenDF, 0, len(df))
		for t, d := range df {
			all = append(all, tokenDF{token: t, df: d})
		}
		sort.Slice(all, func(i, j int) bool {
			if all[i].df != all[j].df {
				return all[i].df > all[j].df
			}
			return all[i].token < all[j].token
		})
		kept = make(map[string]int, cfg.MaxVocab)
		for _, td := range all[:cfg.MaxVocab] {
			kept[td.token] = td.df
		}
	}

	for t, d := range kept {
		idx.IDF[t] = math.Log(1 + float64(n)/float64(d))
	}

	// TF-IDF + L2 归一化
	for movieID, tokens := range tokensByMovie {
		tf := make(map[string]float64, len(tokens))
		for _, t := range tokens {
			if _, ok := idx.IDF[t]; ok {
				tf[t]++
			}
		}
		if len(tf) == 0 {
			continue
		}
		vec := make(map[string]float64, len(tf))
		var norm float64
		for t, f := range tf {
			w := f * idx.IDF[t]
			vec[t] = w
			norm += w * w
		}
		if norm == 0 {
			continue
		}
		norm = math.Sqrt(norm)
		for t := range vec {
			vec[t] /= norm
		}
		idx.Vectors[movieID] = vec
	}

	return idx
}

// Has 判断影片是否有非零特征向量。
func (idx *Index) Has(movieID int64) bool {
	if idx == nil {
		return false
	}
	_, ok := idx.Vectors[movieID]
	return ok
}

// Similarity 计算两部影片的余弦相似度，取值 [0, 1]，对称。
// 自相似度按定义为 1（要求向量非零）；任一向量缺失时为 0。
func (idx *Index) Similarity(a, b int64) float64 {
	if idx == nil {
		return 0
	}
	va, aok := idx.Vectors[a]
	vb, bok := idx.Vectors[b]
	if !aok || !bok {
		return 0
	}
	if a == b {
		return 1
	}
	return dotSparse(va, vb)
}

// TopSimilar 返回与给定影片最相似的 k 部影片，按分数降序，
// 分数相同按影片 id 升序；不包含影片自身，只保留正分。
func (idx *Index) TopSimilar(movieID int64, k int) []ScoredMovie {
	if idx == nil || k <= 0 {
		return nil
	}
	query, ok := idx.Vectors[movieID]
	if !ok {
		return nil
	}

	scored := make([]ScoredMovie, 0, len(idx.Vectors))
	for otherID, vec := range idx.Vectors {
		if otherID == movieID {
			continue
		}
		if s := dotSparse(query, vec); s > 0 {
			scored = append(scored, ScoredMovie{MovieID: otherID, Score: s})
		}
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].MovieID < scored[j].MovieID
	})
	if len(scored) > k {
		scored = scored[:k]
	}
	return scored
}

// SeedVector 把偏好种子（类别 -> token 列表）向量化，供无历史用户计算内容分。
// 种子 token 不在词表内时被忽略；全部未命中返回 nil。
func (idx *Index) SeedVector(seeds map[string][]string) map[string]float64 {
	if idx == nil || len(seeds) == 0 {
		return nil
	}
	tf := make(map[string]float64)
	for category, tokens := range seeds {
		for _, t := range tokens {
			token := category + ":" + t
			if _, ok := idx.IDF[token]; ok {
				tf[token]++
			}
		}
	}
	if len(tf) == 0 {
		return nil
	}
	var norm float64
	vec := make(map[string]float64, len(tf))
	for t, f := range tf {
		w := f * idx.IDF[t]
		vec[t] = w
		norm += w * w
	}
	if norm == 0 {
		return nil
	}
	norm = math.Sqrt(norm)
	for t := range vec {
		vec[t] /= norm
	}
	return vec
}

// SeedScore 计算种子向量与候选影片的余弦相似度。
func (idx *Index) SeedScore(seed map[string]float64, movieID int64) (float64, bool) {
	if idx == nil || len(seed) == 0 {
		return 0, false
	}
	vec, ok := idx.Vectors[movieID]
	if !ok {
		return 0, false
	}
	return dotSparse(seed, vec), true
}

// dotSparse 计算两个稀疏向量的点积，遍历较小的一方。
func dotSparse(a, b map[string]float64) float64 {
	if len(b) < len(a) {
		a, b = b, a
	}
	var dot float64
	for t, wa := range a {
		if wb, ok := b[t]; ok {
			dot += wa * wb
		}
	}
	return dot
}
