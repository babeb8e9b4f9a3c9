package engine

import (
	"sort"
	"strings"
	"time"

	"github.com/rushteam/cinerec/core"
)

// Stats 是目录与评分数据的概览统计。
type Stats struct {
	MovieCount  int     `json:"movie_count"`
	UserCount   int     `json:"user_count"`
	RatingCount int     `json:"rating_count"`
	MeanRating  float64 `json:"mean_rating"`

	// MostRatedMovie 评分条数最多的影片（并列取 id 较小者），无评分时为 0
	MostRatedMovie int64 `json:"most_rated_movie"`

	// TopGenres 出现次数最多的类型，降序（同次数按字典序）
	TopGenres []GenreCount `json:"top_genres"`
}

// GenreCount 是 (类型, 出现次数) 二元组。
type GenreCount struct {
	Genre string `json:"genre"`
	Count int    `json:"count"`
}

// UserProfile 是单个用户的画像摘要。
type UserProfile struct {
	UserID      int64   `json:"user_id"`
	RatingCount int     `json:"rating_count"`
	MeanRating  float64 `json:"mean_rating"`

	// FavoriteGenres 高分（>= 4.0）历史影片中出现最多的类型
	FavoriteGenres []GenreCount `json:"favorite_genres"`

	// LastActivity 最近一次评分时间，零值表示无历史
	LastActivity time.Time `json:"last_activity"`
}

// SearchMovies 在目录中按标题做大小写不敏感的子串搜索，结果按 id 升序。
// limit <= 0 表示不限制。
func (e *Engine) SearchMovies(query string, limit int) []*core.Movie {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return nil
	}

	e.catalogMu.RLock()
	var hits []*core.Movie
	for _, m := range e.catalog {
		if strings.Contains(strings.ToLower(m.Title), query) {
			hits = append(hits, m.Clone())
		}
	}
	e.catalogMu.RUnlock()

	sort.Slice(hits, func(i, j int) bool { return hits[i].ID < hits[j].ID })
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits
}

// Stats 汇总目录与当前评分矩阵的统计信息。
func (e *Engine) Stats() Stats {
	snap := e.matrix.Snapshot()

	st := Stats{
		MovieCount:  0,
		UserCount:   len(snap.ByUser),
		RatingCount: snap.Count,
		MeanRating:  snap.GlobalMean,
	}

	// 评分最多的影片
	best, bestCount := int64(0), 0
	for movieID, users := range snap.ByMovie {
		n := len(users)
		if n > bestCount || (n == bestCount && bestCount > 0 && movieID < best) {
			best, bestCount = movieID, n
		}
	}
	st.MostRatedMovie = best

	// 类型分布
	genreCount := make(map[string]int)
	e.catalogMu.RLock()
	st.MovieCount = len(e.catalog)
	for _, m := range e.catalog {
		for _, g := range m.Metadata[core.FeatureGenre] {
			genreCount[g]++
		}
	}
	e.catalogMu.RUnlock()
	st.TopGenres = topGenres(genreCount, 10)

	return st
}

// MovieAverage 返回影片的平均评分。没有任何评分时返回 (0, false)。
func (e *Engine) MovieAverage(movieID int64) (float64, bool) {
	snap := e.matrix.Snapshot()
	users := snap.ByMovie[movieID]
	if len(users) == 0 {
		return 0, false
	}
	var sum float64
	for _, v := range users {
		sum += v
	}
	return sum / float64(len(users)), true
}

// 用户画像中"高分"的阈值
const favoriteThreshold = 4.0

// UserProfile 生成用户画像。未知用户返回空画像，不报错。
func (e *Engine) UserProfile(userID int64) UserProfile {
	snap := e.matrix.Snapshot()

	profile := UserProfile{UserID: userID}
	ratings := snap.ByUser[userID]
	if len(ratings) == 0 {
		return profile
	}

	profile.RatingCount = len(ratings)
	var sum float64
	var lastTS int64
	favorite := make(map[string]int)

	e.catalogMu.RLock()
	for movieID, v := range ratings {
		sum += v
		if ts := snap.Times[userID][movieID]; ts > lastTS {
			lastTS = ts
		}
		if v >= favoriteThreshold {
			if m, ok := e.catalog[movieID]; ok {
				for _, g := range m.Metadata[core.FeatureGenre] {
					favorite[g]++
				}
			}
		}
	}
	e.catalogMu.RUnlock()

	profile.MeanRating = sum / float64(len(ratings))
	profile.FavoriteGenres = topGenres(favorite, 5)
	if lastTS > 0 {
		profile.LastActivity = time.Unix(lastTS, 0)
	}
	return profile
}

// topGenres 按出现次数降序（同次数按字典序）取前 k 个。
func topGenres(counts map[string]int, k int) []GenreCount {
	if len(counts) == 0 {
		return nil
	}
	out := make([]GenreCount, 0, len(counts))
	for g, n := range counts {
		out = append(out, GenreCount{Genre: g, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Genre < out[j].Genre
	})
	if len(out) > k {
		out = out[:k]
	}
	return out
}
