package core

import (
	"sort"
	"strconv"
)

// 元数据特征类别。token 的最终形态为 "类别:取值"，如 "genre:sci-fi"。
const (
	FeatureGenre    = "genre"
	FeatureKeyword  = "keyword"
	FeatureCast     = "cast"
	FeatureDirector = "director"
	FeatureYear     = "year" // 年代桶，如 "1990s"
)

// Movie 是目录中的一部影片：id、标题与分类元数据。
// 目录加载后不可变，只允许增量补充元数据（MergeMetadata）。
type Movie struct {
	ID       int64
	Title    string
	Year     int
	Metadata map[string][]string // 特征类别 -> token 集合
}

// NewMovie 创建一部影片，并根据 Year 自动补出年代桶。
func NewMovie(id int64, title string, year int) *Movie {
	m := &Movie{
		ID:       id,
		Title:    title,
		Year:     year,
		Metadata: make(map[string][]string),
	}
	if year > 0 {
		m.Metadata[FeatureYear] = []string{YearBucket(year)}
	}
	return m
}

// YearBucket 把年份归入十年一档的年代桶（1994 -> "1990s"）。
func YearBucket(year int) string {
	return strconv.Itoa(year/10*10) + "s"
}

// AddTokens 向某特征类别追加 token，自动去重。
func (m *Movie) AddTokens(category string, tokens ...string) {
	if m.Metadata == nil {
		m.Metadata = make(map[string][]string)
	}
	existing := make(map[string]bool, len(m.Metadata[category]))
	for _, t := range m.Metadata[category] {
		existing[t] = true
	}
	for _, t := range tokens {
		if t == "" || existing[t] {
			continue
		}
		existing[t] = true
		m.Metadata[category] = append(m.Metadata[category], t)
	}
}

// Clone 返回影片的深拷贝（含元数据 map 与 token 切片）。
// 目录可能被并发刷新，离开锁保护的影片必须是拷贝。
func (m *Movie) Clone() *Movie {
	cp := &Movie{
		ID:       m.ID,
		Title:    m.Title,
		Year:     m.Year,
		Metadata: make(map[string][]string, len(m.Metadata)),
	}
	for category, tokens := range m.Metadata {
		cp.Metadata[category] = append([]string(nil), tokens...)
	}
	return cp
}

// MergeMetadata 增量合并另一份元数据（只增不删，目录刷新语义）。
func (m *Movie) MergeMetadata(other map[string][]string) {
	for category, tokens := range other {
		m.AddTokens(category, tokens...)
	}
}

// Tokens 返回影片的全部 "类别:取值" token，排序后输出，保证确定性。
func (m *Movie) Tokens() []string {
	out := make([]string, 0, 8)
	for category, tokens := range m.Metadata {
		for _, t := range tokens {
			out = append(out, category+":"+t)
		}
	}
	sort.Strings(out)
	return out
}
