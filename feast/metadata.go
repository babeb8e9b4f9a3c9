package feast

import (
	"context"
	"fmt"
	"strings"

	"github.com/rushteam/cinerec/core"
	"github.com/rushteam/cinerec/pkg/conv"
)

// 影片元数据的特征视图约定（与 Feast 侧的 feature view 定义对应）。
const (
	FeatureViewMovie = "movie_metadata"

	featureTitle    = FeatureViewMovie + ":title"
	featureYear     = FeatureViewMovie + ":year"
	featureGenres   = FeatureViewMovie + ":genres"
	featureKeywords = FeatureViewMovie + ":keywords"
	featureCast     = FeatureViewMovie + ":cast"
	featureDirector = FeatureViewMovie + ":director"
)

// MetadataLoader 从 Feast 在线存储批量拉取影片元数据，
// 转换为领域模型 core.Movie，供内容相似索引构建使用。
//
// 多值特征（genres/keywords/cast）按 MovieLens 惯例用 "|" 分隔。
type MetadataLoader struct {
	Client Client
	// BatchSize 单次请求的实体行数（0 表示默认 100）
	BatchSize int
}

// Load 拉取一批影片的元数据。Feast 侧缺失的影片会被跳过，不报错。
func (l *MetadataLoader) Load(ctx context.Context, movieIDs []int64) ([]*core.Movie, error) {
	if l.Client == nil {
		return nil, core.NewDomainError(core.ModuleEngine, core.ErrorCodeInvalidInput, "feast: nil client")
	}
	if len(movieIDs) == 0 {
		return nil, nil
	}

	batch := l.BatchSize
	if batch <= 0 {
		batch = 100
	}

	features := []string{
		featureTitle, featureYear,
		featureGenres, featureKeywords, featureCast, featureDirector,
	}

	var movies []*core.Movie
	for start := 0; start < len(movieIDs); start += batch {
		end := start + batch
		if end > len(movieIDs) {
			end = len(movieIDs)
		}
		ids := movieIDs[start:end]

		rows := make([]map[string]interface{}, len(ids))
		for i, id := range ids {
			rows[i] = map[string]interface{}{"movie_id": id}
		}

		resp, err := l.Client.GetOnlineFeatures(ctx, &GetOnlineFeaturesRequest{
			Features:   features,
			EntityRows: rows,
		})
		if err != nil {
			return nil, fmt.Errorf("feast: load movie metadata: %w", err)
		}

		for i, fv := range resp.FeatureVectors {
			if m := l.toMovie(ids[i], fv.Values); m != nil {
				movies = append(movies, m)
			}
		}
	}
	return movies, nil
}

// toMovie 把一行特征值转换为领域模型。title 缺失视作影片不存在。
func (l *MetadataLoader) toMovie(movieID int64, values map[string]interface{}) *core.Movie {
	title, _ := values[featureTitle].(string)
	if title == "" {
		return nil
	}

	yearF, _ := conv.ToFloat64(values[featureYear])
	year := int(yearF)
	m := core.NewMovie(movieID, title, year)

	m.AddTokens(core.FeatureGenre, splitMulti(values[featureGenres])...)
	m.AddTokens(core.FeatureKeyword, splitMulti(values[featureKeywords])...)
	m.AddTokens(core.FeatureCast, splitMulti(values[featureCast])...)
	m.AddTokens(core.FeatureDirector, splitMulti(values[featureDirector])...)
	return m
}

// splitMulti 拆分 "|" 分隔的多值特征。
func splitMulti(v interface{}) []string {
	s, _ := v.(string)
	if s == "" {
		return nil
	}
	parts := strings.Split(s, "|")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
