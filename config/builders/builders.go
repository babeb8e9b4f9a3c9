// Package builders 注册可从 YAML/JSON 配置构建的内置 Node。
// 需要运行期对象（模型、内容索引）的 Node 不支持配置驱动，由引擎在请求期组装。
package builders

import (
	"fmt"
	"time"

	"github.com/rushteam/cinerec/config"
	"github.com/rushteam/cinerec/filter"
	"github.com/rushteam/cinerec/pipeline"
	"github.com/rushteam/cinerec/pkg/conv"
	"github.com/rushteam/cinerec/recall"
	"github.com/rushteam/cinerec/rerank"
)

func init() {
	config.Register("recall.fanout", BuildFanoutNode)
	config.Register("recall.hot", BuildHotNode)
	config.Register("filter", BuildFilterNode)
	config.Register("rerank.topn", BuildTopNNode)
}

func BuildFanoutNode(cfg map[string]interface{}) (pipeline.Node, error) {
	sourcesConfig, ok := cfg["sources"].([]interface{})
	if !ok {
		return nil, fmt.Errorf("sources not found or invalid")
	}
	sources := make([]recall.Source, 0, len(sourcesConfig))
	for _, sc := range sourcesConfig {
		sourceMap, ok := sc.(map[string]interface{})
		if !ok {
			continue
		}
		sourceType := conv.ConfigGet(sourceMap, "type", "")
		switch sourceType {
		case "hot":
			sources = append(sources, &recall.Hot{
				Key:   conv.ConfigGet(sourceMap, "key", ""),
				Limit: conv.ConfigGetInt(sourceMap, "limit", 0),
				IDs:   conv.SliceAnyToInt64(sourceMap["ids"]),
			})
		default:
			// catalog / content 召回需要运行期模型，不支持配置构建
			return nil, fmt.Errorf("unknown source type: %s", sourceType)
		}
	}
	fanout := &recall.Fanout{
		Sources:       sources,
		Dedup:         conv.ConfigGet(cfg, "dedup", true),
		MergeStrategy: conv.ConfigGet(cfg, "merge_strategy", ""),
	}
	if sec := conv.ConfigGetInt(cfg, "timeout", 0); sec > 0 {
		fanout.Timeout = time.Duration(sec) * time.Second
	}
	if n := conv.ConfigGetInt(cfg, "max_concurrent", 0); n > 0 {
		fanout.MaxConcurrent = n
	}
	return fanout, nil
}

func BuildHotNode(cfg map[string]interface{}) (pipeline.Node, error) {
	return &recall.Hot{
		Key:   conv.ConfigGet(cfg, "key", ""),
		Limit: conv.ConfigGetInt(cfg, "limit", 0),
		IDs:   conv.SliceAnyToInt64(cfg["ids"]),
	}, nil
}

func BuildFilterNode(cfg map[string]interface{}) (pipeline.Node, error) {
	var filters []filter.Filter
	if rules, ok := cfg["rules"].([]interface{}); ok {
		exprs := conv.ConvertSlice(rules, func(v interface{}) (string, bool) {
			s, ok := v.(string)
			return s, ok
		})
		if len(exprs) > 0 {
			filters = append(filters, &filter.RuleFilter{Rules: exprs})
		}
	}
	return &filter.FilterNode{Filters: filters}, nil
}

func BuildTopNNode(cfg map[string]interface{}) (pipeline.Node, error) {
	return &rerank.TopNNode{N: conv.ConfigGetInt(cfg, "n", 0)}, nil
}
