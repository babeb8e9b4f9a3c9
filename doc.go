// Package cinerec 是一个混合式电影推荐引擎（CineRec）。
//
// 设计要点：
// - 三路信号融合: 协同过滤（带偏置的矩阵分解）+ 内容相似（TF-IDF 余弦）+ 流行度先验
// - Pipeline-first: 推荐链路通过 Node 串联（Recall → Filter → Rank → ReRank）
// - 冷启动显式化: 信号缺席走状态机判定，权重让渡而非报错，终态为流行度兜底
// - 模型不可变: 训练产物整体原子替换，在线请求永远读到完整的一版模型
package cinerec

import (
	"github.com/rushteam/cinerec/core"
	"github.com/rushteam/cinerec/engine"
	"github.com/rushteam/cinerec/pipeline"
)

// 轻量 facade：便于用户直接 import "cinerec" 使用核心抽象。
type Engine = engine.Engine
type Config = core.Config
type Rating = core.Rating
type Movie = core.Movie
type Item = core.Item
type RecommendContext = core.RecommendContext

type Pipeline = pipeline.Pipeline
type Node = pipeline.Node
type Kind = pipeline.Kind

const (
	KindRecall      = pipeline.KindRecall
	KindFilter      = pipeline.KindFilter
	KindRank        = pipeline.KindRank
	KindReRank      = pipeline.KindReRank
	KindPostProcess = pipeline.KindPostProcess
)

// NewEngine 创建推荐引擎（engine.New 的别名）。
func NewEngine(cfg Config) (*Engine, error) { return engine.New(cfg) }

// DefaultConfig 返回默认配置（core.DefaultConfig 的别名）。
func DefaultConfig() Config { return core.DefaultConfig() }
