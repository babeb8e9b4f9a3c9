package core

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// FusionWeights 是融合排序的三路权重。
// 不要求 α+β+γ == 1：排序时按每部影片实际可用的信号做比例归一。
type FusionWeights struct {
	Alpha float64 `yaml:"alpha"` // 协同过滤
	Beta  float64 `yaml:"beta"`  // 内容相似
	Gamma float64 `yaml:"gamma"` // 流行度先验
}

// MFConfig 是隐因子模型的全部超参数。
type MFConfig struct {
	// Factors 嵌入维度 k。越大容量越高，过拟合风险越大。
	Factors int `yaml:"factors"`
	// Epochs SGD 训练轮数。
	Epochs int `yaml:"epochs"`
	// LearningRate 学习率。
	LearningRate float64 `yaml:"learning_rate"`
	// Regularization L2 正则系数。越大训练误差越高、泛化越稳。
	Regularization float64 `yaml:"regularization"`
	// InitStdDev 因子初始化的标准差。
	InitStdDev float64 `yaml:"init_std_dev"`
	// Seed 随机种子；固定种子下训练结果可复现。
	Seed int64 `yaml:"seed"`
}

// ContentConfig 是内容相似度引擎的配置。
type ContentConfig struct {
	// MaxVocab 词表上限；超出上限的 token 按文档频率淘汰。0 表示不限制。
	MaxVocab int `yaml:"max_vocab"`
	// RecencyHalfLifeDays 用户内容分的时间衰减半衰期（天）。0 表示不衰减。
	RecencyHalfLifeDays float64 `yaml:"recency_half_life_days"`
}

// ColdStartConfig 是冷启动策略的阈值配置。
type ColdStartConfig struct {
	// MinUserRatings 用户评分数低于该值时协同分标记为低置信。
	MinUserRatings int `yaml:"min_user_ratings"`
	// MinMovieRatings 影片评分数低于该值时协同分标记为低置信。
	MinMovieRatings int `yaml:"min_movie_ratings"`
	// DampLowConfidence 是否对低置信协同分降权。
	DampLowConfidence bool `yaml:"damp_low_confidence"`
	// LowConfidenceFactor 降权系数（对 α 乘性衰减），仅在 DampLowConfidence 时生效。
	LowConfidenceFactor float64 `yaml:"low_confidence_factor"`
}

// Config 是引擎的完整配置：显式枚举所有超参数与融合权重，加载时校验。
type Config struct {
	Bounds    RatingBounds    `yaml:"bounds"`
	MF        MFConfig        `yaml:"mf"`
	Content   ContentConfig   `yaml:"content"`
	ColdStart ColdStartConfig `yaml:"cold_start"`
	Weights   FusionWeights   `yaml:"weights"`

	// DiversityPenalty 多样性重排的惩罚强度，0 表示关闭重排。
	DiversityPenalty float64 `yaml:"diversity_penalty"`

	// PopularityShrink 流行度先验的收缩常数（贝叶斯均值平滑）。
	PopularityShrink float64 `yaml:"popularity_shrink"`

	// RequestTimeout 单次推荐请求的超时；超时后降级返回流行度榜单而非报错。
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// ExcludeRules 业务排除规则（CEL 表达式），命中的候选被过滤。
	// 在融合打分之后执行，可引用 item.score、item.breakdown 与打分阶段的标签。
	ExcludeRules []string `yaml:"exclude_rules"`
}

// DefaultConfig 返回一份可直接使用的默认配置。
// 融合权重 α=0.6 β=0.3 γ=0.1 来自原系统文档，是可调默认值而非硬约定。
func DefaultConfig() Config {
	return Config{
		Bounds: DefaultRatingBounds(),
		MF: MFConfig{
			Factors:        100,
			Epochs:         20,
			LearningRate:   0.005,
			Regularization: 0.02,
			InitStdDev:     0.1,
			Seed:           42,
		},
		Content: ContentConfig{
			MaxVocab:            20000,
			RecencyHalfLifeDays: 180,
		},
		ColdStart: ColdStartConfig{
			MinUserRatings:      5,
			MinMovieRatings:     5,
			DampLowConfidence:   false,
			LowConfidenceFactor: 0.5,
		},
		Weights:          FusionWeights{Alpha: 0.6, Beta: 0.3, Gamma: 0.1},
		DiversityPenalty: 0.3,
		PopularityShrink: 5,
		RequestTimeout:   500 * time.Millisecond,
	}
}

// Validate 校验配置合法性；非法配置在加载期即报错，而不是在请求期出现怪异行为。
func (c *Config) Validate() error {
	if c.Bounds.Min >= c.Bounds.Max {
		return NewDomainError(ModuleConfig, ErrorCodeInvalidInput,
			fmt.Sprintf("config: rating bounds [%v, %v] invalid", c.Bounds.Min, c.Bounds.Max))
	}
	if c.MF.Factors <= 0 {
		return NewDomainError(ModuleConfig, ErrorCodeInvalidInput, "config: mf.factors must be positive")
	}
	if c.MF.Epochs <= 0 {
		return NewDomainError(ModuleConfig, ErrorCodeInvalidInput, "config: mf.epochs must be positive")
	}
	if c.MF.LearningRate <= 0 {
		return NewDomainError(ModuleConfig, ErrorCodeInvalidInput, "config: mf.learning_rate must be positive")
	}
	if c.MF.Regularization < 0 {
		return NewDomainError(ModuleConfig, ErrorCodeInvalidInput, "config: mf.regularization must be non-negative")
	}
	if err := c.Weights.Validate(); err != nil {
		return err
	}
	if c.ColdStart.DampLowConfidence &&
		(c.ColdStart.LowConfidenceFactor <= 0 || c.ColdStart.LowConfidenceFactor > 1) {
		return NewDomainError(ModuleConfig, ErrorCodeInvalidInput,
			"config: cold_start.low_confidence_factor must be in (0, 1]")
	}
	if c.DiversityPenalty < 0 {
		return NewDomainError(ModuleConfig, ErrorCodeInvalidInput, "config: diversity_penalty must be non-negative")
	}
	return nil
}

// Validate 校验融合权重：非负，且至少一路为正。
func (w *FusionWeights) Validate() error {
	if w.Alpha < 0 || w.Beta < 0 || w.Gamma < 0 {
		return NewDomainError(ModuleConfig, ErrorCodeInvalidInput, "config: fusion weights must be non-negative")
	}
	if w.Alpha == 0 && w.Beta == 0 && w.Gamma == 0 {
		return NewDomainError(ModuleConfig, ErrorCodeInvalidInput, "config: at least one fusion weight must be positive")
	}
	return nil
}

// LoadConfig 从 YAML 文件加载配置：先套默认值，再覆盖，最后校验。
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
