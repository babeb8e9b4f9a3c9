package dsl

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/rushteam/cinerec/core"
)

var (
	// celEnv 是全局的 CEL 环境，线程安全，可复用
	celEnv     *cel.Env
	celEnvOnce sync.Once
)

func initCELEnv() (*cel.Env, error) {
	env, err := cel.NewEnv(
		cel.Variable("item", cel.DynType),
		cel.Variable("label", cel.DynType),
		cel.Variable("rctx", cel.DynType),
	)
	return env, err
}

func getCELEnv() (*cel.Env, error) {
	var err error
	celEnvOnce.Do(func() {
		celEnv, err = initCELEnv()
	})
	return celEnv, err
}

// Eval 是规则 DSL 解释器，使用 CEL (Common Expression Language) 实现。
//
// 表达式语法（CEL 标准语法）：
//   - 基础：label.recall_source == "hot" / label.coldstart_state != "full"
//   - 数值：item.score > 0.7 / item.breakdown.popularity >= 0.5
//   - 逻辑：label.recall_source == "hot" && item.score > 0.8
//   - 存在性：label.recall_source != null
//   - 包含：label.recall_source.contains("hot")
//   - 请求级：rctx.labels.user_state == "cold_user" / rctx.params.device == "tv"
type Eval struct {
	item *core.Item
	rctx *core.RecommendContext
	env  *cel.Env
}

// NewEval 创建一个新的 DSL 解释器。
func NewEval(item *core.Item, rctx *core.RecommendContext) *Eval {
	env, _ := getCELEnv()
	return &Eval{
		item: item,
		rctx: rctx,
		env:  env,
	}
}

// Evaluate 解析并执行 DSL 表达式，返回布尔结果。
// 注意：has(label.key) 可以用 label.key != null 替代
func (e *Eval) Evaluate(expr string) (bool, error) {
	if expr == "" {
		return true, nil
	}

	ast, issues := e.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return false, fmt.Errorf("compile error: %v", issues.Err())
	}

	prg, err := e.env.Program(ast)
	if err != nil {
		return false, fmt.Errorf("program error: %v", err)
	}

	out, _, err := prg.Eval(e.buildInput())
	if err != nil {
		// 访问不存在的 key 时 CEL 会报错，
		// 表达式侧应使用 label.key != null 检查存在性
		return false, fmt.Errorf("eval error: %v", err)
	}

	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("expression must return boolean, got %T", out.Value())
	}
	return result, nil
}

// buildInput 构建 CEL 表达式的输入数据
func (e *Eval) buildInput() map[string]interface{} {
	labels := make(map[string]interface{})
	labelAccessor := make(map[string]interface{})
	for k, v := range e.item.Labels {
		labels[k] = map[string]interface{}{
			"value":  v.Value,
			"source": v.Source,
		}
		// label.recall_source 直接返回 value，方便写短表达式
		labelAccessor[k] = v.Value
	}

	breakdown := map[string]interface{}{
		"popularity":     e.item.Breakdown.Popularity,
		"final":          e.item.Breakdown.Final,
		"alpha":          e.item.Breakdown.Alpha,
		"beta":           e.item.Breakdown.Beta,
		"gamma":          e.item.Breakdown.Gamma,
		"low_confidence": e.item.Breakdown.LowConfidence,
	}
	if e.item.Breakdown.Collaborative != nil {
		breakdown["collaborative"] = *e.item.Breakdown.Collaborative
	}
	if e.item.Breakdown.Content != nil {
		breakdown["content"] = *e.item.Breakdown.Content
	}

	item := map[string]interface{}{
		"id":        e.item.ID,
		"score":     e.item.Score,
		"breakdown": breakdown,
		"labels":    labels,
	}

	// rctx.labels.user_state 等请求级标签同样直接返回 value
	rctxLabels := make(map[string]interface{}, len(e.rctx.Labels))
	for k, v := range e.rctx.Labels {
		rctxLabels[k] = v.Value
	}

	rctx := map[string]interface{}{
		"user_id": e.rctx.UserID,
		"n":       e.rctx.N,
		"seeds":   e.rctx.Seeds,
		"params":  e.rctx.Params,
		"labels":  rctxLabels,
	}

	return map[string]interface{}{
		"item":  item,
		"label": labelAccessor,
		"rctx":  rctx,
	}
}
