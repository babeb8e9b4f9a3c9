package dsl

import (
	"testing"

	"github.com/rushteam/cinerec/core"
	"github.com/rushteam/cinerec/pkg/utils"
)

func testItem() *core.Item {
	it := core.NewItem(42)
	it.Score = 0.75
	it.Breakdown = core.ScoreBreakdown{
		Popularity: 0.5,
		Final:      0.75,
		Alpha:      0.6,
		Beta:       0.3,
		Gamma:      0.1,
	}
	it.PutLabel("recall_source", utils.Label{Value: "hot", Source: "recall.hot"})
	return it
}

func TestEvaluate(t *testing.T) {
	rctx := &core.RecommendContext{
		UserID: 7,
		N:      10,
		Params: map[string]any{"device": "tv"},
	}
	rctx.PutLabel("user_state", utils.Label{Value: "cold_user", Source: "engine"})
	e := NewEval(testItem(), rctx)

	tests := []struct {
		name string
		expr string
		want bool
	}{
		{"empty expression passes", "", true},
		{"label shorthand", `label.recall_source == "hot"`, true},
		{"label mismatch", `label.recall_source == "cold"`, false},
		{"item id", `item.id == 42`, true},
		{"score comparison", `item.score > 0.7`, true},
		{"breakdown field", `item.breakdown.popularity >= 0.5`, true},
		{"logical and", `label.recall_source == "hot" && item.score > 0.8`, false},
		{"label value via labels map", `item.labels.recall_source.value == "hot"`, true},
		{"request params", `rctx.params.device == "tv"`, true},
		{"request user id", `rctx.user_id == 7`, true},
		{"request label", `rctx.labels.user_state == "cold_user"`, true},
		{"contains", `label.recall_source.contains("ho")`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.Evaluate(tt.expr)
			if err != nil {
				t.Fatalf("Evaluate(%q) error = %v", tt.expr, err)
			}
			if got != tt.want {
				t.Errorf("Evaluate(%q) = %v, want %v", tt.expr, got, tt.want)
			}
		})
	}
}

func TestEvaluateErrors(t *testing.T) {
	e := NewEval(testItem(), &core.RecommendContext{})

	t.Run("syntax error", func(t *testing.T) {
		if _, err := e.Evaluate("this is not CEL"); err == nil {
			t.Error("Evaluate() on broken expression should fail")
		}
	})

	t.Run("non boolean result", func(t *testing.T) {
		if _, err := e.Evaluate("item.score"); err == nil {
			t.Error("Evaluate() on non-boolean expression should fail")
		}
	})

	t.Run("missing key", func(t *testing.T) {
		if _, err := e.Evaluate(`label.not_there == "x"`); err == nil {
			t.Error("Evaluate() on missing label key should fail")
		}
	})
}
