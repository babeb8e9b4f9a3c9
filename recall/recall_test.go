package recall

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rushteam/cinerec/content"
	"github.com/rushteam/cinerec/core"
	"github.com/rushteam/cinerec/store"
)

// stubSource 是测试用召回源：固定返回一组 id，或固定报错。
type stubSource struct {
	name  string
	ids   []int64
	err   error
	delay time.Duration
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) Recall(ctx context.Context, _ *core.RecommendContext) ([]*core.Item, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	out := make([]*core.Item, 0, len(s.ids))
	for _, id := range s.ids {
		out = append(out, core.NewItem(id))
	}
	return out, nil
}

func ids(items []*core.Item) map[int64]bool {
	out := make(map[int64]bool, len(items))
	for _, it := range items {
		out[it.ID] = true
	}
	return out
}

func TestFanoutMergesSources(t *testing.T) {
	n := &Fanout{
		Sources: []Source{
			&stubSource{name: "a", ids: []int64{1, 2}},
			&stubSource{name: "b", ids: []int64{2, 3}},
		},
		Dedup: true,
	}

	out, err := n.Process(context.Background(), &core.RecommendContext{}, nil)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	got := ids(out)
	if len(out) != 3 || !got[1] || !got[2] || !got[3] {
		t.Errorf("merged ids = %v, want {1 2 3}", got)
	}
	for _, it := range out {
		if _, ok := it.GetLabel("recall_source"); !ok {
			t.Errorf("movie %d missing recall_source label", it.ID)
		}
	}
}

func TestFanoutUnionKeepsDuplicates(t *testing.T) {
	n := &Fanout{
		Sources: []Source{
			&stubSource{name: "a", ids: []int64{1}},
			&stubSource{name: "b", ids: []int64{1}},
		},
		Dedup:         true,
		MergeStrategy: "union",
	}
	out, err := n.Process(context.Background(), &core.RecommendContext{}, nil)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if len(out) != 2 {
		t.Errorf("union kept %d items, want 2", len(out))
	}
}

func TestFanoutPriorityMerge(t *testing.T) {
	n := &Fanout{
		Sources: []Source{
			&stubSource{name: "high", ids: []int64{1}},
			&stubSource{name: "low", ids: []int64{1, 2}},
		},
		Dedup:         true,
		MergeStrategy: "priority",
	}
	out, err := n.Process(context.Background(), &core.RecommendContext{}, nil)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("priority merge kept %d items, want 2", len(out))
	}
	for _, it := range out {
		if it.ID != 1 {
			continue
		}
		// 标签按 Merge 规则累积，低优先级来源可能以 "|low" 形式追加在后
		lbl, ok := it.GetLabel("recall_source")
		if !ok || !strings.HasPrefix(lbl.Value, "high") {
			t.Errorf("movie 1 recall_source = %q, want high to win", lbl.Value)
		}
	}
}

func TestFanoutSwallowsSourceErrors(t *testing.T) {
	n := &Fanout{
		Sources: []Source{
			&stubSource{name: "broken", err: errors.New("backend down")},
			&stubSource{name: "ok", ids: []int64{5}},
		},
		Dedup: true,
	}
	out, err := n.Process(context.Background(), &core.RecommendContext{}, nil)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if len(out) != 1 || out[0].ID != 5 {
		t.Errorf("got %d items, want just movie 5 from the healthy source", len(out))
	}
}

func TestFanoutPerSourceTimeout(t *testing.T) {
	n := &Fanout{
		Sources: []Source{
			&stubSource{name: "slow", ids: []int64{1}, delay: 200 * time.Millisecond},
			&stubSource{name: "fast", ids: []int64{2}},
		},
		Dedup:   true,
		Timeout: 20 * time.Millisecond,
	}
	out, err := n.Process(context.Background(), &core.RecommendContext{}, nil)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	got := ids(out)
	if got[1] {
		t.Error("slow source result leaked past its timeout")
	}
	if !got[2] {
		t.Error("fast source result missing")
	}
}

func TestCatalogSource(t *testing.T) {
	src := &Catalog{MovieIDs: func() []int64 { return []int64{3, 1, 2} }}
	out, err := src.Recall(context.Background(), &core.RecommendContext{})
	if err != nil {
		t.Fatalf("Recall() error = %v", err)
	}
	if len(out) != 3 {
		t.Errorf("Recall() returned %d items, want 3", len(out))
	}
}

func TestHotFromZSet(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	defer s.Close()
	for member, score := range map[string]float64{"1": 1, "2": 3, "3": 2} {
		if err := s.ZAdd(ctx, "hot:movies", score, member); err != nil {
			t.Fatalf("ZAdd() error = %v", err)
		}
	}

	r := &Hot{Store: s, Key: "hot:movies", Limit: 2}
	out, err := r.Recall(ctx, &core.RecommendContext{})
	if err != nil {
		t.Fatalf("Recall() error = %v", err)
	}
	if len(out) != 2 || out[0].ID != 2 || out[1].ID != 3 {
		t.Errorf("Recall() top ids wrong, got %d items", len(out))
	}
}

func TestHotFallbackIDs(t *testing.T) {
	r := &Hot{IDs: []int64{7, 8}}
	out, err := r.Recall(context.Background(), &core.RecommendContext{})
	if err != nil {
		t.Fatalf("Recall() error = %v", err)
	}
	if len(out) != 2 || out[0].ID != 7 {
		t.Errorf("fallback ids not used, got %d items", len(out))
	}
}

func contentRecallIndex() *content.Index {
	mk := func(id int64, genres ...string) *core.Movie {
		m := core.NewMovie(id, "m", 0)
		m.AddTokens(core.FeatureGenre, genres...)
		return m
	}
	return content.Build([]*core.Movie{
		mk(1, "sci-fi", "action"),
		mk(2, "sci-fi"),
		mk(3, "drama"),
	}, core.ContentConfig{})
}

func TestContentRecallFromHistory(t *testing.T) {
	r := &Content{
		Index: contentRecallIndex(),
		Liked: func(userID int64) []int64 {
			if userID == 1 {
				return []int64{1}
			}
			return nil
		},
	}

	out, err := r.Recall(context.Background(), &core.RecommendContext{UserID: 1})
	if err != nil {
		t.Fatalf("Recall() error = %v", err)
	}
	got := ids(out)
	if !got[2] {
		t.Error("movie 2 shares a genre with the liked movie, expected in recall")
	}
	if got[1] {
		t.Error("the liked movie itself must not be recalled")
	}
}

func TestContentRecallFromSeeds(t *testing.T) {
	r := &Content{Index: contentRecallIndex()}
	rctx := &core.RecommendContext{
		UserID: 99,
		Seeds:  map[string][]string{core.FeatureGenre: {"drama"}},
	}

	out, err := r.Recall(context.Background(), rctx)
	if err != nil {
		t.Fatalf("Recall() error = %v", err)
	}
	if len(out) == 0 || out[0].ID != 3 {
		t.Fatalf("seed recall top = %v, want movie 3", ids(out))
	}
}

func TestContentRecallNoSignal(t *testing.T) {
	r := &Content{Index: contentRecallIndex()}
	out, err := r.Recall(context.Background(), &core.RecommendContext{UserID: 99})
	if err != nil {
		t.Fatalf("Recall() error = %v", err)
	}
	if len(out) != 0 {
		t.Errorf("no history and no seeds should recall nothing, got %d", len(out))
	}
}
