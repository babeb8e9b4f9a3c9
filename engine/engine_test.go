package engine

import (
	"context"
	"strconv"
	"testing"

	"github.com/rushteam/cinerec/core"
	"github.com/rushteam/cinerec/store"
)

func testConfig() core.Config {
	cfg := core.DefaultConfig()
	cfg.MF = core.MFConfig{
		Factors:        2,
		Epochs:         40,
		LearningRate:   0.05,
		Regularization: 0.02,
		InitStdDev:     0.05,
		Seed:           42,
	}
	cfg.ColdStart = core.ColdStartConfig{MinUserRatings: 2, MinMovieRatings: 2}
	cfg.DiversityPenalty = 0 // keep ordering purely score-driven
	cfg.RequestTimeout = 0
	return cfg
}

func testMovies() []*core.Movie {
	mk := func(id int64, title string, year int, genres ...string) *core.Movie {
		m := core.NewMovie(id, title, year)
		m.AddTokens(core.FeatureGenre, genres...)
		return m
	}
	return []*core.Movie{
		mk(1, "The Matrix", 1999, "sci-fi", "action"),
		mk(2, "Star Wars", 1977, "sci-fi", "adventure"),
		mk(3, "Alien", 1979, "sci-fi", "horror"),
		mk(4, "Toy Story", 1995, "animation", "comedy"),
		mk(5, "Finding Nemo", 2003, "animation", "comedy"),
		mk(6, "Heat", 1995, "crime", "action"),
	}
}

func testRatings() []core.Rating {
	base := int64(1700000000)
	return []core.Rating{
		{UserID: 1, MovieID: 1, Value: 5.0, Timestamp: base},
		{UserID: 1, MovieID: 2, Value: 5.0, Timestamp: base + 100},
		{UserID: 1, MovieID: 3, Value: 4.0, Timestamp: base + 200},
		{UserID: 2, MovieID: 4, Value: 5.0, Timestamp: base},
		{UserID: 2, MovieID: 5, Value: 4.0, Timestamp: base},
		{UserID: 2, MovieID: 1, Value: 2.0, Timestamp: base},
		{UserID: 3, MovieID: 1, Value: 4.0, Timestamp: base},
		{UserID: 3, MovieID: 2, Value: 4.0, Timestamp: base},
		{UserID: 3, MovieID: 6, Value: 3.0, Timestamp: base},
		{UserID: 3, MovieID: 4, Value: 2.0, Timestamp: base},
	}
}

func trainedEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := New(testConfig())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	e.UpsertMovies(testMovies())
	if got := e.AddRatings(testRatings()); got != len(testRatings()) {
		t.Fatalf("AddRatings() accepted %d, want %d", got, len(testRatings()))
	}
	if err := e.TrainModel(context.Background()); err != nil {
		t.Fatalf("TrainModel() error = %v", err)
	}
	return e
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.MF.Factors = 0
	if _, err := New(cfg); err == nil {
		t.Error("New() with zero factors should fail")
	}
}

func TestRecommendNoModel(t *testing.T) {
	e, err := New(testConfig())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if _, err := e.Recommend(context.Background(), &core.RecommendContext{UserID: 1}); !core.IsNoModel(err) {
		t.Errorf("Recommend() error = %v, want NO_MODEL", err)
	}
	if _, err := e.Explain(1, 1); !core.IsNoModel(err) {
		t.Errorf("Explain() error = %v, want NO_MODEL", err)
	}
	if _, err := e.SimilarItems(1, 3); !core.IsNoModel(err) {
		t.Errorf("SimilarItems() error = %v, want NO_MODEL", err)
	}
}

func TestTrainInsufficientData(t *testing.T) {
	e, err := New(testConfig())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := e.TrainModel(context.Background()); !core.IsInsufficientData(err) {
		t.Errorf("TrainModel() on empty engine error = %v, want INSUFFICIENT_DATA", err)
	}
}

func TestAddRatingsRejectsOutOfBounds(t *testing.T) {
	e, err := New(testConfig())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	got := e.AddRatings([]core.Rating{
		{UserID: 1, MovieID: 1, Value: 9.0},
		{UserID: 1, MovieID: 2, Value: 3.0},
	})
	if got != 1 {
		t.Errorf("AddRatings() accepted %d, want 1", got)
	}
}

func TestRecommendExcludesRated(t *testing.T) {
	e := trainedEngine(t)
	rctx := &core.RecommendContext{UserID: 1, N: 10}

	items, err := e.Recommend(context.Background(), rctx)
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}
	if len(items) == 0 {
		t.Fatal("Recommend() returned no items")
	}

	rated := map[int64]bool{1: true, 2: true, 3: true}
	for _, it := range items {
		if rated[it.ID] {
			t.Errorf("rated movie %d appeared in recommendations", it.ID)
		}
	}
	for i := 1; i < len(items); i++ {
		if items[i].Score > items[i-1].Score {
			t.Errorf("items not sorted desc at %d", i)
		}
	}
	for _, it := range items {
		if _, ok := it.GetLabel("reason"); !ok {
			t.Errorf("movie %d has no reason label", it.ID)
		}
	}
}

func TestRecommendRespectsN(t *testing.T) {
	e := trainedEngine(t)
	items, err := e.Recommend(context.Background(), &core.RecommendContext{UserID: 1, N: 2})
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}
	if len(items) > 2 {
		t.Errorf("Recommend(N=2) returned %d items", len(items))
	}
}

func TestRecommendExplicitExclude(t *testing.T) {
	e := trainedEngine(t)
	rctx := &core.RecommendContext{
		UserID:  1,
		N:       10,
		Exclude: map[int64]struct{}{4: {}},
	}
	items, err := e.Recommend(context.Background(), rctx)
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}
	for _, it := range items {
		if it.ID == 4 {
			t.Error("explicitly excluded movie 4 appeared in recommendations")
		}
	}
}

func TestRecommendSeededColdUser(t *testing.T) {
	e := trainedEngine(t)
	rctx := &core.RecommendContext{
		UserID: 999,
		N:      3,
		Seeds:  map[string][]string{core.FeatureGenre: {"sci-fi"}},
	}

	items, err := e.Recommend(context.Background(), rctx)
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}
	if len(items) == 0 {
		t.Fatal("Recommend() for seeded cold user returned no items")
	}
	// seed genre should pull a sci-fi movie to the top
	sciFi := map[int64]bool{1: true, 2: true, 3: true}
	if !sciFi[items[0].ID] {
		t.Errorf("top item for sci-fi seed = movie %d, want a sci-fi movie", items[0].ID)
	}
}

func TestRecommendCanceledContextFallsBack(t *testing.T) {
	e := trainedEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	items, err := e.Recommend(ctx, &core.RecommendContext{UserID: 1, N: 3})
	if err != nil {
		t.Fatalf("Recommend() with canceled context error = %v, want fallback without error", err)
	}
	if len(items) == 0 {
		t.Fatal("fallback returned no items")
	}
	for _, it := range items {
		if it.Breakdown.Gamma != 1 {
			t.Errorf("fallback item %d gamma = %v, want 1", it.ID, it.Breakdown.Gamma)
		}
		if it.ID == 1 || it.ID == 2 || it.ID == 3 {
			t.Errorf("fallback recommended rated movie %d", it.ID)
		}
	}
}

func TestSaveLoadRoundtrip(t *testing.T) {
	ctx := context.Background()
	src := trainedEngine(t)

	s := store.NewMemoryStore()
	defer s.Close()
	if err := src.SaveModel(ctx, s, "model"); err != nil {
		t.Fatalf("SaveModel() error = %v", err)
	}

	dst, err := New(testConfig())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := dst.LoadModel(ctx, s, "model"); err != nil {
		t.Fatalf("LoadModel() error = %v", err)
	}

	items, err := dst.Recommend(ctx, &core.RecommendContext{UserID: 1, N: 5})
	if err != nil {
		t.Fatalf("Recommend() on loaded model error = %v", err)
	}
	if len(items) == 0 {
		t.Fatal("loaded model produced no recommendations")
	}
	for _, it := range items {
		if it.ID == 1 || it.ID == 2 || it.ID == 3 {
			t.Errorf("loaded model recommended rated movie %d", it.ID)
		}
	}

	srcPop := src.Model().Popularity
	dstPop := dst.Model().Popularity
	if len(srcPop) != len(dstPop) {
		t.Fatalf("popularity table size = %d, want %d", len(dstPop), len(srcPop))
	}
	for id, v := range srcPop {
		if dstPop[id] != v {
			t.Errorf("popularity[%d] = %v, want %v", id, dstPop[id], v)
		}
	}
}

func TestSaveModelWithoutModel(t *testing.T) {
	e, err := New(testConfig())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	s := store.NewMemoryStore()
	defer s.Close()
	if err := e.SaveModel(context.Background(), s, "model"); !core.IsNoModel(err) {
		t.Errorf("SaveModel() error = %v, want NO_MODEL", err)
	}
}

func TestExplain(t *testing.T) {
	e := trainedEngine(t)

	t.Run("trained pair", func(t *testing.T) {
		ex, err := e.Explain(1, 4)
		if err != nil {
			t.Fatalf("Explain() error = %v", err)
		}
		if ex.Collaborative == nil {
			t.Error("trained user and movie should carry a collaborative score")
		}
		if ex.Reason == "" {
			t.Error("explanation has no reason")
		}
	})

	t.Run("unknown movie", func(t *testing.T) {
		if _, err := e.Explain(1, 999); !core.IsUnknownEntity(err) {
			t.Errorf("Explain(unknown movie) error = %v, want UNKNOWN_ENTITY", err)
		}
	})

	t.Run("unknown user degrades", func(t *testing.T) {
		ex, err := e.Explain(999, 1)
		if err != nil {
			t.Fatalf("Explain() error = %v", err)
		}
		if ex.Collaborative != nil {
			t.Error("unknown user must not carry a collaborative score")
		}
		if ex.Popularity <= 0 {
			t.Errorf("popularity = %v, want positive", ex.Popularity)
		}
	})
}

func TestSimilarItems(t *testing.T) {
	e := trainedEngine(t)

	got, err := e.SimilarItems(1, 3)
	if err != nil {
		t.Fatalf("SimilarItems() error = %v", err)
	}
	if len(got) == 0 {
		t.Fatal("SimilarItems() returned nothing")
	}
	for _, sm := range got {
		if sm.MovieID == 1 {
			t.Error("SimilarItems() returned the query movie itself")
		}
	}

	if _, err := e.SimilarItems(999, 3); !core.IsUnknownEntity(err) {
		t.Errorf("SimilarItems(unknown) error = %v, want UNKNOWN_ENTITY", err)
	}
}

func TestStats(t *testing.T) {
	e := trainedEngine(t)
	st := e.Stats()

	if st.MovieCount != 6 {
		t.Errorf("MovieCount = %d, want 6", st.MovieCount)
	}
	if st.UserCount != 3 {
		t.Errorf("UserCount = %d, want 3", st.UserCount)
	}
	if st.RatingCount != 10 {
		t.Errorf("RatingCount = %d, want 10", st.RatingCount)
	}
	if st.MostRatedMovie != 1 {
		t.Errorf("MostRatedMovie = %d, want 1", st.MostRatedMovie)
	}
	if len(st.TopGenres) == 0 || st.TopGenres[0].Genre != "sci-fi" {
		t.Errorf("TopGenres = %v, want sci-fi first", st.TopGenres)
	}
}

func TestSearchMovies(t *testing.T) {
	e := trainedEngine(t)

	tests := []struct {
		name  string
		query string
		want  []int64
	}{
		{"exact word", "Star", []int64{2}},
		{"case insensitive", "MATRIX", []int64{1}},
		{"substring", "nemo", []int64{5}},
		{"no match", "zzz", nil},
		{"blank query", "  ", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.SearchMovies(tt.query, 10)
			if len(got) != len(tt.want) {
				t.Fatalf("SearchMovies(%q) returned %d movies, want %d", tt.query, len(got), len(tt.want))
			}
			for i, m := range got {
				if m.ID != tt.want[i] {
					t.Errorf("SearchMovies(%q)[%d] = %d, want %d", tt.query, i, m.ID, tt.want[i])
				}
			}
		})
	}
}

func TestMovieAverage(t *testing.T) {
	e := trainedEngine(t)

	avg, ok := e.MovieAverage(1)
	if !ok {
		t.Fatal("MovieAverage(1) reported no ratings")
	}
	want := (5.0 + 2.0 + 4.0) / 3.0
	if diff := avg - want; diff > 1e-12 || diff < -1e-12 {
		t.Errorf("MovieAverage(1) = %v, want %v", avg, want)
	}

	if _, ok := e.MovieAverage(999); ok {
		t.Error("MovieAverage(unrated) should report false")
	}
}

func TestUserProfile(t *testing.T) {
	e := trainedEngine(t)

	p := e.UserProfile(1)
	if p.RatingCount != 3 {
		t.Errorf("RatingCount = %d, want 3", p.RatingCount)
	}
	want := (5.0 + 5.0 + 4.0) / 3.0
	if diff := p.MeanRating - want; diff > 1e-12 || diff < -1e-12 {
		t.Errorf("MeanRating = %v, want %v", p.MeanRating, want)
	}
	// all three rated movies are high sci-fi ratings
	if len(p.FavoriteGenres) == 0 || p.FavoriteGenres[0].Genre != "sci-fi" {
		t.Errorf("FavoriteGenres = %v, want sci-fi first", p.FavoriteGenres)
	}
	if p.LastActivity.IsZero() {
		t.Error("LastActivity not set despite timestamps")
	}

	empty := e.UserProfile(999)
	if empty.RatingCount != 0 || !empty.LastActivity.IsZero() {
		t.Errorf("unknown user profile = %+v, want empty", empty)
	}
}

func TestTrainModelDuringCatalogRefresh(t *testing.T) {
	e, err := New(testConfig())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	e.UpsertMovies(testMovies())
	e.AddRatings(testRatings())

	// 训练遍历元数据的同时刷新同一部影片的目录条目
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 25; i++ {
			m := core.NewMovie(1, "The Matrix", 1999)
			m.AddTokens(core.FeatureKeyword, "kw"+strconv.Itoa(i))
			e.UpsertMovies([]*core.Movie{m})
		}
	}()
	for i := 0; i < 25; i++ {
		if err := e.TrainModel(context.Background()); err != nil {
			t.Fatalf("TrainModel() error = %v", err)
		}
	}
	<-done
}

func TestMovieReturnsCopy(t *testing.T) {
	e, err := New(testConfig())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	e.UpsertMovies(testMovies())

	m, ok := e.Movie(1)
	if !ok {
		t.Fatal("Movie(1) not found")
	}
	m.AddTokens(core.FeatureGenre, "mutated")

	fresh, _ := e.Movie(1)
	for _, g := range fresh.Metadata[core.FeatureGenre] {
		if g == "mutated" {
			t.Error("mutation through returned movie leaked into the catalog")
		}
	}
}

func TestExcludeRulesSeeScores(t *testing.T) {
	cfg := testConfig()
	cfg.ExcludeRules = []string{`label.coldstart_state == "low_confidence"`}
	e, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	e.UpsertMovies(testMovies())
	e.AddRatings(testRatings())
	if err := e.TrainModel(context.Background()); err != nil {
		t.Fatalf("TrainModel() error = %v", err)
	}

	// user 1 candidates: movie 4 (2 ratings, full), movies 5 and 6
	// (1 rating each, low confidence with threshold 2)
	items, err := e.Recommend(context.Background(), &core.RecommendContext{UserID: 1, N: 10})
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}
	if len(items) != 1 || items[0].ID != 4 {
		got := make([]int64, 0, len(items))
		for _, it := range items {
			got = append(got, it.ID)
		}
		t.Fatalf("Recommend() = %v, want only movie 4 after state rule", got)
	}

	t.Run("score rule filters everything", func(t *testing.T) {
		cfg := testConfig()
		cfg.ExcludeRules = []string{`item.score >= 0.0`}
		e2, err := New(cfg)
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		e2.UpsertMovies(testMovies())
		e2.AddRatings(testRatings())
		if err := e2.TrainModel(context.Background()); err != nil {
			t.Fatalf("TrainModel() error = %v", err)
		}
		items, err := e2.Recommend(context.Background(), &core.RecommendContext{UserID: 1, N: 10})
		if err != nil {
			t.Fatalf("Recommend() error = %v", err)
		}
		if len(items) != 0 {
			t.Errorf("rule over final score kept %d items, want 0", len(items))
		}
	})
}

func TestRecommendAttachesUserState(t *testing.T) {
	e := trainedEngine(t)

	tests := []struct {
		name string
		rctx *core.RecommendContext
		want string
	}{
		{"trained user", &core.RecommendContext{UserID: 1, N: 3}, "full"},
		{
			"seeded cold user",
			&core.RecommendContext{UserID: 999, N: 3, Seeds: map[string][]string{core.FeatureGenre: {"sci-fi"}}},
			"cold_user",
		},
		{"unknown user", &core.RecommendContext{UserID: 999, N: 3}, "popularity_only"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := e.Recommend(context.Background(), tt.rctx); err != nil {
				t.Fatalf("Recommend() error = %v", err)
			}
			lbl, ok := tt.rctx.Labels["user_state"]
			if !ok {
				t.Fatal("user_state label missing on request")
			}
			if lbl.Value != tt.want {
				t.Errorf("user_state = %q, want %q", lbl.Value, tt.want)
			}
		})
	}
}

func TestUpsertMoviesMergesMetadata(t *testing.T) {
	e, err := New(testConfig())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	first := core.NewMovie(1, "The Matrix", 1999)
	first.AddTokens(core.FeatureGenre, "sci-fi")
	e.UpsertMovies([]*core.Movie{first})

	update := core.NewMovie(1, "", 0)
	update.AddTokens(core.FeatureGenre, "action")
	e.UpsertMovies([]*core.Movie{update})

	m, ok := e.Movie(1)
	if !ok {
		t.Fatal("Movie(1) not found after upsert")
	}
	if m.Title != "The Matrix" {
		t.Errorf("empty title overwrote existing one: %q", m.Title)
	}
	genres := m.Metadata[core.FeatureGenre]
	if len(genres) != 2 {
		t.Errorf("genres = %v, want both sci-fi and action", genres)
	}
}
