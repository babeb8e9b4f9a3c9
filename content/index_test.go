package content

import (
	"math"
	"testing"
	"time"

	"github.com/rushteam/cinerec/core"
)

func testCatalog() []*core.Movie {
	mk := func(id int64, title string, year int, genres ...string) *core.Movie {
		m := core.NewMovie(id, title, year)
		m.AddTokens(core.FeatureGenre, genres...)
		return m
	}
	return []*core.Movie{
		mk(1, "The Matrix", 1999, "sci-fi", "action"),
		mk(2, "Blade Runner", 1982, "sci-fi", "noir"),
		mk(3, "Toy Story", 1995, "animation", "family"),
		mk(4, "Heat", 1995, "crime", "action"),
		mk(5, "Alien", 1979, "sci-fi", "horror"),
	}
}

func TestSimilarity(t *testing.T) {
	idx := Build(testCatalog(), core.ContentConfig{})

	t.Run("self similarity is one", func(t *testing.T) {
		if got := idx.Similarity(1, 1); got != 1 {
			t.Errorf("Similarity(1, 1) = %v, want 1", got)
		}
	})

	t.Run("symmetric", func(t *testing.T) {
		if a, b := idx.Similarity(1, 2), idx.Similarity(2, 1); a != b {
			t.Errorf("Similarity not symmetric: %v vs %v", a, b)
		}
	})

	t.Run("in unit range", func(t *testing.T) {
		ids := []int64{1, 2, 3, 4, 5}
		for _, a := range ids {
			for _, b := range ids {
				s := idx.Similarity(a, b)
				if s < 0 || s > 1+1e-12 {
					t.Errorf("Similarity(%d, %d) = %v outside [0, 1]", a, b, s)
				}
			}
		}
	})

	t.Run("more overlap scores higher", func(t *testing.T) {
		two := idx.Similarity(1, 4) // shares action and the 1990s bucket
		one := idx.Similarity(1, 2) // shares sci-fi only
		if two <= one {
			t.Errorf("two shared tokens (%v) should exceed one (%v)", two, one)
		}
	})

	t.Run("disjoint movies score zero", func(t *testing.T) {
		if got := idx.Similarity(2, 3); got != 0 {
			t.Errorf("Similarity(2, 3) = %v, want 0 (no shared tokens)", got)
		}
	})

	t.Run("missing movie scores zero", func(t *testing.T) {
		if got := idx.Similarity(1, 999); got != 0 {
			t.Errorf("Similarity with unknown movie = %v, want 0", got)
		}
	})
}

func TestTopSimilar(t *testing.T) {
	idx := Build(testCatalog(), core.ContentConfig{})

	got := idx.TopSimilar(1, 10)
	if len(got) == 0 {
		t.Fatal("TopSimilar returned nothing")
	}

	for i, sm := range got {
		if sm.MovieID == 1 {
			t.Error("TopSimilar must not contain the query movie")
		}
		if sm.Score <= 0 {
			t.Errorf("TopSimilar[%d] score = %v, want positive", i, sm.Score)
		}
		if i > 0 {
			prev := got[i-1]
			if sm.Score > prev.Score {
				t.Errorf("TopSimilar not sorted desc at %d", i)
			}
			if sm.Score == prev.Score && sm.MovieID < prev.MovieID {
				t.Errorf("TopSimilar tie not broken by ascending id at %d", i)
			}
		}
	}

	if k2 := idx.TopSimilar(1, 1); len(k2) != 1 {
		t.Errorf("TopSimilar(1, 1) length = %d, want 1", len(k2))
	}
	if unknown := idx.TopSimilar(999, 5); unknown != nil {
		t.Errorf("TopSimilar for unknown movie = %v, want nil", unknown)
	}
}

func TestVocabCap(t *testing.T) {
	idx := Build(testCatalog(), core.ContentConfig{MaxVocab: 3})
	if got := len(idx.IDF); got != 3 {
		t.Errorf("vocabulary size = %d, want 3", got)
	}
	// highest-df tokens survive: sci-fi (df 3) must be kept
	if _, ok := idx.IDF["genre:sci-fi"]; !ok {
		t.Error("highest-df token genre:sci-fi was evicted")
	}
}

func TestVectorsNormalized(t *testing.T) {
	idx := Build(testCatalog(), core.ContentConfig{})
	for movieID, vec := range idx.Vectors {
		var norm float64
		for _, w := range vec {
			norm += w * w
		}
		if math.Abs(math.Sqrt(norm)-1) > 1e-9 {
			t.Errorf("vector for movie %d has norm %v, want 1", movieID, math.Sqrt(norm))
		}
	}
}

func TestSeedVector(t *testing.T) {
	idx := Build(testCatalog(), core.ContentConfig{})

	seed := idx.SeedVector(map[string][]string{core.FeatureGenre: {"sci-fi"}})
	if seed == nil {
		t.Fatal("SeedVector returned nil for a known genre")
	}

	scifiScore, ok := idx.SeedScore(seed, 2) // Blade Runner, sci-fi
	if !ok || scifiScore <= 0 {
		t.Fatalf("SeedScore for sci-fi movie = %v ok=%v, want positive", scifiScore, ok)
	}
	animScore, ok := idx.SeedScore(seed, 3) // Toy Story, no sci-fi
	if !ok {
		t.Fatal("SeedScore should be ok for an indexed movie")
	}
	if animScore >= scifiScore {
		t.Errorf("seed should prefer sci-fi: %v vs %v", scifiScore, animScore)
	}

	if unknown := idx.SeedVector(map[string][]string{core.FeatureGenre: {"nonexistent"}}); unknown != nil {
		t.Errorf("SeedVector for unknown tokens = %v, want nil", unknown)
	}
}

func TestUserScore(t *testing.T) {
	idx := Build(testCatalog(), core.ContentConfig{})
	now := time.Now()

	t.Run("empty history yields no score", func(t *testing.T) {
		if _, ok := idx.UserScore(1, nil, nil, 0, now); ok {
			t.Error("UserScore with empty history should return ok=false")
		}
	})

	t.Run("prefers movies close to history", func(t *testing.T) {
		history := map[int64]float64{1: 5.0, 2: 5.0} // loved both sci-fi movies
		scifi, ok := idx.UserScore(5, history, nil, 0, now) // Alien
		if !ok {
			t.Fatal("UserScore should be ok with history present")
		}
		anim, _ := idx.UserScore(3, history, nil, 0, now) // Toy Story
		if scifi <= anim {
			t.Errorf("sci-fi candidate (%v) should beat animation (%v)", scifi, anim)
		}
	})

	t.Run("recency decay lowers stale influence", func(t *testing.T) {
		history := map[int64]float64{1: 5.0, 3: 5.0}
		old := now.Add(-365 * 24 * time.Hour).Unix()
		fresh := now.Unix()
		times := map[int64]int64{1: old, 3: fresh}

		// with decay the fresh animation rating dominates, without it the two tie
		decayed, _ := idx.UserScore(5, history, times, 30, now) // Alien, similar to 1 only
		flat, _ := idx.UserScore(5, history, nil, 0, now)
		if decayed >= flat {
			t.Errorf("decayed score %v should be below undecayed %v", decayed, flat)
		}
	})

	t.Run("unknown candidate yields no score", func(t *testing.T) {
		if _, ok := idx.UserScore(999, map[int64]float64{1: 5}, nil, 0, now); ok {
			t.Error("UserScore for unindexed candidate should return ok=false")
		}
	})
}
