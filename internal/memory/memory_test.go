package memory

import (
	"testing"
	"time"
)

func TestRecordOutcome_ThenBestSequence(t *testing.T) {
	m := New(DefaultConfig())

	ctx := map[string]string{"domain": "billing", "depth": "deep"}
	m.RecordOutcome("research", []string{"search_agent", "analysis_agent"}, 2*time.Second, true, ctx)

	got := m.BestSequence("research", ctx)
	want := []string{"search_agent", "analysis_agent"}
	if len(got) != len(want) {
		t.Fatalf("BestSequence = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("BestSequence[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestBestSequence_IgnoresFailures(t *testing.T) {
	m := New(DefaultConfig())

	m.RecordOutcome("research", []string{"bad_agent"}, time.Second, false, nil)

	got := m.BestSequence("research", nil)
	if len(got) != 0 {
		t.Errorf("BestSequence with only failed patterns = %v, want default (empty)", got)
	}
}

func TestBestSequence_FallsBackToDefault(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DefaultSequences = map[string][]string{
		"research": {"search_agent", "analysis_agent", "formatting_agent"},
	}
	cfg.FallbackSequence = []string{"loopback"}
	m := New(cfg)

	got := m.BestSequence("research", nil)
	if len(got) != 3 || got[0] != "search_agent" {
		t.Errorf("BestSequence = %v, want research default", got)
	}

	got = m.BestSequence("unseen_type", nil)
	if len(got) != 1 || got[0] != "loopback" {
		t.Errorf("BestSequence for unseen type = %v, want fallback", got)
	}
}

func TestBestSequence_PrefersMatchingContext(t *testing.T) {
	cfg := DefaultConfig()
	// Make similarity decisive over recency.
	cfg.Weights = Weights{Recency: 0.1, Success: 0.3, Similarity: 0.6}
	m := New(cfg)

	m.RecordOutcome("research", []string{"a", "b"}, time.Second, true,
		map[string]string{"domain": "billing"})
	m.RecordOutcome("research", []string{"c", "d"}, time.Second, true,
		map[string]string{"domain": "security"})

	got := m.BestSequence("research", map[string]string{"domain": "billing"})
	if len(got) != 2 || got[0] != "a" {
		t.Errorf("BestSequence = %v, want [a b] (billing context)", got)
	}
}

func TestRecommendNext_BelowSampleSize(t *testing.T) {
	m := New(DefaultConfig())

	// Two samples, both successful: still below the minimum of three.
	m.RecordOutcome("research", []string{"a", "b"}, time.Second, true, nil)
	m.RecordOutcome("research", []string{"a", "b"}, time.Second, true, nil)

	if got := m.RecommendNext("a", nil); got != "" {
		t.Errorf("RecommendNext below sample size = %q, want none", got)
	}
}

func TestRecommendNext_ClearsThreshold(t *testing.T) {
	m := New(DefaultConfig())

	for i := 0; i < 4; i++ {
		m.RecordOutcome("research", []string{"a", "b"}, time.Second, true, nil)
	}

	if got := m.RecommendNext("a", nil); got != "b" {
		t.Errorf("RecommendNext = %q, want b", got)
	}
}

func TestRecommendNext_BelowSuccessRate(t *testing.T) {
	m := New(DefaultConfig())

	// 3 of 5 successes: 0.6 < 0.8 threshold.
	for i := 0; i < 3; i++ {
		m.RecordOutcome("research", []string{"a", "b"}, time.Second, true, nil)
	}
	for i := 0; i < 2; i++ {
		m.RecordOutcome("research", []string{"a", "b"}, time.Second, false, nil)
	}

	if got := m.RecommendNext("a", nil); got != "" {
		t.Errorf("RecommendNext below threshold = %q, want none", got)
	}
}

func TestRecommendNext_NeverRecommendsTerminal(t *testing.T) {
	m := New(DefaultConfig())

	// "b" only ever transitions to the synthetic terminal.
	for i := 0; i < 5; i++ {
		m.RecordOutcome("research", []string{"a", "b"}, time.Second, true, nil)
	}

	if got := m.RecommendNext("b", nil); got != "" {
		t.Errorf("RecommendNext = %q, want none (terminal only)", got)
	}
}

func TestRecordOutcome_TerminalTransition(t *testing.T) {
	m := New(DefaultConfig())

	m.RecordOutcome("research", []string{"a", "b"}, time.Second, true, nil)

	stats := m.Transitions()
	if len(stats) != 2 {
		t.Fatalf("got %d transitions, want 2 (a->b, b->terminal)", len(stats))
	}
	if stats[0].From != "a" || stats[0].To != "b" {
		t.Errorf("stats[0] = %s->%s", stats[0].From, stats[0].To)
	}
	if stats[1].From != "b" || stats[1].To != "none" {
		t.Errorf("stats[1] = %s->%s, want b->none", stats[1].From, stats[1].To)
	}
}

func TestRecordOutcome_BoundedHistory(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxPatterns = 5
	m := New(cfg)

	for i := 0; i < 10; i++ {
		m.RecordOutcome("research", []string{"a"}, time.Second, true, nil)
	}

	if got := len(m.Patterns("research")); got != 5 {
		t.Errorf("pattern count = %d, want 5", got)
	}
}

func TestShare_FetchShared(t *testing.T) {
	m := New(DefaultConfig())

	m.Share("search_agent", "analysis_agent", "sources", "a.txt,b.txt")
	m.Share("search_agent", "analysis_agent", "confidence", "0.9")
	m.Share("search_agent", "docs_agent", "sources", "c.txt")

	all := m.FetchShared("analysis_agent", "")
	if len(all) != 2 {
		t.Fatalf("FetchShared all = %d entries, want 2", len(all))
	}

	filtered := m.FetchShared("analysis_agent", "sources")
	if len(filtered) != 1 || filtered[0].Value != "a.txt,b.txt" {
		t.Errorf("FetchShared filtered = %v", filtered)
	}

	if got := m.FetchShared("code_agent", ""); len(got) != 0 {
		t.Errorf("FetchShared for uninvolved worker = %v, want empty", got)
	}
}

func TestContextSimilarity(t *testing.T) {
	tests := []struct {
		name    string
		stored  map[string]string
		current map[string]string
		want    float64
	}{
		{"both empty", nil, nil, 0},
		{"identical", map[string]string{"a": "1"}, map[string]string{"a": "1"}, 1},
		{"value mismatch", map[string]string{"a": "1"}, map[string]string{"a": "2"}, 0},
		{"half overlap", map[string]string{"a": "1", "b": "2"}, map[string]string{"a": "1", "c": "3"}, 1.0 / 3.0},
		{"disjoint", map[string]string{"a": "1"}, map[string]string{"b": "2"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := contextSimilarity(tt.stored, tt.current)
			if diff := got - tt.want; diff > 1e-9 || diff < -1e-9 {
				t.Errorf("contextSimilarity = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMemory_Size(t *testing.T) {
	m := New(DefaultConfig())

	m.RecordOutcome("research", []string{"a", "b"}, time.Second, true, nil)
	m.Share("a", "b", "k", "v")

	// 1 pattern + 2 transitions + 1 shared entry.
	if got := m.Size(); got != 4 {
		t.Errorf("Size = %d, want 4", got)
	}
}
