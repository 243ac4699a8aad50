// Package memory holds the routing memory: what worker sequences worked
// for which task types, which handoffs tend to succeed, and a bulletin
// board for values workers share outside the task context. The
// orchestrator records outcomes here and reads recommendations back; no
// other component mutates this state.
package memory

import (
	"sort"
	"sync"
	"time"

	"github.com/kestrelhq/kestrel/pkg/models"
)

// Defaults for the scoring and recommendation rules. The weights mirror
// the recency/success/similarity split; all are overridable via Config.
const (
	DefaultRecencyWeight    = 0.3
	DefaultSuccessWeight    = 0.5
	DefaultSimilarityWeight = 0.2
	DefaultMaxPatterns      = 50
	DefaultMinSamples       = 3
	DefaultMinSuccessRate   = 0.8
	DefaultRecencyWindow    = 30 * 24 * time.Hour
)

// Weights are the scoring weights for BestSequence.
type Weights struct {
	// Recency weights how recently the pattern was recorded.
	Recency float64
	// Success weights the pattern having succeeded.
	Success float64
	// Similarity weights context overlap with the current task.
	Similarity float64
}

// DefaultWeights returns the standard scoring weights.
func DefaultWeights() Weights {
	return Weights{
		Recency:    DefaultRecencyWeight,
		Success:    DefaultSuccessWeight,
		Similarity: DefaultSimilarityWeight,
	}
}

// Config tunes the routing memory.
type Config struct {
	// Weights are the BestSequence scoring weights.
	Weights Weights
	// MaxPatterns bounds the per-task-type pattern history. Oldest
	// entries are evicted first.
	MaxPatterns int
	// MinSamples is the minimum transition sample size before a
	// recommendation is offered.
	MinSamples int
	// MinSuccessRate is the success-rate threshold a transition must
	// clear before being recommended.
	MinSuccessRate float64
	// RecencyWindow is the span over which recency decays linearly to 0.
	RecencyWindow time.Duration
	// DefaultSequences maps task types to their static fallback sequence.
	DefaultSequences map[string][]string
	// FallbackSequence is used when a task type has no default sequence.
	FallbackSequence []string
}

// DefaultConfig returns a Config with standard tuning.
func DefaultConfig() Config {
	return Config{
		Weights:        DefaultWeights(),
		MaxPatterns:    DefaultMaxPatterns,
		MinSamples:     DefaultMinSamples,
		MinSuccessRate: DefaultMinSuccessRate,
		RecencyWindow:  DefaultRecencyWindow,
	}
}

// patternLog is the bounded, append-only pattern history for one task type.
// Each log carries its own lock so recording for one task type never blocks
// reads for another.
type patternLog struct {
	mu       sync.RWMutex
	patterns []models.ExecutionPattern
}

// Memory is the in-process routing memory. All maps are guarded by short
// outer locks; per-entry locks keep unrelated task types and transitions
// from contending.
type Memory struct {
	cfg Config

	logs   map[string]*patternLog
	logsMu sync.RWMutex

	transitions   map[string]*transitionEntry
	transitionsMu sync.RWMutex

	shared   map[string][]models.SharedEntry
	sharedMu sync.RWMutex
}

// transitionEntry wraps a TransitionStat with its own lock.
type transitionEntry struct {
	mu   sync.Mutex
	stat models.TransitionStat
}

// New creates a Memory with the given tuning. Zero-valued fields fall back
// to defaults.
func New(cfg Config) *Memory {
	if cfg.Weights == (Weights{}) {
		cfg.Weights = DefaultWeights()
	}
	if cfg.MaxPatterns <= 0 {
		cfg.MaxPatterns = DefaultMaxPatterns
	}
	if cfg.MinSamples <= 0 {
		cfg.MinSamples = DefaultMinSamples
	}
	if cfg.MinSuccessRate <= 0 {
		cfg.MinSuccessRate = DefaultMinSuccessRate
	}
	if cfg.RecencyWindow <= 0 {
		cfg.RecencyWindow = DefaultRecencyWindow
	}
	return &Memory{
		cfg:         cfg,
		logs:        make(map[string]*patternLog),
		transitions: make(map[string]*transitionEntry),
		shared:      make(map[string][]models.SharedEntry),
	}
}

// RecordOutcome appends an execution pattern for the task type and updates
// the transition statistics for every consecutive worker pair, plus a
// synthetic terminal pair for the last worker. All outcomes are recorded,
// successful or not, so failed sequences are learned from too.
func (m *Memory) RecordOutcome(taskType string, sequence []string, duration time.Duration, success bool, context map[string]string) {
	if len(sequence) == 0 {
		return
	}

	log := m.log(taskType)
	log.mu.Lock()
	log.patterns = append(log.patterns, models.ExecutionPattern{
		TaskType:   taskType,
		Sequence:   append([]string(nil), sequence...),
		Duration:   duration,
		Success:    success,
		Context:    copyContext(context),
		RecordedAt: time.Now(),
	})
	if len(log.patterns) > m.cfg.MaxPatterns {
		log.patterns = log.patterns[len(log.patterns)-m.cfg.MaxPatterns:]
	}
	log.mu.Unlock()

	for i := 0; i < len(sequence); i++ {
		next := models.TerminalWorker
		if i+1 < len(sequence) {
			next = sequence[i+1]
		}
		m.recordTransition(sequence[i], next, success)
	}
}

// BestSequence returns the worker sequence of the highest-scoring
// successful pattern for the task type, scored by weighted recency,
// success, and context similarity. With no qualifying pattern it falls
// back to the task type's static default sequence.
func (m *Memory) BestSequence(taskType string, context map[string]string) []string {
	log := m.log(taskType)
	log.mu.RLock()
	defer log.mu.RUnlock()

	now := time.Now()
	best := -1.0
	var bestSeq []string
	for i := range log.patterns {
		p := &log.patterns[i]
		if !p.Success {
			continue
		}
		score := m.score(p, context, now)
		if score > best {
			best = score
			bestSeq = p.Sequence
		}
	}

	if bestSeq == nil {
		return m.DefaultSequence(taskType)
	}
	return append([]string(nil), bestSeq...)
}

// DefaultSequence returns the static fallback sequence for a task type.
func (m *Memory) DefaultSequence(taskType string) []string {
	if seq, ok := m.cfg.DefaultSequences[taskType]; ok {
		return append([]string(nil), seq...)
	}
	return append([]string(nil), m.cfg.FallbackSequence...)
}

// RecommendNext returns the worker with the highest transition success rate
// out of the current worker, provided the transition has at least
// MinSamples observations and clears the MinSuccessRate threshold.
// It returns "" when no transition qualifies.
func (m *Memory) RecommendNext(currentWorker string, context map[string]string) string {
	m.transitionsMu.RLock()
	entries := make([]*transitionEntry, 0, 4)
	for _, e := range m.transitions {
		entries = append(entries, e)
	}
	m.transitionsMu.RUnlock()

	best := ""
	bestRate := 0.0
	for _, e := range entries {
		e.mu.Lock()
		stat := e.stat
		e.mu.Unlock()

		if stat.From != currentWorker || stat.To == models.TerminalWorker {
			continue
		}
		if stat.TotalCount < m.cfg.MinSamples {
			continue
		}
		rate := stat.SuccessRate()
		if rate < m.cfg.MinSuccessRate {
			continue
		}
		if rate > bestRate || (rate == bestRate && best != "" && stat.To < best) {
			best = stat.To
			bestRate = rate
		}
	}
	return best
}

// Transitions returns a snapshot of all transition statistics.
func (m *Memory) Transitions() []models.TransitionStat {
	m.transitionsMu.RLock()
	entries := make([]*transitionEntry, 0, len(m.transitions))
	for _, e := range m.transitions {
		entries = append(entries, e)
	}
	m.transitionsMu.RUnlock()

	stats := make([]models.TransitionStat, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		stats = append(stats, e.stat)
		e.mu.Unlock()
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].From != stats[j].From {
			return stats[i].From < stats[j].From
		}
		return stats[i].To < stats[j].To
	})
	return stats
}

// Patterns returns a snapshot of the pattern history for a task type.
func (m *Memory) Patterns(taskType string) []models.ExecutionPattern {
	log := m.log(taskType)
	log.mu.RLock()
	defer log.mu.RUnlock()
	return append([]models.ExecutionPattern(nil), log.patterns...)
}

// TaskTypes returns the task types with recorded patterns.
func (m *Memory) TaskTypes() []string {
	m.logsMu.RLock()
	defer m.logsMu.RUnlock()
	types := make([]string, 0, len(m.logs))
	for t := range m.logs {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Size returns the total number of stored patterns, transitions, and
// shared entries.
func (m *Memory) Size() int {
	n := 0
	m.logsMu.RLock()
	logs := make([]*patternLog, 0, len(m.logs))
	for _, l := range m.logs {
		logs = append(logs, l)
	}
	m.logsMu.RUnlock()
	for _, l := range logs {
		l.mu.RLock()
		n += len(l.patterns)
		l.mu.RUnlock()
	}

	m.transitionsMu.RLock()
	n += len(m.transitions)
	m.transitionsMu.RUnlock()

	m.sharedMu.RLock()
	for _, entries := range m.shared {
		n += len(entries)
	}
	m.sharedMu.RUnlock()
	return n
}

// Share posts a keyed value on the bulletin board for another worker.
// The board is independent of execution patterns; it carries intermediate
// results between workers outside the main task context.
func (m *Memory) Share(fromWorker, toWorker, key, value string) {
	m.sharedMu.Lock()
	defer m.sharedMu.Unlock()
	m.shared[toWorker] = append(m.shared[toWorker], models.SharedEntry{
		From:     fromWorker,
		To:       toWorker,
		Key:      key,
		Value:    value,
		SharedAt: time.Now(),
	})
}

// FetchShared returns the bulletin board entries addressed to a worker.
// A non-empty key filters to entries with that key.
func (m *Memory) FetchShared(toWorker, key string) []models.SharedEntry {
	m.sharedMu.RLock()
	defer m.sharedMu.RUnlock()

	var out []models.SharedEntry
	for _, e := range m.shared[toWorker] {
		if key == "" || e.Key == key {
			out = append(out, e)
		}
	}
	return out
}

// log returns the pattern log for a task type, creating it if needed.
func (m *Memory) log(taskType string) *patternLog {
	m.logsMu.RLock()
	l, ok := m.logs[taskType]
	m.logsMu.RUnlock()
	if ok {
		return l
	}

	m.logsMu.Lock()
	defer m.logsMu.Unlock()
	if l, ok := m.logs[taskType]; ok {
		return l
	}
	l = &patternLog{}
	m.logs[taskType] = l
	return l
}

// recordTransition increments the (from, to) transition counts.
func (m *Memory) recordTransition(from, to string, success bool) {
	key := from + "\x00" + to

	m.transitionsMu.RLock()
	e, ok := m.transitions[key]
	m.transitionsMu.RUnlock()
	if !ok {
		m.transitionsMu.Lock()
		e, ok = m.transitions[key]
		if !ok {
			e = &transitionEntry{stat: models.TransitionStat{From: from, To: to}}
			m.transitions[key] = e
		}
		m.transitionsMu.Unlock()
	}

	e.mu.Lock()
	e.stat.TotalCount++
	if success {
		e.stat.SuccessCount++
	}
	e.mu.Unlock()
}

// score computes the weighted pattern score. Recency decays linearly to 0
// over the recency window; similarity is the fraction of context keys
// shared between the stored snapshot and the current context whose values
// match.
func (m *Memory) score(p *models.ExecutionPattern, context map[string]string, now time.Time) float64 {
	age := now.Sub(p.RecordedAt)
	recency := 1 - float64(age)/float64(m.cfg.RecencyWindow)
	if recency < 0 {
		recency = 0
	}

	success := 0.0
	if p.Success {
		success = 1.0
	}

	return m.cfg.Weights.Recency*recency +
		m.cfg.Weights.Success*success +
		m.cfg.Weights.Similarity*contextSimilarity(p.Context, context)
}

// contextSimilarity returns the fraction of keys present in both contexts
// whose values match, over the union of keys.
func contextSimilarity(stored, current map[string]string) float64 {
	if len(stored) == 0 || len(current) == 0 {
		return 0
	}

	union := make(map[string]bool, len(stored)+len(current))
	matches := 0
	for k := range stored {
		union[k] = true
	}
	for k := range current {
		union[k] = true
	}
	for k, v := range stored {
		if cv, ok := current[k]; ok && cv == v {
			matches++
		}
	}
	return float64(matches) / float64(len(union))
}

func copyContext(context map[string]string) map[string]string {
	if context == nil {
		return nil
	}
	out := make(map[string]string, len(context))
	for k, v := range context {
		out[k] = v
	}
	return out
}
