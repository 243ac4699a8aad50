package memory

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/kestrelhq/kestrel/pkg/models"
)

// Snapshot is a portable YAML view of the routing memory, used by the
// export and import commands.
type Snapshot struct {
	Patterns    []models.ExecutionPattern `yaml:"patterns"`
	Transitions []models.TransitionStat   `yaml:"transitions"`
	Shared      []models.SharedEntry      `yaml:"shared"`
}

// Export writes the memory's current contents as YAML.
func (m *Memory) Export(w io.Writer) error {
	snap := Snapshot{Transitions: m.Transitions()}
	for _, taskType := range m.TaskTypes() {
		snap.Patterns = append(snap.Patterns, m.Patterns(taskType)...)
	}

	m.sharedMu.RLock()
	for _, entries := range m.shared {
		snap.Shared = append(snap.Shared, entries...)
	}
	m.sharedMu.RUnlock()

	enc := yaml.NewEncoder(w)
	defer enc.Close()
	if err := enc.Encode(snap); err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return nil
}

// Import merges a YAML snapshot into the memory.
func (m *Memory) Import(r io.Reader) error {
	var snap Snapshot
	if err := yaml.NewDecoder(r).Decode(&snap); err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}

	for _, p := range snap.Patterns {
		m.restorePattern(p)
	}
	for _, stat := range snap.Transitions {
		m.restoreTransition(stat)
	}
	for _, e := range snap.Shared {
		m.restoreShared(e)
	}
	return nil
}

// restorePattern appends a previously persisted pattern without touching
// transition statistics (those are restored separately).
func (m *Memory) restorePattern(p models.ExecutionPattern) {
	log := m.log(p.TaskType)
	log.mu.Lock()
	defer log.mu.Unlock()
	log.patterns = append(log.patterns, p)
	if len(log.patterns) > m.cfg.MaxPatterns {
		log.patterns = log.patterns[len(log.patterns)-m.cfg.MaxPatterns:]
	}
}

// restoreTransition merges a previously persisted transition stat.
func (m *Memory) restoreTransition(stat models.TransitionStat) {
	key := stat.From + "\x00" + stat.To

	m.transitionsMu.Lock()
	e, ok := m.transitions[key]
	if !ok {
		e = &transitionEntry{}
		m.transitions[key] = e
	}
	m.transitionsMu.Unlock()

	e.mu.Lock()
	e.stat.From = stat.From
	e.stat.To = stat.To
	e.stat.SuccessCount += stat.SuccessCount
	e.stat.TotalCount += stat.TotalCount
	e.mu.Unlock()
}

// restoreShared appends a previously persisted bulletin board entry.
func (m *Memory) restoreShared(e models.SharedEntry) {
	m.sharedMu.Lock()
	defer m.sharedMu.Unlock()
	m.shared[e.To] = append(m.shared[e.To], e)
}
