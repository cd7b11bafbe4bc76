package gateway

import (
	"context"
	"sync"

	"github.com/julianstephens/tally/internal/errors"
	"github.com/julianstephens/tally/internal/models"
)

// Memory is an in-process remote used by tests and dry runs
type Memory struct {
	mu         sync.Mutex
	challenges map[string]models.Challenge
	entries    map[string]models.Entry

	// FailImport, when set, is returned by Import without touching state
	FailImport error
	// FailProbe, when set, is returned by Probe
	FailProbe error
	// Block makes Import wait for ctx to end, simulating an unresponsive server
	Block bool

	Submissions []Submission
}

var _ Gateway = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		challenges: make(map[string]models.Challenge),
		entries:    make(map[string]models.Entry),
	}
}

// Seed loads pre-existing cloud records
func (m *Memory) Seed(challenges []models.Challenge, entries []models.Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range challenges {
		m.challenges[c.ID] = c
	}
	for _, e := range entries {
		m.entries[e.ID] = e
	}
}

func (m *Memory) Challenges() map[string]models.Challenge {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]models.Challenge, len(m.challenges))
	for k, v := range m.challenges {
		out[k] = v
	}
	return out
}

func (m *Memory) Entries() map[string]models.Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]models.Entry, len(m.entries))
	for k, v := range m.entries {
		out[k] = v
	}
	return out
}

func (m *Memory) Probe(ctx context.Context) (CloudState, error) {
	if err := ctx.Err(); err != nil {
		return CloudState{}, &errors.NetworkError{Op: "probe", Err: err}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailProbe != nil {
		return CloudState{}, m.FailProbe
	}
	return CloudState{
		HasData:        len(m.challenges) > 0 || len(m.entries) > 0,
		ChallengeCount: len(m.challenges),
		EntryCount:     len(m.entries),
	}, nil
}

func (m *Memory) Import(ctx context.Context, sub Submission) (ImportResult, error) {
	m.mu.Lock()
	block := m.Block
	m.mu.Unlock()
	if block {
		<-ctx.Done()
	}
	if err := ctx.Err(); err != nil {
		return ImportResult{}, &errors.NetworkError{Op: "import", Err: err}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.Submissions = append(m.Submissions, sub)
	if m.FailImport != nil {
		return ImportResult{}, m.FailImport
	}
	if !sub.Strategy.Valid() {
		return ImportResult{}, &errors.RemoteRejectedError{Status: 400, Message: "unknown strategy " + string(sub.Strategy)}
	}

	if sub.Strategy == StrategyReplace {
		m.challenges = make(map[string]models.Challenge)
		m.entries = make(map[string]models.Entry)
	}

	result := ImportResult{Success: true}
	for _, c := range sub.Challenges {
		if _, ok := m.challenges[c.ID]; ok {
			continue
		}
		m.challenges[c.ID] = c
		result.ChallengesImported++
	}
	for _, e := range sub.Entries {
		if _, ok := m.entries[e.ID]; ok {
			continue
		}
		m.entries[e.ID] = e
		result.EntriesImported++
	}
	return result, nil
}
