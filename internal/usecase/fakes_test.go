package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"LegalCorpus/internal/domain"
)

// fakeStore is an in-memory stand-in for the Postgres corpus store.
type fakeStore struct {
	mu         sync.Mutex
	statutes   map[string]domain.StatuteRecord
	precedents map[string]domain.PrecedentRecord
	failing    bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		statutes:   map[string]domain.StatuteRecord{},
		precedents: map[string]domain.PrecedentRecord{},
	}
}

func statuteKey(rec domain.StatuteRecord) string {
	return strings.Join([]string{string(rec.State), rec.LegacyCode, rec.LegacySection, rec.NewCode, rec.NewSection}, "|")
}

func (s *fakeStore) UpsertStatute(_ context.Context, rec domain.StatuteRecord) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return false, errors.New("connection refused")
	}
	key := statuteKey(rec)
	_, exists := s.statutes[key]
	s.statutes[key] = rec
	return !exists, nil
}

func (s *fakeStore) UpsertPrecedent(_ context.Context, rec domain.PrecedentRecord) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return false, errors.New("connection refused")
	}
	key := string(rec.State) + "|" + rec.Citation
	_, exists := s.precedents[key]
	s.precedents[key] = rec
	return !exists, nil
}

func (s *fakeStore) CorpusCounts(context.Context) ([]domain.StateCount, []domain.StateCount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	byState := func(states []domain.State) []domain.StateCount {
		counts := map[domain.State]int{}
		for _, st := range states {
			counts[st]++
		}
		var out []domain.StateCount
		for st, c := range counts {
			out = append(out, domain.StateCount{State: st, Count: c})
		}
		return out
	}
	var statuteStates, precedentStates []domain.State
	for _, rec := range s.statutes {
		statuteStates = append(statuteStates, rec.State)
	}
	for _, rec := range s.precedents {
		precedentStates = append(precedentStates, rec.State)
	}
	return byState(statuteStates), byState(precedentStates), nil
}

func (s *fakeStore) QualityFacts(context.Context) ([]domain.QualityFact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return nil, errors.New("connection refused")
	}
	var facts []domain.QualityFact
	for _, rec := range s.precedents {
		facts = append(facts, domain.QualityFact{
			State:     rec.State,
			Title:     rec.Title,
			Citation:  rec.Citation,
			Snippet:   rec.Snippet,
			SourceURL: rec.SourceURL,
		})
	}
	return facts, nil
}

func (s *fakeStore) precedentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.precedents)
}

func (s *fakeStore) statute(key string) (domain.StatuteRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.statutes[key]
	return rec, ok
}

// fakeRunLog is an in-memory audit log.
type fakeRunLog struct {
	mu        sync.Mutex
	nextID    int64
	runs      []*domain.RunRecord
	snapshots []domain.QualitySnapshot
	failing   bool
}

func (l *fakeRunLog) CreateRun(_ context.Context, trigger domain.RunTrigger) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failing {
		return 0, errors.New("connection refused")
	}
	l.nextID++
	l.runs = append(l.runs, &domain.RunRecord{
		ID:        l.nextID,
		Trigger:   trigger,
		Status:    domain.RunRunning,
		StartedAt: time.Now(),
	})
	return l.nextID, nil
}

func (l *fakeRunLog) FinalizeRun(_ context.Context, run *domain.RunRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, stored := range l.runs {
		if stored.ID != run.ID {
			continue
		}
		if stored.EndedAt != nil {
			return fmt.Errorf("run %d not open for finalization", run.ID)
		}
		clone := *run
		l.runs[i] = &clone
		return nil
	}
	return fmt.Errorf("run %d not found", run.ID)
}

func (l *fakeRunLog) ListRuns(_ context.Context, limit int) ([]domain.RunRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []domain.RunRecord
	for i := len(l.runs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, *l.runs[i])
	}
	return out, nil
}

func (l *fakeRunLog) SaveSnapshot(_ context.Context, _ string, _ int64, snap domain.QualitySnapshot) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.snapshots = append(l.snapshots, snap)
	return nil
}

func (l *fakeRunLog) ListSnapshots(_ context.Context, limit int) ([]domain.QualitySnapshot, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []domain.QualitySnapshot
	for i := len(l.snapshots) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, l.snapshots[i])
	}
	return out, nil
}

func (l *fakeRunLog) runCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.runs)
}

func (l *fakeRunLog) run(id int64) *domain.RunRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, run := range l.runs {
		if run.ID == id {
			clone := *run
			return &clone
		}
	}
	return nil
}

// fakeFetcher serves canned pages; gate, when set, blocks every fetch until
// the channel is closed.
type fakeFetcher struct {
	pages map[string]domain.ExtractedPage
	errs  map[string]error
	gate  chan struct{}
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) (domain.ExtractedPage, error) {
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return domain.ExtractedPage{}, ctx.Err()
		}
	}
	if err, ok := f.errs[url]; ok {
		return domain.ExtractedPage{}, err
	}
	if page, ok := f.pages[url]; ok {
		return page, nil
	}
	return domain.ExtractedPage{}, fmt.Errorf("fetch failed: no such page %s", url)
}

// fakeRegistry returns a fixed entry list.
type fakeRegistry struct {
	entries []domain.SourceEntry
	err     error
}

func (r *fakeRegistry) Load(context.Context) ([]domain.SourceEntry, error) {
	return r.entries, r.err
}

// fakeNotifier records alerts.
type fakeNotifier struct {
	mu     sync.Mutex
	alerts []domain.RunAlert
	err    error
}

func (n *fakeNotifier) NotifyRunFailure(_ context.Context, alert domain.RunAlert) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, alert)
	return n.err
}

func (n *fakeNotifier) alertCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.alerts)
}
