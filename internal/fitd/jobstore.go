package fitd

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/GoSim-25-26J-441/mcfit-core/pkg/logger"
	"github.com/GoSim-25-26J-441/mcfit-core/pkg/utils"
)

// FitStatus is the lifecycle state of a fit job
type FitStatus string

const (
	StatusPending   FitStatus = "pending"
	StatusRunning   FitStatus = "running"
	StatusCompleted FitStatus = "completed"
	StatusFailed    FitStatus = "failed"
	StatusCancelled FitStatus = "cancelled"
)

// Terminal reports whether no further transition is possible
func (s FitStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// ParseStatus maps a case-insensitive status name to a FitStatus; unknown names map to ""
func ParseStatus(s string) FitStatus {
	switch st := FitStatus(strings.ToLower(s)); st {
	case StatusPending, StatusRunning, StatusCompleted, StatusFailed, StatusCancelled:
		return st
	default:
		return ""
	}
}

var (
	ErrFitNotFound  = errors.New("fit not found")
	ErrFitTerminal  = errors.New("fit is terminal")
	ErrFitIDMissing = errors.New("fit id is required")
	ErrFitExists    = errors.New("fit already exists")
)

// FitRecord is a snapshot of one fit job
type FitRecord struct {
	ID              string
	Status          FitStatus
	CreatedAtUnixMs int64
	StartedAtUnixMs int64
	EndedAtUnixMs   int64
	Error           string
	Request         *FitRequest
	Summary         *FitSummary
}

// JobStore keeps fit jobs in memory, mirrored to a Journal when one is attached
type JobStore struct {
	mu      sync.RWMutex
	fits    map[string]*FitRecord
	journal *Journal
}

func NewJobStore() *JobStore {
	return &JobStore{
		fits: make(map[string]*FitRecord),
	}
}

// NewJournaledJobStore restores the fits of j and records every later change in it.
// Fits that were still pending or running when the journal was written are marked failed.
func NewJournaledJobStore(j *Journal) (*JobStore, error) {
	records, err := j.Load()
	if err != nil {
		return nil, err
	}
	s := NewJobStore()
	s.journal = j
	for _, rec := range records {
		if !rec.Status.Terminal() {
			rec.Status = StatusFailed
			rec.Error = "interrupted by daemon restart"
			rec.EndedAtUnixMs = nowUnixMs()
			s.persist(rec)
		}
		s.fits[rec.ID] = rec
	}
	logger.Info("fit journal restored", "fits", len(records))
	return s, nil
}

// persist mirrors rec to the journal; the in-memory record stays authoritative
func (s *JobStore) persist(rec *FitRecord) {
	if s.journal == nil {
		return
	}
	if err := s.journal.Save(rec); err != nil {
		logger.Warn("failed to journal fit", "fit_id", rec.ID, "error", err)
	}
}

func nowUnixMs() int64 {
	return time.Now().UTC().UnixMilli()
}

// Create registers a pending fit. An empty id gets a generated one.
func (s *JobStore) Create(id string, req *FitRequest) (*FitRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id == "" {
		id = utils.GenerateFitID()
	}
	if strings.ContainsAny(id, "/:") {
		return nil, fmt.Errorf("fit id cannot contain '/' or ':': %q", id)
	}
	if _, exists := s.fits[id]; exists {
		return nil, fmt.Errorf("%w: %s", ErrFitExists, id)
	}

	rec := &FitRecord{
		ID:              id,
		Status:          StatusPending,
		CreatedAtUnixMs: nowUnixMs(),
		Request:         req,
	}
	s.fits[id] = rec
	s.persist(rec)
	cp := *rec
	return &cp, nil
}

// Get returns a snapshot of the fit
func (s *JobStore) Get(id string) (*FitRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.fits[id]
	if !ok {
		return nil, false
	}
	cp := *rec
	return &cp, true
}

// List returns up to limit fits after skipping offset, oldest first. An empty status
// matches every fit.
func (s *JobStore) List(limit, offset int, status FitStatus) []*FitRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}
	all := make([]*FitRecord, 0, len(s.fits))
	for _, rec := range s.fits {
		if status == "" || rec.Status == status {
			cp := *rec
			all = append(all, &cp)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAtUnixMs != all[j].CreatedAtUnixMs {
			return all[i].CreatedAtUnixMs < all[j].CreatedAtUnixMs
		}
		return all[i].ID < all[j].ID
	})
	if offset >= len(all) {
		return []*FitRecord{}
	}
	all = all[offset:]
	if len(all) > limit {
		all = all[:limit]
	}
	return all
}

// SetStatus moves a fit to status. Terminal fits never change again.
func (s *JobStore) SetStatus(id string, status FitStatus, errMsg string) (*FitRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.fits[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFitNotFound, id)
	}
	if rec.Status.Terminal() {
		return nil, fmt.Errorf("%w: %s is %s", ErrFitTerminal, id, rec.Status)
	}

	rec.Status = status
	if errMsg != "" {
		rec.Error = errMsg
	}
	switch {
	case status == StatusRunning:
		if rec.StartedAtUnixMs == 0 {
			rec.StartedAtUnixMs = nowUnixMs()
		}
	case status.Terminal():
		rec.EndedAtUnixMs = nowUnixMs()
	}
	s.persist(rec)
	cp := *rec
	return &cp, nil
}

// SetSummary attaches the result summary of a fit
func (s *JobStore) SetSummary(id string, summary *FitSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.fits[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrFitNotFound, id)
	}
	rec.Summary = summary
	s.persist(rec)
	return nil
}
