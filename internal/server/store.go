package server

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kriterionquant/chainscope/internal/chain"
)

// ErrNoSnapshot is returned when analytics are requested before any
// chain has been loaded.
var ErrNoSnapshot = errors.New("no snapshot loaded")

// SnapshotStore holds the currently served snapshot behind an atomic
// swap. Uploads replace the whole snapshot; readers always observe a
// consistent immutable value.
type SnapshotStore struct {
	mu       sync.RWMutex
	snap     *chain.Snapshot
	id       string
	loadedAt time.Time
	logger   *zap.Logger
}

func NewSnapshotStore(logger *zap.Logger) *SnapshotStore {
	return &SnapshotStore{logger: logger}
}

// Swap installs a new snapshot and returns its assigned ID.
func (s *SnapshotStore) Swap(snap *chain.Snapshot) string {
	id := uuid.New().String()

	s.mu.Lock()
	previous := s.id
	s.snap = snap
	s.id = id
	s.loadedAt = time.Now()
	s.mu.Unlock()

	s.logger.Info("snapshot swapped",
		zap.String("id", id),
		zap.String("previous", previous),
		zap.Int("contracts", snap.Len()),
		zap.Int("expirations", len(snap.Expirations())),
		zap.Float64("spot", snap.Spot()),
	)
	return id
}

// Current returns the served snapshot, its ID and load time.
func (s *SnapshotStore) Current() (*chain.Snapshot, string, time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snap == nil {
		return nil, "", time.Time{}, ErrNoSnapshot
	}
	return s.snap, s.id, s.loadedAt, nil
}
