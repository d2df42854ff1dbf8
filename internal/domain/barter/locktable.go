package barter

import (
	"hash/fnv"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/barterloop/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// LockToken is a versioned claim on an item. A proposal records the
// tokens it acquired at creation time; execution re-validates them to
// defend against stale proposals.
type LockToken struct {
	Version    uint64    `json:"version"`
	ProposalID uuid.UUID `json:"proposal_id"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// LockTable guards the single global invariant of the engine: no two
// proposals may simultaneously hold a lock on the same item. It is an
// explicit handle passed into the proposal manager and execution
// engine, never a hidden singleton, so tests can inject a fake.
type LockTable interface {
	LockChecker

	// AcquireAll locks every item for the proposal or none of them.
	// Fails fast with ErrLockConflict if any item is already held by
	// a live lock of another proposal.
	AcquireAll(itemIDs []uuid.UUID, proposalID uuid.UUID, ttl time.Duration) (map[uuid.UUID]LockToken, error)

	// Release releases the item if held by the proposal. Idempotent.
	Release(itemID, proposalID uuid.UUID)

	// ReleaseAll releases every item held by the proposal. Idempotent.
	ReleaseAll(itemIDs []uuid.UUID, proposalID uuid.UUID)

	// Validate reports whether the token still matches the live lock
	Validate(itemID uuid.UUID, token LockToken) bool
}

// lockShardCount spreads per-item synchronization across independent
// mutexes so unrelated proposals never contend.
const lockShardCount = 32

type lockShard struct {
	mu    sync.Mutex
	locks map[uuid.UUID]LockToken
}

// MemoryLockTable is the in-process LockTable implementation
type MemoryLockTable struct {
	clock   shared.Clock
	version atomic.Uint64
	shards  [lockShardCount]lockShard
}

// NewMemoryLockTable creates a new MemoryLockTable
func NewMemoryLockTable(clock shared.Clock) *MemoryLockTable {
	if clock == nil {
		clock = shared.SystemClock{}
	}
	t := &MemoryLockTable{clock: clock}
	for i := range t.shards {
		t.shards[i].locks = make(map[uuid.UUID]LockToken)
	}
	return t
}

func (t *MemoryLockTable) shardFor(itemID uuid.UUID) *lockShard {
	h := fnv.New32a()
	h.Write(itemID[:])
	return &t.shards[h.Sum32()%lockShardCount]
}

// tryAcquire is the per-item compare-and-swap: succeeds only if the
// item is unlocked, its lock has expired, or the same proposal already
// holds it (idempotent re-acquire).
func (t *MemoryLockTable) tryAcquire(itemID, proposalID uuid.UUID, ttl time.Duration) (LockToken, bool) {
	shard := t.shardFor(itemID)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	now := t.clock.Now()
	if existing, ok := shard.locks[itemID]; ok && existing.ExpiresAt.After(now) {
		if existing.ProposalID == proposalID {
			return existing, true
		}
		return LockToken{}, false
	}

	token := LockToken{
		Version:    t.version.Add(1),
		ProposalID: proposalID,
		ExpiresAt:  now.Add(ttl),
	}
	shard.locks[itemID] = token
	return token, true
}

// AcquireAll acquires locks on all items in a deterministic order; on
// the first conflict every lock taken so far is rolled back and the
// whole acquisition fails with ErrLockConflict.
func (t *MemoryLockTable) AcquireAll(itemIDs []uuid.UUID, proposalID uuid.UUID, ttl time.Duration) (map[uuid.UUID]LockToken, error) {
	ordered := make([]uuid.UUID, len(itemIDs))
	copy(ordered, itemIDs)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].String() < ordered[j].String()
	})

	tokens := make(map[uuid.UUID]LockToken, len(ordered))
	for _, itemID := range ordered {
		token, ok := t.tryAcquire(itemID, proposalID, ttl)
		if !ok {
			for acquired := range tokens {
				t.Release(acquired, proposalID)
			}
			return nil, shared.ErrLockConflict
		}
		tokens[itemID] = token
	}
	return tokens, nil
}

// Release releases the item if held by the proposal. Safe to call
// repeatedly and after expiry.
func (t *MemoryLockTable) Release(itemID, proposalID uuid.UUID) {
	shard := t.shardFor(itemID)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	if existing, ok := shard.locks[itemID]; ok && existing.ProposalID == proposalID {
		delete(shard.locks, itemID)
	}
}

// ReleaseAll releases every listed item held by the proposal
func (t *MemoryLockTable) ReleaseAll(itemIDs []uuid.UUID, proposalID uuid.UUID) {
	for _, itemID := range itemIDs {
		t.Release(itemID, proposalID)
	}
}

// Validate reports whether the token still matches the live lock for
// the item: same holder, same version, not expired.
func (t *MemoryLockTable) Validate(itemID uuid.UUID, token LockToken) bool {
	shard := t.shardFor(itemID)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	existing, ok := shard.locks[itemID]
	if !ok {
		return false
	}
	return existing.ProposalID == token.ProposalID &&
		existing.Version == token.Version &&
		existing.ExpiresAt.After(t.clock.Now())
}

// IsLocked reports whether the item is held by a live lock
func (t *MemoryLockTable) IsLocked(itemID uuid.UUID) bool {
	shard := t.shardFor(itemID)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	existing, ok := shard.locks[itemID]
	return ok && existing.ExpiresAt.After(t.clock.Now())
}

// Ensure MemoryLockTable implements LockTable
var _ LockTable = (*MemoryLockTable)(nil)
