package game

import (
	"sync"

	"github.com/pscheid92/shiritori/internal/domain"
)

// VoteTracker is the set of admission votes that have not been resolved yet,
// keyed by the id of the message carrying the reactions.
type VoteTracker struct {
	mu    sync.RWMutex
	votes map[string]domain.PendingVote
}

func NewVoteTracker() *VoteTracker {
	return &VoteTracker{votes: make(map[string]domain.PendingVote)}
}

// Open starts tracking a vote. The vote message must already exist.
func (t *VoteTracker) Open(vote domain.PendingVote) {
	t.mu.Lock()
	t.votes[vote.MessageID] = vote
	t.mu.Unlock()
}

func (t *VoteTracker) IsActive(messageID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	_, ok := t.votes[messageID]
	return ok
}

// Resolve stops tracking a vote. Resolving an unknown id is a no-op.
func (t *VoteTracker) Resolve(messageID string) {
	t.mu.Lock()
	delete(t.votes, messageID)
	t.mu.Unlock()
}

// ResolveIfReached removes the vote when count has reached threshold. The
// membership test, the comparison and the removal share one critical section,
// so among concurrent callers for the same message at most one gets ok=true.
func (t *VoteTracker) ResolveIfReached(messageID string, count, threshold int) (domain.PendingVote, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	vote, ok := t.votes[messageID]
	if !ok || count < threshold {
		return domain.PendingVote{}, false
	}
	delete(t.votes, messageID)
	return vote, true
}

func (t *VoteTracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.votes)
}
