package services

import (
	"sync"
	"time"

	"hackpot-service/models"
)

// UnlockAutoDismiss is how long an unlock toast stays queued without acknowledgement.
const UnlockAutoDismiss = 5 * time.Second

type UnlockNotification struct {
	Achievement models.Achievement `json:"achievement"`
	QueuedAt    time.Time          `json:"queued_at"`
}

// UnlockNotifier holds newly unlocked achievements per user until they are
// acknowledged or dismissed. Process-local; lost on restart.
type UnlockNotifier struct {
	mu     sync.Mutex
	queues map[string][]UnlockNotification
	now    func() time.Time
}

func NewUnlockNotifier() *UnlockNotifier {
	return &UnlockNotifier{
		queues: make(map[string][]UnlockNotification),
		now:    time.Now,
	}
}

func (n *UnlockNotifier) Push(userID string, achievements ...models.Achievement) {
	if len(achievements) == 0 {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()

	at := n.now()
	for _, a := range achievements {
		n.queues[userID] = append(n.queues[userID], UnlockNotification{Achievement: a, QueuedAt: at})
	}
}

// Recent returns a copy of the user's pending notifications, oldest first.
func (n *UnlockNotifier) Recent(userID string) []UnlockNotification {
	n.mu.Lock()
	defer n.mu.Unlock()

	q := n.queues[userID]
	out := make([]UnlockNotification, len(q))
	copy(out, q)
	return out
}

// Since returns pending notifications queued strictly after t.
func (n *UnlockNotifier) Since(userID string, t time.Time) []UnlockNotification {
	n.mu.Lock()
	defer n.mu.Unlock()

	var out []UnlockNotification
	for _, item := range n.queues[userID] {
		if item.QueuedAt.After(t) {
			out = append(out, item)
		}
	}
	return out
}

func (n *UnlockNotifier) Clear(userID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.queues, userID)
}

// DismissOlderThan drops notifications queued more than maxAge ago and
// returns how many were dropped.
func (n *UnlockNotifier) DismissOlderThan(maxAge time.Duration) int {
	n.mu.Lock()
	defer n.mu.Unlock()

	cutoff := n.now().Add(-maxAge)
	dropped := 0
	for userID, q := range n.queues {
		kept := q[:0]
		for _, item := range q {
			if item.QueuedAt.After(cutoff) {
				kept = append(kept, item)
			} else {
				dropped++
			}
		}
		if len(kept) == 0 {
			delete(n.queues, userID)
		} else {
			n.queues[userID] = kept
		}
	}
	return dropped
}
