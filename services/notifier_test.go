package services

import (
	"testing"
	"time"

	"hackpot-service/models"
)

func TestUnlockNotifierQueueAndDismiss(t *testing.T) {
	n := NewUnlockNotifier()
	clock := time.Date(2025, time.May, 1, 10, 0, 0, 0, time.UTC)
	n.now = func() time.Time { return clock }

	n.Push("u1", models.Achievement{Name: "First"})
	clock = clock.Add(3 * time.Second)
	n.Push("u1", models.Achievement{Name: "Second"})
	n.Push("u2", models.Achievement{Name: "Other"})
	n.Push("u3")

	if got := n.Recent("u1"); len(got) != 2 || got[0].Achievement.Name != "First" {
		t.Fatalf("Recent(u1) = %+v", got)
	}
	if got := n.Recent("u3"); len(got) != 0 {
		t.Fatalf("empty push queued %+v", got)
	}
	if got := n.Since("u1", clock.Add(-time.Second)); len(got) != 1 || got[0].Achievement.Name != "Second" {
		t.Fatalf("Since = %+v", got)
	}

	// First is now 5s old and goes; Second and Other stay.
	clock = clock.Add(2 * time.Second)
	if dropped := n.DismissOlderThan(UnlockAutoDismiss); dropped != 1 {
		t.Fatalf("dropped %d, want 1", dropped)
	}
	if got := n.Recent("u1"); len(got) != 1 || got[0].Achievement.Name != "Second" {
		t.Fatalf("after dismiss: %+v", got)
	}

	n.Clear("u1")
	if got := n.Recent("u1"); len(got) != 0 {
		t.Fatalf("after clear: %+v", got)
	}

	clock = clock.Add(time.Minute)
	n.DismissOlderThan(UnlockAutoDismiss)
	if got := n.Recent("u2"); len(got) != 0 {
		t.Fatalf("u2 not dismissed: %+v", got)
	}
}

func TestUnlockNotifierRecentReturnsCopy(t *testing.T) {
	n := NewUnlockNotifier()
	n.Push("u1", models.Achievement{Name: "First"})

	got := n.Recent("u1")
	got[0].Achievement.Name = "mutated"

	if n.Recent("u1")[0].Achievement.Name != "First" {
		t.Fatal("Recent must not expose the internal queue")
	}
}
