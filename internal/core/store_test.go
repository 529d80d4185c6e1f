package core

import (
	"fmt"
	"slices"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sourcegraph/conc"

	"github.com/dkeye/signalroom/internal/domain"
)

func TestCreateSession(t *testing.T) {
	m := NewMemoryStore()
	id := m.CreateSession()
	if len(id) != domain.SessionIDLen {
		t.Fatalf("expected %d-char id, got %q", domain.SessionIDLen, id)
	}
	if !m.Exists(id) {
		t.Fatal("created session must exist")
	}
	if got := m.Members(id); len(got) != 0 {
		t.Fatalf("expected empty member set, got %v", got)
	}
	if other := m.CreateSession(); other == id {
		t.Fatal("expected distinct ids")
	}
}

func TestEnsureSessionIdempotent(t *testing.T) {
	m := NewMemoryStore()
	m.EnsureSession("abc")
	m.Join("abc", "a", "Alice")
	m.EnsureSession("abc")
	if got := m.Members("abc"); len(got) != 1 {
		t.Fatalf("EnsureSession must not reset members, got %v", got)
	}
	if m.Len() != 1 {
		t.Fatalf("expected 1 session, got %d", m.Len())
	}
}

func TestJoinReturnsExistingInJoinOrder(t *testing.T) {
	m := NewMemoryStore()
	ids := []domain.ConnID{"c1", "c2", "c3", "c4", "c5"}
	for n, id := range ids {
		existing := m.Join("s", id, "peer")
		if !slices.Equal(existing, ids[:n]) {
			t.Fatalf("joiner %d: expected %v, got %v", n+1, ids[:n], existing)
		}
	}
}

func TestDuplicateJoinUpdatesName(t *testing.T) {
	m := NewMemoryStore()
	m.Join("s", "a", "Alice")
	m.Join("s", "b", "Bob")
	existing := m.Join("s", "a", "Alicia")
	if !slices.Equal(existing, []domain.ConnID{"b"}) {
		t.Fatalf("expected [b], got %v", existing)
	}
	want := []domain.Member{{ConnID: "a", Name: "Alicia"}, {ConnID: "b", Name: "Bob"}}
	if got := m.Members("s"); !slices.Equal(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestLeave(t *testing.T) {
	m := NewMemoryStore()
	m.Join("s", "a", "Alice")
	m.Join("s", "b", "Bob")

	if removed, empty := m.Leave("s", "ghost"); removed || empty {
		t.Fatalf("leave of non-member: removed=%v empty=%v", removed, empty)
	}
	if removed, empty := m.Leave("nope", "a"); removed || empty {
		t.Fatalf("leave of unknown session: removed=%v empty=%v", removed, empty)
	}
	if removed, empty := m.Leave("s", "a"); !removed || empty {
		t.Fatalf("first leave: removed=%v empty=%v", removed, empty)
	}
	if removed, _ := m.Leave("s", "a"); removed {
		t.Fatal("second leave must be a no-op")
	}
	if removed, empty := m.Leave("s", "b"); !removed || !empty {
		t.Fatalf("last leave: removed=%v empty=%v", removed, empty)
	}
	if m.Exists("s") {
		t.Fatal("empty session must be deleted")
	}
	if _, ok := m.SessionOf("b"); ok {
		t.Fatal("index must forget b")
	}
}

func TestFindAndLeaveAny(t *testing.T) {
	m := NewMemoryStore()
	m.Join("s", "a", "Alice")
	m.Join("s", "b", "Bob")

	id, removed, empty := m.FindAndLeaveAny("a")
	if id != "s" || !removed || empty {
		t.Fatalf("got id=%q removed=%v empty=%v", id, removed, empty)
	}
	if _, removed, _ := m.FindAndLeaveAny("a"); removed {
		t.Fatal("disconnect must be idempotent")
	}
	if _, removed, _ := m.FindAndLeaveAny("stranger"); removed {
		t.Fatal("connection in no session must report removed=false")
	}
	if _, removed, empty := m.FindAndLeaveAny("b"); !removed || !empty {
		t.Fatalf("last member: removed=%v empty=%v", removed, empty)
	}
	if m.Len() != 0 {
		t.Fatalf("expected no sessions, got %d", m.Len())
	}
}

func TestFindAndLeaveAnyFallsBackToScan(t *testing.T) {
	m := NewMemoryStore()
	m.Join("s1", "a", "Alice")
	m.Join("s2", "a", "Alice")

	// Index points at s2; after leaving it, the scan must find s1.
	if id, removed, _ := m.FindAndLeaveAny("a"); id != "s2" || !removed {
		t.Fatalf("first: id=%q removed=%v", id, removed)
	}
	if id, removed, empty := m.FindAndLeaveAny("a"); id != "s1" || !removed || !empty {
		t.Fatalf("second: id=%q removed=%v empty=%v", id, removed, empty)
	}
}

func TestConcurrentJoinsSeeConsistentPeers(t *testing.T) {
	m := NewMemoryStore()
	const n = 64
	var seen atomic.Int64
	var wg conc.WaitGroup
	for i := 0; i < n; i++ {
		id := domain.ConnID(fmt.Sprintf("c%02d", i))
		wg.Go(func() {
			seen.Add(int64(len(m.Join("s", id, "peer"))))
		})
	}
	wg.Wait()

	if got := len(m.Members("s")); got != n {
		t.Fatalf("expected %d members, got %d", n, got)
	}
	// Joins are linearized, so the k-th joiner saw exactly k-1 peers.
	if want := int64(n * (n - 1) / 2); seen.Load() != want {
		t.Fatalf("expected %d total existing peers observed, got %d", want, seen.Load())
	}
}

func TestConcurrentLeaveAndDisconnectRemoveOnce(t *testing.T) {
	for round := 0; round < 50; round++ {
		m := NewMemoryStore()
		m.Join("s", "a", "Alice")
		m.Join("s", "b", "Bob")

		var removals atomic.Int32
		var wg conc.WaitGroup
		wg.Go(func() {
			if removed, _ := m.Leave("s", "a"); removed {
				removals.Add(1)
			}
		})
		wg.Go(func() {
			if _, removed, _ := m.FindAndLeaveAny("a"); removed {
				removals.Add(1)
			}
		})
		wg.Wait()

		if removals.Load() != 1 {
			t.Fatalf("round %d: expected exactly one removal, got %d", round, removals.Load())
		}
	}
}

func TestJoinLeaveChurnLeavesNoDanglingSessions(t *testing.T) {
	m := NewMemoryStore()
	var wg conc.WaitGroup
	for i := 0; i < 32; i++ {
		id := domain.ConnID(fmt.Sprintf("c%02d", i))
		wg.Go(func() {
			for j := 0; j < 100; j++ {
				m.Join("s", id, "peer")
				m.Leave("s", id)
			}
		})
	}
	wg.Wait()

	if m.Exists("s") {
		t.Fatalf("expected session to be gone, members=%v", m.Members("s"))
	}
	if m.Len() != 0 {
		t.Fatalf("expected no sessions, got %d", m.Len())
	}
}

func TestSweepRemovesOnlyStaleEmptySessions(t *testing.T) {
	m := NewMemoryStore()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return base }

	stale := m.CreateSession()
	m.Join("busy", "a", "Alice")

	m.now = func() time.Time { return base.Add(time.Hour) }
	fresh := m.CreateSession()

	if n := m.Sweep(base.Add(30 * time.Minute)); n != 1 {
		t.Fatalf("expected 1 swept, got %d", n)
	}
	if m.Exists(stale) {
		t.Fatal("stale empty session must be swept")
	}
	if !m.Exists(fresh) {
		t.Fatal("fresh empty session must survive")
	}
	if !m.Exists("busy") {
		t.Fatal("session with members must survive")
	}
}

func TestListSorted(t *testing.T) {
	m := NewMemoryStore()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return base }
	m.Join("b", "x", "X")
	m.Join("a", "y", "Y")
	m.now = func() time.Time { return base.Add(time.Second) }
	m.EnsureSession("c")

	got := m.List()
	if len(got) != 3 {
		t.Fatalf("expected 3 sessions, got %v", got)
	}
	order := []domain.SessionID{got[0].ID, got[1].ID, got[2].ID}
	if !slices.Equal(order, []domain.SessionID{"a", "b", "c"}) {
		t.Fatalf("unexpected order %v", order)
	}
	if got[0].MemberCount != 1 || got[2].MemberCount != 0 {
		t.Fatalf("unexpected counts %+v", got)
	}
}
