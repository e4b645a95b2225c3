package main

import (
	"context"
	"net/http/httptest"
	"slices"
	"testing"
	"time"

	"mex/internal/client"
	"mex/internal/occ"
	"mex/internal/testutil"
)

func startTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	setupTestApp(t)
	srv := httptest.NewServer(logging(requireAuth(newMux())))
	t.Cleanup(srv.Close)
	return srv
}

// Two editors race on the same work order: the loser's form session captures
// the conflict, partitions it, auto-merges both sides, and resubmits.
func TestConflictResolutionEndToEnd(t *testing.T) {
	srv := startTestServer(t)
	ctx := context.Background()

	alice := client.New(srv.URL)
	if err := alice.Login(ctx, "admin", "changeme"); err != nil {
		t.Fatalf("Alice login failed: %v", err)
	}
	testutil.CreateTestUser(t, db, "bob", "password", "user")
	bob := client.New(srv.URL)
	if err := bob.Login(ctx, "bob", "password"); err != nil {
		t.Fatalf("Bob login failed: %v", err)
	}

	if _, err := alice.Create(ctx, "workorders", occ.Entity{
		"id": "WO-7", "assembly_ipn": "ASY-700", "qty": 5, "status": "open", "priority": "normal",
	}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// Alice opens the form at version 1.
	session, err := alice.NewSession(ctx, "workorders", "WO-7")
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}
	if session.Data().Version() != 1 {
		t.Fatalf("Expected version 1 baseline, got %d", session.Data().Version())
	}

	// Bob slips in a status change while Alice is editing.
	theirs, err := bob.Get(ctx, "workorders", "WO-7")
	if err != nil {
		t.Fatalf("Bob get failed: %v", err)
	}
	theirs["status"] = "in_progress"
	if _, err := bob.Update(ctx, "workorders", "WO-7", theirs); err != nil {
		t.Fatalf("Bob update failed: %v", err)
	}

	// Alice's priority change lands on the stale version.
	res := session.Submit(ctx, occ.Changes{"priority": "high"})
	if res.Outcome != occ.OutcomeConflict {
		t.Fatalf("Expected conflict outcome, got %v (err=%v)", res.Outcome, res.Err)
	}
	if res.Conflict.CurrentVersion != 2 || res.Conflict.SubmittedVersion != 1 {
		t.Errorf("Expected current=2 submitted=1, got %+v", res.Conflict)
	}
	if res.Conflict.UpdatedBy != "bob" {
		t.Errorf("Expected updated_by bob, got %q", res.Conflict.UpdatedBy)
	}

	// Disjoint fields: the presenter offers auto-merge.
	part := session.Partition()
	if len(part.Conflicting) != 0 {
		t.Fatalf("No field was edited by both sides, got conflicting=%v", part.Conflicting)
	}
	if !slices.Equal(part.OnlyMine, []string{"priority"}) {
		t.Errorf("Expected only-mine [priority], got %v", part.OnlyMine)
	}
	if !slices.Contains(part.OnlyTheirs, "status") {
		t.Errorf("Expected only-theirs to include status, got %v", part.OnlyTheirs)
	}
	if !part.CanAutoMerge() {
		t.Fatal("Disjoint edits must be auto-mergeable")
	}

	// Merge keeps both edits and the resubmission succeeds at version 3.
	res = session.Resolve(ctx, occ.ResolveMerge)
	if res.Outcome != occ.OutcomeUpdated {
		t.Fatalf("Merge resubmit failed: %v (err=%v)", res.Outcome, res.Err)
	}
	final := session.Data()
	if final["status"] != "in_progress" || final["priority"] != "high" {
		t.Errorf("Merge lost an edit: %v", final)
	}
	if final.Version() != 3 {
		t.Errorf("Expected version 3 after merge resubmit, got %d", final.Version())
	}
	if session.Conflict() != nil || session.PendingChanges() != nil {
		t.Error("Resolved session must carry no conflict or pending changes")
	}
}

// A hard collision cannot be auto-merged; "theirs" walks away cleanly.
func TestConflictResolutionTheirsEndToEnd(t *testing.T) {
	srv := startTestServer(t)
	ctx := context.Background()

	alice := client.New(srv.URL)
	if err := alice.Login(ctx, "admin", "changeme"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if _, err := alice.Create(ctx, "vendors", occ.Entity{
		"id": "V-9", "name": "Shenzhen PCB Co", "payment_terms": "net30",
	}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	session, err := alice.NewSession(ctx, "vendors", "V-9")
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}

	testutil.CreateTestUser(t, db, "bob", "password", "user")
	bob := client.New(srv.URL)
	if err := bob.Login(ctx, "bob", "password"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	theirs, err := bob.Get(ctx, "vendors", "V-9")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	theirs["payment_terms"] = "net45"
	if _, err := bob.Update(ctx, "vendors", "V-9", theirs); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	// Both sides edited payment_terms to different values.
	res := session.Submit(ctx, occ.Changes{"payment_terms": "net60"})
	if res.Outcome != occ.OutcomeConflict {
		t.Fatalf("Expected conflict, got %v", res.Outcome)
	}
	if !slices.Equal(session.Partition().Conflicting, []string{"payment_terms"}) {
		t.Fatalf("Expected payment_terms collision, got %v", session.Partition().Conflicting)
	}

	// The merge is blocked, the conflict survives for an explicit choice.
	res = session.Resolve(ctx, occ.ResolveMerge)
	if res.Outcome != occ.OutcomeError {
		t.Fatal("Colliding merge must be rejected")
	}
	if session.Conflict() == nil {
		t.Fatal("Failed merge must preserve the conflict")
	}

	res = session.Resolve(ctx, occ.ResolveTheirs)
	if res.Outcome != occ.OutcomeUpdated {
		t.Fatalf("Theirs resolution failed: %v", res.Err)
	}
	if session.Data()["payment_terms"] != "net45" || session.Data().Version() != 2 {
		t.Errorf("Theirs must adopt the server state verbatim: %v", session.Data())
	}
}

// A live change event lets a second client refresh an open session before it
// ever submits a stale write.
func TestWatcherRefreshesOpenSession(t *testing.T) {
	srv := startTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	alice := client.New(srv.URL)
	if err := alice.Login(ctx, "admin", "changeme"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if _, err := alice.Create(ctx, "vendors", occ.Entity{"id": "V-10", "name": "Oscillators Ltd"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	session, err := alice.NewSession(ctx, "vendors", "V-10")
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}

	watcher, err := alice.Watch(ctx)
	if err != nil {
		t.Fatalf("Watch failed: %v", err)
	}
	defer watcher.Close()
	// Give the server a moment to register the subscriber.
	time.Sleep(100 * time.Millisecond)

	theirs, err := alice.Get(ctx, "vendors", "V-10")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	theirs["notes"] = "ISO 9001 certified"
	if _, err := alice.Update(ctx, "vendors", "V-10", theirs); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	select {
	case evt := <-watcher.Events():
		if evt.Type != "vendor_updated" || evt.ID != "V-10" {
			t.Fatalf("Unexpected event: %+v", evt)
		}
		if evt.Version != 2 {
			t.Errorf("Event must carry the new version, got %d", evt.Version)
		}
		fresh, err := alice.Get(ctx, "vendors", "V-10")
		if err != nil {
			t.Fatalf("Refetch failed: %v", err)
		}
		session.Refresh(fresh)
	case <-time.After(3 * time.Second):
		t.Fatal("Timed out waiting for change event")
	}

	if session.Data().Version() != 2 || session.Data()["notes"] != "ISO 9001 certified" {
		t.Errorf("Refresh must adopt the broadcast snapshot: %v", session.Data())
	}
}
