package store

import (
	"context"
	"testing"
	"time"

	"briefly/internal/domain"
)

func tp(t time.Time) *time.Time { return &t }

func TestRecordStoreStatusFilter(t *testing.T) {
	ctx := context.Background()
	rs := NewRecordStore(openTestDB(t))

	base := time.Date(2025, 3, 12, 9, 0, 0, 0, time.UTC)
	rs.PutEmail(ctx, "u1", domain.EmailRecord{ID: "e1", Subject: "a", Status: "unread", ReceivedAt: base})
	rs.PutEmail(ctx, "u1", domain.EmailRecord{ID: "e2", Subject: "b", Status: "archived", ReceivedAt: base})
	rs.PutEmail(ctx, "u1", domain.EmailRecord{ID: "e3", Subject: "c", Status: "needs_reply", ReceivedAt: base})

	got, err := rs.QueryEmails(ctx, "u1", domain.TimeWindow{}, []string{"unread", "needs_reply"}, 0)
	if err != nil {
		t.Fatalf("QueryEmails: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d records, want 2", len(got))
	}
	for _, r := range got {
		if r.Status == "archived" {
			t.Errorf("archived record %q leaked through the status filter", r.ID)
		}
	}
}

func TestRecordStoreUserIsolation(t *testing.T) {
	ctx := context.Background()
	rs := NewRecordStore(openTestDB(t))

	rs.PutTask(ctx, "u1", domain.TaskRecord{ID: "t1", Title: "mine", Status: "open"})
	rs.PutTask(ctx, "u2", domain.TaskRecord{ID: "t2", Title: "theirs", Status: "open"})

	got, err := rs.QueryTasks(ctx, "u1", domain.TimeWindow{}, []string{"open"}, 0)
	if err != nil {
		t.Fatalf("QueryTasks: %v", err)
	}
	if len(got) != 1 || got[0].ID != "t1" {
		t.Errorf("got %+v, want only u1's task", got)
	}
}

func TestRecordStoreWindowFilter(t *testing.T) {
	ctx := context.Background()
	rs := NewRecordStore(openTestDB(t))

	now := time.Date(2025, 3, 12, 9, 0, 0, 0, time.UTC)
	window := domain.TimeWindow{From: now, To: now.Add(24 * time.Hour)}

	rs.PutFinancial(ctx, "u1", domain.FinancialRecord{ID: "f-in", Title: "due soon", Status: "pending", DueAt: tp(now.Add(4 * time.Hour))})
	rs.PutFinancial(ctx, "u1", domain.FinancialRecord{ID: "f-late", Title: "next week", Status: "pending", DueAt: tp(now.Add(80 * time.Hour))})
	rs.PutFinancial(ctx, "u1", domain.FinancialRecord{ID: "f-open", Title: "no due date", Status: "pending"})

	got, err := rs.QueryFinancial(ctx, "u1", window, []string{"pending"}, 0)
	if err != nil {
		t.Fatalf("QueryFinancial: %v", err)
	}
	ids := map[string]bool{}
	for _, r := range got {
		ids[r.ID] = true
	}
	if !ids["f-in"] {
		t.Error("record inside the window missing")
	}
	if ids["f-late"] {
		t.Error("record past the window leaked through")
	}
	if !ids["f-open"] {
		t.Error("record without an event timestamp must always match the window")
	}
}

func TestRecordStoreOrderAndLimit(t *testing.T) {
	ctx := context.Background()
	rs := NewRecordStore(openTestDB(t))

	now := time.Date(2025, 3, 12, 9, 0, 0, 0, time.UTC)
	rs.PutLegal(ctx, "u1", domain.LegalRecord{ID: "l-later", Title: "later", Status: "pending_review", ReviewDueAt: tp(now.Add(48 * time.Hour))})
	rs.PutLegal(ctx, "u1", domain.LegalRecord{ID: "l-soon", Title: "soon", Status: "pending_review", ReviewDueAt: tp(now.Add(2 * time.Hour))})
	rs.PutLegal(ctx, "u1", domain.LegalRecord{ID: "l-none", Title: "undated", Status: "pending_review"})

	got, err := rs.QueryLegal(ctx, "u1", domain.TimeWindow{}, []string{"pending_review"}, 2)
	if err != nil {
		t.Fatalf("QueryLegal: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d records, want limit of 2", len(got))
	}
	if got[0].ID != "l-soon" || got[1].ID != "l-later" {
		t.Errorf("order = [%s %s], want earliest deadline first and undated last", got[0].ID, got[1].ID)
	}
}

func TestRecordStorePutIsUpsert(t *testing.T) {
	ctx := context.Background()
	rs := NewRecordStore(openTestDB(t))

	rs.PutCommercial(ctx, "u1", domain.CommercialRecord{ID: "c1", Title: "deal", Status: "open", Value: 10000})
	rs.PutCommercial(ctx, "u1", domain.CommercialRecord{ID: "c1", Title: "deal", Status: "at_risk", Value: 12000})

	got, err := rs.QueryCommercial(ctx, "u1", domain.TimeWindow{}, []string{"at_risk"}, 0)
	if err != nil {
		t.Fatalf("QueryCommercial: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d records, want 1 after upsert", len(got))
	}
	if got[0].Value != 12000 {
		t.Errorf("Value = %v, want updated 12000", got[0].Value)
	}

	old, _ := rs.QueryCommercial(ctx, "u1", domain.TimeWindow{}, []string{"open"}, 0)
	if len(old) != 0 {
		t.Error("stale status still queryable after upsert")
	}
}

func TestRecordStoreStoresBundle(t *testing.T) {
	rs := NewRecordStore(openTestDB(t))
	bundle := rs.Stores()

	if bundle.Email == nil || bundle.Task == nil || bundle.Financial == nil ||
		bundle.Legal == nil || bundle.Commercial == nil {
		t.Error("Stores bundle has nil collaborators")
	}
}
