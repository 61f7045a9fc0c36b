package repo

import (
	"context"
	"testing"
)

func TestHistory_PrependOrder(t *testing.T) {
	db := newTestDB(t, "history_order")
	ctx := context.Background()

	if _, err := AddHistory(ctx, db, "u1", "first prompt", "http://cdn/a.gif"); err != nil {
		t.Fatalf("AddHistory e1: %v", err)
	}
	if _, err := AddHistory(ctx, db, "u1", "second prompt", "http://cdn/b.gif"); err != nil {
		t.Fatalf("AddHistory e2: %v", err)
	}

	got, err := ListHistory(ctx, db, "u1")
	if err != nil {
		t.Fatalf("ListHistory: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	// Most recent first.
	if got[0].Query != "second prompt" || got[1].Query != "first prompt" {
		t.Errorf("order = [%s, %s], want [second, first]", got[0].Query, got[1].Query)
	}

	// An untouched user sees an empty sequence.
	other, err := ListHistory(ctx, db, "u2")
	if err != nil {
		t.Fatalf("ListHistory u2: %v", err)
	}
	if len(other) != 0 {
		t.Errorf("untouched user has %d entries", len(other))
	}
}

func TestHistory_Pagination(t *testing.T) {
	db := newTestDB(t, "history_page")
	ctx := context.Background()

	for _, q := range []string{"a", "b", "c", "d", "e"} {
		if _, err := AddHistory(ctx, db, "u1", q, "http://cdn/"+q+".gif"); err != nil {
			t.Fatalf("AddHistory %s: %v", q, err)
		}
	}

	total, err := CountHistory(ctx, db, "u1")
	if err != nil || total != 5 {
		t.Fatalf("CountHistory = %d, %v", total, err)
	}

	page, err := ListHistoryPage(ctx, db, "u1", 2, 2)
	if err != nil {
		t.Fatalf("ListHistoryPage: %v", err)
	}
	if len(page) != 2 || page[0].Query != "c" || page[1].Query != "b" {
		t.Errorf("page = %+v, want [c b]", page)
	}
}
