package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"caseline/internal/db"
	"caseline/internal/domain"
	"caseline/internal/migrate"
)

func testStore(t *testing.T) SQLite {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewSQLite(conn)
}

func sample(id, ts string) domain.Case {
	return domain.Case{
		ID:        id,
		OwnerID:   "alice",
		Title:     "Warehouse automation",
		Status:    "intake",
		History:   []domain.Event{{TS: ts, Source: "alice", Kind: domain.EventStatusChanged, Content: "case created by alice"}},
		CreatedAt: ts,
		UpdatedAt: ts,
	}
}

func TestInsertGetRoundtrip(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	c := sample("c1", "2026-01-10T09:00:00Z")
	c.StageOutputs = map[string]json.RawMessage{"draft": json.RawMessage(`{"summary":"ok"}`)}
	if err := st.Insert(ctx, c); err != nil {
		t.Fatalf("insert: %v", err)
	}
	got, err := st.Get(ctx, "c1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Version != 1 {
		t.Fatalf("version = %d, want 1", got.Version)
	}
	if got.Title != c.Title || got.Status != c.Status || got.OwnerID != c.OwnerID {
		t.Fatalf("got %+v", got)
	}
	if string(got.StageOutputs["draft"]) != `{"summary":"ok"}` {
		t.Fatalf("outputs = %v", got.StageOutputs)
	}
	if len(got.History) != 1 {
		t.Fatalf("history = %+v", got.History)
	}
}

func TestGetNotFound(t *testing.T) {
	st := testStore(t)
	if _, err := st.Get(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestSetBumpsVersion(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	if err := st.Insert(ctx, sample("c1", "2026-01-10T09:00:00Z")); err != nil {
		t.Fatalf("insert: %v", err)
	}
	c, _ := st.Get(ctx, "c1")
	c.Status = "draft_in_progress"
	if err := st.Set(ctx, c, 1); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, _ := st.Get(ctx, "c1")
	if got.Version != 2 || got.Status != "draft_in_progress" {
		t.Fatalf("got version=%d status=%s", got.Version, got.Status)
	}
}

func TestSetStaleVersionConflicts(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	if err := st.Insert(ctx, sample("c1", "2026-01-10T09:00:00Z")); err != nil {
		t.Fatalf("insert: %v", err)
	}
	c, _ := st.Get(ctx, "c1")
	if err := st.Set(ctx, c, 1); err != nil {
		t.Fatalf("first set: %v", err)
	}
	// second writer still holds version 1
	if err := st.Set(ctx, c, 1); !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("err = %v, want ErrVersionConflict", err)
	}
}

func TestSetMissingCase(t *testing.T) {
	st := testStore(t)
	c := sample("ghost", "2026-01-10T09:00:00Z")
	if err := st.Set(context.Background(), c, 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestListFiltersAndPaginates(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		c := sample(fmt.Sprintf("c%d", i), fmt.Sprintf("2026-01-1%dT09:00:00Z", i))
		if i%2 == 1 {
			c.Status = "draft_pending_review"
		}
		if err := st.Insert(ctx, c); err != nil {
			t.Fatalf("insert c%d: %v", i, err)
		}
	}

	pending, err := st.List(ctx, Filters{Status: "draft_pending_review"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("pending = %d, want 2", len(pending))
	}

	page1, err := st.List(ctx, Filters{Limit: 2})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page1) != 2 || page1[0].ID != "c4" || page1[1].ID != "c3" {
		t.Fatalf("page1 = %+v", page1)
	}
	last := page1[len(page1)-1]
	page2, err := st.List(ctx, Filters{Limit: 2, CursorCreatedAt: last.CreatedAt, CursorID: last.ID})
	if err != nil {
		t.Fatalf("list page2: %v", err)
	}
	if len(page2) != 2 || page2[0].ID != "c2" || page2[1].ID != "c1" {
		t.Fatalf("page2 = %+v", page2)
	}
}
