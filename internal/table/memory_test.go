package table

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestMemory_InsertAssignsIDs(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		rows, err := m.Insert(ctx, "t", Row{"name": "x"})
		if err != nil {
			t.Fatalf("Insert() error = %v", err)
		}
		if got := rows[0]["id"]; got != want {
			t.Errorf("id = %v, want %d", got, want)
		}
	}
}

func TestMemory_JSONValuesAreDecoded(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	rows, err := m.Insert(ctx, "t", Row{
		"tags": []string{"a", "b"},
		"info": map[string]any{"k": "v"},
		"none": nil,
	})
	if err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	tags, ok := rows[0]["tags"].([]any)
	if !ok || len(tags) != 2 || tags[0] != "a" {
		t.Errorf("tags = %#v", rows[0]["tags"])
	}
	if info, ok := rows[0]["info"].(map[string]any); !ok || info["k"] != "v" {
		t.Errorf("info = %#v", rows[0]["info"])
	}
	if rows[0]["none"] != nil {
		t.Errorf("none = %#v, want nil", rows[0]["none"])
	}
}

func TestMemory_SelectFiltersOrdersAndLimits(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	for i, company := range []string{"Acme", "Other", "Acme", "Acme"} {
		_, err := m.Insert(ctx, "t", Row{
			"company_name": company,
			"created_at":   base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	rows, err := m.Select(ctx, "t", Where(Eq("company_name", "Acme")).OrderBy("created_at", true))
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want 3", len(rows))
	}
	wantIDs := []int64{4, 3, 1}
	for i, r := range rows {
		if r["id"] != wantIDs[i] {
			t.Errorf("row %d id = %v, want %d", i, r["id"], wantIDs[i])
		}
	}

	rows, err = m.Select(ctx, "t", Query{}.OrderBy("created_at", true).WithLimit(2))
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 || rows[0]["id"] != int64(4) {
		t.Errorf("limited select = %#v", rows)
	}

	rows, err = m.Select(ctx, "t", Where(Lt("created_at", base.Add(90*time.Second))))
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Errorf("lt select returned %d rows, want 2", len(rows))
	}
}

func TestMemory_UpdateAndDelete(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	if _, err := m.Insert(ctx, "t", Row{"status": "in-progress"}); err != nil {
		t.Fatal(err)
	}

	rows, err := m.Update(ctx, "t", Row{"status": "success"}, Where(Eq("id", int64(1)), Eq("status", "error")))
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 0 {
		t.Fatalf("guarded update touched %d rows, want 0", len(rows))
	}

	rows, err = m.Update(ctx, "t", Row{"status": "success"}, Where(Eq("id", int64(1))))
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0]["status"] != "success" {
		t.Fatalf("update = %#v", rows)
	}

	if _, err := m.Update(ctx, "t", Row{"status": "x"}, Query{}); !errors.Is(err, ErrUnfiltered) {
		t.Errorf("unfiltered update err = %v", err)
	}

	rows, err = m.Delete(ctx, "t", Where(Eq("id", int64(1))))
	if err != nil || len(rows) != 1 {
		t.Fatalf("Delete() = %v, %v", rows, err)
	}
	rows, err = m.Delete(ctx, "t", Where(Eq("id", int64(1))))
	if err != nil || len(rows) != 0 {
		t.Fatalf("second Delete() = %v, %v", rows, err)
	}
}

func TestMemory_ReturnedRowsAreCopies(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	rows, _ := m.Insert(ctx, "t", Row{"info": map[string]any{"k": "v"}})
	rows[0]["info"].(map[string]any)["k"] = "changed"

	got, _ := m.Select(ctx, "t", Where(Eq("id", int64(1))))
	if got[0]["info"].(map[string]any)["k"] != "v" {
		t.Error("stored row was mutated through a returned row")
	}
}

func TestMemory_GuardedUpdateHasSingleWinner(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	if _, err := m.Insert(ctx, "t", Row{"status": "in-progress"}); err != nil {
		t.Fatal(err)
	}

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rows, err := m.Update(ctx, "t", Row{"status": "success"}, Where(Eq("id", int64(1)), Eq("status", "in-progress")))
			if err == nil && len(rows) == 1 {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	if wins.Load() != 1 {
		t.Errorf("wins = %d, want 1", wins.Load())
	}
}

func TestMemory_FailWith(t *testing.T) {
	boom := errors.New("boom")
	m := NewMemory()
	m.FailWith = boom

	if _, err := m.Select(context.Background(), "t", Query{}); !errors.Is(err, boom) {
		t.Errorf("err = %v, want boom", err)
	}
}

func TestMemory_Unique(t *testing.T) {
	m := NewMemory().Unique("reports", "request_id")
	ctx := context.Background()

	if _, err := m.Insert(ctx, "reports", Row{"request_id": "r1"}); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	_, err := m.Insert(ctx, "reports", Row{"request_id": "r1"})

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" || pgErr.ConstraintName != "reports_request_id_key" {
		t.Fatalf("duplicate insert error = %v", err)
	}

	if _, err := m.Insert(ctx, "reports", Row{"request_id": "r2"}); err != nil {
		t.Errorf("distinct insert: %v", err)
	}
	rows, _ := m.Select(ctx, "reports", Query{})
	if len(rows) != 2 {
		t.Errorf("rows = %d, want 2", len(rows))
	}
}
