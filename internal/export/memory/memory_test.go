package memory

import (
	"context"
	"errors"
	"testing"

	"tally/internal/export"
)

func TestStoreAppendAndRows(t *testing.T) {
	s := New()

	ref, err := s.AppendExpense(context.Background(), export.Row{
		OwnerEmail: "a@example.com",
		Title:      "Lunch",
		Amount:     12.5,
		Action:     "created",
	})
	if err != nil || ref != "mem:1" {
		t.Fatalf("unexpected append: ref=%q err=%v", ref, err)
	}

	ref, err = s.AppendExpense(context.Background(), export.Row{Title: "Taxi", Amount: 8, Action: "updated"})
	if err != nil || ref != "mem:2" {
		t.Fatalf("unexpected append: ref=%q err=%v", ref, err)
	}

	rows := s.Rows()
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].Title != "Lunch" || rows[1].Title != "Taxi" {
		t.Fatalf("unexpected rows: %v", rows)
	}
}

func TestStoreFailWith(t *testing.T) {
	s := New()
	failure := errors.New("quota exceeded")
	s.FailWith(failure)

	if _, err := s.AppendExpense(context.Background(), export.Row{Title: "x"}); !errors.Is(err, failure) {
		t.Fatalf("expected injected error, got %v", err)
	}
	if len(s.Rows()) != 0 {
		t.Fatal("failed append should not store a row")
	}

	s.FailWith(nil)
	if _, err := s.AppendExpense(context.Background(), export.Row{Title: "x"}); err != nil {
		t.Fatalf("append after clearing failure: %v", err)
	}
}
