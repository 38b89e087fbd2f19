package memory

import (
	"context"
	"testing"

	"moneymate/internal/core"
)

func sample(id int64, desc string) core.Transaction {
	return core.Transaction{
		ID:          id,
		Amount:      core.Money{Cents: 123},
		Description: desc,
		Type:        core.Income,
		Category:    "Gift",
		Date:        core.NewDate(2024, 1, 1),
	}
}

func TestExporterUpsertAndDelete(t *testing.T) {
	ctx := context.Background()
	e := New()

	if err := e.Upsert(ctx, sample(2, "b")); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := e.Upsert(ctx, sample(1, "a")); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := e.Upsert(ctx, sample(2, "b2")); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	rows := e.Rows()
	if len(rows) != 2 || rows[0].ID != 1 || rows[1].Description != "b2" {
		t.Fatalf("unexpected rows: %+v", rows)
	}

	if err := e.Delete(ctx, 1); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := e.Delete(ctx, 1); err != nil {
		t.Fatalf("second delete should be a no-op: %v", err)
	}
	if rows := e.Rows(); len(rows) != 1 || rows[0].ID != 2 {
		t.Fatalf("unexpected rows after delete: %+v", rows)
	}
}

func TestExporterRejectsInvalid(t *testing.T) {
	e := New()
	if err := e.Upsert(context.Background(), sample(0, "x")); err == nil {
		t.Fatal("expected error for missing id")
	}
	if err := e.Upsert(context.Background(), sample(3, "")); err == nil {
		t.Fatal("expected validation error")
	}
	if len(e.Rows()) != 0 {
		t.Fatal("invalid rows must not be stored")
	}
}
