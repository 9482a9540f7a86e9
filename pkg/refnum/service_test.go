package refnum

import (
	"context"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5"
)

type mockRow struct {
	val int64
	err error
}

func (m *mockRow) Scan(dest ...any) error {
	if m.err != nil {
		return m.err
	}
	if len(dest) > 0 {
		if ptr, ok := dest[0].(*int64); ok {
			*ptr = m.val
		}
	}
	return nil
}

type mockQuerier struct {
	mu           sync.Mutex
	currentValue int64
	calls        int
}

func (m *mockQuerier) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++

	// Set form passes an explicit value, allocation passes only the key.
	if len(args) == 2 {
		if val, ok := args[1].(int64); ok {
			m.currentValue = val
			return &mockRow{val: m.currentValue}
		}
	}

	m.currentValue++
	return &mockRow{val: m.currentValue}
}

func TestNext_Sequential(t *testing.T) {
	q := &mockQuerier{}
	svc := New(q, DefaultConfig())
	ctx := context.Background()

	num, err := svc.Next(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if num != "C19-0001" {
		t.Errorf("expected C19-0001, got %s", num)
	}

	num, err = svc.Next(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if num != "C19-0002" {
		t.Errorf("expected C19-0002, got %s", num)
	}

	if q.calls != 2 {
		t.Errorf("expected 2 DB calls, got %d", q.calls)
	}
}

func TestNext_PadWidthGrowth(t *testing.T) {
	q := &mockQuerier{currentValue: 9998}
	svc := New(q, DefaultConfig())
	ctx := context.Background()

	num, _ := svc.Next(ctx)
	if num != "C19-9999" {
		t.Errorf("expected C19-9999, got %s", num)
	}

	// Width grows past the pad, no truncation.
	num, _ = svc.Next(ctx)
	if num != "C19-10000" {
		t.Errorf("expected C19-10000, got %s", num)
	}
}

func TestSetNext(t *testing.T) {
	q := &mockQuerier{}
	svc := New(q, Config{Prefix: "ADP", PadWidth: 4})
	ctx := context.Background()

	if err := svc.SetNext(ctx, 500); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	num, err := svc.Next(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if num != "ADP-0500" {
		t.Errorf("expected ADP-0500, got %s", num)
	}
}

func TestParse(t *testing.T) {
	if got := Parse("C19-0042"); got != 42 {
		t.Errorf("expected 42, got %d", got)
	}
	if got := Parse("C19-10000"); got != 10000 {
		t.Errorf("expected 10000, got %d", got)
	}
	if got := Parse("garbage"); got != -1 {
		t.Errorf("expected -1, got %d", got)
	}
	if got := Parse("C19-"); got != -1 {
		t.Errorf("expected -1, got %d", got)
	}
}
