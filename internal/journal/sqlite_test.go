package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tathienbao/amm-limit-agent/internal/order"
)

var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func setupTestJournal(t *testing.T) *SQLiteJournal {
	t.Helper()

	j, err := NewSQLiteJournal(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("create journal: %v", err)
	}
	j.now = func() time.Time { return testNow }
	t.Cleanup(func() { _ = j.Close() })

	return j
}

func filledSnapshot(t *testing.T, id string) order.Snapshot {
	t.Helper()

	o, err := order.New(order.Params{
		ID:          id,
		InputToken:  "USDC",
		OutputToken: "USDT",
		InputAmount: 1_000_000,
		LimitRate:   decimal.RequireFromString("0.999"),
		Slippage:    decimal.RequireFromString("0.005"),
		TIF:         order.GTC,
		Route:       order.Route{Pool: "0xpool", In: 1, Out: 0},
	}, testNow)
	if err != nil {
		t.Fatalf("new order: %v", err)
	}
	if err := o.Activate(); err != nil {
		t.Fatalf("activate: %v", err)
	}
	if err := o.RecordPriceCheck(1_000_000, 1_000_500, testNow); err != nil {
		t.Fatalf("price check: %v", err)
	}
	if err := o.Fill("0xsettle", 1_000_000, 1_000_500); err != nil {
		t.Fatalf("fill: %v", err)
	}
	return o.Snapshot()
}

func TestSQLiteJournal_Outcome(t *testing.T) {
	j := setupTestJournal(t)
	ctx := context.Background()

	snap := filledSnapshot(t, "ord-1")
	if err := j.RecordOutcome(ctx, snap); err != nil {
		t.Fatalf("record outcome: %v", err)
	}

	got, err := j.GetOutcome(ctx, "ord-1")
	if err != nil {
		t.Fatalf("get outcome: %v", err)
	}
	if got == nil {
		t.Fatal("expected outcome, got nil")
	}

	if got.Status != "FILLED" {
		t.Errorf("expected status FILLED, got %s", got.Status)
	}
	if got.TIF != "GTC" {
		t.Errorf("expected tif GTC, got %s", got.TIF)
	}
	if got.Filled != 1_000_000 || got.Received != 1_000_500 {
		t.Errorf("expected filled 1000000 received 1000500, got %d/%d", got.Filled, got.Received)
	}
	if !got.LimitRate.Equal(decimal.RequireFromString("0.999")) {
		t.Errorf("expected limit rate 0.999, got %s", got.LimitRate)
	}
	if got.Settlement != "0xsettle" {
		t.Errorf("expected settlement 0xsettle, got %s", got.Settlement)
	}
	if got.PriceChecks != 1 {
		t.Errorf("expected 1 price check, got %d", got.PriceChecks)
	}
}

func TestSQLiteJournal_OutcomeUpsert(t *testing.T) {
	j := setupTestJournal(t)
	ctx := context.Background()

	snap := filledSnapshot(t, "ord-1")
	if err := j.RecordOutcome(ctx, snap); err != nil {
		t.Fatalf("record outcome: %v", err)
	}
	snap.Reason = "replayed"
	if err := j.RecordOutcome(ctx, snap); err != nil {
		t.Fatalf("record outcome again: %v", err)
	}

	all, err := j.ListOutcomes(ctx, 0)
	if err != nil {
		t.Fatalf("list outcomes: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected 1 outcome, got %d", len(all))
	}
	if all[0].Reason != "replayed" {
		t.Errorf("expected replaced reason, got %q", all[0].Reason)
	}
}

func TestSQLiteJournal_ListOutcomesLimit(t *testing.T) {
	j := setupTestJournal(t)
	ctx := context.Background()

	for i, id := range []string{"a", "b", "c"} {
		j.now = func() time.Time { return testNow.Add(time.Duration(i) * time.Minute) }
		if err := j.RecordOutcome(ctx, filledSnapshot(t, id)); err != nil {
			t.Fatalf("record %s: %v", id, err)
		}
	}

	got, err := j.ListOutcomes(ctx, 2)
	if err != nil {
		t.Fatalf("list outcomes: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 outcomes, got %d", len(got))
	}
	if got[0].OrderID != "c" || got[1].OrderID != "b" {
		t.Errorf("expected newest first [c b], got [%s %s]", got[0].OrderID, got[1].OrderID)
	}
}

func TestSQLiteJournal_GetOutcomeMissing(t *testing.T) {
	j := setupTestJournal(t)

	got, err := j.GetOutcome(context.Background(), "nope")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil outcome, got %+v", got)
	}
}

func TestSQLiteJournal_LargeAmounts(t *testing.T) {
	j := setupTestJournal(t)
	ctx := context.Background()

	s := Sample{
		Timestamp: testNow,
		Route:     "0xpool[1->0]",
		Amount:    ^uint64(0),
		Output:    ^uint64(0) - 1,
		Rate:      decimal.RequireFromString("0.99999"),
	}
	if err := j.RecordSample(ctx, s); err != nil {
		t.Fatalf("record sample: %v", err)
	}

	got, err := j.ListSamples(ctx, testNow.Add(-time.Minute), testNow.Add(time.Minute))
	if err != nil {
		t.Fatalf("list samples: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 sample, got %d", len(got))
	}
	if got[0].Amount != ^uint64(0) || got[0].Output != ^uint64(0)-1 {
		t.Errorf("amounts not preserved: %d/%d", got[0].Amount, got[0].Output)
	}
	if !got[0].Rate.Equal(s.Rate) {
		t.Errorf("expected rate %s, got %s", s.Rate, got[0].Rate)
	}
}

func TestSQLiteJournal_ListSamplesRange(t *testing.T) {
	j := setupTestJournal(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		s := Sample{
			Timestamp: testNow.Add(time.Duration(i) * time.Hour),
			Route:     "r",
			Amount:    100,
			Output:    uint64(100 + i),
			Rate:      decimal.NewFromInt(1),
		}
		if err := j.RecordSample(ctx, s); err != nil {
			t.Fatalf("record sample %d: %v", i, err)
		}
	}

	got, err := j.ListSamples(ctx, testNow.Add(time.Hour), testNow.Add(3*time.Hour))
	if err != nil {
		t.Fatalf("list samples: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 samples, got %d", len(got))
	}
	if got[0].Output != 101 || got[2].Output != 103 {
		t.Errorf("unexpected range: first %d last %d", got[0].Output, got[2].Output)
	}
}

func TestSQLiteJournal_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	ctx := context.Background()

	j1, err := NewSQLiteJournal(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := j1.RecordOutcome(ctx, filledSnapshot(t, "persisted")); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := j1.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	j2, err := NewSQLiteJournal(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = j2.Close() }()

	got, err := j2.GetOutcome(ctx, "persisted")
	if err != nil {
		t.Fatalf("get outcome: %v", err)
	}
	if got == nil || got.Status != "FILLED" {
		t.Errorf("expected persisted FILLED outcome, got %+v", got)
	}
}

func TestSQLiteJournal_CorruptRows(t *testing.T) {
	ctx := context.Background()

	outcomeTests := []struct {
		name   string
		update string
	}{
		{"filled", `UPDATE outcomes SET filled = 'lots'`},
		{"received", `UPDATE outcomes SET received = '-5'`},
		{"input amount", `UPDATE outcomes SET input_amount = ''`},
		{"limit rate", `UPDATE outcomes SET limit_rate = 'abc'`},
	}
	for _, tt := range outcomeTests {
		t.Run(tt.name, func(t *testing.T) {
			j := setupTestJournal(t)
			if err := j.RecordOutcome(ctx, filledSnapshot(t, "ord-1")); err != nil {
				t.Fatalf("record outcome: %v", err)
			}
			if _, err := j.db.ExecContext(ctx, tt.update); err != nil {
				t.Fatalf("corrupt row: %v", err)
			}

			if got, err := j.GetOutcome(ctx, "ord-1"); err == nil {
				t.Errorf("GetOutcome = %+v, want scan error", got)
			}
			if _, err := j.ListOutcomes(ctx, 0); err == nil {
				t.Error("ListOutcomes should fail on a corrupt row")
			}
		})
	}

	t.Run("sample rate", func(t *testing.T) {
		j := setupTestJournal(t)
		s := Sample{Timestamp: testNow, Route: "r", Amount: 100, Output: 99, Rate: decimal.RequireFromString("0.99")}
		if err := j.RecordSample(ctx, s); err != nil {
			t.Fatalf("record sample: %v", err)
		}
		if _, err := j.db.ExecContext(ctx, `UPDATE price_samples SET rate = 'n/a'`); err != nil {
			t.Fatalf("corrupt row: %v", err)
		}

		if _, err := j.ListSamples(ctx, testNow.Add(-time.Minute), testNow.Add(time.Minute)); err == nil {
			t.Error("ListSamples should fail on a corrupt row")
		}
	})
}

func TestSQLiteJournal_CloseTwice(t *testing.T) {
	j := setupTestJournal(t)

	if err := j.Close(); err != nil {
		t.Fatalf("first close: %v", err)
	}
	if err := j.Close(); err != nil {
		t.Errorf("second close: %v", err)
	}
}
