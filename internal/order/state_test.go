package order

import (
	"errors"
	"testing"

	"github.com/tathienbao/amm-limit-agent/internal/types"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusActive, true},
		{StatusPending, StatusFilled, false},
		{StatusActive, StatusFilled, true},
		{StatusActive, StatusPartiallyFilled, true},
		{StatusActive, StatusCanceled, true},
		{StatusActive, StatusExpired, true},
		{StatusActive, StatusFailed, true},
		{StatusActive, StatusPending, false},
		{StatusFilled, StatusCanceled, false},
		{StatusPartiallyFilled, StatusFilled, false},
	}

	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestOrder_TerminalTransitions(t *testing.T) {
	tests := []struct {
		name       string
		apply      func(o *Order) error
		wantStatus Status
		wantReason string
	}{
		{"fill", func(o *Order) error { return o.Fill("0x1", o.Remaining(), 1_010_000) }, StatusFilled, ""},
		{"partial", func(o *Order) error { return o.PartialFill("0x2", 400_000, 410_000) }, StatusPartiallyFilled, ReasonPartialFill},
		{"cancel", func(o *Order) error { return o.Cancel(ReasonCheckLimit) }, StatusCanceled, ReasonCheckLimit},
		{"expire", func(o *Order) error { return o.Expire(ReasonExpired) }, StatusExpired, ReasonExpired},
		{"fail", func(o *Order) error { return o.Fail("execution failed: reverted") }, StatusFailed, "execution failed: reverted"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := mustActive(t, testParams(IOC))
			if err := tt.apply(o); err != nil {
				t.Fatalf("transition failed: %v", err)
			}
			if o.Status() != tt.wantStatus {
				t.Errorf("Status = %s, want %s", o.Status(), tt.wantStatus)
			}
			if o.Reason() != tt.wantReason {
				t.Errorf("Reason = %q, want %q", o.Reason(), tt.wantReason)
			}
		})
	}
}

func TestOrder_NoMutationAfterTerminal(t *testing.T) {
	o := mustActive(t, testParams(GTC))
	if err := o.Fill("0xabc", o.Remaining(), 1_010_000); err != nil {
		t.Fatalf("Fill failed: %v", err)
	}
	before := o.Snapshot()

	attempts := []struct {
		name string
		fn   func() error
	}{
		{"fill", func() error { return o.Fill("0xdef", 1, 1) }},
		{"partial", func() error { return o.PartialFill("0xdef", 1, 1) }},
		{"cancel", func() error { return o.Cancel("late") }},
		{"expire", func() error { return o.Expire("late") }},
		{"fail", func() error { return o.Fail("late") }},
		{"activate", o.Activate},
		{"price check", func() error { return o.RecordPriceCheck(1, 1, testNow) }},
	}

	for _, a := range attempts {
		if err := a.fn(); !errors.Is(err, types.ErrOrderTerminal) {
			t.Errorf("%s after FILLED: error = %v, want ErrOrderTerminal", a.name, err)
		}
	}

	after := o.Snapshot()
	if after.Status != before.Status || after.Filled != before.Filled ||
		after.Received != before.Received || after.Settlement != before.Settlement ||
		after.PriceChecks != before.PriceChecks {
		t.Errorf("terminal order mutated: before=%+v after=%+v", before, after)
	}
}

func TestOrder_IllegalFromPending(t *testing.T) {
	o := mustNew(t, testParams(GTC))

	if err := o.Cancel("early"); !errors.Is(err, types.ErrIllegalTransition) {
		t.Errorf("Cancel on PENDING error = %v, want ErrIllegalTransition", err)
	}
	if err := o.RecordPriceCheck(1, 1, testNow); !errors.Is(err, types.ErrOrderNotActive) {
		t.Errorf("RecordPriceCheck on PENDING error = %v, want ErrOrderNotActive", err)
	}
	if err := o.Activate(); err != nil {
		t.Fatalf("Activate failed: %v", err)
	}
	if err := o.Activate(); !errors.Is(err, types.ErrIllegalTransition) {
		t.Errorf("second Activate error = %v, want ErrIllegalTransition", err)
	}
}

func TestOrder_FillBounds(t *testing.T) {
	tests := []struct {
		name    string
		fn      func(o *Order) error
		wantErr bool
	}{
		{"full fill", func(o *Order) error { return o.Fill("0x", o.InputAmount(), 1) }, false},
		{"fill short", func(o *Order) error { return o.Fill("0x", o.InputAmount()-1, 1) }, true},
		{"fill zero", func(o *Order) error { return o.Fill("0x", 0, 0) }, true},
		{"partial over", func(o *Order) error { return o.PartialFill("0x", o.InputAmount()+1, 1) }, true},
		{"partial zero", func(o *Order) error { return o.PartialFill("0x", 0, 0) }, true},
		{"partial whole", func(o *Order) error { return o.PartialFill("0x", o.InputAmount(), 1) }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := mustActive(t, testParams(IOC))
			err := tt.fn(o)
			if tt.wantErr {
				if !errors.Is(err, types.ErrInvalidFill) {
					t.Errorf("error = %v, want ErrInvalidFill", err)
				}
				if o.Status() != StatusActive || o.Filled() != 0 {
					t.Errorf("rejected fill mutated order: status=%s filled=%d", o.Status(), o.Filled())
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if o.Filled() > o.InputAmount() {
				t.Errorf("Filled = %d exceeds input %d", o.Filled(), o.InputAmount())
			}
		})
	}
}

func TestOrder_PriceChecksMonotonic(t *testing.T) {
	o := mustActive(t, testParams(GTC))

	for i := 1; i <= 5; i++ {
		if err := o.RecordPriceCheck(o.InputAmount(), uint64(990_000+i), testNow); err != nil {
			t.Fatalf("RecordPriceCheck failed: %v", err)
		}
		if o.PriceChecks() != i {
			t.Errorf("PriceChecks = %d, want %d", o.PriceChecks(), i)
		}
	}
	if o.LastQuote().Output != 990_005 {
		t.Errorf("LastQuote.Output = %d, want 990005", o.LastQuote().Output)
	}
}
