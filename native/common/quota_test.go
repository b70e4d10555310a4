package common

import (
	"errors"
	"math"
	"testing"
)

func TestCheckQuotaRequestLimit(t *testing.T) {
	q := Quota{MaxRequestsPerEpoch: 2}
	prev := QuotaNow{EpochID: 1}

	next, err := CheckQuota(q, 1, prev, 2, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	denied, err := CheckQuota(q, 1, next, 1, 0)
	if !errors.Is(err, ErrQuotaRequestsExceeded) {
		t.Fatalf("expected ErrQuotaRequestsExceeded, got %v", err)
	}
	if denied != next {
		t.Fatalf("expected counters to remain unchanged on denial")
	}
	rollover, err := CheckQuota(q, 2, next, 1, 0)
	if err != nil {
		t.Fatalf("unexpected error after epoch rollover: %v", err)
	}
	if rollover.EpochID != 2 || rollover.ReqCount != 1 {
		t.Fatalf("unexpected state after rollover: %+v", rollover)
	}
}

func TestCheckQuotaAmount(t *testing.T) {
	q := Quota{MaxAmountPerEpoch: 1000}
	next, err := CheckQuota(q, 5, QuotaNow{EpochID: 5}, 0, 1000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := CheckQuota(q, 5, next, 0, 1); !errors.Is(err, ErrQuotaAmountExceeded) {
		t.Fatalf("expected ErrQuotaAmountExceeded, got %v", err)
	}
	if _, err := CheckQuota(Quota{}, 5, QuotaNow{EpochID: 5, AmountUsed: math.MaxUint64}, 0, 1); !errors.Is(err, ErrQuotaCounterOverflow) {
		t.Fatalf("expected ErrQuotaCounterOverflow, got %v", err)
	}
}

func TestQuotaEpochID(t *testing.T) {
	q := Quota{EpochSeconds: 3600}
	if q.EpochID(7199) != 1 || q.EpochID(7200) != 2 {
		t.Fatalf("unexpected epoch bucketing")
	}
	if q.EpochID(-1) != 0 {
		t.Fatalf("negative timestamps bucket to zero")
	}
}

type pauses map[string]bool

func (p pauses) IsPaused(module string) bool { return p[module] }

func TestGuard(t *testing.T) {
	if err := Guard(nil, ModuleLending); err != nil {
		t.Fatalf("nil pause view must allow: %v", err)
	}
	if err := Guard(pauses{ModuleLending: true}, ModuleToken); err != nil {
		t.Fatalf("unpaused module must be allowed: %v", err)
	}
	if err := Guard(pauses{ModuleLending: true}, ModuleLending); !errors.Is(err, ErrModulePaused) {
		t.Fatalf("expected ErrModulePaused, got %v", err)
	}
}
