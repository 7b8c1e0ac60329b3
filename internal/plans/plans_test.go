package plans

import (
	"testing"

	"github.com/tbourn/go-lora-backend/internal/domain"
)

func TestFor_UnknownTierFallsBackToFree(t *testing.T) {
	got := For(domain.PlanTier("ENTERPRISE++"))
	if got != For(domain.TierFree) {
		t.Fatalf("unknown tier should resolve to FREE limits, got %+v", got)
	}
}

func TestAllows(t *testing.T) {
	cases := []struct {
		name               string
		limit, used, delta int64
		want               bool
	}{
		{"within", 10, 4, 5, true},
		{"exact boundary", 10, 5, 5, true},
		{"over", 10, 6, 5, false},
		{"unlimited always passes", Unlimited, 1 << 40, 1 << 40, true},
		{"zero limit rejects any use", 0, 0, 1, false},
		{"zero limit allows zero delta", 0, 0, 0, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Allows(tc.limit, tc.used, tc.delta); got != tc.want {
				t.Fatalf("Allows(%d,%d,%d) = %v, want %v", tc.limit, tc.used, tc.delta, got, tc.want)
			}
		})
	}
}

func TestUploadCostCents(t *testing.T) {
	l := Limits{UploadCentsPerMiB: 2}

	if got := l.UploadCostCents(0); got != 0 {
		t.Fatalf("zero bytes should be free, got %d", got)
	}
	// Exactly 1 MiB -> 2 cents.
	if got := l.UploadCostCents(1 << 20); got != 2 {
		t.Fatalf("1MiB = %d cents, want 2", got)
	}
	// Partial MiBs round up: 1 byte still costs a full MiB's worth.
	if got := l.UploadCostCents(1); got != 2 {
		t.Fatalf("1 byte = %d cents, want 2 (ceiling)", got)
	}
	// 10 MiB + 1 byte -> 11 MiB worth.
	if got := l.UploadCostCents(10*(1<<20) + 1); got != 22 {
		t.Fatalf("10MiB+1 = %d cents, want 22", got)
	}

	free := Limits{UploadCentsPerMiB: 0}
	if got := free.UploadCostCents(1 << 30); got != 0 {
		t.Fatalf("free tier should not charge, got %d", got)
	}
}

func TestFreeTierShape(t *testing.T) {
	l := For(domain.TierFree)
	if l.FreeVideoUploads != 3 {
		t.Fatalf("free tier free uploads = %d, want 3", l.FreeVideoUploads)
	}
	if l.UploadCentsPerMiB != 0 {
		t.Fatal("free tier uploads must not be priced")
	}
	if l.ModelSlots == Unlimited || l.MonthlyUploadBytes == Unlimited {
		t.Fatal("free tier must be bounded")
	}
}
