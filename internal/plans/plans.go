// Package plans is the authoritative registry of per-tier resource limits.
// It is pure configuration: no database, no external service. The quota
// resolver and the repo-layer conditional updates both read from here so the
// advisory checks and the atomic enforcement can never disagree on a limit.
package plans

import "github.com/tbourn/go-lora-backend/internal/domain"

// Unlimited marks a limit that always passes. -1 rather than 0 so that a
// genuine zero allowance (e.g. free-tier AI submits on a locked-down deploy)
// stays expressible.
const Unlimited int64 = -1

// Limits holds every numeric cap for one plan tier.
type Limits struct {
	// ModelSlots caps how many LoRA models a user may own.
	ModelSlots int64
	// VideosPerModel caps training videos attached to a single model.
	VideosPerModel int64
	// TrainRunsPerModel caps training submissions per model.
	TrainRunsPerModel int64
	// MonthlyUploadBytes caps uploaded bytes per calendar month.
	MonthlyUploadBytes int64
	// TotalStorageBytes caps total stored bytes.
	TotalStorageBytes int64
	// MaxFileBytes caps the size of a single uploaded file.
	MaxFileBytes int64
	// UploadCentsPerMiB prices uploads; 0 means uploads are free on the tier.
	UploadCentsPerMiB int64
	// AISubmits caps lifetime training submissions for metered tiers.
	AISubmits int64
	// FreeVideoUploads caps no-charge uploads on the free tier.
	FreeVideoUploads int64
}

const mib = int64(1) << 20

// tierDefaults is the single source of truth for plan limits.
var tierDefaults = map[domain.PlanTier]Limits{
	domain.TierFree: {
		ModelSlots:         1,
		VideosPerModel:     5,
		TrainRunsPerModel:  1,
		MonthlyUploadBytes: 200 * mib,
		TotalStorageBytes:  500 * mib,
		MaxFileBytes:       50 * mib,
		UploadCentsPerMiB:  0,
		AISubmits:          1,
		FreeVideoUploads:   3,
	},
	domain.TierCreator: {
		ModelSlots:         5,
		VideosPerModel:     20,
		TrainRunsPerModel:  5,
		MonthlyUploadBytes: 5 * 1024 * mib,
		TotalStorageBytes:  20 * 1024 * mib,
		MaxFileBytes:       200 * mib,
		UploadCentsPerMiB:  2,
		AISubmits:          20,
		FreeVideoUploads:   0,
	},
	domain.TierPro: {
		ModelSlots:         20,
		VideosPerModel:     50,
		TrainRunsPerModel:  20,
		MonthlyUploadBytes: 50 * 1024 * mib,
		TotalStorageBytes:  200 * 1024 * mib,
		MaxFileBytes:       1024 * mib,
		UploadCentsPerMiB:  1,
		AISubmits:          100,
		FreeVideoUploads:   0,
	},
	domain.TierStudio: {
		ModelSlots:         Unlimited,
		VideosPerModel:     Unlimited,
		TrainRunsPerModel:  Unlimited,
		MonthlyUploadBytes: Unlimited,
		TotalStorageBytes:  Unlimited,
		MaxFileBytes:       4 * 1024 * mib,
		UploadCentsPerMiB:  1,
		AISubmits:          Unlimited,
		FreeVideoUploads:   0,
	},
}

// freeLimits is cached for the unknown-tier fallback path.
var freeLimits = tierDefaults[domain.TierFree]

// For returns the limits for tier. Unknown tiers fall back to the most
// restrictive (FREE) limits so a bad or missing tier value fails safe.
func For(tier domain.PlanTier) Limits {
	if l, ok := tierDefaults[tier]; ok {
		return l
	}
	return freeLimits
}

// Allows reports whether adding delta to used stays within limit.
// The Unlimited sentinel always passes, so call sites never special-case it.
func Allows(limit, used, delta int64) bool {
	if limit == Unlimited {
		return true
	}
	return used+delta <= limit
}

// UploadCostCents prices sizeBytes on the tier: ceiling division so partial
// MiBs are charged, and a non-free tier never charges zero for a non-empty
// file.
func (l Limits) UploadCostCents(sizeBytes int64) int64 {
	if l.UploadCentsPerMiB <= 0 || sizeBytes <= 0 {
		return 0
	}
	return (sizeBytes*l.UploadCentsPerMiB + mib - 1) / mib
}
