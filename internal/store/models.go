package store

import "time"

// Account is a registered credential: its ciphertext, identifying
// fingerprint, and user-facing metadata.
type Account struct {
	ID              string
	Name            string
	Tags            []string
	AuthCiphertext  []byte
	AuthFingerprint string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	LastUsedAt      *time.Time
}

// SwitchResult is the outcome recorded for a switch or rollback row.
type SwitchResult string

const (
	SwitchSuccess    SwitchResult = "success"
	SwitchFailed     SwitchResult = "failed"
	SwitchRolledBack SwitchResult = "rolled_back"
)

// SwitchHistory records one atomic live-file replacement, successful or
// not, so it can later be inspected or rolled back.
type SwitchHistory struct {
	ID            string
	FromAccountID *string
	ToAccountID   *string
	SnapshotPath  *string
	Result        SwitchResult
	ErrorMessage  *string
	CreatedAt     time.Time
}

// QuotaMode reports how a snapshot's remaining-quota figure was
// obtained.
type QuotaMode string

const (
	ModePrecise QuotaMode = "precise"
	ModeStatus  QuotaMode = "status"
	ModeUnknown QuotaMode = "unknown"
)

// QuotaState is a coarse classification of remaining quota.
type QuotaState string

const (
	StateAvailable  QuotaState = "available"
	StateNearLimit  QuotaState = "near_limit"
	StateExhausted  QuotaState = "exhausted"
	StateUnknown    QuotaState = "unknown"
)

// QuotaSnapshot is one point-in-time probe result for an account.
type QuotaSnapshot struct {
	ID              string
	AccountID       string
	CreatedAt       time.Time
	Mode            QuotaMode
	RemainingValue  *float64
	RemainingUnit   *string
	QuotaState      QuotaState
	ResetAt         *time.Time
	Source          string
	Confidence      int
	Reason          *string
}

// VaultMeta is the single-row record of KDF parameters and the
// encrypted verifier used to validate an unlock attempt.
type VaultMeta struct {
	KDFSalt            []byte
	KDFParams          string
	VerifierCiphertext []byte
	CreatedAt          time.Time
	UpdatedAt          time.Time
}
