package ledger

import (
	"context"

	"github.com/pkg/errors"
)

var (
	ErrOrganizationNotActive = errors.New("organization is not active")
	ErrScheduleNotActive     = errors.New("vesting schedule is not active")
	ErrPositionNotActive     = errors.New("vesting position is not active")
	ErrPositionFullyClaimed  = errors.New("position is fully claimed")
	ErrPositionNotFound      = errors.New("position not found")
	ErrClaimNotFound         = errors.New("claim authorization not found")
	ErrClaimNotAuthorized    = errors.New("claim is not authorized")
	ErrClaimNotProcessed     = errors.New("claim has not been processed")
	ErrAlreadyWithdrawn      = errors.New("claim has already been withdrawn")
	ErrNullifierUsed         = errors.New("nullifier has already been used")
	ErrInvalidSignature      = errors.New("invalid eligibility signature")
	ErrSignerMismatch        = errors.New("signer does not match beneficiary commitment")
	ErrInvalidDestination    = errors.New("invalid withdrawal destination")
	ErrInsufficientVault     = errors.New("insufficient vault balance for withdrawal")
	ErrStaleProof            = errors.New("validity proof does not match current tree root")
)

// Organization manages vesting schedules and positions.
type Organization struct {
	Admin         [32]byte `yaml:"admin"`
	NameHash      [32]byte `yaml:"nameHash"`
	ScheduleCount uint64   `yaml:"scheduleCount"`
	PositionCount uint64   `yaml:"positionCount"`
	VaultBalance  uint64   `yaml:"vaultBalance"`
	IsActive      bool     `yaml:"isActive"`
}

// VestingSchedule defines the parameters for a vesting plan. Durations are in
// seconds.
type VestingSchedule struct {
	ScheduleID      uint64 `yaml:"scheduleId"`
	CliffDuration   uint64 `yaml:"cliffDuration"`
	TotalDuration   uint64 `yaml:"totalDuration"`
	VestingInterval uint64 `yaml:"vestingInterval"`
	IsActive        bool   `yaml:"isActive"`
}

// VestingPosition holds a single beneficiary's vested allocation. Amounts are
// ciphertexts owned by the MPC service; the ledger never sees plaintext
// values. BeneficiaryCommitment is the stealth public key authorized to claim.
type VestingPosition struct {
	Address                [32]byte `yaml:"address"`
	ScheduleID             uint64   `yaml:"scheduleId"`
	PositionID             uint64   `yaml:"positionId"`
	BeneficiaryCommitment  [32]byte `yaml:"beneficiaryCommitment"`
	EncryptedTotalAmount   [32]byte `yaml:"encryptedTotalAmount"`
	EncryptedClaimedAmount [32]byte `yaml:"encryptedClaimedAmount"`
	Nonce                  [16]byte `yaml:"nonce"`
	StartTimestamp         int64    `yaml:"startTimestamp"`
	IsActive               bool     `yaml:"isActive"`
	IsFullyClaimed         bool     `yaml:"isFullyClaimed"`
}

// ClaimAuthorization is the ledger's record of a claim lifecycle. Created on
// first successful ownership proof, mutated in place, terminal once
// IsWithdrawn is set.
type ClaimAuthorization struct {
	PositionID            uint64   `yaml:"positionId"`
	Nullifier             [32]byte `yaml:"nullifier"`
	WithdrawalDestination [32]byte `yaml:"withdrawalDestination"`
	ClaimAmount           uint64   `yaml:"claimAmount"`
	IsAuthorized          bool     `yaml:"isAuthorized"`
	IsProcessed           bool     `yaml:"isProcessed"`
	IsWithdrawn           bool     `yaml:"isWithdrawn"`
	AuthorizedAt          int64    `yaml:"authorizedAt"`
}

// NullifierRecord marks a nullifier as consumed. Existence means used; the
// ledger rejects a second write with the same nullifier.
type NullifierRecord struct {
	Nullifier  [32]byte `yaml:"nullifier"`
	PositionID uint64   `yaml:"positionId"`
	UsedAt     int64    `yaml:"usedAt"`
}

// StealthPaymentEvent is published once per stealth payment and scanned by
// recipients. Unlinkable to the recipient's meta-address without the view key.
type StealthPaymentEvent struct {
	StealthAddress     [32]byte `yaml:"stealthAddress"`
	EphemeralPublicKey [32]byte `yaml:"ephemeralPublicKey"`
	EncryptedPayload   []byte   `yaml:"encryptedPayload"`
	PositionID         uint64   `yaml:"positionId"`
	Timestamp          int64    `yaml:"timestamp"`
}

// InclusionProof proves a compressed position's current state against a
// Merkle root. Proofs are single-use: they are only valid against the root
// they were generated from, and the root advances on every state mutation.
type InclusionProof struct {
	Proof     [][]byte `yaml:"proof"`
	Root      [32]byte `yaml:"root"`
	LeafIndex uint64   `yaml:"leafIndex"`
}

// AuthorizationRequest carries everything the ledger needs to verify
// ownership and register a claim: the 64-byte Ed25519 signature over
// positionId(8,LE) || nullifier(32) || destination(32), the stealth public
// key it verifies under, and a fresh inclusion proof for the position.
type AuthorizationRequest struct {
	PositionID            uint64
	Nullifier             [32]byte
	WithdrawalDestination [32]byte
	StealthPublicKey      [32]byte
	Signature             []byte
	PositionProof         *InclusionProof
}

// CompressedUpdateRequest pushes the post-claim encrypted claimed amount and
// fully-claimed flag into the compressed position state.
type CompressedUpdateRequest struct {
	PositionID             uint64
	Nullifier              [32]byte
	EncryptedClaimedAmount [32]byte
	IsFullyClaimed         bool
	Proof                  *InclusionProof
}

type TxResult struct {
	Amount      uint64
	Destination [32]byte
}

// Ledger is the external program that owns all authoritative claim state.
// The core only computes the values written into it and validates read-back
// state. Concurrent writers are resolved by the ledger's single-writer
// uniqueness constraints, not by local locking.
type Ledger interface {
	SubmitAuthorization(
		ctx context.Context,
		req *AuthorizationRequest,
	) (*ClaimAuthorization, error)
	MarkClaimProcessed(
		ctx context.Context,
		positionID uint64,
		nullifier [32]byte,
		claimAmount uint64,
		encryptedClaimedAmount [32]byte,
	) error
	ApplyCompressedUpdate(ctx context.Context, req *CompressedUpdateRequest) error
	SubmitWithdrawal(
		ctx context.Context,
		positionID uint64,
		nullifier [32]byte,
	) (*TxResult, error)
	GetClaimAuthorization(
		ctx context.Context,
		positionID uint64,
		nullifier [32]byte,
	) (*ClaimAuthorization, error)
	GetPosition(ctx context.Context, positionID uint64) (*VestingPosition, error)
	GetSchedule(ctx context.Context, scheduleID uint64) (*VestingSchedule, error)
	PublishPayment(ctx context.Context, event *StealthPaymentEvent) error
	ListPayments(ctx context.Context, since int64) ([]*StealthPaymentEvent, error)
}

// ValidityProver produces inclusion proofs for compressed account state. A
// proof must be re-fetched before every state-mutating submission.
type ValidityProver interface {
	GetInclusionProof(
		ctx context.Context,
		address [32]byte,
	) (*InclusionProof, error)
}
