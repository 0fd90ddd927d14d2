package mpc

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

var (
	ErrAborted        = errors.New("computation was aborted")
	ErrUnknownHandle  = errors.New("unknown computation handle")
	ErrResultTimeout  = errors.New("computation result not observed within bound")
	ErrInvalidInputs  = errors.New("invalid computation inputs")
	ErrOutputMismatch = errors.New("computation output verification failed")
)

// ComputationHandle identifies a queued computation for later retrieval.
type ComputationHandle string

// ProcessClaimInputs are the encrypted operands of the claim circuit. Each
// ciphertext encodes a u64 under the MPC cluster's keys; the core never sees
// plaintext amounts.
type ProcessClaimInputs struct {
	ClientPublicKey           [32]byte
	Nonce                     [16]byte
	EncryptedTotalAmount      [32]byte
	EncryptedClaimedAmount    [32]byte
	EncryptedVestingNumerator [32]byte
	EncryptedClaimAmount      [32]byte
}

// ProcessClaimOutputs carry the circuit's result: the updated encrypted
// claimed amount and whether the position is now fully claimed.
type ProcessClaimOutputs struct {
	EncryptedClaimedAmount [32]byte
	IsFullyClaimed         bool
}

// InputCipher encrypts plaintext u64 operands under the MPC cluster's keys
// so they can enter the circuit. The nonce binds ciphertexts to one
// computation.
type InputCipher interface {
	EncryptU64(value uint64, nonce [16]byte) ([32]byte, error)
}

// Service is the external multi-party computation cluster. QueueComputation
// returns immediately; AwaitResult blocks until the callback for the handle
// is observed, the timeout elapses, or the context is cancelled. Abandoning
// a wait mutates nothing: results remain retrievable under the same handle.
type Service interface {
	QueueComputation(
		ctx context.Context,
		inputs *ProcessClaimInputs,
	) (ComputationHandle, error)
	AwaitResult(
		ctx context.Context,
		handle ComputationHandle,
		timeout time.Duration,
	) (*ProcessClaimOutputs, error)
}
