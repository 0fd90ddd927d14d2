// Package claim drives the confidential claim-authorization lifecycle:
// verify ownership, register the nullifier, request the MPC computation,
// apply the compressed-state update, and trigger withdrawal.
//
// The lifecycle is linear with no cycles and no skipping:
//
//	Unauthorized -> Authorized -> Processed -> Withdrawn
//
// All authoritative state lives in the external ledger; the coordinator
// keeps a local view only to reject out-of-order calls before contacting
// any collaborator. Concurrent authorizations for the same claim are
// resolved by the ledger's single-writer nullifier constraint, so a
// rejected second write is the expected outcome of a race, not a local bug.
package claim

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/louissarvin/kage-sub000/stealth"
	"github.com/louissarvin/kage-sub000/types/ledger"
	"github.com/louissarvin/kage-sub000/types/mpc"
)

// State is a claim's position in the lifecycle.
type State string

const (
	StateUnauthorized State = "unauthorized"
	StateAuthorized   State = "authorized"
	StateProcessed    State = "processed"
	StateWithdrawn    State = "withdrawn"
)

type claimKey struct {
	positionID uint64
	nullifier  stealth.Nullifier
}

// Coordinator orchestrates the claim lifecycle against the external
// collaborators. Methods are safe for concurrent use; the lifecycle is not
// reentrant per (position, nullifier) pair.
type Coordinator struct {
	logger *zap.Logger
	ledger ledger.Ledger
	prover ledger.ValidityProver
	mpc    mpc.Service
	cipher mpc.InputCipher

	mu     sync.Mutex
	claims map[claimKey]State
}

func NewCoordinator(
	logger *zap.Logger,
	ledgerClient ledger.Ledger,
	prover ledger.ValidityProver,
	mpcService mpc.Service,
	inputCipher mpc.InputCipher,
) *Coordinator {
	return &Coordinator{
		logger: logger,
		ledger: ledgerClient,
		prover: prover,
		mpc:    mpcService,
		cipher: inputCipher,
		claims: make(map[claimKey]State),
	}
}

// stateOf returns the coordinator's view of a claim, seeding it from the
// ledger's read accessors when the claim has not been seen locally (for
// example after a restart).
func (c *Coordinator) stateOf(ctx context.Context, key claimKey) (State, error) {
	c.mu.Lock()
	if state, ok := c.claims[key]; ok {
		c.mu.Unlock()
		return state, nil
	}
	c.mu.Unlock()

	record, err := c.ledger.GetClaimAuthorization(
		ctx,
		key.positionID,
		key.nullifier,
	)
	if err != nil {
		if errors.Is(err, ledger.ErrClaimNotFound) {
			return StateUnauthorized, nil
		}
		return "", errors.Wrap(err, "claim state")
	}

	state := StateAuthorized
	switch {
	case record.IsWithdrawn:
		state = StateWithdrawn
	case record.IsProcessed:
		state = StateProcessed
	}

	c.setState(key, state)
	return state, nil
}

func (c *Coordinator) setState(key claimKey, state State) {
	c.mu.Lock()
	c.claims[key] = state
	c.mu.Unlock()
}

// Authorize transitions Unauthorized -> Authorized: it signs the claim
// message with the recovered one-time key and submits the signature, a fresh
// position proof, and the nullifier to the ledger. The transition happens
// only if the ledger accepts both the signature and a first write of the
// nullifier record; a second authorize with the same nullifier fails with
// ErrDoubleClaim and must not be retried.
func (c *Coordinator) Authorize(
	ctx context.Context,
	signer *stealth.Signer,
	positionID uint64,
	nullifier stealth.Nullifier,
	destination []byte,
) (*ledger.ClaimAuthorization, error) {
	key := claimKey{positionID, nullifier}

	state, err := c.stateOf(ctx, key)
	if err != nil {
		return nil, errors.Wrap(err, "authorize")
	}
	if state != StateUnauthorized {
		return nil, errors.Wrap(ErrDoubleClaim, "authorize")
	}

	message, err := BuildMessage(positionID, nullifier, destination)
	if err != nil {
		return nil, errors.Wrap(err, "authorize")
	}

	signature, err := signer.Sign(message)
	if err != nil {
		return nil, errors.Wrap(err, "authorize")
	}

	position, err := c.ledger.GetPosition(ctx, positionID)
	if err != nil {
		return nil, errors.Wrap(err, "authorize")
	}

	// Proofs are single-use against the current root, so one is fetched
	// fresh for every submission.
	proof, err := c.prover.GetInclusionProof(ctx, position.Address)
	if err != nil {
		return nil, errors.Wrap(err, "authorize")
	}

	req := &ledger.AuthorizationRequest{
		PositionID:    positionID,
		Nullifier:     nullifier,
		Signature:     signature,
		PositionProof: proof,
	}
	copy(req.WithdrawalDestination[:], destination)
	copy(req.StealthPublicKey[:], signer.Public())

	record, err := c.ledger.SubmitAuthorization(ctx, req)
	if err != nil {
		if errors.Is(err, ledger.ErrNullifierUsed) {
			return nil, errors.Wrap(ErrDoubleClaim, "authorize")
		}
		return nil, errors.Wrap(err, "authorize")
	}

	c.setState(key, StateAuthorized)
	c.logger.Info(
		"claim authorized",
		zap.Uint64("position_id", positionID),
	)

	return record, nil
}

// ProcessingRequest parameterizes RequestProcessing. Timeout bounds the wait
// for the MPC callback; observed computation latency in this domain is
// minutes.
type ProcessingRequest struct {
	PositionID  uint64
	Nullifier   stealth.Nullifier
	ClaimAmount uint64
	Timeout     time.Duration
}

// RequestProcessing transitions Authorized -> Processed. It queues the MPC
// computation over the position's encrypted amounts and the publicly
// computed vesting numerator, then awaits the callback. On timeout it
// reports ErrComputationTimeout and leaves the claim Authorized: the retry
// is safe because the ledger's nullifier guard prevents double effects.
// Cancelling the wait mutates nothing.
func (c *Coordinator) RequestProcessing(
	ctx context.Context,
	req *ProcessingRequest,
) (*mpc.ProcessClaimOutputs, error) {
	key := claimKey{req.PositionID, req.Nullifier}

	state, err := c.stateOf(ctx, key)
	if err != nil {
		return nil, errors.Wrap(err, "request processing")
	}
	if state != StateAuthorized {
		return nil, errors.Wrap(ErrOutOfOrder, "request processing")
	}

	position, err := c.ledger.GetPosition(ctx, req.PositionID)
	if err != nil {
		return nil, errors.Wrap(err, "request processing")
	}

	schedule, err := c.ledger.GetSchedule(ctx, position.ScheduleID)
	if err != nil {
		return nil, errors.Wrap(err, "request processing")
	}

	numerator := VestingNumerator(
		schedule,
		position.StartTimestamp,
		time.Now().Unix(),
	)

	// All operands must share the position's nonce so the circuit can
	// unmask the stored ciphertexts and re-encrypt the updated claimed
	// amount consistently with position storage.
	nonce := position.Nonce

	encryptedNumerator, err := c.cipher.EncryptU64(numerator, nonce)
	if err != nil {
		return nil, errors.Wrap(err, "request processing")
	}

	encryptedClaimAmount, err := c.cipher.EncryptU64(req.ClaimAmount, nonce)
	if err != nil {
		return nil, errors.Wrap(err, "request processing")
	}

	inputs := &mpc.ProcessClaimInputs{
		Nonce:                     nonce,
		EncryptedTotalAmount:      position.EncryptedTotalAmount,
		EncryptedClaimedAmount:    position.EncryptedClaimedAmount,
		EncryptedVestingNumerator: encryptedNumerator,
		EncryptedClaimAmount:      encryptedClaimAmount,
	}

	handle, err := c.mpc.QueueComputation(ctx, inputs)
	if err != nil {
		return nil, errors.Wrap(err, "request processing")
	}

	c.logger.Debug(
		"claim computation queued",
		zap.Uint64("position_id", req.PositionID),
		zap.String("handle", string(handle)),
		zap.Uint64("vesting_numerator", numerator),
	)

	outputs, err := c.mpc.AwaitResult(ctx, handle, req.Timeout)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			// Caller abandoned the wait; no local state changes.
			return nil, errors.Wrap(ctxErr, "request processing")
		}
		if errors.Is(err, mpc.ErrResultTimeout) ||
			errors.Is(err, context.DeadlineExceeded) {
			return nil, errors.Wrap(ErrComputationTimeout, "request processing")
		}
		return nil, errors.Wrap(err, "request processing")
	}

	err = c.ledger.MarkClaimProcessed(
		ctx,
		req.PositionID,
		req.Nullifier,
		req.ClaimAmount,
		outputs.EncryptedClaimedAmount,
	)
	if err != nil {
		return nil, errors.Wrap(err, "request processing")
	}

	c.setState(key, StateProcessed)
	c.logger.Info(
		"claim processed",
		zap.Uint64("position_id", req.PositionID),
		zap.Bool("fully_claimed", outputs.IsFullyClaimed),
	)

	return outputs, nil
}

// ApplyCompressedUpdate pushes the post-claim encrypted claimed amount and
// fully-claimed flag into the compressed position state. It requires the
// claim to be Processed, is idempotent across retries, and fetches a fresh
// validity proof on every attempt; ErrStaleProof means the root advanced
// mid-flight and the call should simply be repeated.
func (c *Coordinator) ApplyCompressedUpdate(
	ctx context.Context,
	positionID uint64,
	nullifier stealth.Nullifier,
	outputs *mpc.ProcessClaimOutputs,
) error {
	key := claimKey{positionID, nullifier}

	state, err := c.stateOf(ctx, key)
	if err != nil {
		return errors.Wrap(err, "apply compressed update")
	}
	if state != StateProcessed && state != StateWithdrawn {
		return errors.Wrap(ErrOutOfOrder, "apply compressed update")
	}

	position, err := c.ledger.GetPosition(ctx, positionID)
	if err != nil {
		return errors.Wrap(err, "apply compressed update")
	}

	proof, err := c.prover.GetInclusionProof(ctx, position.Address)
	if err != nil {
		return errors.Wrap(err, "apply compressed update")
	}

	err = c.ledger.ApplyCompressedUpdate(ctx, &ledger.CompressedUpdateRequest{
		PositionID:             positionID,
		Nullifier:              nullifier,
		EncryptedClaimedAmount: outputs.EncryptedClaimedAmount,
		IsFullyClaimed:         outputs.IsFullyClaimed,
		Proof:                  proof,
	})
	if err != nil {
		if errors.Is(err, ledger.ErrStaleProof) {
			return errors.Wrap(ErrStaleProof, "apply compressed update")
		}
		return errors.Wrap(err, "apply compressed update")
	}

	return nil
}

// Withdraw is the final transition Processed -> Withdrawn. The ledger
// enforces that it succeeds exactly once per claim; a second call fails with
// ErrAlreadyWithdrawn and moves no funds.
func (c *Coordinator) Withdraw(
	ctx context.Context,
	positionID uint64,
	nullifier stealth.Nullifier,
) (*ledger.TxResult, error) {
	key := claimKey{positionID, nullifier}

	state, err := c.stateOf(ctx, key)
	if err != nil {
		return nil, errors.Wrap(err, "withdraw")
	}
	switch state {
	case StateWithdrawn:
		return nil, errors.Wrap(ErrAlreadyWithdrawn, "withdraw")
	case StateProcessed:
	default:
		return nil, errors.Wrap(ErrOutOfOrder, "withdraw")
	}

	result, err := c.ledger.SubmitWithdrawal(ctx, positionID, nullifier)
	if err != nil {
		if errors.Is(err, ledger.ErrAlreadyWithdrawn) {
			c.setState(key, StateWithdrawn)
			return nil, errors.Wrap(ErrAlreadyWithdrawn, "withdraw")
		}
		return nil, errors.Wrap(err, "withdraw")
	}

	c.setState(key, StateWithdrawn)
	c.logger.Info(
		"claim withdrawn",
		zap.Uint64("position_id", positionID),
		zap.Uint64("amount", result.Amount),
	)

	return result, nil
}
