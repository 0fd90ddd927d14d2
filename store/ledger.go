// Package store provides the dev/test implementations of the external
// collaborators: a pebble-backed ledger with the same verification and
// uniqueness semantics as the on-chain program, and a Merkle validity-proof
// service over compressed position state.
package store

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gopkg.in/yaml.v2"

	"github.com/louissarvin/kage-sub000/claim"
	"github.com/louissarvin/kage-sub000/stealth"
	"github.com/louissarvin/kage-sub000/types/ledger"
)

const (
	organizationKey = "organization"
	schedulePrefix  = "schedule/"
	positionPrefix  = "position/"
	nullifierPrefix = "nullifier/"
	claimPrefix     = "claim/"
	paymentPrefix   = "payment/"
	paymentSeqKey   = "payment-seq"
)

// LocalLedger implements the ledger collaborator interface on a local
// key-value store. It enforces the same invariants as the external program:
// Ed25519 ownership verification against the beneficiary commitment,
// first-write-wins nullifier registration, strict claim lifecycle ordering,
// and proof freshness against the prover's current root.
type LocalLedger struct {
	logger *zap.Logger
	db     KVDB
	prover *DevProver
	mu     sync.Mutex
}

var _ ledger.Ledger = (*LocalLedger)(nil)

func NewLocalLedger(
	logger *zap.Logger,
	db KVDB,
	prover *DevProver,
) *LocalLedger {
	return &LocalLedger{
		logger: logger,
		db:     db,
		prover: prover,
	}
}

func positionAddress(positionID uint64) [32]byte {
	preimage := make([]byte, 0, 24)
	preimage = append(preimage, []byte("compressed_position")...)
	preimage = binary.LittleEndian.AppendUint64(preimage, positionID)
	return sha256.Sum256(preimage)
}

func positionStateHash(position *ledger.VestingPosition) ([32]byte, error) {
	raw, err := yaml.Marshal(position)
	if err != nil {
		return [32]byte{}, errors.Wrap(err, "position state hash")
	}

	return sha256.Sum256(raw), nil
}

func (l *LocalLedger) get(key string, out interface{}) error {
	raw, closer, err := l.db.Get([]byte(key))
	if err != nil {
		return err
	}
	defer closer.Close()

	return yaml.Unmarshal(raw, out)
}

func (l *LocalLedger) set(key string, value interface{}) error {
	raw, err := yaml.Marshal(value)
	if err != nil {
		return err
	}

	return l.db.Set([]byte(key), raw)
}

func scheduleKey(scheduleID uint64) string {
	return schedulePrefix + hex.EncodeToString(
		binary.BigEndian.AppendUint64(nil, scheduleID),
	)
}

func positionKey(positionID uint64) string {
	return positionPrefix + hex.EncodeToString(
		binary.BigEndian.AppendUint64(nil, positionID),
	)
}

func nullifierKey(nullifier [32]byte) string {
	return nullifierPrefix + hex.EncodeToString(nullifier[:])
}

func claimAuthKey(positionID uint64, nullifier [32]byte) string {
	return claimPrefix + hex.EncodeToString(
		binary.BigEndian.AppendUint64(nil, positionID),
	) + "/" + hex.EncodeToString(nullifier[:])
}

// CreateOrganization seeds the ledger with its organization record.
func (l *LocalLedger) CreateOrganization(org *ledger.Organization) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	return errors.Wrap(l.set(organizationKey, org), "create organization")
}

// DepositToVault credits the organization vault.
func (l *LocalLedger) DepositToVault(amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	org := &ledger.Organization{}
	if err := l.get(organizationKey, org); err != nil {
		return errors.Wrap(err, "deposit to vault")
	}
	if !org.IsActive {
		return errors.Wrap(ledger.ErrOrganizationNotActive, "deposit to vault")
	}

	org.VaultBalance += amount
	return errors.Wrap(l.set(organizationKey, org), "deposit to vault")
}

// CreateSchedule registers a vesting schedule.
func (l *LocalLedger) CreateSchedule(schedule *ledger.VestingSchedule) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	return errors.Wrap(
		l.set(scheduleKey(schedule.ScheduleID), schedule),
		"create schedule",
	)
}

// CreatePosition registers a vesting position and inserts its compressed
// state leaf. The position address is derived from the position id.
func (l *LocalLedger) CreatePosition(position *ledger.VestingPosition) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	position.Address = positionAddress(position.PositionID)
	if err := l.set(positionKey(position.PositionID), position); err != nil {
		return errors.Wrap(err, "create position")
	}

	stateHash, err := positionStateHash(position)
	if err != nil {
		return errors.Wrap(err, "create position")
	}

	l.prover.SetLeaf(position.Address, stateHash)
	return nil
}

func (l *LocalLedger) GetPosition(
	ctx context.Context,
	positionID uint64,
) (*ledger.VestingPosition, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	position := &ledger.VestingPosition{}
	if err := l.get(positionKey(positionID), position); err != nil {
		if IsNotFound(err) {
			return nil, errors.Wrap(ledger.ErrPositionNotFound, "get position")
		}
		return nil, errors.Wrap(err, "get position")
	}

	return position, nil
}

func (l *LocalLedger) GetSchedule(
	ctx context.Context,
	scheduleID uint64,
) (*ledger.VestingSchedule, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	schedule := &ledger.VestingSchedule{}
	if err := l.get(scheduleKey(scheduleID), schedule); err != nil {
		if IsNotFound(err) {
			return nil, errors.Wrap(ledger.ErrPositionNotFound, "get schedule")
		}
		return nil, errors.Wrap(err, "get schedule")
	}

	return schedule, nil
}

func (l *LocalLedger) GetClaimAuthorization(
	ctx context.Context,
	positionID uint64,
	nullifier [32]byte,
) (*ledger.ClaimAuthorization, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	record := &ledger.ClaimAuthorization{}
	if err := l.get(claimAuthKey(positionID, nullifier), record); err != nil {
		if IsNotFound(err) {
			return nil, errors.Wrap(
				ledger.ErrClaimNotFound,
				"get claim authorization",
			)
		}
		return nil, errors.Wrap(err, "get claim authorization")
	}

	return record, nil
}

func (l *LocalLedger) verifyPositionProof(
	proof *ledger.InclusionProof,
	position *ledger.VestingPosition,
) error {
	currentRoot, err := l.prover.CurrentRoot()
	if err != nil {
		return err
	}
	if proof == nil || proof.Root != currentRoot {
		return ledger.ErrStaleProof
	}

	stateHash, err := positionStateHash(position)
	if err != nil {
		return err
	}

	ok, err := l.prover.VerifyInclusion(proof, position.Address, stateHash)
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("invalid inclusion proof")
	}

	return nil
}

// SubmitAuthorization verifies the ownership signature and registers the
// nullifier. The nullifier record uses first-write-wins semantics: a second
// submission with the same nullifier fails with ErrNullifierUsed regardless
// of signature validity.
func (l *LocalLedger) SubmitAuthorization(
	ctx context.Context,
	req *ledger.AuthorizationRequest,
) (*ledger.ClaimAuthorization, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	position := &ledger.VestingPosition{}
	if err := l.get(positionKey(req.PositionID), position); err != nil {
		if IsNotFound(err) {
			return nil, errors.Wrap(
				ledger.ErrPositionNotFound,
				"submit authorization",
			)
		}
		return nil, errors.Wrap(err, "submit authorization")
	}

	if !position.IsActive {
		return nil, errors.Wrap(
			ledger.ErrPositionNotActive,
			"submit authorization",
		)
	}
	if position.IsFullyClaimed {
		return nil, errors.Wrap(
			ledger.ErrPositionFullyClaimed,
			"submit authorization",
		)
	}

	if err := l.verifyPositionProof(req.PositionProof, position); err != nil {
		return nil, errors.Wrap(err, "submit authorization")
	}

	if req.StealthPublicKey != position.BeneficiaryCommitment {
		return nil, errors.Wrap(
			ledger.ErrSignerMismatch,
			"submit authorization",
		)
	}

	message, err := claim.BuildMessage(
		req.PositionID,
		stealth.Nullifier(req.Nullifier),
		req.WithdrawalDestination[:],
	)
	if err != nil {
		return nil, errors.Wrap(err, "submit authorization")
	}

	if !stealth.Verify(req.StealthPublicKey[:], message, req.Signature) {
		return nil, errors.Wrap(
			ledger.ErrInvalidSignature,
			"submit authorization",
		)
	}

	// First write wins: an existing record means the nullifier is spent.
	if _, closer, err := l.db.Get([]byte(nullifierKey(req.Nullifier))); err == nil {
		closer.Close()
		return nil, errors.Wrap(ledger.ErrNullifierUsed, "submit authorization")
	} else if !IsNotFound(err) {
		return nil, errors.Wrap(err, "submit authorization")
	}

	now := time.Now().Unix()
	nullifierRecord := &ledger.NullifierRecord{
		Nullifier:  req.Nullifier,
		PositionID: req.PositionID,
		UsedAt:     now,
	}
	if err := l.set(nullifierKey(req.Nullifier), nullifierRecord); err != nil {
		return nil, errors.Wrap(err, "submit authorization")
	}

	record := &ledger.ClaimAuthorization{
		PositionID:            req.PositionID,
		Nullifier:             req.Nullifier,
		WithdrawalDestination: req.WithdrawalDestination,
		ClaimAmount:           0,
		IsAuthorized:          true,
		AuthorizedAt:          now,
	}
	err = l.set(claimAuthKey(req.PositionID, req.Nullifier), record)
	if err != nil {
		return nil, errors.Wrap(err, "submit authorization")
	}

	l.logger.Info(
		"claim authorized",
		zap.Uint64("position_id", req.PositionID),
		zap.String("nullifier", hex.EncodeToString(req.Nullifier[:])),
	)

	return record, nil
}

// MarkClaimProcessed records the MPC callback: the authorization's claim
// amount and processed flag, and the position's updated encrypted claimed
// amount. The position leaf advances the prover root.
func (l *LocalLedger) MarkClaimProcessed(
	ctx context.Context,
	positionID uint64,
	nullifier [32]byte,
	claimAmount uint64,
	encryptedClaimedAmount [32]byte,
) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	record := &ledger.ClaimAuthorization{}
	if err := l.get(claimAuthKey(positionID, nullifier), record); err != nil {
		if IsNotFound(err) {
			return errors.Wrap(ledger.ErrClaimNotFound, "mark claim processed")
		}
		return errors.Wrap(err, "mark claim processed")
	}
	if !record.IsAuthorized {
		return errors.Wrap(ledger.ErrClaimNotAuthorized, "mark claim processed")
	}

	record.ClaimAmount = claimAmount
	record.IsProcessed = true
	if err := l.set(claimAuthKey(positionID, nullifier), record); err != nil {
		return errors.Wrap(err, "mark claim processed")
	}

	position := &ledger.VestingPosition{}
	if err := l.get(positionKey(positionID), position); err != nil {
		return errors.Wrap(err, "mark claim processed")
	}

	position.EncryptedClaimedAmount = encryptedClaimedAmount
	if err := l.set(positionKey(positionID), position); err != nil {
		return errors.Wrap(err, "mark claim processed")
	}

	stateHash, err := positionStateHash(position)
	if err != nil {
		return errors.Wrap(err, "mark claim processed")
	}
	l.prover.SetLeaf(position.Address, stateHash)

	return nil
}

// ApplyCompressedUpdate writes the post-claim compressed position state. The
// proof must verify against the current root; a proof fetched before the
// last mutation fails with ErrStaleProof and must be re-fetched.
func (l *LocalLedger) ApplyCompressedUpdate(
	ctx context.Context,
	req *ledger.CompressedUpdateRequest,
) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	record := &ledger.ClaimAuthorization{}
	err := l.get(claimAuthKey(req.PositionID, req.Nullifier), record)
	if err != nil {
		if IsNotFound(err) {
			return errors.Wrap(
				ledger.ErrClaimNotFound,
				"apply compressed update",
			)
		}
		return errors.Wrap(err, "apply compressed update")
	}
	if !record.IsProcessed {
		return errors.Wrap(
			ledger.ErrClaimNotProcessed,
			"apply compressed update",
		)
	}

	position := &ledger.VestingPosition{}
	if err := l.get(positionKey(req.PositionID), position); err != nil {
		return errors.Wrap(err, "apply compressed update")
	}

	if err := l.verifyPositionProof(req.Proof, position); err != nil {
		return errors.Wrap(err, "apply compressed update")
	}

	position.EncryptedClaimedAmount = req.EncryptedClaimedAmount
	position.IsFullyClaimed = req.IsFullyClaimed
	if err := l.set(positionKey(req.PositionID), position); err != nil {
		return errors.Wrap(err, "apply compressed update")
	}

	stateHash, err := positionStateHash(position)
	if err != nil {
		return errors.Wrap(err, "apply compressed update")
	}
	l.prover.SetLeaf(position.Address, stateHash)

	return nil
}

// SubmitWithdrawal releases vested funds exactly once per claim
// authorization. A second submission fails with ErrAlreadyWithdrawn and
// moves nothing.
func (l *LocalLedger) SubmitWithdrawal(
	ctx context.Context,
	positionID uint64,
	nullifier [32]byte,
) (*ledger.TxResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	record := &ledger.ClaimAuthorization{}
	if err := l.get(claimAuthKey(positionID, nullifier), record); err != nil {
		if IsNotFound(err) {
			return nil, errors.Wrap(
				ledger.ErrClaimNotFound,
				"submit withdrawal",
			)
		}
		return nil, errors.Wrap(err, "submit withdrawal")
	}

	if !record.IsAuthorized {
		return nil, errors.Wrap(
			ledger.ErrClaimNotAuthorized,
			"submit withdrawal",
		)
	}
	if !record.IsProcessed {
		return nil, errors.Wrap(
			ledger.ErrClaimNotProcessed,
			"submit withdrawal",
		)
	}
	if record.IsWithdrawn {
		return nil, errors.Wrap(
			ledger.ErrAlreadyWithdrawn,
			"submit withdrawal",
		)
	}

	org := &ledger.Organization{}
	if err := l.get(organizationKey, org); err != nil {
		return nil, errors.Wrap(err, "submit withdrawal")
	}
	if org.VaultBalance < record.ClaimAmount {
		return nil, errors.Wrap(
			ledger.ErrInsufficientVault,
			"submit withdrawal",
		)
	}

	org.VaultBalance -= record.ClaimAmount
	if err := l.set(organizationKey, org); err != nil {
		return nil, errors.Wrap(err, "submit withdrawal")
	}

	record.IsWithdrawn = true
	if err := l.set(claimAuthKey(positionID, nullifier), record); err != nil {
		return nil, errors.Wrap(err, "submit withdrawal")
	}

	l.logger.Info(
		"claim withdrawn",
		zap.Uint64("position_id", positionID),
		zap.Uint64("amount", record.ClaimAmount),
	)

	return &ledger.TxResult{
		Amount:      record.ClaimAmount,
		Destination: record.WithdrawalDestination,
	}, nil
}

// PublishPayment appends a stealth payment event to the scannable log.
func (l *LocalLedger) PublishPayment(
	ctx context.Context,
	event *ledger.StealthPaymentEvent,
) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if event.Timestamp == 0 {
		event.Timestamp = time.Now().Unix()
	}

	var seq uint64
	raw, closer, err := l.db.Get([]byte(paymentSeqKey))
	if err == nil {
		seq = binary.BigEndian.Uint64(raw)
		closer.Close()
	} else if !IsNotFound(err) {
		return errors.Wrap(err, "publish payment")
	}

	seq++
	err = l.db.Set(
		[]byte(paymentSeqKey),
		binary.BigEndian.AppendUint64(nil, seq),
	)
	if err != nil {
		return errors.Wrap(err, "publish payment")
	}

	key := append([]byte(paymentPrefix),
		binary.BigEndian.AppendUint64(nil, uint64(event.Timestamp))...)
	key = binary.BigEndian.AppendUint64(key, seq)

	value, err := yaml.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "publish payment")
	}

	return errors.Wrap(l.db.Set(key, value), "publish payment")
}

// ListPayments returns published payment events with Timestamp >= since, in
// publication order.
func (l *LocalLedger) ListPayments(
	ctx context.Context,
	since int64,
) ([]*ledger.StealthPaymentEvent, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	lower := append([]byte(paymentPrefix),
		binary.BigEndian.AppendUint64(nil, uint64(since))...)
	upper := append([]byte(paymentPrefix), 0xff)

	iter, err := l.db.NewIter(lower, upper)
	if err != nil {
		return nil, errors.Wrap(err, "list payments")
	}
	defer iter.Close()

	var events []*ledger.StealthPaymentEvent
	for iter.First(); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), []byte(paymentPrefix)) {
			continue
		}

		event := &ledger.StealthPaymentEvent{}
		if err := yaml.Unmarshal(iter.Value(), event); err != nil {
			return nil, errors.Wrap(err, "list payments")
		}

		events = append(events, event)
	}

	return events, nil
}
