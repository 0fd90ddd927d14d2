package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/louissarvin/kage-sub000/claim"
	"github.com/louissarvin/kage-sub000/stealth"
	"github.com/louissarvin/kage-sub000/types/ledger"
)

type ledgerFixture struct {
	ledger *LocalLedger
	prover *DevProver

	signer      *stealth.Signer
	positionID  uint64
	nullifier   stealth.Nullifier
	destination []byte
}

func newLedgerFixture(t *testing.T) *ledgerFixture {
	t.Helper()

	db, err := NewInMemoryDB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	prover := NewDevProver()
	localLedger := NewLocalLedger(zap.NewNop(), db, prover)

	require.NoError(t, localLedger.CreateOrganization(&ledger.Organization{
		VaultBalance: 10_000,
		IsActive:     true,
	}))
	require.NoError(t, localLedger.CreateSchedule(&ledger.VestingSchedule{
		ScheduleID:    1,
		CliffDuration: 0,
		TotalDuration: 1000,
		IsActive:      true,
	}))

	recipient, err := stealth.GenerateMetaKeyPair()
	require.NoError(t, err)
	payment, err := stealth.GenerateStealthPayment(&recipient.MetaAddress, nil)
	require.NoError(t, err)
	signer, _, err := stealth.RecoverStealthSigner(recipient, payment)
	require.NoError(t, err)

	positionID := uint64(1)
	var commitment [32]byte
	copy(commitment[:], signer.Public())
	require.NoError(t, localLedger.CreatePosition(&ledger.VestingPosition{
		ScheduleID:            1,
		PositionID:            positionID,
		BeneficiaryCommitment: commitment,
		EncryptedTotalAmount:  [32]byte{0x01},
		StartTimestamp:        0,
		IsActive:              true,
	}))

	nullifier, err := stealth.DeriveNullifier(signer.Public(), positionID)
	require.NoError(t, err)

	return &ledgerFixture{
		ledger:      localLedger,
		prover:      prover,
		signer:      signer,
		positionID:  positionID,
		nullifier:   nullifier,
		destination: make([]byte, stealth.KeySize),
	}
}

func (f *ledgerFixture) authRequest(t *testing.T) *ledger.AuthorizationRequest {
	t.Helper()

	ctx := context.Background()
	message, err := claim.BuildMessage(f.positionID, f.nullifier, f.destination)
	require.NoError(t, err)
	signature, err := f.signer.Sign(message)
	require.NoError(t, err)

	position, err := f.ledger.GetPosition(ctx, f.positionID)
	require.NoError(t, err)
	proof, err := f.prover.GetInclusionProof(ctx, position.Address)
	require.NoError(t, err)

	req := &ledger.AuthorizationRequest{
		PositionID:    f.positionID,
		Nullifier:     f.nullifier,
		Signature:     signature,
		PositionProof: proof,
	}
	copy(req.WithdrawalDestination[:], f.destination)
	copy(req.StealthPublicKey[:], f.signer.Public())
	return req
}

func TestLocalLedger_AuthorizationFlow(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()

	record, err := f.ledger.SubmitAuthorization(ctx, f.authRequest(t))
	require.NoError(t, err)
	assert.True(t, record.IsAuthorized)
	assert.False(t, record.IsProcessed)

	stored, err := f.ledger.GetClaimAuthorization(ctx, f.positionID, f.nullifier)
	require.NoError(t, err)
	assert.Equal(t, record.AuthorizedAt, stored.AuthorizedAt)
}

func TestLocalLedger_NullifierFirstWriteWins(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()

	_, err := f.ledger.SubmitAuthorization(ctx, f.authRequest(t))
	require.NoError(t, err)

	// A second submission with a fresh proof and valid signature still
	// fails on the nullifier record
	_, err = f.ledger.SubmitAuthorization(ctx, f.authRequest(t))
	assert.ErrorIs(t, err, ledger.ErrNullifierUsed)
}

func TestLocalLedger_RejectsForgedSignature(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()

	req := f.authRequest(t)
	req.Signature[0] ^= 0x01
	_, err := f.ledger.SubmitAuthorization(ctx, req)
	assert.ErrorIs(t, err, ledger.ErrInvalidSignature)
}

func TestLocalLedger_RejectsWrongSigner(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()

	other, err := stealth.GenerateMetaKeyPair()
	require.NoError(t, err)
	payment, err := stealth.GenerateStealthPayment(&other.MetaAddress, nil)
	require.NoError(t, err)
	otherSigner, _, err := stealth.RecoverStealthSigner(other, payment)
	require.NoError(t, err)

	req := f.authRequest(t)
	message, err := claim.BuildMessage(f.positionID, f.nullifier, f.destination)
	require.NoError(t, err)
	req.Signature, err = otherSigner.Sign(message)
	require.NoError(t, err)
	copy(req.StealthPublicKey[:], otherSigner.Public())

	_, err = f.ledger.SubmitAuthorization(ctx, req)
	assert.ErrorIs(t, err, ledger.ErrSignerMismatch)
}

func TestLocalLedger_RejectsStaleProof(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()

	req := f.authRequest(t)

	// Advance the root between proof fetch and submission
	f.prover.SetLeaf([32]byte{0xee}, [32]byte{0xff})

	_, err := f.ledger.SubmitAuthorization(ctx, req)
	assert.ErrorIs(t, err, ledger.ErrStaleProof)
}

func TestLocalLedger_ProcessedAndCompressedUpdate(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()

	_, err := f.ledger.SubmitAuthorization(ctx, f.authRequest(t))
	require.NoError(t, err)

	encryptedClaimed := [32]byte{0x09}
	err = f.ledger.MarkClaimProcessed(
		ctx,
		f.positionID,
		f.nullifier,
		250,
		encryptedClaimed,
	)
	require.NoError(t, err)

	position, err := f.ledger.GetPosition(ctx, f.positionID)
	require.NoError(t, err)
	assert.Equal(t, encryptedClaimed, position.EncryptedClaimedAmount)

	// Compressed update with a fresh proof
	proof, err := f.prover.GetInclusionProof(ctx, position.Address)
	require.NoError(t, err)
	err = f.ledger.ApplyCompressedUpdate(ctx, &ledger.CompressedUpdateRequest{
		PositionID:             f.positionID,
		Nullifier:              f.nullifier,
		EncryptedClaimedAmount: encryptedClaimed,
		IsFullyClaimed:         true,
		Proof:                  proof,
	})
	require.NoError(t, err)

	position, err = f.ledger.GetPosition(ctx, f.positionID)
	require.NoError(t, err)
	assert.True(t, position.IsFullyClaimed)
}

func TestLocalLedger_CompressedUpdateRequiresProcessed(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()

	_, err := f.ledger.SubmitAuthorization(ctx, f.authRequest(t))
	require.NoError(t, err)

	position, err := f.ledger.GetPosition(ctx, f.positionID)
	require.NoError(t, err)
	proof, err := f.prover.GetInclusionProof(ctx, position.Address)
	require.NoError(t, err)

	err = f.ledger.ApplyCompressedUpdate(ctx, &ledger.CompressedUpdateRequest{
		PositionID: f.positionID,
		Nullifier:  f.nullifier,
		Proof:      proof,
	})
	assert.ErrorIs(t, err, ledger.ErrClaimNotProcessed)
}

func TestLocalLedger_WithdrawalExactlyOnce(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()

	_, err := f.ledger.SubmitAuthorization(ctx, f.authRequest(t))
	require.NoError(t, err)
	err = f.ledger.MarkClaimProcessed(
		ctx,
		f.positionID,
		f.nullifier,
		250,
		[32]byte{0x09},
	)
	require.NoError(t, err)

	result, err := f.ledger.SubmitWithdrawal(ctx, f.positionID, f.nullifier)
	require.NoError(t, err)
	assert.Equal(t, uint64(250), result.Amount)

	_, err = f.ledger.SubmitWithdrawal(ctx, f.positionID, f.nullifier)
	assert.ErrorIs(t, err, ledger.ErrAlreadyWithdrawn)
}

func TestLocalLedger_WithdrawalRequiresProcessed(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()

	_, err := f.ledger.SubmitAuthorization(ctx, f.authRequest(t))
	require.NoError(t, err)

	_, err = f.ledger.SubmitWithdrawal(ctx, f.positionID, f.nullifier)
	assert.ErrorIs(t, err, ledger.ErrClaimNotProcessed)
}

func TestLocalLedger_InsufficientVault(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()

	_, err := f.ledger.SubmitAuthorization(ctx, f.authRequest(t))
	require.NoError(t, err)
	err = f.ledger.MarkClaimProcessed(
		ctx,
		f.positionID,
		f.nullifier,
		1_000_000,
		[32]byte{0x09},
	)
	require.NoError(t, err)

	_, err = f.ledger.SubmitWithdrawal(ctx, f.positionID, f.nullifier)
	assert.ErrorIs(t, err, ledger.ErrInsufficientVault)
}

func TestLocalLedger_UnknownRecords(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()

	_, err := f.ledger.GetPosition(ctx, 999)
	assert.ErrorIs(t, err, ledger.ErrPositionNotFound)

	_, err = f.ledger.GetClaimAuthorization(ctx, f.positionID, f.nullifier)
	assert.ErrorIs(t, err, ledger.ErrClaimNotFound)
}

func TestLocalLedger_PaymentLog(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()

	recipient, err := stealth.GenerateMetaKeyPair()
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		payment, err := stealth.GenerateStealthPayment(
			&recipient.MetaAddress,
			[]byte{byte(i)},
		)
		require.NoError(t, err)

		err = f.ledger.PublishPayment(ctx, &ledger.StealthPaymentEvent{
			StealthAddress:     [32]byte(payment.StealthAddress),
			EphemeralPublicKey: [32]byte(payment.EphemeralPublicKey),
			EncryptedPayload:   payment.EncryptedPayload,
			Timestamp:          int64(100 + i),
		})
		require.NoError(t, err)
	}

	events, err := f.ledger.ListPayments(ctx, 0)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, int64(100), events[0].Timestamp)

	// The since bound is inclusive
	events, err = f.ledger.ListPayments(ctx, 101)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, int64(101), events[0].Timestamp)
}
