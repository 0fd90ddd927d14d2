package claim_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/louissarvin/kage-sub000/claim"
	"github.com/louissarvin/kage-sub000/keys"
	"github.com/louissarvin/kage-sub000/mpc/devmpc"
	"github.com/louissarvin/kage-sub000/stealth"
	"github.com/louissarvin/kage-sub000/store"
	"github.com/louissarvin/kage-sub000/types/ledger"
)

// TestEndToEndClaimFlow walks the whole protocol with real components: the
// recipient publishes a meta-address, the organization pays a vesting
// position to a one-time stealth address, the recipient discovers it by
// scanning, recovers the one-time key, and drives the claim through
// authorize, MPC processing, compressed update, and withdrawal.
func TestEndToEndClaimFlow(t *testing.T) {
	ctx := context.Background()
	logger := zap.NewNop()

	db, err := store.NewInMemoryDB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	prover := store.NewDevProver()
	localLedger := store.NewLocalLedger(logger, db, prover)
	cipher := devmpc.NewCipher([32]byte{0x42})
	mpcService := devmpc.NewService(logger, cipher, 10*time.Millisecond)
	coordinator := claim.NewCoordinator(
		logger,
		localLedger,
		prover,
		mpcService,
		cipher,
	)

	// Recipient side: create and store the meta keypair
	keyManager := keys.NewInMemoryKeyManager()
	pair, err := keyManager.CreateMetaKeyPair("beneficiary")
	require.NoError(t, err)

	// Organization side: ledger records and a stealth payment carrying
	// the position reference
	require.NoError(t, localLedger.CreateOrganization(&ledger.Organization{
		VaultBalance: 10_000,
		IsActive:     true,
	}))
	require.NoError(t, localLedger.CreateSchedule(&ledger.VestingSchedule{
		ScheduleID:    1,
		CliffDuration: 100,
		TotalDuration: 1000,
		IsActive:      true,
	}))

	payment, err := stealth.GenerateStealthPayment(
		&pair.MetaAddress,
		[]byte("grant 2026-q1"),
	)
	require.NoError(t, err)

	positionID := uint64(1)
	nonce := [16]byte{0x11}
	encryptedTotal, err := cipher.EncryptU64(1000, nonce)
	require.NoError(t, err)
	encryptedClaimed, err := cipher.EncryptU64(0, nonce)
	require.NoError(t, err)

	var commitment [32]byte
	copy(commitment[:], payment.StealthAddress)
	require.NoError(t, localLedger.CreatePosition(&ledger.VestingPosition{
		ScheduleID:             1,
		PositionID:             positionID,
		BeneficiaryCommitment:  commitment,
		EncryptedTotalAmount:   encryptedTotal,
		EncryptedClaimedAmount: encryptedClaimed,
		Nonce:                  nonce,
		StartTimestamp:         time.Now().Unix() - 5000,
		IsActive:               true,
	}))

	require.NoError(t, localLedger.PublishPayment(ctx, &ledger.StealthPaymentEvent{
		StealthAddress:     [32]byte(payment.StealthAddress),
		EphemeralPublicKey: [32]byte(payment.EphemeralPublicKey),
		EncryptedPayload:   payment.EncryptedPayload,
		PositionID:         positionID,
	}))

	// Recipient side: discover the payment by scanning
	events, err := localLedger.ListPayments(ctx, 0)
	require.NoError(t, err)

	candidates := make([]*stealth.Payment, len(events))
	for i, event := range events {
		candidates[i] = &stealth.Payment{
			StealthAddress:     event.StealthAddress[:],
			EphemeralPublicKey: event.EphemeralPublicKey[:],
			EncryptedPayload:   event.EncryptedPayload,
		}
	}

	matches, err := stealth.ScanForOwnedPayments(
		ctx,
		logger,
		pair.ViewPrivateKey,
		pair.MetaAddress.SpendPublicKey,
		candidates,
	)
	require.NoError(t, err)
	require.Len(t, matches, 1)

	signer, note, err := stealth.RecoverStealthSigner(pair, matches[0])
	require.NoError(t, err)
	assert.Equal(t, []byte("grant 2026-q1"), note)

	nullifier, err := stealth.DeriveNullifier(signer.Public(), positionID)
	require.NoError(t, err)

	// Authorize once; the second attempt is a double claim
	destination := make([]byte, stealth.KeySize)
	destination[0] = 0xd5
	record, err := coordinator.Authorize(
		ctx,
		signer,
		positionID,
		nullifier,
		destination,
	)
	require.NoError(t, err)
	assert.True(t, record.IsAuthorized)

	_, err = coordinator.Authorize(ctx, signer, positionID, nullifier, destination)
	assert.ErrorIs(t, err, claim.ErrDoubleClaim)

	// Fully vested position, claiming 400 of the total 1000
	outputs, err := coordinator.RequestProcessing(ctx, &claim.ProcessingRequest{
		PositionID:  positionID,
		Nullifier:   nullifier,
		ClaimAmount: 400,
		Timeout:     time.Second,
	})
	require.NoError(t, err)
	assert.False(t, outputs.IsFullyClaimed)
	assert.Equal(
		t,
		uint64(400),
		cipher.DecryptU64(outputs.EncryptedClaimedAmount, nonce),
	)

	require.NoError(t, coordinator.ApplyCompressedUpdate(
		ctx,
		positionID,
		nullifier,
		outputs,
	))

	result, err := coordinator.Withdraw(ctx, positionID, nullifier)
	require.NoError(t, err)
	assert.Equal(t, uint64(400), result.Amount)
	assert.Equal(t, destination[0], result.Destination[0])

	_, err = coordinator.Withdraw(ctx, positionID, nullifier)
	assert.ErrorIs(t, err, claim.ErrAlreadyWithdrawn)

	// A second tranche needs a new stealth payment: the nullifier for the
	// spent one-time key is permanently used
	_, err = coordinator.Authorize(ctx, signer, positionID, nullifier, destination)
	assert.ErrorIs(t, err, claim.ErrDoubleClaim)
}
