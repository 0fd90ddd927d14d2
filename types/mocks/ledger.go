package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/louissarvin/kage-sub000/types/ledger"
)

var _ ledger.Ledger = (*MockLedger)(nil)

// MockLedger is a minimal mock for ledger.Ledger
type MockLedger struct {
	mock.Mock
}

// SubmitAuthorization implements ledger.Ledger.
func (m *MockLedger) SubmitAuthorization(
	ctx context.Context,
	req *ledger.AuthorizationRequest,
) (*ledger.ClaimAuthorization, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.ClaimAuthorization), args.Error(1)
}

// MarkClaimProcessed implements ledger.Ledger.
func (m *MockLedger) MarkClaimProcessed(
	ctx context.Context,
	positionID uint64,
	nullifier [32]byte,
	claimAmount uint64,
	encryptedClaimedAmount [32]byte,
) error {
	args := m.Called(
		ctx,
		positionID,
		nullifier,
		claimAmount,
		encryptedClaimedAmount,
	)
	return args.Error(0)
}

// ApplyCompressedUpdate implements ledger.Ledger.
func (m *MockLedger) ApplyCompressedUpdate(
	ctx context.Context,
	req *ledger.CompressedUpdateRequest,
) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

// SubmitWithdrawal implements ledger.Ledger.
func (m *MockLedger) SubmitWithdrawal(
	ctx context.Context,
	positionID uint64,
	nullifier [32]byte,
) (*ledger.TxResult, error) {
	args := m.Called(ctx, positionID, nullifier)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.TxResult), args.Error(1)
}

// GetClaimAuthorization implements ledger.Ledger.
func (m *MockLedger) GetClaimAuthorization(
	ctx context.Context,
	positionID uint64,
	nullifier [32]byte,
) (*ledger.ClaimAuthorization, error) {
	args := m.Called(ctx, positionID, nullifier)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.ClaimAuthorization), args.Error(1)
}

// GetPosition implements ledger.Ledger.
func (m *MockLedger) GetPosition(
	ctx context.Context,
	positionID uint64,
) (*ledger.VestingPosition, error) {
	args := m.Called(ctx, positionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.VestingPosition), args.Error(1)
}

// GetSchedule implements ledger.Ledger.
func (m *MockLedger) GetSchedule(
	ctx context.Context,
	scheduleID uint64,
) (*ledger.VestingSchedule, error) {
	args := m.Called(ctx, scheduleID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.VestingSchedule), args.Error(1)
}

// PublishPayment implements ledger.Ledger.
func (m *MockLedger) PublishPayment(
	ctx context.Context,
	event *ledger.StealthPaymentEvent,
) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// ListPayments implements ledger.Ledger.
func (m *MockLedger) ListPayments(
	ctx context.Context,
	since int64,
) ([]*ledger.StealthPaymentEvent, error) {
	args := m.Called(ctx, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*ledger.StealthPaymentEvent), args.Error(1)
}

var _ ledger.ValidityProver = (*MockValidityProver)(nil)

// MockValidityProver is a minimal mock for ledger.ValidityProver
type MockValidityProver struct {
	mock.Mock
}

// GetInclusionProof implements ledger.ValidityProver.
func (m *MockValidityProver) GetInclusionProof(
	ctx context.Context,
	address [32]byte,
) (*ledger.InclusionProof, error) {
	args := m.Called(ctx, address)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.InclusionProof), args.Error(1)
}
