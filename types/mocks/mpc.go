package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/louissarvin/kage-sub000/types/mpc"
)

var _ mpc.Service = (*MockMPCService)(nil)

// MockMPCService is a minimal mock for mpc.Service
type MockMPCService struct {
	mock.Mock
}

// QueueComputation implements mpc.Service.
func (m *MockMPCService) QueueComputation(
	ctx context.Context,
	inputs *mpc.ProcessClaimInputs,
) (mpc.ComputationHandle, error) {
	args := m.Called(ctx, inputs)
	return args.Get(0).(mpc.ComputationHandle), args.Error(1)
}

// AwaitResult implements mpc.Service.
func (m *MockMPCService) AwaitResult(
	ctx context.Context,
	handle mpc.ComputationHandle,
	timeout time.Duration,
) (*mpc.ProcessClaimOutputs, error) {
	args := m.Called(ctx, handle, timeout)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*mpc.ProcessClaimOutputs), args.Error(1)
}

var _ mpc.InputCipher = (*MockInputCipher)(nil)

// MockInputCipher is a minimal mock for mpc.InputCipher
type MockInputCipher struct {
	mock.Mock
}

// EncryptU64 implements mpc.InputCipher.
func (m *MockInputCipher) EncryptU64(
	value uint64,
	nonce [16]byte,
) ([32]byte, error) {
	args := m.Called(value, nonce)
	return args.Get(0).([32]byte), args.Error(1)
}
