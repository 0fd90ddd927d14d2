// Package devmpc is an in-process stand-in for the external MPC cluster. It
// implements the claim circuit over masked ciphertexts so the coordinator's
// queue/await contract, timeout behavior, and output application can be
// exercised without a cluster. Amounts never appear in any exported surface.
package devmpc

import (
	"context"
	"encoding/binary"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/crypto/sha3"

	"github.com/louissarvin/kage-sub000/claim"
	"github.com/louissarvin/kage-sub000/types/mpc"
)

// Cipher masks u64 values under a shared cluster key. The mask is derived
// from the key and nonce only, so any holder of the key can strip it; this
// models the cluster-shared encryption of the real service, not a secure
// scheme.
type Cipher struct {
	key [32]byte
}

var _ mpc.InputCipher = (*Cipher)(nil)

func NewCipher(key [32]byte) *Cipher {
	return &Cipher{key: key}
}

func (c *Cipher) mask(nonce [16]byte) [32]byte {
	preimage := make([]byte, 0, 48)
	preimage = append(preimage, c.key[:]...)
	preimage = append(preimage, nonce[:]...)
	return sha3.Sum256(preimage)
}

// EncryptU64 masks a value into a 32-byte ciphertext bound to the nonce.
func (c *Cipher) EncryptU64(value uint64, nonce [16]byte) ([32]byte, error) {
	mask := c.mask(nonce)

	var ciphertext [32]byte
	copy(ciphertext[:], mask[:])
	binary.LittleEndian.PutUint64(
		ciphertext[:8],
		value^binary.LittleEndian.Uint64(mask[:8]),
	)
	return ciphertext, nil
}

// DecryptU64 strips the mask from a ciphertext produced with the same nonce.
func (c *Cipher) DecryptU64(ciphertext [32]byte, nonce [16]byte) uint64 {
	mask := c.mask(nonce)
	return binary.LittleEndian.Uint64(ciphertext[:8]) ^
		binary.LittleEndian.Uint64(mask[:8])
}

type computation struct {
	done    chan struct{}
	outputs *mpc.ProcessClaimOutputs
	err     error
}

// Service implements the MPC collaborator interface. Results are delivered
// asynchronously after a configurable delay and stay retrievable under
// their handle, so an abandoned wait can be resumed.
type Service struct {
	logger *zap.Logger
	cipher *Cipher
	delay  time.Duration

	mu           sync.Mutex
	computations map[mpc.ComputationHandle]*computation
}

var _ mpc.Service = (*Service)(nil)

func NewService(logger *zap.Logger, cipher *Cipher, delay time.Duration) *Service {
	return &Service{
		logger:       logger,
		cipher:       cipher,
		delay:        delay,
		computations: make(map[mpc.ComputationHandle]*computation),
	}
}

// QueueComputation runs the claim circuit: claimable is the vested fraction
// of the total minus what was already claimed, and the requested claim must
// not exceed it. The updated claimed amount is re-encrypted under the same
// nonce.
func (s *Service) QueueComputation(
	ctx context.Context,
	inputs *mpc.ProcessClaimInputs,
) (mpc.ComputationHandle, error) {
	if inputs == nil {
		return "", errors.Wrap(mpc.ErrInvalidInputs, "queue computation")
	}

	handle := mpc.ComputationHandle(uuid.New().String())
	comp := &computation{done: make(chan struct{})}

	s.mu.Lock()
	s.computations[handle] = comp
	s.mu.Unlock()

	nonce := inputs.Nonce
	total := s.cipher.DecryptU64(inputs.EncryptedTotalAmount, nonce)
	claimed := s.cipher.DecryptU64(inputs.EncryptedClaimedAmount, nonce)
	numerator := s.cipher.DecryptU64(inputs.EncryptedVestingNumerator, nonce)
	claimAmount := s.cipher.DecryptU64(inputs.EncryptedClaimAmount, nonce)

	go func() {
		if s.delay > 0 {
			time.Sleep(s.delay)
		}

		// Split the multiply to stay within u64 for large totals.
		vested := (total/claim.Precision)*numerator +
			(total%claim.Precision)*numerator/claim.Precision
		var claimable uint64
		if vested > claimed {
			claimable = vested - claimed
		}

		if claimAmount > claimable {
			comp.err = mpc.ErrAborted
			close(comp.done)
			return
		}

		newClaimed := claimed + claimAmount
		encrypted, err := s.cipher.EncryptU64(newClaimed, nonce)
		if err != nil {
			comp.err = err
			close(comp.done)
			return
		}

		comp.outputs = &mpc.ProcessClaimOutputs{
			EncryptedClaimedAmount: encrypted,
			IsFullyClaimed:         newClaimed >= total,
		}
		close(comp.done)
	}()

	s.logger.Debug(
		"computation queued",
		zap.String("handle", string(handle)),
	)

	return handle, nil
}

// AwaitResult blocks until the computation completes, the timeout elapses,
// or the context is cancelled. Abandoning the wait leaves the result
// retrievable under the same handle.
func (s *Service) AwaitResult(
	ctx context.Context,
	handle mpc.ComputationHandle,
	timeout time.Duration,
) (*mpc.ProcessClaimOutputs, error) {
	s.mu.Lock()
	comp, ok := s.computations[handle]
	s.mu.Unlock()

	if !ok {
		return nil, errors.Wrap(mpc.ErrUnknownHandle, "await result")
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-comp.done:
		if comp.err != nil {
			return nil, errors.Wrap(comp.err, "await result")
		}
		return comp.outputs, nil
	case <-timer.C:
		return nil, errors.Wrap(mpc.ErrResultTimeout, "await result")
	case <-ctx.Done():
		return nil, errors.Wrap(ctx.Err(), "await result")
	}
}
