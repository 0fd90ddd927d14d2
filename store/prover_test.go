package store

import (
	"context"
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func leafFor(seed byte) ([32]byte, [32]byte) {
	address := sha256.Sum256([]byte{seed})
	stateHash := sha256.Sum256([]byte{seed, seed})
	return address, stateHash
}

func TestDevProver_ProofRoundTrip(t *testing.T) {
	prover := NewDevProver()

	for seed := byte(1); seed <= 5; seed++ {
		address, stateHash := leafFor(seed)
		prover.SetLeaf(address, stateHash)
	}

	address, stateHash := leafFor(3)
	proof, err := prover.GetInclusionProof(context.Background(), address)
	require.NoError(t, err)

	root, err := prover.CurrentRoot()
	require.NoError(t, err)
	assert.Equal(t, root, proof.Root)

	ok, err := prover.VerifyInclusion(proof, address, stateHash)
	require.NoError(t, err)
	assert.True(t, ok)

	// The proof does not verify for a different state hash
	_, otherHash := leafFor(4)
	ok, err = prover.VerifyInclusion(proof, address, otherHash)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDevProver_RootAdvancesOnMutation(t *testing.T) {
	prover := NewDevProver()

	address, stateHash := leafFor(1)
	prover.SetLeaf(address, stateHash)

	before, err := prover.CurrentRoot()
	require.NoError(t, err)

	_, newHash := leafFor(2)
	prover.SetLeaf(address, newHash)

	after, err := prover.CurrentRoot()
	require.NoError(t, err)
	assert.NotEqual(t, before, after)
}

func TestDevProver_UnknownLeaf(t *testing.T) {
	prover := NewDevProver()
	address, stateHash := leafFor(1)
	prover.SetLeaf(address, stateHash)

	unknown, _ := leafFor(9)
	_, err := prover.GetInclusionProof(context.Background(), unknown)
	assert.Error(t, err)
}

func TestDevProver_SingleLeaf(t *testing.T) {
	prover := NewDevProver()
	address, stateHash := leafFor(1)
	prover.SetLeaf(address, stateHash)

	proof, err := prover.GetInclusionProof(context.Background(), address)
	require.NoError(t, err)

	ok, err := prover.VerifyInclusion(proof, address, stateHash)
	require.NoError(t, err)
	assert.True(t, ok)
}
