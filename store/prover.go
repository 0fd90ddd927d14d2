package store

import (
	"bytes"
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"
	mt "github.com/txaty/go-merkletree"

	"github.com/louissarvin/kage-sub000/types/ledger"
)

// leafBlock is one compressed account leaf: address || state hash.
type leafBlock struct {
	address   [32]byte
	stateHash [32]byte
}

func (l *leafBlock) Serialize() ([]byte, error) {
	out := make([]byte, 0, 64)
	out = append(out, l.address[:]...)
	out = append(out, l.stateHash[:]...)
	return out, nil
}

// padBlock keeps the tree at the two-leaf minimum the library requires.
type padBlock struct{}

func (padBlock) Serialize() ([]byte, error) {
	return []byte("compressed-state-pad"), nil
}

// DevProver is an in-process validity-proof service over compressed position
// state hashes. The Merkle root advances on every leaf mutation, so a proof
// held across a state change goes stale exactly like a proof against the
// external compression service.
type DevProver struct {
	mu     sync.Mutex
	leaves map[[32]byte][32]byte
}

var _ ledger.ValidityProver = (*DevProver)(nil)

func NewDevProver() *DevProver {
	return &DevProver{leaves: make(map[[32]byte][32]byte)}
}

// SetLeaf records the current state hash for a compressed account address.
func (p *DevProver) SetLeaf(address, stateHash [32]byte) {
	p.mu.Lock()
	p.leaves[address] = stateHash
	p.mu.Unlock()
}

func (p *DevProver) blocks() []mt.DataBlock {
	ordered := make([]*leafBlock, 0, len(p.leaves))
	for address, stateHash := range p.leaves {
		ordered = append(ordered, &leafBlock{address, stateHash})
	}
	sort.Slice(ordered, func(i, j int) bool {
		return bytes.Compare(ordered[i].address[:], ordered[j].address[:]) < 0
	})

	blocks := make([]mt.DataBlock, 0, len(ordered)+1)
	blocks = append(blocks, padBlock{})
	for _, leaf := range ordered {
		blocks = append(blocks, leaf)
	}
	return blocks
}

// CurrentRoot returns the root over the current leaf set.
func (p *DevProver) CurrentRoot() ([32]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	tree, err := mt.New(nil, p.blocks())
	if err != nil {
		return [32]byte{}, errors.Wrap(err, "current root")
	}

	var root [32]byte
	copy(root[:], tree.Root)
	return root, nil
}

// GetInclusionProof produces a proof for the address's current leaf against
// the current root. The proof is single-use: any subsequent leaf mutation
// invalidates it.
func (p *DevProver) GetInclusionProof(
	ctx context.Context,
	address [32]byte,
) (*ledger.InclusionProof, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "get inclusion proof")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.leaves[address]; !ok {
		return nil, errors.Wrap(
			errors.New("no leaf for address"),
			"get inclusion proof",
		)
	}

	blocks := p.blocks()
	tree, err := mt.New(nil, blocks)
	if err != nil {
		return nil, errors.Wrap(err, "get inclusion proof")
	}

	for i, block := range blocks {
		leaf, ok := block.(*leafBlock)
		if !ok || leaf.address != address {
			continue
		}

		proof := &ledger.InclusionProof{
			Proof:     tree.Proofs[i].Siblings,
			LeafIndex: uint64(tree.Proofs[i].Path),
		}
		copy(proof.Root[:], tree.Root)
		return proof, nil
	}

	return nil, errors.Wrap(
		errors.New("no leaf for address"),
		"get inclusion proof",
	)
}

// VerifyInclusion checks a proof for (address, stateHash) against the given
// root.
func (p *DevProver) VerifyInclusion(
	proof *ledger.InclusionProof,
	address [32]byte,
	stateHash [32]byte,
) (bool, error) {
	block := &leafBlock{address, stateHash}
	mtProof := &mt.Proof{
		Siblings: proof.Proof,
		Path:     uint32(proof.LeafIndex),
	}

	ok, err := mt.Verify(block, mtProof, proof.Root[:], nil)
	if err != nil {
		return false, errors.Wrap(err, "verify inclusion")
	}

	return ok, nil
}
