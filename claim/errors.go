package claim

import "github.com/pkg/errors"

var (
	// ErrDoubleClaim means the nullifier was already registered. Final: a
	// second authorize with the same nullifier must never be retried.
	ErrDoubleClaim = errors.New("nullifier already registered")

	// ErrAlreadyWithdrawn is the terminal-state violation. Final.
	ErrAlreadyWithdrawn = errors.New("claim already withdrawn")

	// ErrComputationTimeout means the MPC callback was not observed within
	// the caller-supplied bound. Retryable: state stays Authorized and the
	// ledger's nullifier guard prevents double effects.
	ErrComputationTimeout = errors.New("computation result not observed within bound")

	// ErrStaleProof means the validity proof was rejected because the tree
	// root advanced. Retryable with a freshly fetched proof.
	ErrStaleProof = errors.New("validity proof rejected, tree root advanced")

	// ErrOutOfOrder means a lifecycle operation was attempted out of order.
	// Rejected locally, before any external collaborator is contacted.
	ErrOutOfOrder = errors.New("claim state transition out of order")
)
