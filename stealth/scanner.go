package stealth

import (
	"context"
	"runtime"

	"filippo.io/edwards25519"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const defaultTweakCacheSize = 4096

// Scanner determines which published payments belong to one recipient. A
// scanner is bound to a (view private key, spend public key) pair at
// construction; Scan is then safe for concurrent use.
//
// Scanning is inherently linear: without the view key no shortcut exists,
// which is the intended privacy property. Candidates are checked in
// parallel, and tweak points are cached per ephemeral public key so
// rescanning overlapping batches does not repeat the ECDH work.
type Scanner struct {
	logger   *zap.Logger
	viewPriv *edwards25519.Scalar
	spendPub *edwards25519.Point
	tweaks   *lru.Cache[[32]byte, []byte]
	workers  int
}

// NewScanner builds a scanner for the recipient identified by
// (viewPrivateKey, spendPublicKey).
func NewScanner(
	logger *zap.Logger,
	viewPrivateKey []byte,
	spendPublicKey []byte,
) (*Scanner, error) {
	viewPriv, err := scalarFromBytes(viewPrivateKey)
	if err != nil {
		return nil, errors.Wrap(err, "new scanner")
	}

	spendPub, err := pointFromBytes(spendPublicKey)
	if err != nil {
		return nil, errors.Wrap(err, "new scanner")
	}

	tweaks, err := lru.New[[32]byte, []byte](defaultTweakCacheSize)
	if err != nil {
		return nil, errors.Wrap(err, "new scanner")
	}

	return &Scanner{
		logger:   logger,
		viewPriv: viewPriv,
		spendPub: spendPub,
		tweaks:   tweaks,
		workers:  runtime.GOMAXPROCS(0),
	}, nil
}

// Scan returns the subset of candidates addressed to this scanner's
// recipient. A non-match is an expected outcome, not an error; candidates
// with undecodable keys are skipped (and logged), since published batches
// contain arbitrary third-party data. Results preserve candidate order.
func (s *Scanner) Scan(
	ctx context.Context,
	candidates []*Payment,
) ([]*Payment, error) {
	matches := make([]bool, len(candidates))

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(s.workers)

	for i, candidate := range candidates {
		i, candidate := i, candidate
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			owned, err := s.owns(candidate)
			if err != nil {
				s.logger.Debug(
					"skipping undecodable scan candidate",
					zap.Int("index", i),
					zap.Error(err),
				)
				return nil
			}

			matches[i] = owned
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, errors.Wrap(err, "scan")
	}

	owned := make([]*Payment, 0, len(candidates))
	for i, candidate := range candidates {
		if matches[i] {
			owned = append(owned, candidate)
		}
	}

	return owned, nil
}

func (s *Scanner) owns(candidate *Payment) (bool, error) {
	tweakPointBytes, err := s.tweakPoint(candidate.EphemeralPublicKey)
	if err != nil {
		return false, err
	}

	tweakPoint, err := pointFromBytes(tweakPointBytes)
	if err != nil {
		return false, err
	}

	expected := new(edwards25519.Point).Add(s.spendPub, tweakPoint)

	claimed, err := pointFromBytes(candidate.StealthAddress)
	if err != nil {
		return false, err
	}

	return expected.Equal(claimed) == 1, nil
}

func (s *Scanner) tweakPoint(ephemeralPublicKey []byte) ([]byte, error) {
	if len(ephemeralPublicKey) != KeySize {
		return nil, errors.Wrap(ErrKeyFormat, "tweak point")
	}

	var cacheKey [32]byte
	copy(cacheKey[:], ephemeralPublicKey)

	if cached, ok := s.tweaks.Get(cacheKey); ok {
		return cached, nil
	}

	ephPub, err := pointFromBytes(ephemeralPublicKey)
	if err != nil {
		return nil, err
	}

	tweak := hashToScalar(pointToSharedSecret(s.viewPriv, ephPub))
	tweakPointBytes := publicPoint(tweak).Bytes()

	s.tweaks.Add(cacheKey, tweakPointBytes)
	return tweakPointBytes, nil
}

// ScanForOwnedPayments is the one-shot form of Scanner.Scan.
func ScanForOwnedPayments(
	ctx context.Context,
	logger *zap.Logger,
	viewPrivateKey []byte,
	spendPublicKey []byte,
	candidates []*Payment,
) ([]*Payment, error) {
	scanner, err := NewScanner(logger, viewPrivateKey, spendPublicKey)
	if err != nil {
		return nil, errors.Wrap(err, "scan for owned payments")
	}

	return scanner.Scan(ctx, candidates)
}
