package wallet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gagliardetto/solana-go"
)

// ErrSigningRejected is returned when the signer declines to sign a
// transaction. Callers treat it as a normal terminal failure of the workflow,
// not a crash: nothing has reached the network at that point.
var ErrSigningRejected = errors.New("signing rejected")

// ErrNotConnected is returned by Sign when the signer has not been connected.
var ErrNotConnected = errors.New("signer not connected")

// Signer is the external signing oracle. The core never accesses private key
// material; it hands an assembled transaction to the signer and receives it
// back with the signer's signature appended. Any locally required partial
// signatures must already be applied before Sign is called, since the signer
// only appends its own signature.
type Signer interface {
	// Connect establishes the signing session.
	Connect(ctx context.Context) error

	// Disconnect tears down the signing session.
	Disconnect() error

	// PublicKey returns the signer's address. Valid only after Connect.
	PublicKey() solana.PublicKey

	// Sign appends the signer's signature to the transaction and returns it.
	// A user refusal surfaces as ErrSigningRejected.
	Sign(ctx context.Context, tx *solana.Transaction) (*solana.Transaction, error)
}

// KeypairSigner signs with a keypair loaded from a solana-keygen file.
// It is used by the CLI and server; browser wallets are a different Signer
// implementation living outside this module.
type KeypairSigner struct {
	path      string
	key       solana.PrivateKey
	connected bool
	logger    *slog.Logger
}

// NewKeypairSigner creates a signer backed by the keypair file at path.
// The file is not read until Connect.
func NewKeypairSigner(path string, logger *slog.Logger) *KeypairSigner {
	return &KeypairSigner{
		path:   path,
		logger: logger,
	}
}

// Connect loads the keypair from disk.
func (s *KeypairSigner) Connect(ctx context.Context) error {
	key, err := solana.PrivateKeyFromSolanaKeygenFile(s.path)
	if err != nil {
		return fmt.Errorf("failed to load keypair from %s: %w", s.path, err)
	}
	s.key = key
	s.connected = true
	s.logger.Info("signer connected", "address", key.PublicKey().String())
	return nil
}

// Disconnect drops the loaded key.
func (s *KeypairSigner) Disconnect() error {
	s.key = nil
	s.connected = false
	return nil
}

// PublicKey returns the signer's address.
func (s *KeypairSigner) PublicKey() solana.PublicKey {
	if !s.connected {
		return solana.PublicKey{}
	}
	return s.key.PublicKey()
}

// Sign appends this keypair's signature. Signatures already present on the
// transaction (partial signers such as a fresh mint identity) are preserved.
func (s *KeypairSigner) Sign(ctx context.Context, tx *solana.Transaction) (*solana.Transaction, error) {
	if !s.connected {
		return nil, ErrNotConnected
	}

	if _, err := tx.PartialSign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(s.key.PublicKey()) {
			return &s.key
		}
		return nil
	}); err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}

	return tx, nil
}
