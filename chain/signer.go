package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// ErrSignatureRejected is returned by a Signer when the user declines the
// signature request. It is recoverable: nothing has been submitted yet.
var ErrSignatureRejected = errors.New("signature request rejected")

// Signer produces signatures over typed-data digests. Wallet-backed
// implementations may block on user interaction and reject with
// ErrSignatureRejected.
type Signer interface {
	Address() common.Address
	SignHash(ctx context.Context, digest common.Hash) ([]byte, error)
}

// LocalSigner signs with an in-process ECDSA key.
type LocalSigner struct {
	key *ecdsa.PrivateKey
}

// NewLocalSigner creates a LocalSigner from a hex-encoded private key.
func NewLocalSigner(privateKeyHex string) (*LocalSigner, error) {
	key, err := crypto.HexToECDSA(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return &LocalSigner{key: key}, nil
}

// Address returns the address of the signing key.
func (s *LocalSigner) Address() common.Address {
	publicKey, _ := s.key.Public().(*ecdsa.PublicKey)
	return crypto.PubkeyToAddress(*publicKey)
}

// SignHash signs the digest and returns a 65-byte signature with the
// recovery id shifted to 27/28.
func (s *LocalSigner) SignHash(_ context.Context, digest common.Hash) ([]byte, error) {
	signature, err := crypto.Sign(digest.Bytes(), s.key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign digest: %w", err)
	}
	signature[64] += 27
	return signature, nil
}
