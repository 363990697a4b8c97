package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/cloudflare/circl/sign/ed25519"
	"github.com/ethereum/go-ethereum/common"
)

// Signer holds an ed25519 keypair on the submitter side and produces the
// hex-encoded proof material that Verify accepts.
type Signer struct {
	priv ed25519.PrivateKey
	pub  ed25519.PublicKey
}

// GenerateSigner creates a new random keypair.
func GenerateSigner() (*Signer, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return &Signer{priv: priv, pub: pub}, nil
}

// SignerFromSeedHex rebuilds a signer from a hex-encoded 32-byte seed.
// Accepts an optional 0x prefix.
func SignerFromSeedHex(seedHex string) (*Signer, error) {
	seed := common.FromHex(seedHex)
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("seed must be %d bytes of hex, got %d", ed25519.SeedSize, len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return &Signer{priv: priv, pub: priv.Public().(ed25519.PublicKey)}, nil
}

// SignOrder signs the canonical order message and returns the hex signature.
func (s *Signer) SignOrder(price, amount int64, side string, nonce uint64, trader string) string {
	msg := OrderMessage(price, amount, side, nonce, trader)
	return hex.EncodeToString(ed25519.Sign(s.priv, msg))
}

// PublicKeyHex returns the hex-encoded 32-byte public key.
func (s *Signer) PublicKeyHex() string { return hex.EncodeToString(s.pub) }

// SeedHex returns the hex-encoded private seed for later reuse.
func (s *Signer) SeedHex() string { return hex.EncodeToString(s.priv.Seed()) }
