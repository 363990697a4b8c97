package auth

import (
	"fmt"

	"github.com/cloudflare/circl/sign/ed25519"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// messageDomain prefixes every signed order message so a signature for this
// protocol cannot double as a signature for anything else.
const messageDomain = "crudo/order/v1"

// OrderMessage builds the canonical byte message a submitter signs. It binds
// the signature to the order's economic content (price, amount, side) plus a
// strictly increasing nonce, so a captured signature cannot be replayed for a
// different order or resubmitted for the same one.
func OrderMessage(price, amount int64, side string, nonce uint64, trader string) []byte {
	return []byte(fmt.Sprintf("%s|%d|%d|%s|%d|%s", messageDomain, price, amount, side, nonce, trader))
}

// Authenticator validates that an incoming order is accompanied by proof of
// key ownership before it may affect book state. Verification is synchronous
// and bounded-time; it never fails hard on malformed input — malformed or
// wrong-length key/signature material is itself a rejection.
type Authenticator struct {
	nonces *NonceRegistry
	log    *zap.SugaredLogger
}

func NewAuthenticator(nonces *NonceRegistry, log *zap.SugaredLogger) *Authenticator {
	return &Authenticator{nonces: nonces, log: log}
}

// Verify checks an ed25519 signature over msg. Key material must decode to
// exactly 32 bytes and signature material to exactly 64 bytes; anything else
// is an automatic reject. Decode failure and verification failure surface as
// the same outcome: not admitted, log-visible only.
func (a *Authenticator) Verify(pubHex, sigHex string, msg []byte) bool {
	pub := common.FromHex(pubHex)
	sig := common.FromHex(sigHex)
	if len(pub) != ed25519.PublicKeySize {
		a.log.Warnw("order_rejected", "reason", "bad public key length", "len", len(pub))
		return false
	}
	if len(sig) != ed25519.SignatureSize {
		a.log.Warnw("order_rejected", "reason", "bad signature length", "len", len(sig))
		return false
	}
	if !ed25519.Verify(ed25519.PublicKey(pub), msg, sig) {
		a.log.Warnw("order_rejected", "reason", "signature verification failed")
		return false
	}
	return true
}

// AdmitNonce commits the nonce for the given key if it is strictly greater
// than any nonce already seen for that key. Returns false on replay.
func (a *Authenticator) AdmitNonce(pubHex string, nonce uint64) bool {
	ok := a.nonces.Admit(normalizeKey(pubHex), nonce)
	if !ok {
		a.log.Warnw("order_rejected", "reason", "nonce replayed", "nonce", nonce)
	}
	return ok
}
