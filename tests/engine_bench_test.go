package tests

import (
	"fmt"
	"testing"

	"go.uber.org/zap"

	"github.com/crudolabs/crudo/pkg/auth"
	"github.com/crudolabs/crudo/pkg/book"
	"github.com/crudolabs/crudo/pkg/engine"
)

// BenchmarkEngineSubmit measures the full submit path: signature
// verification, nonce admission, matching and snapshot capture, with no-op
// persistence so the matching hot path dominates.
func BenchmarkEngineSubmit(b *testing.B) {
	log := zap.NewNop().Sugar()
	reg, err := auth.NewNonceRegistry(nil, log)
	if err != nil {
		b.Fatalf("nonce registry: %v", err)
	}
	eng := engine.New(book.New(), auth.NewAuthenticator(reg, log), engine.Config{Logger: log})

	signer, err := auth.GenerateSigner()
	if err != nil {
		b.Fatalf("signer: %v", err)
	}
	var nonce uint64
	sign := func(trader string, price, amount int64, side book.Side) engine.Submission {
		nonce++
		return engine.Submission{
			Price:     price,
			Amount:    amount,
			Side:      side,
			Trader:    trader,
			PublicKey: signer.PublicKeyHex(),
			Signature: signer.SignOrder(price, amount, side.String(), nonce, trader),
			Nonce:     nonce,
		}
	}

	// Realistic depth: 100 resting levels on each side around a 1050 mid.
	for i := int64(0); i < 100; i++ {
		maker := fmt.Sprintf("maker-%d", i)
		if _, err := eng.Submit(sign(maker, 1000-i, 100, book.Buy)); err != nil {
			b.Fatalf("prefill bid: %v", err)
		}
		if _, err := eng.Submit(sign(maker, 1100+i, 100, book.Sell)); err != nil {
			b.Fatalf("prefill ask: %v", err)
		}
	}

	// Pre-sign the benchmark flow: alternating sells and buys at the mid, so
	// each pair crosses and the book stays bounded.
	subs := make([]engine.Submission, b.N)
	for i := range subs {
		side := book.Sell
		if i%2 == 1 {
			side = book.Buy
		}
		subs[i] = sign("churner", 1050, 10, side)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := eng.Submit(subs[i]); err != nil {
			b.Fatalf("submit %d: %v", i, err)
		}
	}
}
