// Command sign-order generates an ed25519 keypair (or reuses one via
// SIGNER_SEED) and emits a signed order submission ready for POST
// /api/v1/orders.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"os"

	"github.com/crudolabs/crudo/params"
	"github.com/crudolabs/crudo/pkg/auth"
)

func main() {
	price := flag.Float64("price", 100.50, "limit price")
	amount := flag.Float64("amount", 10, "order amount")
	side := flag.String("side", "buy", "buy or sell")
	trader := flag.String("trader", "alice", "trader identity")
	nonce := flag.Uint64("nonce", 1, "strictly increasing per key")
	flag.Parse()

	if *side != "buy" && *side != "sell" {
		fmt.Fprintf(os.Stderr, "invalid side %q\n", *side)
		os.Exit(1)
	}

	var signer *auth.Signer
	var err error
	if seedHex := os.Getenv("SIGNER_SEED"); seedHex != "" {
		signer, err = auth.SignerFromSeedHex(seedHex)
		if err != nil {
			fmt.Fprintf(os.Stderr, "SIGNER_SEED: %v\n", err)
			os.Exit(1)
		}
	} else {
		signer, err = auth.GenerateSigner()
		if err != nil {
			fmt.Fprintf(os.Stderr, "keygen: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Seed (KEEP SECRET, reuse via SIGNER_SEED): %s\n", signer.SeedHex())
	}
	fmt.Printf("Public key: %s\n\n", signer.PublicKeyHex())

	cfg := params.LoadFromEnv("")
	ticks := int64(math.Round(*price * float64(cfg.Market.PriceScale)))
	lots := int64(math.Round(*amount * float64(cfg.Market.AmountScale)))

	submission := map[string]interface{}{
		"price":     *price,
		"amount":    *amount,
		"side":      *side,
		"trader":    *trader,
		"publicKey": signer.PublicKeyHex(),
		"signature": signer.SignOrder(ticks, lots, *side, *nonce, *trader),
		"nonce":     *nonce,
	}

	out, err := json.MarshalIndent(submission, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "marshal: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Signed submission:")
	fmt.Println(string(out))
	fmt.Println()
	fmt.Println("Submit with:")
	fmt.Printf("  curl -X POST http://localhost%s/api/v1/orders -d @- <<'EOF'\n%s\nEOF\n", cfg.Node.APIAddr, string(out))
}
