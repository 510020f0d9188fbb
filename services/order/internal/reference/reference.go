// Package reference issues payment reference keys.
//
// A key is the base58 form of a freshly generated ed25519 public key: 256 bits of entropy, alphanumeric, and
// valid both as a Solana Pay reference account and as a Paystack transaction reference.
package reference

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

func (Generator) Generate() (string, error) {
	key, err := solana.NewRandomPrivateKey()
	if err != nil {
		return "", fmt.Errorf("generate reference: %w", err)
	}
	return key.PublicKey().String(), nil
}
