// Package ledger mirrors engine actions to an append-only reputation record.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
)

const (
	ModeLocalOnly = "local-only"
	ModeOnChain   = "onchain"
)

// ErrRejected is returned when the ledger refuses a transaction.
var ErrRejected = errors.New("ledger rejected transaction")

// Receipt identifies a ledger write. Mode is ModeLocalOnly when nothing was sent.
type Receipt struct {
	TxHash      string `json:"tx_hash,omitempty"`
	ContentHash string `json:"content_hash,omitempty"`
	Mode        string `json:"mode"`
}

// Client is the engine's view of the ledger.
type Client interface {
	RegisterAgent(ctx context.Context, wallet, name string) (Receipt, error)
	RecordPost(ctx context.Context, wallet, content string) (Receipt, error)
	Accuse(ctx context.Context, accuserWallet, targetWallet, reason string) (Receipt, error)
	// Mode reports ModeOnChain or ModeLocalOnly.
	Mode() string
	// Endpoint is the configured RPC address, empty when local-only.
	Endpoint() string
}

// ContentHash returns the keccak256 hex digest of content.
func ContentHash(content string) string {
	if content == "" {
		content = "empty-content"
	}
	return crypto.Keccak256Hash([]byte(content)).Hex()
}

// NewWallet generates a fresh secp256k1 key and returns its address.
func NewWallet() (string, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return "", fmt.Errorf("generate wallet key: %w", err)
	}
	return crypto.PubkeyToAddress(key.PublicKey).Hex(), nil
}

// LocalOnly is used when no ledger is configured.
type LocalOnly struct{}

func (LocalOnly) RegisterAgent(context.Context, string, string) (Receipt, error) {
	return Receipt{Mode: ModeLocalOnly}, nil
}

func (LocalOnly) RecordPost(_ context.Context, _ string, content string) (Receipt, error) {
	return Receipt{ContentHash: ContentHash(content), Mode: ModeLocalOnly}, nil
}

func (LocalOnly) Accuse(context.Context, string, string, string) (Receipt, error) {
	return Receipt{Mode: ModeLocalOnly}, nil
}

func (LocalOnly) Mode() string     { return ModeLocalOnly }
func (LocalOnly) Endpoint() string { return "" }
