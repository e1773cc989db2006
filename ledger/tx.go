package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
)

// TxType names a ledger transaction
type TxType string

const (
	TxRegisterAgent TxType = "register_agent"
	TxRecordPost    TxType = "record_post"
	TxAccuseAgent   TxType = "accuse_agent"
)

// Tx is the JSON payload broadcast to the reputation application.
type Tx struct {
	Type        TxType `json:"type"`
	Wallet      string `json:"wallet"`
	Name        string `json:"name,omitempty"`
	ContentHash string `json:"content_hash,omitempty"`
	Target      string `json:"target,omitempty"`
	Reason      string `json:"reason,omitempty"`
	// Nonce keeps otherwise identical transactions distinct in the mempool.
	Nonce string `json:"nonce"`
}

// Encode serializes tx.
func (tx Tx) Encode() ([]byte, error) {
	return json.Marshal(tx)
}

// DecodeTx parses and validates raw transaction bytes.
func DecodeTx(raw []byte) (Tx, error) {
	var tx Tx
	if err := json.Unmarshal(raw, &tx); err != nil {
		return Tx{}, fmt.Errorf("decode tx: %w", err)
	}
	return tx, tx.Validate()
}

// Validate checks the fields required by each transaction type.
func (tx Tx) Validate() error {
	if tx.Wallet == "" {
		return errors.New("tx wallet is required")
	}
	switch tx.Type {
	case TxRegisterAgent:
		if tx.Name == "" {
			return errors.New("register_agent requires name")
		}
	case TxRecordPost:
		if tx.ContentHash == "" {
			return errors.New("record_post requires content_hash")
		}
	case TxAccuseAgent:
		if tx.Target == "" {
			return errors.New("accuse_agent requires target")
		}
		if tx.Target == tx.Wallet {
			return errors.New("accuse_agent target must differ from wallet")
		}
	default:
		return fmt.Errorf("unknown tx type %q", tx.Type)
	}
	return nil
}
