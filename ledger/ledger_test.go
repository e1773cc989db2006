package ledger

import (
	"context"
	"errors"
	"strings"
	"testing"

	cmttypes "github.com/cometbft/cometbft/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBroadcaster struct {
	sent []Tx
	res  *BroadcastResult
	err  error
}

func (f *fakeBroadcaster) BroadcastTxSync(_ context.Context, raw cmttypes.Tx) (*BroadcastResult, error) {
	tx, err := DecodeTx(raw)
	if err != nil {
		return nil, err
	}
	f.sent = append(f.sent, tx)
	return f.res, f.err
}

func TestCometClient_Broadcasts(t *testing.T) {
	fake := &fakeBroadcaster{res: &BroadcastResult{Hash: "ABCD"}}
	c := NewCometClientWith("http://node:26657", fake)

	r, err := c.RecordPost(t.Context(), "0x1", "hello feed")
	require.NoError(t, err)
	assert.Equal(t, Receipt{TxHash: "0xABCD", ContentHash: ContentHash("hello feed"), Mode: ModeOnChain}, r)

	_, err = c.Accuse(t.Context(), "0x1", "0x2", "")
	require.NoError(t, err)
	_, err = c.RecordPost(t.Context(), "0x1", "hello feed")
	require.NoError(t, err)

	require.Len(t, fake.sent, 3)
	assert.Equal(t, TxAccuseAgent, fake.sent[1].Type)
	assert.Equal(t, "Autonomous accusation", fake.sent[1].Reason)
	assert.NotEqual(t, fake.sent[0].Nonce, fake.sent[2].Nonce)
	assert.Equal(t, ModeOnChain, c.Mode())
	assert.Equal(t, "http://node:26657", c.Endpoint())
}

func TestCometClient_Errors(t *testing.T) {
	c := NewCometClientWith("x", &fakeBroadcaster{res: &BroadcastResult{Code: 3, Log: "unknown wallet"}})
	_, err := c.RegisterAgent(t.Context(), "0x1", "ann")
	assert.ErrorIs(t, err, ErrRejected)

	c = NewCometClientWith("x", &fakeBroadcaster{err: errors.New("connection refused")})
	_, err = c.RegisterAgent(t.Context(), "0x1", "ann")
	assert.ErrorContains(t, err, "connection refused")
}

func TestTxValidate(t *testing.T) {
	assert.NoError(t, Tx{Type: TxRegisterAgent, Wallet: "0x1", Name: "ann"}.Validate())
	assert.Error(t, Tx{Type: TxRegisterAgent, Wallet: "0x1"}.Validate())
	assert.Error(t, Tx{Type: TxRecordPost, Wallet: "0x1"}.Validate())
	assert.Error(t, Tx{Type: TxAccuseAgent, Wallet: "0x1", Target: "0x1"}.Validate())
	assert.Error(t, Tx{Type: "mint", Wallet: "0x1"}.Validate())
	assert.Error(t, Tx{Type: TxRecordPost, ContentHash: "0xff"}.Validate())
}

func TestWalletAndHash(t *testing.T) {
	w, err := NewWallet()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(w, "0x"))
	assert.Len(t, w, 42)

	h := ContentHash("gm")
	assert.Len(t, h, 66)
	assert.NotEqual(t, h, ContentHash("gn"))
	assert.Equal(t, ContentHash(""), ContentHash("empty-content"))
}

func TestLocalOnly(t *testing.T) {
	var l LocalOnly
	r, err := l.RecordPost(t.Context(), "0x1", "x")
	require.NoError(t, err)
	assert.Equal(t, ModeLocalOnly, r.Mode)
	assert.Empty(t, r.TxHash)
	assert.NotEmpty(t, r.ContentHash)
}
