package ledger

import (
	"context"
	"fmt"

	rpchttp "github.com/cometbft/cometbft/rpc/client/http"
	cmttypes "github.com/cometbft/cometbft/types"
	"github.com/google/uuid"
)

// Broadcaster is the subset of the CometBFT RPC client used here.
type Broadcaster interface {
	BroadcastTxSync(ctx context.Context, tx cmttypes.Tx) (*BroadcastResult, error)
}

// BroadcastResult is the part of a CheckTx response the client inspects.
type BroadcastResult struct {
	Code uint32
	Log  string
	Hash string
}

// rpcBroadcaster adapts the CometBFT HTTP client.
type rpcBroadcaster struct {
	client *rpchttp.HTTP
}

func (b rpcBroadcaster) BroadcastTxSync(ctx context.Context, tx cmttypes.Tx) (*BroadcastResult, error) {
	res, err := b.client.BroadcastTxSync(ctx, tx)
	if err != nil {
		return nil, err
	}
	return &BroadcastResult{Code: res.Code, Log: res.Log, Hash: res.Hash.String()}, nil
}

// CometClient writes ledger transactions to a CometBFT node running the
// reputation application.
type CometClient struct {
	remote string
	rpc    Broadcaster
}

// NewCometClientWith builds a client over an existing broadcaster.
func NewCometClientWith(remote string, rpc Broadcaster) *CometClient {
	return &CometClient{remote: remote, rpc: rpc}
}

// NewCometClient connects to the node RPC at remote, e.g. http://127.0.0.1:26657.
func NewCometClient(remote string) (*CometClient, error) {
	c, err := rpchttp.New(remote, "/websocket")
	if err != nil {
		return nil, fmt.Errorf("create cometbft rpc client: %w", err)
	}
	return &CometClient{remote: remote, rpc: rpcBroadcaster{client: c}}, nil
}

func (c *CometClient) broadcast(ctx context.Context, tx Tx) (Receipt, error) {
	tx.Nonce = uuid.NewString()
	bz, err := tx.Encode()
	if err != nil {
		return Receipt{}, err
	}
	res, err := c.rpc.BroadcastTxSync(ctx, cmttypes.Tx(bz))
	if err != nil {
		return Receipt{}, fmt.Errorf("broadcast %s: %w", tx.Type, err)
	}
	if res.Code != 0 {
		return Receipt{}, fmt.Errorf("%w: %s (code %d)", ErrRejected, res.Log, res.Code)
	}
	return Receipt{TxHash: "0x" + res.Hash, ContentHash: tx.ContentHash, Mode: ModeOnChain}, nil
}

func (c *CometClient) RegisterAgent(ctx context.Context, wallet, name string) (Receipt, error) {
	return c.broadcast(ctx, Tx{Type: TxRegisterAgent, Wallet: wallet, Name: name})
}

func (c *CometClient) RecordPost(ctx context.Context, wallet, content string) (Receipt, error) {
	return c.broadcast(ctx, Tx{Type: TxRecordPost, Wallet: wallet, ContentHash: ContentHash(content)})
}

func (c *CometClient) Accuse(ctx context.Context, accuserWallet, targetWallet, reason string) (Receipt, error) {
	if reason == "" {
		reason = "Autonomous accusation"
	}
	return c.broadcast(ctx, Tx{Type: TxAccuseAgent, Wallet: accuserWallet, Target: targetWallet, Reason: reason})
}

func (c *CometClient) Mode() string     { return ModeOnChain }
func (c *CometClient) Endpoint() string { return c.remote }
