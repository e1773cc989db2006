// Package abci implements the reputation ledger as a CometBFT application.
// The engine's ledger.CometClient broadcasts transactions to a node running it.
package abci

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sync"

	types "github.com/cometbft/cometbft/abci/types"

	"github.com/NethermindEth/masp/ledger"
	"github.com/NethermindEth/masp/logger"
)

const (
	CodeOK         uint32 = 0
	CodeInvalidTx  uint32 = 1
	CodeUnknownKey uint32 = 2

	QueryAgent = "/agent"
	QueryStats = "/stats"
)

// AgentRecord is the on-ledger view of one wallet
type AgentRecord struct {
	Name                string `json:"name"`
	Registered          bool   `json:"registered"`
	Posts               int64  `json:"posts"`
	AccusationsMade     int64  `json:"accusations_made"`
	AccusationsReceived int64  `json:"accusations_received"`
	LastContentHash     string `json:"last_content_hash,omitempty"`
}

// Stats are chain-wide totals
type Stats struct {
	Agents      int   `json:"agents"`
	Posts       int64 `json:"posts"`
	Accusations int64 `json:"accusations"`
	Height      int64 `json:"height"`
}

type Application struct {
	types.BaseApplication

	chainID string
	log     *logger.Logger

	mu      sync.RWMutex
	agents  map[string]*AgentRecord
	height  int64
	appHash []byte
}

func NewApplication(chainID string, log *logger.Logger) *Application {
	if log == nil {
		log = logger.Nop()
	}
	return &Application{
		chainID: chainID,
		log:     log,
		agents:  make(map[string]*AgentRecord),
	}
}

func (app *Application) Info(_ context.Context, _ *types.RequestInfo) (*types.ResponseInfo, error) {
	app.mu.RLock()
	defer app.mu.RUnlock()
	return &types.ResponseInfo{
		Data:             "MASP reputation ledger",
		Version:          "1.0.0",
		AppVersion:       1,
		LastBlockHeight:  app.height,
		LastBlockAppHash: app.appHash,
	}, nil
}

func (app *Application) Query(_ context.Context, req *types.RequestQuery) (*types.ResponseQuery, error) {
	app.mu.RLock()
	defer app.mu.RUnlock()

	switch req.Path {
	case QueryAgent:
		rec, ok := app.agents[string(req.Data)]
		if !ok {
			return &types.ResponseQuery{Code: CodeUnknownKey, Log: "unknown wallet", Height: app.height}, nil
		}
		bz, _ := json.Marshal(rec)
		return &types.ResponseQuery{Code: CodeOK, Key: req.Data, Value: bz, Height: app.height}, nil
	case QueryStats:
		bz, _ := json.Marshal(app.statsLocked())
		return &types.ResponseQuery{Code: CodeOK, Value: bz, Height: app.height}, nil
	}
	return &types.ResponseQuery{Code: CodeInvalidTx, Log: fmt.Sprintf("unknown query path %q", req.Path)}, nil
}

func (app *Application) CheckTx(_ context.Context, req *types.RequestCheckTx) (*types.ResponseCheckTx, error) {
	if _, err := ledger.DecodeTx(req.Tx); err != nil {
		return &types.ResponseCheckTx{Code: CodeInvalidTx, Log: err.Error()}, nil
	}
	return &types.ResponseCheckTx{Code: CodeOK}, nil
}

func (app *Application) FinalizeBlock(_ context.Context, req *types.RequestFinalizeBlock) (*types.ResponseFinalizeBlock, error) {
	app.mu.Lock()
	defer app.mu.Unlock()

	results := make([]*types.ExecTxResult, len(req.Txs))
	for i, raw := range req.Txs {
		results[i] = app.deliverLocked(raw)
	}
	app.height = req.Height
	app.appHash = app.hashLocked()

	app.log.Ledger("FinalizeBlock", "height %d: %d txs", req.Height, len(req.Txs))
	return &types.ResponseFinalizeBlock{TxResults: results, AppHash: app.appHash}, nil
}

func (app *Application) Commit(_ context.Context, _ *types.RequestCommit) (*types.ResponseCommit, error) {
	return &types.ResponseCommit{}, nil
}

func (app *Application) deliverLocked(raw []byte) *types.ExecTxResult {
	tx, err := ledger.DecodeTx(raw)
	if err != nil {
		return &types.ExecTxResult{Code: CodeInvalidTx, Log: err.Error()}
	}

	rec := app.recordLocked(tx.Wallet)
	switch tx.Type {
	case ledger.TxRegisterAgent:
		rec.Name = tx.Name
		rec.Registered = true
	case ledger.TxRecordPost:
		rec.Posts++
		rec.LastContentHash = tx.ContentHash
	case ledger.TxAccuseAgent:
		rec.AccusationsMade++
		app.recordLocked(tx.Target).AccusationsReceived++
	}

	attrs := []types.EventAttribute{{Key: "wallet", Value: tx.Wallet, Index: true}}
	if tx.Target != "" {
		attrs = append(attrs, types.EventAttribute{Key: "target", Value: tx.Target, Index: true})
	}
	return &types.ExecTxResult{
		Code:   CodeOK,
		Events: []types.Event{{Type: "masp." + string(tx.Type), Attributes: attrs}},
	}
}

func (app *Application) recordLocked(wallet string) *AgentRecord {
	rec, ok := app.agents[wallet]
	if !ok {
		rec = &AgentRecord{}
		app.agents[wallet] = rec
	}
	return rec
}

// hashLocked digests the full state; map keys marshal in sorted order.
func (app *Application) hashLocked() []byte {
	bz, _ := json.Marshal(app.agents)
	sum := sha256.Sum256(bz)
	return sum[:]
}

func (app *Application) statsLocked() Stats {
	s := Stats{Agents: len(app.agents), Height: app.height}
	for _, rec := range app.agents {
		s.Posts += rec.Posts
		s.Accusations += rec.AccusationsMade
	}
	return s
}

// Agent returns a copy of the record for wallet.
func (app *Application) Agent(wallet string) (AgentRecord, bool) {
	app.mu.RLock()
	defer app.mu.RUnlock()
	rec, ok := app.agents[wallet]
	if !ok {
		return AgentRecord{}, false
	}
	return *rec, true
}
