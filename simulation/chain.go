package simulation

import (
	"context"

	"github.com/NethermindEth/masp/communication"
	"github.com/NethermindEth/masp/core"
	"github.com/NethermindEth/masp/ledger"
)

// Chain event actions
const (
	ChainRegisterAgent = "REGISTER_AGENT"
	ChainRecordPost    = "RECORD_POST"
	ChainAccuseAgent   = "ACCUSE_AGENT"
)

// ChainProof is the recent ledger activity
type ChainProof struct {
	Mode          string            `json:"chain_mode"`
	RPCConfigured bool              `json:"rpc_configured"`
	Endpoint      string            `json:"endpoint,omitempty"`
	Events        []core.ChainEvent `json:"recent_transactions"`
}

// ChainProof returns up to limit chain events, newest first. limit is
// clamped to [1, 200]; zero means the default of 50.
func (e *Engine) ChainProof(limit int) ChainProof {
	limit = clampLimit(limit)

	e.stateMu.RLock()
	defer e.stateMu.RUnlock()

	n := len(e.chainEvents)
	if limit > n {
		limit = n
	}
	events := make([]core.ChainEvent, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		events = append(events, e.chainEvents[i])
	}
	return ChainProof{
		Mode:          e.ledger.Mode(),
		RPCConfigured: e.ledger.Endpoint() != "",
		Endpoint:      e.ledger.Endpoint(),
		Events:        events,
	}
}

func clampLimit(limit int) int {
	switch {
	case limit == 0:
		return DefaultFeedPage
	case limit < 1:
		return 1
	case limit > MaxFeedPage:
		return MaxFeedPage
	}
	return limit
}

// The ledger calls below run on a single background worker so the step
// never waits on the network. Failures are logged and dropped.

func (e *Engine) mirrorRegistration(name, wallet string) {
	e.chainQ.Submit(func() {
		ctx, cancel := context.WithTimeout(context.Background(), ledgerCallTimeout)
		defer cancel()
		rcpt, err := e.ledger.RegisterAgent(ctx, wallet, name)
		if err != nil {
			e.log.Error("ledger register "+name, "%v", err)
			return
		}
		e.recordReceipt(ChainRegisterAgent, name, "", 0, rcpt)
	})
}

func (e *Engine) mirrorPost(entry core.FeedEntry) {
	e.chainQ.Submit(func() {
		ctx, cancel := context.WithTimeout(context.Background(), ledgerCallTimeout)
		defer cancel()
		rcpt, err := e.ledger.RecordPost(ctx, entry.Wallet, entry.Content)
		if err != nil {
			e.log.Error("ledger record post", "entry %d: %v", entry.ID, err)
			return
		}
		e.recordReceipt(ChainRecordPost, entry.Agent, "", entry.ID, rcpt)
	})
}

func (e *Engine) mirrorAccusation(entry core.FeedEntry, targetWallet, reason string) {
	e.chainQ.Submit(func() {
		ctx, cancel := context.WithTimeout(context.Background(), ledgerCallTimeout)
		defer cancel()
		rcpt, err := e.ledger.Accuse(ctx, entry.Wallet, targetWallet, reason)
		if err != nil {
			e.log.Error("ledger accuse", "entry %d: %v", entry.ID, err)
			return
		}
		e.recordReceipt(ChainAccuseAgent, entry.Agent, entry.Target, entry.ID, rcpt)
	})
}

// recordReceipt stamps the feed entry and logs a chain event. Local-only
// receipts carry no transaction and are not recorded.
func (e *Engine) recordReceipt(action, agentName, target string, entryID int64, rcpt ledger.Receipt) {
	if rcpt.TxHash == "" {
		return
	}
	ev := core.ChainEvent{
		Action:      action,
		Agent:       agentName,
		Target:      target,
		FeedEntryID: entryID,
		TxHash:      rcpt.TxHash,
		ContentHash: rcpt.ContentHash,
		Mode:        rcpt.Mode,
		Timestamp:   e.clock.Now().UTC(),
	}

	e.stateMu.Lock()
	if entryID != 0 {
		for _, p := range e.feed {
			if p.ID == entryID {
				p.ChainTxHash = rcpt.TxHash
				p.ChainContentHash = rcpt.ContentHash
				e.writer.UpdateFeedCounters(*p)
				break
			}
		}
	}
	e.chainEvents = append(e.chainEvents, ev)
	if len(e.chainEvents) > MaxChainEvents {
		e.chainEvents = append([]core.ChainEvent(nil), e.chainEvents[len(e.chainEvents)-MaxChainEvents:]...)
	}
	e.stateMu.Unlock()

	e.log.Ledger(action, "%s tx=%s", agentName, rcpt.TxHash)
	e.events.Publish(communication.EventChainTx, ev)
}

// FlushLedger waits for queued ledger writes to finish.
func (e *Engine) FlushLedger() {
	e.chainQ.Wait()
}
