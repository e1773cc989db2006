package simulation

import (
	"github.com/NethermindEth/masp/store"
)

func vouchKey(voucher, author string) string {
	return voucher + "->" + author
}

// vouchLocked credits author once per voucher for the lifetime of the
// engine. Authors no longer registered are not credited.
func (e *Engine) vouchLocked(voucher, author string, amount float64) {
	key := vouchKey(voucher, author)
	if e.vouches[key] {
		e.log.Economy("vouch", author, "%s already vouched, no credit", voucher)
		return
	}
	target, ok := e.registry.Get(author)
	if !ok {
		return
	}
	target.Reputation += amount
	e.vouches[key] = true
	e.writer.UpsertAgent(store.NewRecord(target))
	e.log.Economy("vouch", author, "+%.0f from %s (now %.2f)", amount, voucher, target.Reputation)
}

// HasVouched reports whether voucher has already credited author.
func (e *Engine) HasVouched(voucher, author string) bool {
	e.stateMu.RLock()
	defer e.stateMu.RUnlock()
	return e.vouches[vouchKey(voucher, author)]
}
