// Package mempool is the node side transaction pool. It pairs the pool of
// unconfirmed transactions with the reorg pool of recently published ones and
// keeps both consistent as blocks are published and reorganized.
package mempool

import (
	"fmt"
	"sync"

	"github.com/kaspanet/reorgkeeper/domain/model/externalapi"
	"github.com/kaspanet/reorgkeeper/domain/reorgpool"
	"github.com/kaspanet/reorgkeeper/domain/utils/hashing"
)

// TxStorageResponse reports where a transaction is held
type TxStorageResponse uint8

// The possible storage locations of a transaction
const (
	NotStored TxStorageResponse = iota
	UnconfirmedPool
	ReorgPool
)

var txStorageResponseStrings = map[TxStorageResponse]string{
	NotStored:       "NotStored",
	UnconfirmedPool: "UnconfirmedPool",
	ReorgPool:       "ReorgPool",
}

func (r TxStorageResponse) String() string {
	if s, ok := txStorageResponseStrings[r]; ok {
		return s
	}
	return fmt.Sprintf("Unknown TxStorageResponse (%d)", uint8(r))
}

// Stats holds the transaction counts of both pools
type Stats struct {
	UnconfirmedTransactions int
	ReorgTransactions       int
}

// Mempool guards the unconfirmed pool and the reorg pool behind a single
// read-write lock. Writes are exclusive, reads are shared.
type Mempool struct {
	mtx         sync.RWMutex
	config      *Config
	unconfirmed *unconfirmedPool
	reorgPool   *reorgpool.ReorgPool
}

// New returns a new, empty Mempool
func New(config *Config) *Mempool {
	return &Mempool{
		config:      config,
		unconfirmed: newUnconfirmedPool(),
		reorgPool:   reorgpool.New(config.ReorgPool),
	}
}

// InsertTransaction adds tx to the unconfirmed pool. Duplicates and
// transactions spending an input already spent by a pooled transaction are
// rejected with a RuleError.
func (mp *Mempool) InsertTransaction(tx *externalapi.DomainTransaction) error {
	mp.mtx.Lock()
	defer mp.mtx.Unlock()

	return mp.insertTransaction(tx)
}

// this function MUST be called with the mempool mutex locked for writes
func (mp *Mempool) insertTransaction(tx *externalapi.DomainTransaction) error {
	if len(tx.Kernels) == 0 {
		return txRuleError(RejectMalformed, "transaction has no kernels")
	}
	id := hashing.TransactionID(tx)
	if mp.unconfirmed.has(id) {
		return txRuleError(RejectDuplicate, fmt.Sprintf("already have transaction %s", id))
	}
	for _, kernel := range tx.Kernels {
		if kernel.ExcessSig != nil && mp.unconfirmed.hasExcessSig(kernel.ExcessSig) {
			return txRuleError(RejectDuplicate,
				fmt.Sprintf("transaction %s reuses kernel signature %s", id, kernel.ExcessSig))
		}
	}
	if conflicting := mp.unconfirmed.doubleSpends(tx); len(conflicting) > 0 {
		return txRuleError(RejectDoubleSpend,
			fmt.Sprintf("transaction %s double spends pooled transaction %s", id, conflicting[0]))
	}
	if mp.unconfirmed.len() >= mp.config.MaximumTransactionCount {
		return txRuleError(RejectPoolFull,
			fmt.Sprintf("mempool already holds %d transactions", mp.unconfirmed.len()))
	}

	mp.unconfirmed.add(tx)
	log.Debugf("Accepted transaction %s (pool size: %d)", id, mp.unconfirmed.len())
	return nil
}

// HandlePublishedBlock removes the block's transactions and their double
// spends from the unconfirmed pool and records the block's transactions in
// the reorg pool.
func (mp *Mempool) HandlePublishedBlock(block *externalapi.DomainBlock) {
	mp.mtx.Lock()
	defer mp.mtx.Unlock()

	mp.handlePublishedBlock(block)
}

// this function MUST be called with the mempool mutex locked for writes
func (mp *Mempool) handlePublishedBlock(block *externalapi.DomainBlock) {
	published, discarded := mp.unconfirmed.removePublished(block)
	mp.reorgPool.InsertAll(block.Height(), block.Transactions)
	log.Debugf("Block %s at height %d: removed %d published and %d double spending transactions",
		hashing.BlockHash(block), block.Height(), published, discarded)
}

// HandleReorg processes a chain reorganization. Both removedBlocks and
// newBlocks are ordered tip first. Transactions of the removed blocks that are
// not double spent by the new blocks are offered back to the unconfirmed
// pool, after which the new blocks are handled as published, oldest first.
func (mp *Mempool) HandleReorg(removedBlocks, newBlocks []*externalapi.DomainBlock) {
	mp.mtx.Lock()
	defer mp.mtx.Unlock()

	restored := mp.reorgPool.RemoveReorgedTransactionsAndDiscardDoubleSpends(removedBlocks, newBlocks)
	reoffered := 0
	for _, tx := range restored {
		err := mp.insertTransaction(tx)
		if err != nil {
			log.Debugf("Restored transaction %s was not re-accepted: %s", hashing.TransactionID(tx), err)
			continue
		}
		reoffered++
	}

	for i := len(newBlocks) - 1; i >= 0; i-- {
		mp.handlePublishedBlock(newBlocks[i])
	}
	log.Infof("Reorg: %d blocks removed, %d added, %d of %d restored transactions re-accepted",
		len(removedBlocks), len(newBlocks), reoffered, len(restored))
}

// TransactionState reports which pool holds the transaction owning the given
// kernel excess signature.
func (mp *Mempool) TransactionState(sig *externalapi.ExcessSignature) TxStorageResponse {
	mp.mtx.RLock()
	defer mp.mtx.RUnlock()

	if mp.unconfirmed.hasExcessSig(sig) {
		return UnconfirmedPool
	}
	if mp.reorgPool.HasTransactionWithExcessSig(sig) {
		return ReorgPool
	}
	return NotStored
}

// UnconfirmedTransactions returns the transactions in the unconfirmed pool
func (mp *Mempool) UnconfirmedTransactions() []*externalapi.DomainTransaction {
	mp.mtx.RLock()
	defer mp.mtx.RUnlock()

	return mp.unconfirmed.transactions()
}

// ReorgPoolDigest returns the order independent digest of the reorg pool
func (mp *Mempool) ReorgPoolDigest() *externalapi.DomainHash {
	mp.mtx.RLock()
	defer mp.mtx.RUnlock()

	return mp.reorgPool.Digest()
}

// CompactReorgPool releases memory held by the reorg pool indexes
func (mp *Mempool) CompactReorgPool() {
	mp.mtx.Lock()
	defer mp.mtx.Unlock()

	mp.reorgPool.Compact()
}

// Stats returns the transaction counts of both pools
func (mp *Mempool) Stats() Stats {
	mp.mtx.RLock()
	defer mp.mtx.RUnlock()

	return Stats{
		UnconfirmedTransactions: mp.unconfirmed.len(),
		ReorgTransactions:       mp.reorgPool.Len(),
	}
}
