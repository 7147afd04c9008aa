// Package reorgpool keeps transactions that were recently published in a
// block so that they can be restored to the unconfirmed pool if that block is
// later reorganized out of the chain.
package reorgpool

import (
	"sort"

	"github.com/davecgh/go-spew/spew"
	"github.com/kaspanet/go-muhash"
	"github.com/kaspanet/reorgkeeper/domain/model/externalapi"
	"github.com/kaspanet/reorgkeeper/domain/utils/hashing"
	"github.com/kaspanet/reorgkeeper/infrastructure/logger"
)

type excessSigKey [externalapi.ExcessSignatureSize]byte

type record struct {
	key         uint64
	transaction *externalapi.DomainTransaction
	height      uint64
	excessSigs  []excessSigKey
}

type keySet map[uint64]struct{}

// ReorgPool is a pool of published transactions indexed by kernel excess
// signature and by publish height.
//
// ReorgPool is not safe for concurrent access. Callers must serialize writes
// against each other and against reads.
type ReorgPool struct {
	config *Config

	nextKey      uint64
	records      map[uint64]*record
	keysBySig    map[excessSigKey]uint64
	keysByHeight map[uint64]keySet

	multiset *muhash.MuHash
}

// Stats summarizes the contents of a ReorgPool
type Stats struct {
	TotalTransactions int
	TotalKernels      int
	TotalHeights      int
}

// New returns a new, empty ReorgPool
func New(config *Config) *ReorgPool {
	rp := &ReorgPool{config: config}
	rp.reset()
	return rp
}

func (rp *ReorgPool) reset() {
	rp.nextKey = 0
	rp.records = make(map[uint64]*record)
	rp.keysBySig = make(map[excessSigKey]uint64)
	rp.keysByHeight = make(map[uint64]keySet)
	rp.multiset = muhash.NewMuHash()
}

func excessSigKeys(tx *externalapi.DomainTransaction) []excessSigKey {
	keys := make([]excessSigKey, 0, len(tx.Kernels))
	for _, kernel := range tx.Kernels {
		if kernel.ExcessSig == nil {
			continue
		}
		keys = append(keys, kernel.ExcessSig.ByteArray())
	}
	return keys
}

// Insert adds a transaction published at the given height. Re-inserting a
// transaction whose kernel signatures are all already indexed has no effect.
// Expired records are purged afterwards in either case.
func (rp *ReorgPool) Insert(height uint64, tx *externalapi.DomainTransaction) {
	rp.insert(height, tx)
	rp.removeExpired(height)
}

// InsertAll inserts every transaction of a block published at height. The
// expiry horizon advances even when txs is empty.
func (rp *ReorgPool) InsertAll(height uint64, txs []*externalapi.DomainTransaction) {
	for _, tx := range txs {
		rp.insert(height, tx)
	}
	rp.removeExpired(height)
}

func (rp *ReorgPool) insert(height uint64, tx *externalapi.DomainTransaction) {
	sigs := excessSigKeys(tx)
	if rp.allIndexed(sigs) {
		log.Tracef("Transaction %s is already in the reorg pool", hashing.TransactionID(tx))
		return
	}

	key := rp.allocateKey()
	rec := &record{
		key:         key,
		transaction: tx,
		height:      height,
		excessSigs:  sigs,
	}
	rp.records[key] = rec
	for _, sig := range sigs {
		if _, ok := rp.keysBySig[sig]; !ok {
			rp.keysBySig[sig] = key
		}
	}
	keys, ok := rp.keysByHeight[height]
	if !ok {
		keys = keySet{}
		rp.keysByHeight[height] = keys
	}
	keys[key] = struct{}{}
	rp.multiset.Add(hashing.TransactionID(tx).ByteSlice())

	if log.Level() <= logger.LevelTrace {
		log.Tracef("Inserted transaction at height %d: %s", height, spew.Sdump(tx))
	}
}

func (rp *ReorgPool) allIndexed(sigs []excessSigKey) bool {
	for _, sig := range sigs {
		if _, ok := rp.keysBySig[sig]; !ok {
			return false
		}
	}
	return true
}

func (rp *ReorgPool) allocateKey() uint64 {
	key := rp.nextKey
	rp.nextKey++
	return key
}

func (rp *ReorgPool) removeExpired(height uint64) {
	if height < rp.config.ExpiryHeight {
		return
	}
	cutoff := height - rp.config.ExpiryHeight

	expired := 0
	for publishHeight, keys := range rp.keysByHeight {
		if publishHeight > cutoff {
			continue
		}
		for key := range keys {
			rp.removeRecord(key)
			expired++
		}
	}
	if expired > 0 {
		log.Debugf("Expired %d transactions published at or below height %d", expired, cutoff)
	}
}

func (rp *ReorgPool) removeRecord(key uint64) *record {
	rec, ok := rp.records[key]
	if !ok {
		return nil
	}
	delete(rp.records, key)
	for _, sig := range rec.excessSigs {
		if indexedKey, ok := rp.keysBySig[sig]; ok && indexedKey == key {
			delete(rp.keysBySig, sig)
		}
	}
	if keys, ok := rp.keysByHeight[rec.height]; ok {
		delete(keys, key)
		if len(keys) == 0 {
			delete(rp.keysByHeight, rec.height)
		}
	}
	rp.multiset.Remove(hashing.TransactionID(rec.transaction).ByteSlice())

	if len(rp.records) == 0 {
		rp.reset()
	}
	return rec
}

// RemoveReorgedTransactionsAndDiscardDoubleSpends handles a reorg. Pooled
// transactions that spend an input also spent by any of newBlocks are
// discarded first. Then every pooled transaction that was published in one
// of removedBlocks is removed and returned, each exactly once, so that the
// caller can offer it back to the unconfirmed pool.
func (rp *ReorgPool) RemoveReorgedTransactionsAndDiscardDoubleSpends(
	removedBlocks, newBlocks []*externalapi.DomainBlock) []*externalapi.DomainTransaction {

	for _, block := range newBlocks {
		rp.discardDoubleSpends(block)
	}

	var restored []*externalapi.DomainTransaction
	for _, block := range removedBlocks {
		for _, tx := range block.Transactions {
			for _, sig := range excessSigKeys(tx) {
				key, ok := rp.keysBySig[sig]
				if !ok {
					continue
				}
				rec := rp.removeRecord(key)
				restored = append(restored, rec.transaction)
			}
		}
	}

	log.Debugf("Reorg of %d removed and %d new blocks restored %d transactions",
		len(removedBlocks), len(newBlocks), len(restored))
	return restored
}

func (rp *ReorgPool) discardDoubleSpends(block *externalapi.DomainBlock) {
	spent := make(map[externalapi.DomainHash]struct{})
	for _, tx := range block.Transactions {
		for _, input := range tx.Inputs {
			spent[input.OutputHash] = struct{}{}
		}
	}
	if len(spent) == 0 {
		return
	}

	var doubleSpends []uint64
	for key, rec := range rp.records {
		for _, input := range rec.transaction.Inputs {
			if _, ok := spent[input.OutputHash]; ok {
				doubleSpends = append(doubleSpends, key)
				break
			}
		}
	}
	for _, key := range doubleSpends {
		rec := rp.removeRecord(key)
		log.Debugf("Discarded transaction %s: double spent in block %s",
			hashing.TransactionID(rec.transaction), hashing.BlockHash(block))
	}
}

// HasTransactionWithExcessSig returns whether a pooled transaction has a
// kernel with the given excess signature.
func (rp *ReorgPool) HasTransactionWithExcessSig(sig *externalapi.ExcessSignature) bool {
	_, ok := rp.keysBySig[sig.ByteArray()]
	return ok
}

// RetrieveByExcessSigs looks up the pooled transactions owning the given
// excess signatures. A transaction matched by several signatures is returned
// once. Signatures with no pooled transaction are returned in missing.
func (rp *ReorgPool) RetrieveByExcessSigs(sigs []*externalapi.ExcessSignature) (
	found []*externalapi.DomainTransaction, missing []*externalapi.ExcessSignature) {

	seen := make(map[uint64]struct{})
	for _, sig := range sigs {
		key, ok := rp.keysBySig[sig.ByteArray()]
		if !ok {
			missing = append(missing, sig)
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		found = append(found, rp.records[key].transaction)
	}
	return found, missing
}

// Snapshot returns all pooled transactions in insertion order
func (rp *ReorgPool) Snapshot() []*externalapi.DomainTransaction {
	keys := make([]uint64, 0, len(rp.records))
	for key := range rp.records {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	transactions := make([]*externalapi.DomainTransaction, len(keys))
	for i, key := range keys {
		transactions[i] = rp.records[key].transaction
	}
	return transactions
}

// Len returns the number of pooled transactions
func (rp *ReorgPool) Len() int {
	return len(rp.records)
}

// Compact rebuilds the backing maps. Go maps never shrink, so this releases
// memory held after a large expiry sweep.
func (rp *ReorgPool) Compact() {
	records := make(map[uint64]*record, len(rp.records))
	for key, rec := range rp.records {
		records[key] = rec
	}
	keysBySig := make(map[excessSigKey]uint64, len(rp.keysBySig))
	for sig, key := range rp.keysBySig {
		keysBySig[sig] = key
	}
	keysByHeight := make(map[uint64]keySet, len(rp.keysByHeight))
	for height, keys := range rp.keysByHeight {
		keysClone := make(keySet, len(keys))
		for key := range keys {
			keysClone[key] = struct{}{}
		}
		keysByHeight[height] = keysClone
	}

	rp.records = records
	rp.keysBySig = keysBySig
	rp.keysByHeight = keysByHeight
}

// Clear removes every transaction from the pool
func (rp *ReorgPool) Clear() {
	log.Debugf("Clearing %d transactions from the reorg pool", len(rp.records))
	rp.reset()
}

// Stats returns a summary of the pool contents
func (rp *ReorgPool) Stats() Stats {
	stats := Stats{
		TotalTransactions: len(rp.records),
		TotalHeights:      len(rp.keysByHeight),
	}
	for _, rec := range rp.records {
		stats.TotalKernels += len(rec.transaction.Kernels)
	}
	return stats
}

// Digest returns an order independent commitment to the set of pooled
// transaction ids. Two pools holding the same transactions have equal
// digests regardless of insertion history.
func (rp *ReorgPool) Digest() *externalapi.DomainHash {
	finalized := rp.multiset.Finalize()
	return externalapi.NewDomainHashFromByteArray(finalized.AsArray())
}
