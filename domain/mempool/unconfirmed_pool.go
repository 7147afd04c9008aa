package mempool

import (
	"github.com/kaspanet/reorgkeeper/domain/model/externalapi"
	"github.com/kaspanet/reorgkeeper/domain/utils/hashing"
)

type idToTransaction map[externalapi.DomainHash]*externalapi.DomainTransaction
type outputHashToID map[externalapi.DomainHash]externalapi.DomainHash
type excessSigToID map[[externalapi.ExcessSignatureSize]byte]externalapi.DomainHash

// unconfirmedPool holds transactions that were accepted but not yet published
// in a block. It must be accessed with the mempool mutex held.
type unconfirmedPool struct {
	allTransactions idToTransaction
	spentBy         outputHashToID
	byExcessSig     excessSigToID
}

func newUnconfirmedPool() *unconfirmedPool {
	return &unconfirmedPool{
		allTransactions: idToTransaction{},
		spentBy:         outputHashToID{},
		byExcessSig:     excessSigToID{},
	}
}

func (up *unconfirmedPool) len() int {
	return len(up.allTransactions)
}

func (up *unconfirmedPool) has(id *externalapi.DomainHash) bool {
	_, ok := up.allTransactions[*id]
	return ok
}

func (up *unconfirmedPool) hasExcessSig(sig *externalapi.ExcessSignature) bool {
	_, ok := up.byExcessSig[sig.ByteArray()]
	return ok
}

// doubleSpends returns the ids of pooled transactions that spend any of the
// inputs of tx.
func (up *unconfirmedPool) doubleSpends(tx *externalapi.DomainTransaction) []externalapi.DomainHash {
	var conflicting []externalapi.DomainHash
	seen := make(map[externalapi.DomainHash]struct{})
	for _, input := range tx.Inputs {
		id, ok := up.spentBy[input.OutputHash]
		if !ok {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		conflicting = append(conflicting, id)
	}
	return conflicting
}

func (up *unconfirmedPool) add(tx *externalapi.DomainTransaction) {
	id := *hashing.TransactionID(tx)
	up.allTransactions[id] = tx
	for _, input := range tx.Inputs {
		up.spentBy[input.OutputHash] = id
	}
	for _, kernel := range tx.Kernels {
		if kernel.ExcessSig != nil {
			up.byExcessSig[kernel.ExcessSig.ByteArray()] = id
		}
	}
}

func (up *unconfirmedPool) remove(id externalapi.DomainHash) (*externalapi.DomainTransaction, bool) {
	tx, ok := up.allTransactions[id]
	if !ok {
		return nil, false
	}
	delete(up.allTransactions, id)
	for _, input := range tx.Inputs {
		if up.spentBy[input.OutputHash] == id {
			delete(up.spentBy, input.OutputHash)
		}
	}
	for _, kernel := range tx.Kernels {
		if kernel.ExcessSig == nil {
			continue
		}
		sig := kernel.ExcessSig.ByteArray()
		if up.byExcessSig[sig] == id {
			delete(up.byExcessSig, sig)
		}
	}
	return tx, true
}

// removePublished removes the transactions of a published block, matched by
// kernel excess signature, and every pooled transaction that double spends
// one of the block's inputs.
func (up *unconfirmedPool) removePublished(block *externalapi.DomainBlock) (published, discarded int) {
	for _, tx := range block.Transactions {
		for _, kernel := range tx.Kernels {
			if kernel.ExcessSig == nil {
				continue
			}
			id, ok := up.byExcessSig[kernel.ExcessSig.ByteArray()]
			if !ok {
				continue
			}
			if _, ok := up.remove(id); ok {
				published++
			}
		}
	}
	for _, tx := range block.Transactions {
		for _, id := range up.doubleSpends(tx) {
			if _, ok := up.remove(id); ok {
				discarded++
			}
		}
	}
	return published, discarded
}

func (up *unconfirmedPool) transactions() []*externalapi.DomainTransaction {
	transactions := make([]*externalapi.DomainTransaction, 0, len(up.allTransactions))
	for _, tx := range up.allTransactions {
		transactions = append(transactions, tx)
	}
	return transactions
}
