// Package hashing computes the BLAKE2b-256 identifiers used across the chain
// model: output content hashes, transaction ids and block header hashes.
// Every hash is domain separated by a short personalization prefix so that
// structures with identical encodings never collide.
package hashing

import (
	"encoding/binary"
	"hash"

	"github.com/kaspanet/reorgkeeper/domain/model/externalapi"
	"github.com/pkg/errors"
	"golang.org/x/crypto/blake2b"
)

const (
	outputDomain      = "reorgkeeper/output"
	transactionDomain = "reorgkeeper/transaction"
	headerDomain      = "reorgkeeper/header"
)

type writer struct {
	hash.Hash
}

func newWriter(domain string) writer {
	blake, err := blake2b.New256(nil)
	if err != nil {
		// Only returned for an oversized key
		panic(errors.Wrap(err, "blake2b.New256"))
	}
	w := writer{blake}
	w.writeBytes([]byte(domain))
	return w
}

func (w writer) writeUint64(value uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], value)
	_, _ = w.Write(buf[:])
}

func (w writer) writeBytes(data []byte) {
	w.writeUint64(uint64(len(data)))
	_, _ = w.Write(data)
}

func (w writer) writeBool(value bool) {
	if value {
		_, _ = w.Write([]byte{1})
		return
	}
	_, _ = w.Write([]byte{0})
}

func (w writer) finalize() *externalapi.DomainHash {
	var hashArray [externalapi.DomainHashSize]byte
	copy(hashArray[:], w.Sum(nil))
	return externalapi.NewDomainHashFromByteArray(&hashArray)
}

// OutputHash returns the content hash of an output. This is the identifier
// inputs use to reference the output they spend.
func OutputHash(output *externalapi.DomainTransactionOutput) *externalapi.DomainHash {
	w := newWriter(outputDomain)
	w.writeBool(output.Features.IsCoinbase)
	w.writeUint64(output.Features.Maturity)
	w.writeBytes(output.Commitment)
	w.writeBytes(output.ScriptHash)
	return w.finalize()
}

// TransactionID returns the id of the given transaction. The id commits to
// inputs, outputs and kernels and is cached on the transaction.
func TransactionID(tx *externalapi.DomainTransaction) *externalapi.DomainHash {
	if tx.ID != nil {
		return tx.ID
	}

	w := newWriter(transactionDomain)
	w.writeUint64(uint64(len(tx.Inputs)))
	for _, input := range tx.Inputs {
		w.writeBytes(input.OutputHash.ByteSlice())
	}
	w.writeUint64(uint64(len(tx.Outputs)))
	for _, output := range tx.Outputs {
		w.writeBytes(OutputHash(output).ByteSlice())
	}
	w.writeUint64(uint64(len(tx.Kernels)))
	for _, kernel := range tx.Kernels {
		w.writeUint64(kernel.Fee)
		w.writeUint64(kernel.LockHeight)
		w.writeBytes(kernel.Excess)
		if kernel.ExcessSig != nil {
			w.writeBytes(kernel.ExcessSig.ByteSlice())
		} else {
			w.writeBytes(nil)
		}
	}

	tx.ID = w.finalize()
	return tx.ID
}

// HeaderHash returns the hash of the given block header, caching it on the
// header.
func HeaderHash(header *externalapi.DomainBlockHeader) *externalapi.DomainHash {
	if header.Hash != nil {
		return header.Hash
	}

	w := newWriter(headerDomain)
	w.writeUint64(uint64(header.Version))
	w.writeUint64(header.Height)
	w.writeBytes(header.PreviousHash.ByteSlice())
	w.writeUint64(uint64(header.TimeInMillis))
	w.writeUint64(header.Nonce)

	header.Hash = w.finalize()
	return header.Hash
}

// BlockHash returns the hash of the block's header
func BlockHash(block *externalapi.DomainBlock) *externalapi.DomainHash {
	return HeaderHash(block.Header)
}
