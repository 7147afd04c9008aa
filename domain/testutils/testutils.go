// Package testutils builds chain objects for tests: transactions carrying
// real Schnorr kernel signatures, blocks and random hashes.
package testutils

import (
	"crypto/rand"
	"testing"

	"github.com/kaspanet/go-secp256k1"
	"github.com/kaspanet/reorgkeeper/domain/model/externalapi"
	"github.com/kaspanet/reorgkeeper/domain/utils/hashing"
)

// RandomHash returns a uniformly random DomainHash
func RandomHash(tb testing.TB) *externalapi.DomainHash {
	tb.Helper()

	var hashArray [externalapi.DomainHashSize]byte
	_, err := rand.Read(hashArray[:])
	if err != nil {
		tb.Fatalf("rand.Read: %+v", err)
	}
	return externalapi.NewDomainHashFromByteArray(&hashArray)
}

// NewExcessSignature signs a random message with a freshly generated
// Schnorr key pair and returns the signature as a kernel excess signature.
func NewExcessSignature(tb testing.TB) *externalapi.ExcessSignature {
	tb.Helper()

	keyPair, err := secp256k1.GenerateSchnorrKeyPair()
	if err != nil {
		tb.Fatalf("GenerateSchnorrKeyPair: %+v", err)
	}
	message := secp256k1.Hash(*RandomHash(tb).ByteArray())
	signature, err := keyPair.SchnorrSign(&message)
	if err != nil {
		tb.Fatalf("SchnorrSign: %+v", err)
	}
	serialized := signature.Serialize()
	return externalapi.NewExcessSignatureFromByteArray((*[externalapi.ExcessSignatureSize]byte)(serialized))
}

// NewTransaction returns a transaction with a single kernel which spends the
// given output hashes and creates one fresh output.
func NewTransaction(tb testing.TB, spends ...*externalapi.DomainHash) *externalapi.DomainTransaction {
	tb.Helper()

	inputs := make([]*externalapi.DomainTransactionInput, len(spends))
	for i, spend := range spends {
		inputs[i] = &externalapi.DomainTransactionInput{OutputHash: *spend}
	}
	return &externalapi.DomainTransaction{
		Inputs: inputs,
		Outputs: []*externalapi.DomainTransactionOutput{{
			Commitment: RandomHash(tb).ByteSlice(),
		}},
		Kernels: []*externalapi.DomainTransactionKernel{{
			Fee:       1,
			Excess:    RandomHash(tb).ByteSlice(),
			ExcessSig: NewExcessSignature(tb),
		}},
	}
}

// NewCoinbaseTransaction returns a kernel-carrying coinbase transaction for
// the given height.
func NewCoinbaseTransaction(tb testing.TB, height uint64) *externalapi.DomainTransaction {
	tb.Helper()

	tx := NewTransaction(tb)
	tx.Outputs[0].Features = externalapi.OutputFeatures{IsCoinbase: true, Maturity: height}
	return tx
}

// NewBlock returns a block at the given height on top of parent, containing
// the given transactions.
func NewBlock(height uint64, parent *externalapi.DomainHash,
	transactions ...*externalapi.DomainTransaction) *externalapi.DomainBlock {

	header := &externalapi.DomainBlockHeader{Height: height}
	if parent != nil {
		header.PreviousHash = *parent
	}
	block := &externalapi.DomainBlock{Header: header, Transactions: transactions}
	hashing.BlockHash(block)
	return block
}

// NewForkBlock is like NewBlock but uses nonce to guarantee a hash distinct
// from a sibling at the same height.
func NewForkBlock(height uint64, parent *externalapi.DomainHash, nonce uint64,
	transactions ...*externalapi.DomainTransaction) *externalapi.DomainBlock {

	header := &externalapi.DomainBlockHeader{Height: height, Nonce: nonce}
	if parent != nil {
		header.PreviousHash = *parent
	}
	block := &externalapi.DomainBlock{Header: header, Transactions: transactions}
	hashing.BlockHash(block)
	return block
}
