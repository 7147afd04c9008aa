package hashing

import (
	"testing"

	"github.com/kaspanet/reorgkeeper/domain/model/externalapi"
)

func TestOutputHashCommitsToFeatures(t *testing.T) {
	output := &externalapi.DomainTransactionOutput{Commitment: []byte{1, 2, 3}}
	coinbase := output.Clone()
	coinbase.Features.IsCoinbase = true

	if OutputHash(output).Equal(OutputHash(coinbase)) {
		t.Fatalf("coinbase flag does not affect the output hash")
	}
	if !OutputHash(output).Equal(OutputHash(output.Clone())) {
		t.Fatalf("output hash is not deterministic")
	}
}

func TestTransactionIDIsCached(t *testing.T) {
	sig, err := externalapi.NewExcessSignatureFromByteSlice(make([]byte, externalapi.ExcessSignatureSize))
	if err != nil {
		t.Fatalf("NewExcessSignatureFromByteSlice: %s", err)
	}
	tx := &externalapi.DomainTransaction{
		Kernels: []*externalapi.DomainTransactionKernel{{Fee: 5, ExcessSig: sig}},
	}
	id := TransactionID(tx)
	if tx.ID != id {
		t.Fatalf("transaction id was not cached")
	}

	other := tx.Clone()
	other.ID = nil
	other.Kernels[0].Fee = 6
	if TransactionID(other).Equal(id) {
		t.Fatalf("kernel fee does not affect the transaction id")
	}
}

func TestHeaderHashDependsOnNonce(t *testing.T) {
	a := &externalapi.DomainBlockHeader{Height: 10}
	b := &externalapi.DomainBlockHeader{Height: 10, Nonce: 1}
	if HeaderHash(a).Equal(HeaderHash(b)) {
		t.Fatalf("headers with different nonces share a hash")
	}
}
