package externalapi

// DomainBlock represents a block in the chain
type DomainBlock struct {
	Header       *DomainBlockHeader
	Transactions []*DomainTransaction
}

// Clone returns a clone of DomainBlock
func (block *DomainBlock) Clone() *DomainBlock {
	transactionClone := make([]*DomainTransaction, len(block.Transactions))
	for i, tx := range block.Transactions {
		transactionClone[i] = tx.Clone()
	}

	return &DomainBlock{
		Header:       block.Header.Clone(),
		Transactions: transactionClone,
	}
}

// Height returns the height of the block
func (block *DomainBlock) Height() uint64 {
	return block.Header.Height
}

// DomainBlockHeader represents the header part of a block
type DomainBlockHeader struct {
	Version      uint16
	Height       uint64
	PreviousHash DomainHash
	TimeInMillis int64
	Nonce        uint64

	// Hash is a cache for the header hash, filled lazily by hashing.HeaderHash
	Hash *DomainHash
}

// Clone returns a clone of DomainBlockHeader
func (header *DomainBlockHeader) Clone() *DomainBlockHeader {
	return &DomainBlockHeader{
		Version:      header.Version,
		Height:       header.Height,
		PreviousHash: header.PreviousHash,
		TimeInMillis: header.TimeInMillis,
		Nonce:        header.Nonce,
		Hash:         header.Hash.Clone(),
	}
}
