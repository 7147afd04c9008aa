package externalapi

// DomainTransaction represents a confidential transaction: a set of spent
// outputs, a set of created outputs and one or more kernels whose excess
// signatures prove the balance.
type DomainTransaction struct {
	Inputs  []*DomainTransactionInput
	Outputs []*DomainTransactionOutput
	Kernels []*DomainTransactionKernel

	// ID is a cache for the transaction id. It is filled lazily by
	// hashing.TransactionID and must be reset if the transaction is mutated.
	ID *DomainHash
}

// Clone returns a clone of DomainTransaction
func (tx *DomainTransaction) Clone() *DomainTransaction {
	inputsClone := make([]*DomainTransactionInput, len(tx.Inputs))
	for i, input := range tx.Inputs {
		inputsClone[i] = input.Clone()
	}

	outputsClone := make([]*DomainTransactionOutput, len(tx.Outputs))
	for i, output := range tx.Outputs {
		outputsClone[i] = output.Clone()
	}

	kernelsClone := make([]*DomainTransactionKernel, len(tx.Kernels))
	for i, kernel := range tx.Kernels {
		kernelsClone[i] = kernel.Clone()
	}

	return &DomainTransaction{
		Inputs:  inputsClone,
		Outputs: outputsClone,
		Kernels: kernelsClone,
		ID:      tx.ID.Clone(),
	}
}

// FirstKernelExcessSig returns the excess signature of the first kernel, or
// nil if the transaction has no kernels.
func (tx *DomainTransaction) FirstKernelExcessSig() *ExcessSignature {
	if len(tx.Kernels) == 0 {
		return nil
	}
	return tx.Kernels[0].ExcessSig
}

// DomainTransactionInput spends a previously created output, identified by
// the output's content hash.
type DomainTransactionInput struct {
	OutputHash DomainHash
}

// Clone returns a clone of DomainTransactionInput
func (input *DomainTransactionInput) Clone() *DomainTransactionInput {
	return &DomainTransactionInput{OutputHash: input.OutputHash}
}

// OutputFeatures are the consensus-relevant flags of an output
type OutputFeatures struct {
	IsCoinbase bool
	Maturity   uint64
}

// DomainTransactionOutput is a confidential output. The commitment hides the
// value; the output is addressed elsewhere by its content hash.
type DomainTransactionOutput struct {
	Features   OutputFeatures
	Commitment []byte
	ScriptHash []byte
}

// Clone returns a clone of DomainTransactionOutput
func (output *DomainTransactionOutput) Clone() *DomainTransactionOutput {
	commitmentClone := make([]byte, len(output.Commitment))
	copy(commitmentClone, output.Commitment)
	scriptHashClone := make([]byte, len(output.ScriptHash))
	copy(scriptHashClone, output.ScriptHash)

	return &DomainTransactionOutput{
		Features:   output.Features,
		Commitment: commitmentClone,
		ScriptHash: scriptHashClone,
	}
}

// DomainTransactionKernel carries the fee, lock height and the excess
// signature of a transaction.
type DomainTransactionKernel struct {
	Fee        uint64
	LockHeight uint64
	Excess     []byte
	ExcessSig  *ExcessSignature
}

// Clone returns a clone of DomainTransactionKernel
func (kernel *DomainTransactionKernel) Clone() *DomainTransactionKernel {
	excessClone := make([]byte, len(kernel.Excess))
	copy(excessClone, kernel.Excess)

	return &DomainTransactionKernel{
		Fee:        kernel.Fee,
		LockHeight: kernel.LockHeight,
		Excess:     excessClone,
		ExcessSig:  kernel.ExcessSig.Clone(),
	}
}
