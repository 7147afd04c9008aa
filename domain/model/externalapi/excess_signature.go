package externalapi

import (
	"encoding/hex"

	"github.com/pkg/errors"
)

// ExcessSignatureSize is the size of a serialized kernel excess signature
const ExcessSignatureSize = 64

// ExcessSignature is the signature over a transaction kernel's excess.
// It uniquely identifies the kernel and is used as the lookup key of
// transactions both in the node's pools and in the wallet's tracked items.
type ExcessSignature struct {
	signature [ExcessSignatureSize]byte
}

// NewExcessSignatureFromByteArray constructs an ExcessSignature from a byte array
func NewExcessSignatureFromByteArray(signature *[ExcessSignatureSize]byte) *ExcessSignature {
	return &ExcessSignature{signature: *signature}
}

// NewExcessSignatureFromByteSlice constructs an ExcessSignature from a byte slice
func NewExcessSignatureFromByteSlice(signature []byte) (*ExcessSignature, error) {
	if len(signature) != ExcessSignatureSize {
		return nil, errors.Errorf("invalid excess signature size. Want: %d, got: %d",
			ExcessSignatureSize, len(signature))
	}
	excessSig := ExcessSignature{}
	copy(excessSig.signature[:], signature)
	return &excessSig, nil
}

// NewExcessSignatureFromString constructs an ExcessSignature from its hex encoding
func NewExcessSignatureFromString(signature string) (*ExcessSignature, error) {
	signatureBytes, err := hex.DecodeString(signature)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return NewExcessSignatureFromByteSlice(signatureBytes)
}

// String returns the hex encoding of the signature
func (sig ExcessSignature) String() string {
	return hex.EncodeToString(sig.signature[:])
}

// ByteSlice returns a copy of the signature bytes
func (sig *ExcessSignature) ByteSlice() []byte {
	signatureClone := sig.signature
	return signatureClone[:]
}

// ByteArray returns a copy of the signature bytes as an array. Arrays are
// comparable, which makes them usable as map keys.
func (sig *ExcessSignature) ByteArray() [ExcessSignatureSize]byte {
	return sig.signature
}

// Equal returns whether sig equals to other
func (sig *ExcessSignature) Equal(other *ExcessSignature) bool {
	if sig == nil || other == nil {
		return sig == other
	}
	return sig.signature == other.signature
}

// Clone clones the signature
func (sig *ExcessSignature) Clone() *ExcessSignature {
	if sig == nil {
		return nil
	}
	sigClone := *sig
	return &sigClone
}

// MarshalText implements encoding.TextMarshaler
func (sig ExcessSignature) MarshalText() ([]byte, error) {
	return []byte(sig.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (sig *ExcessSignature) UnmarshalText(text []byte) error {
	parsed, err := NewExcessSignatureFromString(string(text))
	if err != nil {
		return err
	}
	*sig = *parsed
	return nil
}
