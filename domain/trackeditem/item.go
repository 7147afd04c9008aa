// Package trackeditem models the outputs and transactions a wallet tracks on
// chain, and stores them.
package trackeditem

import (
	"bytes"
	"encoding/hex"
	"fmt"

	"github.com/kaspanet/reorgkeeper/domain/model/externalapi"
)

// ItemID identifies a tracked item: the content hash of an output or the
// kernel excess signature of a transaction.
type ItemID []byte

// NewOutputItemID returns the id of an output with the given content hash
func NewOutputItemID(outputHash *externalapi.DomainHash) ItemID {
	return outputHash.ByteSlice()
}

// NewTransactionItemID returns the id of a transaction with the given kernel
// excess signature
func NewTransactionItemID(excessSig *externalapi.ExcessSignature) ItemID {
	return excessSig.ByteSlice()
}

// NewItemIDFromString parses a hex encoded ItemID
func NewItemIDFromString(id string) (ItemID, error) {
	decoded, err := hex.DecodeString(id)
	if err != nil {
		return nil, err
	}
	return decoded, nil
}

func (id ItemID) String() string {
	return hex.EncodeToString(id)
}

// MarshalText implements encoding.TextMarshaler
func (id ItemID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (id *ItemID) UnmarshalText(text []byte) error {
	decoded, err := NewItemIDFromString(string(text))
	if err != nil {
		return err
	}
	*id = decoded
	return nil
}

// Key returns the id in a form usable as a map key
func (id ItemID) Key() string {
	return string(id)
}

// Equal returns whether id equals other
func (id ItemID) Equal(other ItemID) bool {
	return bytes.Equal(id, other)
}

// Kind is the kind of a tracked item
type Kind uint8

// The kinds of tracked items
const (
	KindOutput Kind = iota
	KindTransaction
)

func (k Kind) String() string {
	switch k {
	case KindOutput:
		return "Output"
	case KindTransaction:
		return "Transaction"
	}
	return fmt.Sprintf("Unknown Kind (%d)", uint8(k))
}

// State is the reconciliation state of a tracked item
type State uint8

// The states of a tracked item
const (
	StatePendingUnmined State = iota
	StateMinedUnconfirmed
	StateMinedConfirmed
	StateSpent
	StateAbandoned
)

var stateStrings = map[State]string{
	StatePendingUnmined:   "PendingUnmined",
	StateMinedUnconfirmed: "MinedUnconfirmed",
	StateMinedConfirmed:   "MinedConfirmed",
	StateSpent:            "Spent",
	StateAbandoned:        "Abandoned",
}

func (s State) String() string {
	if str, ok := stateStrings[s]; ok {
		return str
	}
	return fmt.Sprintf("Unknown State (%d)", uint8(s))
}

// Status is the state of a tracked item together with its payload.
//
// The mined fields stay populated while the item is Spent, so that an item
// whose spend is reorged out can return to its mined state.
type Status struct {
	State State

	MinedHeight   uint64
	MinedInBlock  *externalapi.DomainHash
	Confirmations uint64

	SpentHeight    uint64
	SpentInBlock   *externalapi.DomainHash
	SpentConfirmed bool
}

// PendingUnmined returns the status of an item not known to be mined
func PendingUnmined() Status {
	return Status{State: StatePendingUnmined}
}

// Mined returns the status of an item mined at height in block with the
// given number of confirmations. The state is MinedConfirmed if
// confirmations reaches requiredConfirmations.
func Mined(height uint64, block *externalapi.DomainHash, confirmations, requiredConfirmations uint64) Status {
	state := StateMinedUnconfirmed
	if confirmations >= requiredConfirmations {
		state = StateMinedConfirmed
	}
	return Status{
		State:         state,
		MinedHeight:   height,
		MinedInBlock:  block.Clone(),
		Confirmations: confirmations,
	}
}

// Abandoned returns the status of a coinbase item whose block was superseded
func Abandoned() Status {
	return Status{State: StateAbandoned}
}

// IsMined returns whether the status carries a mined location. Spent items
// are mined.
func (s *Status) IsMined() bool {
	return s.State == StateMinedUnconfirmed || s.State == StateMinedConfirmed || s.State == StateSpent
}

// Spend returns the status of s spent at height in block
func (s Status) Spend(height uint64, block *externalapi.DomainHash, confirmed bool) Status {
	s.State = StateSpent
	s.SpentHeight = height
	s.SpentInBlock = block.Clone()
	s.SpentConfirmed = confirmed
	return s
}

// Unspend returns the mined status s had before it was spent
func (s Status) Unspend(requiredConfirmations uint64) Status {
	return Mined(s.MinedHeight, s.MinedInBlock, s.Confirmations, requiredConfirmations)
}

// Equal returns whether s and other describe the same status
func (s *Status) Equal(other *Status) bool {
	return s.State == other.State &&
		s.MinedHeight == other.MinedHeight &&
		s.MinedInBlock.Equal(other.MinedInBlock) &&
		s.Confirmations == other.Confirmations &&
		s.SpentHeight == other.SpentHeight &&
		s.SpentInBlock.Equal(other.SpentInBlock) &&
		s.SpentConfirmed == other.SpentConfirmed
}

// Clone returns a deep copy of s
func (s *Status) Clone() Status {
	clone := *s
	clone.MinedInBlock = s.MinedInBlock.Clone()
	clone.SpentInBlock = s.SpentInBlock.Clone()
	return clone
}

func (s Status) String() string {
	switch s.State {
	case StateMinedUnconfirmed, StateMinedConfirmed:
		return fmt.Sprintf("%s{height: %d, block: %s, confirmations: %d}",
			s.State, s.MinedHeight, s.MinedInBlock, s.Confirmations)
	case StateSpent:
		return fmt.Sprintf("%s{height: %d, block: %s, confirmed: %t}",
			s.State, s.SpentHeight, s.SpentInBlock, s.SpentConfirmed)
	}
	return s.State.String()
}

// TrackedItem is an output or transaction whose on-chain status is tracked
type TrackedItem struct {
	ID     ItemID
	Kind   Kind
	Status Status

	// CoinbaseHeight is set only for coinbase items
	CoinbaseHeight *uint64

	// MMRPosition is the leaf index of an output in the output commitment
	// structure. It is required once an output is mined.
	MMRPosition *uint64
}

// IsCoinbase returns whether the item is a coinbase item
func (item *TrackedItem) IsCoinbase() bool {
	return item.CoinbaseHeight != nil
}

// Clone returns a deep copy of item
func (item *TrackedItem) Clone() *TrackedItem {
	idClone := make(ItemID, len(item.ID))
	copy(idClone, item.ID)
	return &TrackedItem{
		ID:             idClone,
		Kind:           item.Kind,
		Status:         item.Status.Clone(),
		CoinbaseHeight: cloneUint64(item.CoinbaseHeight),
		MMRPosition:    cloneUint64(item.MMRPosition),
	}
}

// Equal returns whether item and other are identical
func (item *TrackedItem) Equal(other *TrackedItem) bool {
	return item.ID.Equal(other.ID) &&
		item.Kind == other.Kind &&
		item.Status.Equal(&other.Status) &&
		equalUint64(item.CoinbaseHeight, other.CoinbaseHeight) &&
		equalUint64(item.MMRPosition, other.MMRPosition)
}

func cloneUint64(value *uint64) *uint64 {
	if value == nil {
		return nil
	}
	clone := *value
	return &clone
}

func equalUint64(a, b *uint64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
