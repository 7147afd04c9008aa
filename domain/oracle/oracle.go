// Package oracle defines the remote authority a wallet queries for the
// ground truth state of the chain.
package oracle

import (
	"context"
	"fmt"

	"github.com/kaspanet/reorgkeeper/domain/model/externalapi"
	"github.com/kaspanet/reorgkeeper/domain/trackeditem"
)

// ChainOracle answers chain state queries. Implementations may be a full
// node, an SPV peer or a mock.
//
// Every method must honor ctx cancellation. Failures to reach the oracle are
// reported as TransportError.
type ChainOracle interface {
	// HeaderAtHeight returns the hash of the canonical block at height, or
	// nil if the chain is shorter than height.
	HeaderAtHeight(ctx context.Context, height uint64) (*externalapi.DomainHash, error)

	// QueryLocations returns the location of every requested item together
	// with the oracle's current tip.
	QueryLocations(ctx context.Context, ids []trackeditem.ItemID) (*LocationsResponse, error)

	// QueryDeleted returns the deletion status of the outputs at the given
	// commitment positions. When anchor is not nil the oracle must answer
	// relative to a chain containing it.
	QueryDeleted(ctx context.Context, positions []uint64, anchor *externalapi.DomainHash) (*DeletedResponse, error)
}

// Connector obtains a ChainOracle connection
type Connector interface {
	Connect(ctx context.Context) (ChainOracle, error)
}

// TxLocation is where the oracle sees an item
type TxLocation uint8

// The possible item locations
const (
	NotStored TxLocation = iota
	InMempool
	Mined
)

var txLocationStrings = map[TxLocation]string{
	NotStored: "NotStored",
	InMempool: "InMempool",
	Mined:     "Mined",
}

func (l TxLocation) String() string {
	if s, ok := txLocationStrings[l]; ok {
		return s
	}
	return fmt.Sprintf("Unknown TxLocation (%d)", uint8(l))
}

// ItemLocation is the oracle's answer for a single item
type ItemLocation struct {
	ID            trackeditem.ItemID      `json:"id"`
	Location      TxLocation              `json:"location"`
	Height        uint64                  `json:"height,omitempty"`
	BlockHash     *externalapi.DomainHash `json:"blockHash,omitempty"`
	Confirmations uint64                  `json:"confirmations,omitempty"`

	// MMRPosition is set for mined outputs
	MMRPosition *uint64 `json:"mmrPosition,omitempty"`
}

// LocationsResponse is the response to QueryLocations
type LocationsResponse struct {
	Locations []*ItemLocation         `json:"locations"`
	TipHeight uint64                  `json:"tipHeight"`
	TipHash   *externalapi.DomainHash `json:"tipHash,omitempty"`
}

// DeletedResponse is the response to QueryDeleted. DeletedPositions,
// HeightsDeletedAt and BlocksDeletedIn are parallel arrays and must have
// equal lengths.
type DeletedResponse struct {
	DeletedPositions    []uint64                  `json:"deletedPositions"`
	HeightsDeletedAt    []uint64                  `json:"heightsDeletedAt"`
	BlocksDeletedIn     []*externalapi.DomainHash `json:"blocksDeletedIn"`
	NotDeletedPositions []uint64                  `json:"notDeletedPositions"`
	TipHeight           uint64                    `json:"tipHeight"`
}

type staticConnector struct {
	oracle ChainOracle
}

// NewStaticConnector returns a Connector that always hands out oracle
func NewStaticConnector(oracle ChainOracle) Connector {
	return &staticConnector{oracle: oracle}
}

func (c *staticConnector) Connect(_ context.Context) (ChainOracle, error) {
	return c.oracle, nil
}
