// Package simchain is an in-memory authoritative chain. It implements
// oracle.ChainOracle and supports appending blocks and reorganizing from any
// height, which makes it suitable for tests and for serving a mock oracle.
package simchain

import (
	"context"
	"sync"

	"github.com/kaspanet/reorgkeeper/domain/model/externalapi"
	"github.com/kaspanet/reorgkeeper/domain/oracle"
	"github.com/kaspanet/reorgkeeper/domain/trackeditem"
	"github.com/kaspanet/reorgkeeper/domain/utils/hashing"
	"github.com/pkg/errors"
)

// BlockTemplate describes the tracked content of a block to append
type BlockTemplate struct {
	// Outputs are created in the block, in commitment order
	Outputs []trackeditem.ItemID `yaml:"outputs"`
	// Transactions are identified by kernel excess signature
	Transactions []trackeditem.ItemID `yaml:"transactions"`
	// Spends are previously created outputs spent in the block
	Spends []trackeditem.ItemID `yaml:"spends"`
}

type block struct {
	header       *externalapi.DomainBlockHeader
	firstLeaf    uint64
	outputs      []trackeditem.ItemID
	transactions []trackeditem.ItemID
	spentLeaves  []uint64
}

func (b *block) hash() *externalapi.DomainHash {
	return hashing.HeaderHash(b.header)
}

type location struct {
	height      uint64
	mmrPosition *uint64
}

// Chain is an in-memory chain. It is safe for concurrent use.
type Chain struct {
	mtx     sync.RWMutex
	blocks  []*block
	mempool map[string]struct{}
	forks   uint64

	// derived from blocks, rebuilt on reorg
	locations map[string]location
	deletedAt map[uint64]uint64
	leaves    uint64
}

// New returns a chain holding only an empty genesis block at height 0
func New() *Chain {
	c := &Chain{mempool: make(map[string]struct{})}
	genesis := &block{header: &externalapi.DomainBlockHeader{Height: 0}}
	c.blocks = []*block{genesis}
	c.rebuildIndexes()
	return c
}

func (c *Chain) tip() *block {
	return c.blocks[len(c.blocks)-1]
}

// AddBlock appends a block built from template and returns its hash. Items
// included in the block leave the mempool.
func (c *Chain) AddBlock(template *BlockTemplate) (*externalapi.DomainHash, error) {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	return c.addBlock(template)
}

func (c *Chain) addBlock(template *BlockTemplate) (*externalapi.DomainHash, error) {
	parent := c.tip()
	b := &block{
		header: &externalapi.DomainBlockHeader{
			Height:       parent.header.Height + 1,
			PreviousHash: *parent.hash(),
			Nonce:        c.forks,
		},
		firstLeaf:    c.leaves,
		outputs:      template.Outputs,
		transactions: template.Transactions,
	}

	spent := make(map[uint64]struct{}, len(template.Spends))
	for _, id := range template.Spends {
		loc, ok := c.locations[id.Key()]
		if !ok || loc.mmrPosition == nil {
			return nil, errors.Errorf("cannot spend unknown output %s", id)
		}
		position := *loc.mmrPosition
		if _, ok := c.deletedAt[position]; ok {
			return nil, errors.Errorf("output %s is already spent", id)
		}
		if _, ok := spent[position]; ok {
			return nil, errors.Errorf("output %s is spent twice in the same block", id)
		}
		spent[position] = struct{}{}
		b.spentLeaves = append(b.spentLeaves, position)
	}

	c.blocks = append(c.blocks, b)
	c.indexBlock(b)
	for _, id := range template.Outputs {
		delete(c.mempool, id.Key())
	}
	for _, id := range template.Transactions {
		delete(c.mempool, id.Key())
	}
	log.Debugf("Added block %s at height %d", b.hash(), b.header.Height)
	return b.hash(), nil
}

// Reorg discards every block at or above height and appends the given
// templates in their place. The new blocks have hashes distinct from the
// discarded ones even when their content is equal.
func (c *Chain) Reorg(height uint64, templates []*BlockTemplate) error {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	if height == 0 || height >= uint64(len(c.blocks)) {
		return errors.Errorf("cannot reorg from height %d on a chain of tip %d", height, c.tip().header.Height)
	}
	removed := uint64(len(c.blocks)) - height
	c.blocks = c.blocks[:height]
	c.forks++
	c.rebuildIndexes()

	for _, template := range templates {
		_, err := c.addBlock(template)
		if err != nil {
			return err
		}
	}
	log.Infof("Reorged %d blocks from height %d, new tip %d", removed, height, c.tip().header.Height)
	return nil
}

// AddToMempool marks ids as pending in the oracle's mempool
func (c *Chain) AddToMempool(ids ...trackeditem.ItemID) {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	for _, id := range ids {
		c.mempool[id.Key()] = struct{}{}
	}
}

// Tip returns the height and hash of the chain tip
func (c *Chain) Tip() (uint64, *externalapi.DomainHash) {
	c.mtx.RLock()
	defer c.mtx.RUnlock()

	tip := c.tip()
	return tip.header.Height, tip.hash()
}

// MMRPosition returns the commitment position of a mined output
func (c *Chain) MMRPosition(id trackeditem.ItemID) (uint64, bool) {
	c.mtx.RLock()
	defer c.mtx.RUnlock()

	loc, ok := c.locations[id.Key()]
	if !ok || loc.mmrPosition == nil {
		return 0, false
	}
	return *loc.mmrPosition, true
}

func (c *Chain) rebuildIndexes() {
	c.locations = make(map[string]location)
	c.deletedAt = make(map[uint64]uint64)
	c.leaves = 0
	for _, b := range c.blocks {
		c.indexBlock(b)
	}
}

func (c *Chain) indexBlock(b *block) {
	height := b.header.Height
	b.firstLeaf = c.leaves
	for i, id := range b.outputs {
		position := b.firstLeaf + uint64(i)
		c.locations[id.Key()] = location{height: height, mmrPosition: &position}
	}
	c.leaves += uint64(len(b.outputs))
	for _, id := range b.transactions {
		c.locations[id.Key()] = location{height: height}
	}
	for _, position := range b.spentLeaves {
		c.deletedAt[position] = height
	}
}

// HeaderAtHeight implements oracle.ChainOracle
func (c *Chain) HeaderAtHeight(ctx context.Context, height uint64) (*externalapi.DomainHash, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mtx.RLock()
	defer c.mtx.RUnlock()

	if height >= uint64(len(c.blocks)) {
		return nil, nil
	}
	return c.blocks[height].hash().Clone(), nil
}

// QueryLocations implements oracle.ChainOracle
func (c *Chain) QueryLocations(ctx context.Context, ids []trackeditem.ItemID) (*oracle.LocationsResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mtx.RLock()
	defer c.mtx.RUnlock()

	tip := c.tip()
	response := &oracle.LocationsResponse{
		Locations: make([]*oracle.ItemLocation, len(ids)),
		TipHeight: tip.header.Height,
		TipHash:   tip.hash().Clone(),
	}
	for i, id := range ids {
		itemLocation := &oracle.ItemLocation{ID: id, Location: oracle.NotStored}
		if loc, ok := c.locations[id.Key()]; ok {
			itemLocation.Location = oracle.Mined
			itemLocation.Height = loc.height
			itemLocation.BlockHash = c.blocks[loc.height].hash().Clone()
			itemLocation.Confirmations = tip.header.Height - loc.height
			if loc.mmrPosition != nil {
				position := *loc.mmrPosition
				itemLocation.MMRPosition = &position
			}
		} else if _, ok := c.mempool[id.Key()]; ok {
			itemLocation.Location = oracle.InMempool
		}
		response.Locations[i] = itemLocation
	}
	return response, nil
}

// QueryDeleted implements oracle.ChainOracle
func (c *Chain) QueryDeleted(ctx context.Context, positions []uint64,
	anchor *externalapi.DomainHash) (*oracle.DeletedResponse, error) {

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mtx.RLock()
	defer c.mtx.RUnlock()

	if anchor != nil && !c.contains(anchor) {
		return nil, oracle.NewTransportError(errors.Errorf("anchor block %s is not in the canonical chain", anchor))
	}

	response := &oracle.DeletedResponse{TipHeight: c.tip().header.Height}
	for _, position := range positions {
		height, ok := c.deletedAt[position]
		if !ok {
			response.NotDeletedPositions = append(response.NotDeletedPositions, position)
			continue
		}
		response.DeletedPositions = append(response.DeletedPositions, position)
		response.HeightsDeletedAt = append(response.HeightsDeletedAt, height)
		response.BlocksDeletedIn = append(response.BlocksDeletedIn, c.blocks[height].hash().Clone())
	}
	return response, nil
}

func (c *Chain) contains(hash *externalapi.DomainHash) bool {
	for _, b := range c.blocks {
		if b.hash().Equal(hash) {
			return true
		}
	}
	return false
}
