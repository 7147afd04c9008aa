package simchain

import (
	"os"

	"github.com/kaspanet/reorgkeeper/domain/trackeditem"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Fixture is the YAML description of a chain. Blocks are appended on top of
// genesis in order, starting at height 1.
type Fixture struct {
	Blocks  []*BlockTemplate     `yaml:"blocks"`
	Mempool []trackeditem.ItemID `yaml:"mempool"`
}

// ParseFixture decodes a YAML chain fixture
func ParseFixture(data []byte) (*Fixture, error) {
	fixture := &Fixture{}
	err := yaml.Unmarshal(data, fixture)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse chain fixture")
	}
	return fixture, nil
}

// LoadFixtureFile reads and decodes the YAML chain fixture at path
func LoadFixtureFile(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return ParseFixture(data)
}

// NewFromFixture builds a chain from fixture
func NewFromFixture(fixture *Fixture) (*Chain, error) {
	chain := New()
	for i, template := range fixture.Blocks {
		_, err := chain.AddBlock(template)
		if err != nil {
			return nil, errors.Wrapf(err, "fixture block %d", i+1)
		}
	}
	chain.AddToMempool(fixture.Mempool...)
	return chain, nil
}

// MarshalFixture encodes the current canonical chain and mempool as a YAML
// fixture
func (c *Chain) MarshalFixture() ([]byte, error) {
	c.mtx.RLock()
	defer c.mtx.RUnlock()

	fixture := &Fixture{}
	leafIDs := make(map[uint64]trackeditem.ItemID)
	for _, b := range c.blocks[1:] {
		for i, id := range b.outputs {
			leafIDs[b.firstLeaf+uint64(i)] = id
		}
		template := &BlockTemplate{
			Outputs:      b.outputs,
			Transactions: b.transactions,
		}
		for _, position := range b.spentLeaves {
			template.Spends = append(template.Spends, leafIDs[position])
		}
		fixture.Blocks = append(fixture.Blocks, template)
	}
	for key := range c.mempool {
		fixture.Mempool = append(fixture.Mempool, trackeditem.ItemID(key))
	}
	data, err := yaml.Marshal(fixture)
	return data, errors.WithStack(err)
}
