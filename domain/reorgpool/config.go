package reorgpool

const defaultExpiryHeight = 5

// Config holds the reorg pool parameters
type Config struct {
	// ExpiryHeight is the number of blocks a published transaction is kept
	// for. A transaction published at height h is purged once a height of at
	// least h+ExpiryHeight is observed.
	ExpiryHeight uint64
}

// DefaultConfig returns the default reorg pool configuration
func DefaultConfig() *Config {
	return &Config{
		ExpiryHeight: defaultExpiryHeight,
	}
}
