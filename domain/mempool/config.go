package mempool

import (
	"github.com/kaspanet/reorgkeeper/domain/reorgpool"
)

const defaultMaximumTransactionCount = 1_000_000

// Config holds the mempool parameters
type Config struct {
	MaximumTransactionCount int
	ReorgPool               *reorgpool.Config
}

// DefaultConfig returns the default mempool configuration
func DefaultConfig() *Config {
	return &Config{
		MaximumTransactionCount: defaultMaximumTransactionCount,
		ReorgPool:               reorgpool.DefaultConfig(),
	}
}
