package reconciliation

import "time"

const (
	defaultBatchSize             = 100
	defaultRequiredConfirmations = 3
	defaultCoinbaseAbandonDepth  = 0
	defaultOracleCallTimeout     = 60 * time.Second
)

// Config holds the reconciliation engine parameters
type Config struct {
	// StoreName labels the events of the engine
	StoreName string

	// BatchSize caps the number of items or positions per oracle request
	BatchSize int

	// RequiredConfirmations is the confirmation count at which a mined item
	// becomes confirmed, and the depth at which a spend becomes confirmed
	RequiredConfirmations uint64

	// CoinbaseAbandonDepth is how far the tip must be past a coinbase's
	// height before an unmined coinbase is abandoned
	CoinbaseAbandonDepth uint64

	// OracleCallTimeout is the deadline of every single oracle call
	OracleCallTimeout time.Duration
}

// DefaultConfig returns the default engine configuration
func DefaultConfig() *Config {
	return &Config{
		BatchSize:             defaultBatchSize,
		RequiredConfirmations: defaultRequiredConfirmations,
		CoinbaseAbandonDepth:  defaultCoinbaseAbandonDepth,
		OracleCallTimeout:     defaultOracleCallTimeout,
	}
}
