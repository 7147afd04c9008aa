// Package config loads the reconciler configuration from an ini file and
// the command line.
package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/kaspanet/reorgkeeper/app/scheduler"
	"github.com/kaspanet/reorgkeeper/domain/reconciliation"
	"github.com/kaspanet/reorgkeeper/version"
	"github.com/pkg/errors"
)

const (
	defaultConfigFilename       = "reorgkeeper.conf"
	defaultDataDirname          = "data"
	defaultLogLevel             = "info"
	defaultLogDirname           = "logs"
	defaultLogFilename          = "reorgkeeper.log"
	defaultErrLogFilename       = "reorgkeeper_err.log"
	defaultOracleAddress        = "localhost:18142"
	defaultOracleTimeout        = 60 * time.Second
	defaultDbType               = DbTypeLevelDB
	defaultStoreName            = "default"
	defaultBatchSize            = 100
	defaultConfirmations        = 3
	defaultCoinbaseAbandonDepth = 0
	defaultRetryLimit           = 3
	defaultInterval             = time.Minute
	defaultRedisChannel         = "reorgkeeper:events"
	defaultCacheSizeMiB         = 16
)

// The supported tracked item store backends
const (
	DbTypeLevelDB = "leveldb"
	DbTypeBolt    = "bolt"
	DbTypeMemory  = "memory"
)

var knownDbTypes = []string{DbTypeLevelDB, DbTypeBolt, DbTypeMemory}

var (
	// DefaultHomeDir is the default home directory
	DefaultHomeDir = defaultHomeDir()

	defaultConfigFile = filepath.Join(DefaultHomeDir, defaultConfigFilename)
	defaultDataDir    = filepath.Join(DefaultHomeDir, defaultDataDirname)
	defaultLogDir     = filepath.Join(DefaultHomeDir, defaultLogDirname)
)

func defaultHomeDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".reorgkeeper"
	}
	return filepath.Join(homeDir, ".reorgkeeper")
}

// Flags defines the configuration options of the reconciler.
//
// See Load for details on the configuration load process.
type Flags struct {
	ShowVersion          bool          `short:"V" long:"version" description:"Display version information and exit"`
	ConfigFile           string        `short:"C" long:"configfile" description:"Path to configuration file"`
	DataDir              string        `short:"b" long:"datadir" description:"Directory to store data"`
	LogDir               string        `long:"logdir" description:"Directory to log output."`
	DebugLevel           string        `short:"d" long:"debuglevel" description:"Logging level for all subsystems {trace, debug, info, warn, error, critical} -- You may also specify <subsystem>=<level>,<subsystem2>=<level>,... to set the log level for individual subsystems -- Use show to list available subsystems"`
	OracleAddress        string        `long:"oracle" description:"Address of the chain oracle server (host:port)"`
	OracleTimeout        time.Duration `long:"oracletimeout" description:"Deadline of a single oracle call. Valid time units are {ms, s, m, h}"`
	Proxy                string        `long:"proxy" description:"Connect to the oracle via SOCKS5 proxy (eg. 127.0.0.1:9050)"`
	DbType               string        `long:"dbtype" description:"Tracked item store backend {leveldb, bolt, memory}"`
	CacheSizeMiB         int           `long:"cachesize" description:"LevelDB cache size in MiB"`
	Stores               []string      `long:"stores" description:"Name of a tracked item store to reconcile. May be given several times; stores are reconciled concurrently"`
	BatchSize            int           `long:"batchsize" description:"Maximum number of items or positions per oracle request"`
	Confirmations        uint64        `long:"confirmations" description:"Confirmations required before a mined item or a spend is final"`
	CoinbaseAbandonDepth uint64        `long:"coinbaseabandondepth" description:"How far the tip must pass a coinbase's height before an unmined coinbase is abandoned"`
	RetryLimit           uint32        `long:"retrylimit" description:"How many times a validation that failed to reach the oracle is retried"`
	RetryUntilSuccess    bool          `long:"retryuntilsuccess" description:"Retry validations that failed to reach the oracle until they succeed -- overrides --retrylimit"`
	Interval             time.Duration `long:"interval" description:"Time between validation rounds. Valid time units are {s, m, h}"`
	RedisURL             string        `long:"redis" description:"Mirror validation events to this redis server (eg. redis://localhost:6379/0)"`
	RedisChannel         string        `long:"redischannel" description:"Redis channel to publish validation events on"`
	Once                 bool          `long:"once" description:"Run a single validation round over all stores and exit"`
	Profile              string        `long:"profile" description:"Enable HTTP profiling on given port -- NOTE port must be between 1024 and 65536"`
}

// Config defines the configuration options of the reconciler
type Config struct {
	*Flags
	LogFile    string
	ErrLogFile string
}

// DefaultFlags returns the default option values
func DefaultFlags() *Flags {
	return &Flags{
		ConfigFile:           defaultConfigFile,
		DataDir:              defaultDataDir,
		LogDir:               defaultLogDir,
		DebugLevel:           defaultLogLevel,
		OracleAddress:        defaultOracleAddress,
		OracleTimeout:        defaultOracleTimeout,
		DbType:               defaultDbType,
		CacheSizeMiB:         defaultCacheSizeMiB,
		BatchSize:            defaultBatchSize,
		Confirmations:        defaultConfirmations,
		CoinbaseAbandonDepth: defaultCoinbaseAbandonDepth,
		RetryLimit:           defaultRetryLimit,
		Interval:             defaultInterval,
		RedisChannel:         defaultRedisChannel,
	}
}

// cleanAndExpandPath expands environment variables and leading ~ in the
// passed path, cleans the result, and returns it.
func cleanAndExpandPath(path string) string {
	if strings.HasPrefix(path, "~") {
		homeDir := filepath.Dir(DefaultHomeDir)
		path = strings.Replace(path, "~", homeDir, 1)
	}
	return filepath.Clean(os.ExpandEnv(path))
}

func validDbType(dbType string) bool {
	for _, knownType := range knownDbTypes {
		if dbType == knownType {
			return true
		}
	}
	return false
}

// Load initializes and parses the config using a config file and the given
// command line arguments.
//
// The configuration proceeds as follows:
//  1. Start with a default config with sane settings
//  2. Pre-parse the command line to check for an alternative config file
//  3. Load configuration file overwriting defaults with any specified options
//  4. Parse CLI options and overwrite/add any specified options
//
// Command line options always take precedence. A missing config file is not
// an error.
func Load(args []string) (*Config, error) {
	cfgFlags := DefaultFlags()

	preCfg := *cfgFlags
	preParser := flags.NewParser(&preCfg, flags.HelpFlag)
	_, err := preParser.ParseArgs(args)
	if err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			return nil, err
		}
	}

	if preCfg.ShowVersion {
		fmt.Println("reorgkeeper version", version.Version())
		os.Exit(0)
	}

	parser := flags.NewParser(cfgFlags, flags.Default)
	err = flags.NewIniParser(parser).ParseFile(cleanAndExpandPath(preCfg.ConfigFile))
	if err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return nil, errors.Wrapf(err, "error parsing config file %s", preCfg.ConfigFile)
		}
	}

	// Parse command line options again to ensure they take precedence
	_, err = parser.ParseArgs(args)
	if err != nil {
		return nil, err
	}

	cfg := &Config{Flags: cfgFlags}
	err = cfg.validate()
	if err != nil {
		return nil, err
	}

	cfg.DataDir = cleanAndExpandPath(cfg.DataDir)
	cfg.LogDir = cleanAndExpandPath(cfg.LogDir)
	cfg.LogFile = filepath.Join(cfg.LogDir, defaultLogFilename)
	cfg.ErrLogFile = filepath.Join(cfg.LogDir, defaultErrLogFilename)
	return cfg, nil
}

func (cfg *Config) validate() error {
	funcName := "loadConfig"

	if !validDbType(cfg.DbType) {
		return errors.Errorf("%s: The specified database type [%s] is invalid -- supported types %s",
			funcName, cfg.DbType, knownDbTypes)
	}
	if cfg.OracleAddress == "" {
		return errors.Errorf("%s: an oracle address is required", funcName)
	}
	if cfg.OracleTimeout <= 0 {
		return errors.Errorf("%s: the oracletimeout option must be positive -- parsed [%s]", funcName, cfg.OracleTimeout)
	}
	if cfg.Interval < time.Second {
		return errors.Errorf("%s: the interval option may not be less than 1s -- parsed [%s]", funcName, cfg.Interval)
	}
	if cfg.BatchSize < 1 {
		return errors.Errorf("%s: the batchsize option must be at least 1 -- parsed [%d]", funcName, cfg.BatchSize)
	}
	if cfg.Confirmations < 1 {
		return errors.Errorf("%s: the confirmations option must be at least 1", funcName)
	}
	if cfg.CacheSizeMiB < 1 {
		return errors.Errorf("%s: the cachesize option must be at least 1 -- parsed [%d]", funcName, cfg.CacheSizeMiB)
	}

	if cfg.Proxy != "" {
		_, _, err := net.SplitHostPort(cfg.Proxy)
		if err != nil {
			return errors.Errorf("%s: Proxy address '%s' is invalid: %s", funcName, cfg.Proxy, err)
		}
	}

	if len(cfg.Stores) == 0 {
		cfg.Stores = []string{defaultStoreName}
	}
	seen := make(map[string]struct{}, len(cfg.Stores))
	for _, store := range cfg.Stores {
		if store == "" || strings.ContainsAny(store, `/\`) {
			return errors.Errorf("%s: invalid store name '%s'", funcName, store)
		}
		if _, ok := seen[store]; ok {
			return errors.Errorf("%s: store '%s' is listed twice", funcName, store)
		}
		seen[store] = struct{}{}
	}
	return nil
}

// ReconciliationConfig returns the engine configuration of the named store
func (cfg *Config) ReconciliationConfig(storeName string) *reconciliation.Config {
	engineConfig := reconciliation.DefaultConfig()
	engineConfig.StoreName = storeName
	engineConfig.BatchSize = cfg.BatchSize
	engineConfig.RequiredConfirmations = cfg.Confirmations
	engineConfig.CoinbaseAbandonDepth = cfg.CoinbaseAbandonDepth
	engineConfig.OracleCallTimeout = cfg.OracleTimeout
	return engineConfig
}

// SchedulerConfig returns the scheduler configuration
func (cfg *Config) SchedulerConfig() *scheduler.Config {
	schedulerConfig := scheduler.DefaultConfig()
	schedulerConfig.RetryStrategy = scheduler.Limited(cfg.RetryLimit)
	if cfg.RetryUntilSuccess {
		schedulerConfig.RetryStrategy = scheduler.UntilSuccess()
	}
	return schedulerConfig
}
