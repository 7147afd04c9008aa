// Package app wires the reconciler: configuration, logging, tracked item
// storage, the oracle connection and the validation scheduler.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kaspanet/reorgkeeper/infrastructure/config"
	"github.com/kaspanet/reorgkeeper/infrastructure/db/database"
	"github.com/kaspanet/reorgkeeper/infrastructure/db/database/bolt"
	"github.com/kaspanet/reorgkeeper/infrastructure/db/database/ldb"
	"github.com/kaspanet/reorgkeeper/infrastructure/logger"
	"github.com/kaspanet/reorgkeeper/infrastructure/os/signal"
	"github.com/kaspanet/reorgkeeper/util/panics"
	"github.com/kaspanet/reorgkeeper/util/profiling"
	"github.com/kaspanet/reorgkeeper/version"
	"github.com/pkg/errors"
	"golang.org/x/term"
)

const databaseDirectoryName = "tracked-items"

// StartApp starts the reconciler app, and blocks until it finishes running
func StartApp() error {
	defer panics.HandlePanic(log, "MAIN", nil)

	// Load configuration and parse command line. This function also
	// initializes logging and configures it accordingly.
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		return err
	}
	err = initLog(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}
	defer logger.BackendLog.Close()

	log.Infof("Version %s", version.Version())

	if cfg.Profile != "" {
		err := profiling.Start(cfg.Profile, log)
		if err != nil {
			log.Errorf("%+v", err)
			return err
		}
	}

	interrupt := signal.InterruptListener()

	db, err := openDB(cfg)
	if err != nil {
		log.Errorf("Error opening the tracked item database: %+v", err)
		return err
	}
	if db != nil {
		defer func() {
			log.Infof("Gracefully shutting down the database...")
			err := db.Close()
			if err != nil {
				log.Errorf("Failed to close the database: %s", err)
			}
		}()
	}

	componentManager, err := NewComponentManager(cfg, db)
	if err != nil {
		log.Errorf("Error creating the reconciler: %+v", err)
		return err
	}
	defer componentManager.Stop()

	if cfg.Once {
		err := componentManager.ValidateNow(context.Background())
		if err != nil {
			log.Errorf("%+v", err)
		}
		return err
	}

	componentManager.Start()
	<-interrupt
	return nil
}

func initLog(cfg *config.Config) error {
	if cfg.DebugLevel == "show" {
		fmt.Println("Supported subsystems", logger.SupportedSubsystems())
		os.Exit(0)
	}

	// Mirror the log to stdout only when someone is watching
	if term.IsTerminal(int(os.Stdout.Fd())) {
		err := logger.AddConsoleWriter(os.Stdout, logger.LevelInfo)
		if err != nil {
			return err
		}
	}
	logger.InitLog(cfg.LogFile, cfg.ErrLogFile)

	err := logger.SetLogLevelsString(cfg.DebugLevel)
	if err != nil {
		return errors.Wrapf(err, "invalid debuglevel %s", cfg.DebugLevel)
	}
	return nil
}

func openDB(cfg *config.Config) (database.Database, error) {
	if cfg.DbType == config.DbTypeMemory {
		log.Warnf("Using in-memory stores, tracked items will not survive a restart")
		return nil, nil
	}

	dbPath := filepath.Join(cfg.DataDir, databaseDirectoryName)
	err := checkDatabaseVersion(dbPath)
	if err != nil {
		return nil, err
	}

	log.Infof("Loading %s database from '%s'", cfg.DbType, dbPath)
	switch cfg.DbType {
	case config.DbTypeLevelDB:
		db, err := ldb.NewLevelDB(filepath.Join(dbPath, "leveldb"), cfg.CacheSizeMiB)
		if err != nil {
			return nil, err
		}
		return db, nil
	case config.DbTypeBolt:
		db, err := bolt.NewBoltDB(filepath.Join(dbPath, "items.db"))
		if err != nil {
			return nil, err
		}
		return db, nil
	}
	return nil, errors.Errorf("unsupported database type %s", cfg.DbType)
}
