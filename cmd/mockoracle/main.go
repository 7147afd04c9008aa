package main

import (
	"fmt"
	"os"
	"time"

	"github.com/kaspanet/reorgkeeper/domain/simchain"
	"github.com/kaspanet/reorgkeeper/infrastructure/logger"
	"github.com/kaspanet/reorgkeeper/infrastructure/network/oracle/grpcoracle"
	"github.com/kaspanet/reorgkeeper/infrastructure/os/signal"
)

func main() {
	cfg, err := parseConfig()
	if err != nil {
		printErrorAndExit(fmt.Sprintf("error parsing command-line arguments: %s", err))
	}

	err = logger.AddConsoleWriter(os.Stdout, logger.LevelTrace)
	if err != nil {
		printErrorAndExit(fmt.Sprintf("error initializing the logger: %s", err))
	}
	err = logger.BackendLog.Run()
	if err != nil {
		printErrorAndExit(fmt.Sprintf("error starting the logger: %s", err))
	}
	defer logger.BackendLog.Close()
	err = logger.SetLogLevelsString(cfg.DebugLevel)
	if err != nil {
		printErrorAndExit(err.Error())
	}

	chain := simchain.New()
	if cfg.Fixture != "" {
		fixture, err := simchain.LoadFixtureFile(cfg.Fixture)
		if err != nil {
			printErrorAndExit(fmt.Sprintf("error loading fixture: %+v", err))
		}
		chain, err = simchain.NewFromFixture(fixture)
		if err != nil {
			printErrorAndExit(fmt.Sprintf("error building the chain: %+v", err))
		}
	}
	tipHeight, tipHash := chain.Tip()
	log.Infof("Serving a chain with tip %s at height %d", tipHash, tipHeight)

	server := grpcoracle.NewServer(chain, []string{cfg.Listen})
	err = server.Start()
	if err != nil {
		printErrorAndExit(fmt.Sprintf("error starting the oracle server: %+v", err))
	}
	defer server.Stop()

	interrupt := signal.InterruptListener()
	if cfg.BlockInterval > 0 {
		spawn("mockoracle.mine", func() {
			ticker := time.NewTicker(cfg.BlockInterval)
			defer ticker.Stop()
			for {
				select {
				case <-interrupt:
					return
				case <-ticker.C:
					hash, err := chain.AddBlock(&simchain.BlockTemplate{})
					if err != nil {
						log.Errorf("Error adding a block: %+v", err)
						continue
					}
					log.Debugf("Mined block %s", hash)
				}
			}
		})
	}
	<-interrupt
}

func printErrorAndExit(message string) {
	fmt.Fprintln(os.Stderr, message)
	os.Exit(1)
}
