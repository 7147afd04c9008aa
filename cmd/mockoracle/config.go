package main

import (
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/pkg/errors"
)

const (
	defaultListen     = "localhost:18142"
	defaultDebugLevel = "info"
)

type configFlags struct {
	Listen        string        `short:"l" long:"listen" description:"Interface/port to serve the oracle on"`
	Fixture       string        `short:"f" long:"fixture" description:"YAML chain fixture to serve"`
	BlockInterval time.Duration `long:"blockinterval" description:"Append an empty block at this interval (0 disables)"`
	DebugLevel    string        `short:"d" long:"debuglevel" description:"Logging level {trace, debug, info, warn, error, critical}"`
}

func parseConfig() (*configFlags, error) {
	cfg := &configFlags{
		Listen:     defaultListen,
		DebugLevel: defaultDebugLevel,
	}
	parser := flags.NewParser(cfg, flags.HelpFlag)
	parser.Usage = "mockoracle [OPTIONS]\n\nServes a simulated chain to reconcilers. Without --fixture the chain starts at genesis."
	_, err := parser.Parse()
	if err != nil {
		return nil, err
	}
	if cfg.BlockInterval < 0 {
		return nil, errors.Errorf("blockinterval must not be negative, got %s", cfg.BlockInterval)
	}
	return cfg, nil
}
