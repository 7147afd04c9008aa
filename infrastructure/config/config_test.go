package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kaspanet/reorgkeeper/app/scheduler"
)

func writeConfigFile(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "test.conf")
	err := os.WriteFile(path, []byte(content), 0600)
	if err != nil {
		t.Fatalf("WriteFile: %s", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "missing.conf")
	cfg, err := Load([]string{"--configfile", configFile})
	if err != nil {
		t.Fatalf("Load: %s", err)
	}
	if cfg.DbType != DbTypeLevelDB {
		t.Errorf("unexpected dbtype %s", cfg.DbType)
	}
	if len(cfg.Stores) != 1 || cfg.Stores[0] != defaultStoreName {
		t.Errorf("unexpected stores %v", cfg.Stores)
	}

	engineConfig := cfg.ReconciliationConfig("wallet")
	if engineConfig.StoreName != "wallet" || engineConfig.RequiredConfirmations != defaultConfirmations ||
		engineConfig.BatchSize != defaultBatchSize || engineConfig.CoinbaseAbandonDepth != 0 {
		t.Errorf("unexpected engine config %+v", engineConfig)
	}
	if cfg.SchedulerConfig().RetryStrategy != scheduler.Limited(defaultRetryLimit) {
		t.Errorf("unexpected retry strategy %s", cfg.SchedulerConfig().RetryStrategy)
	}
}

func TestCommandLineOverridesConfigFile(t *testing.T) {
	configFile := writeConfigFile(t, `[Application Options]
batchsize=10
confirmations=6
dbtype=bolt
stores=alice
stores=bob
oracletimeout=5s
`)
	cfg, err := Load([]string{"--configfile", configFile, "--batchsize=20", "--retryuntilsuccess"})
	if err != nil {
		t.Fatalf("Load: %s", err)
	}
	if cfg.BatchSize != 20 {
		t.Errorf("expected the command line batch size, got %d", cfg.BatchSize)
	}
	if cfg.Confirmations != 6 || cfg.DbType != DbTypeBolt || cfg.OracleTimeout != 5*time.Second {
		t.Errorf("config file options were not applied: %+v", cfg.Flags)
	}
	if len(cfg.Stores) != 2 || cfg.Stores[0] != "alice" || cfg.Stores[1] != "bob" {
		t.Errorf("unexpected stores %v", cfg.Stores)
	}
	if cfg.SchedulerConfig().RetryStrategy != scheduler.UntilSuccess() {
		t.Errorf("unexpected retry strategy %s", cfg.SchedulerConfig().RetryStrategy)
	}
}

func TestLoadValidation(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "missing.conf")
	tests := []struct {
		name string
		args []string
	}{
		{name: "unknown dbtype", args: []string{"--dbtype=mysql"}},
		{name: "bad proxy", args: []string{"--proxy=localhost"}},
		{name: "zero batch size", args: []string{"--batchsize=0"}},
		{name: "zero confirmations", args: []string{"--confirmations=0"}},
		{name: "short interval", args: []string{"--interval=10ms"}},
		{name: "duplicate store", args: []string{"--stores=a", "--stores=a"}},
		{name: "store with separator", args: []string{"--stores=a/b"}},
		{name: "unknown option", args: []string{"--nosuchoption"}},
	}
	for _, test := range tests {
		args := append([]string{"--configfile", configFile}, test.args...)
		_, err := Load(args)
		if err == nil {
			t.Errorf("%s: expected an error", test.name)
		}
	}
}
