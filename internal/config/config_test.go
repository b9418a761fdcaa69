package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setAccounts(t *testing.T) {
	t.Setenv("CHECKBOOK_ACCOUNTING_DEBIT_ACCOUNT_ID", "11")
	t.Setenv("CHECKBOOK_ACCOUNTING_CREDIT_ACCOUNT_ID", "22")
	t.Setenv("CHECKBOOK_ACCOUNTING_AUXILIARY_ACCOUNT_ID", "33")
}

func TestLoad_Defaults(t *testing.T) {
	setAccounts(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, ":8080", cfg.Addr())
	assert.Equal(t, StoragePostgres, cfg.Storage.Driver)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "check-events", cfg.Kafka.Topic)
	assert.Equal(t, 5*time.Second, cfg.Worker.PollInterval)
	assert.Equal(t, int64(11), cfg.Accounting.DebitAccountID)
	assert.Equal(t, int64(22), cfg.Accounting.CreditAccountID)
	assert.Equal(t, int64(33), cfg.Accounting.AuxiliaryAccountID)
	assert.Equal(t, uint32(5), cfg.Accounting.BreakerFailures)
}

func TestLoad_EnvOverrides(t *testing.T) {
	setAccounts(t)
	t.Setenv("CHECKBOOK_HTTP_PORT", "9090")
	t.Setenv("CHECKBOOK_STORAGE_DRIVER", "memory")
	t.Setenv("CHECKBOOK_KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.HTTP.Port)
	assert.Equal(t, StorageMemory, cfg.Storage.Driver)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
}

func TestLoad_DotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "CHECKBOOK_ACCOUNTING_DEBIT_ACCOUNT_ID=1\n" +
		"CHECKBOOK_ACCOUNTING_CREDIT_ACCOUNT_ID=2\n" +
		"CHECKBOOK_ACCOUNTING_AUXILIARY_ACCOUNT_ID=3\n" +
		"CHECKBOOK_LOG_LEVEL=debug\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	for _, key := range []string{
		"CHECKBOOK_ACCOUNTING_DEBIT_ACCOUNT_ID",
		"CHECKBOOK_ACCOUNTING_CREDIT_ACCOUNT_ID",
		"CHECKBOOK_ACCOUNTING_AUXILIARY_ACCOUNT_ID",
		"CHECKBOOK_LOG_LEVEL",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, int64(3), cfg.Accounting.AuxiliaryAccountID)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		c := &Config{}
		c.HTTP.Port = 8080
		c.Storage.Driver = StorageMemory
		c.Accounting.BaseURL = "http://ledger"
		c.Accounting.DebitAccountID = 1
		c.Accounting.CreditAccountID = 2
		c.Accounting.AuxiliaryAccountID = 3
		return c
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "missing debit", mutate: func(c *Config) { c.Accounting.DebitAccountID = 0 }, wantErr: "debit account id"},
		{name: "missing credit", mutate: func(c *Config) { c.Accounting.CreditAccountID = 0 }, wantErr: "credit account id"},
		{name: "missing auxiliary", mutate: func(c *Config) { c.Accounting.AuxiliaryAccountID = -1 }, wantErr: "auxiliary account id"},
		{name: "unknown driver", mutate: func(c *Config) { c.Storage.Driver = "sqlite" }, wantErr: `unknown storage driver "sqlite"`},
		{name: "postgres without dsn", mutate: func(c *Config) { c.Storage.Driver = StoragePostgres }, wantErr: "database DSN"},
		{name: "bad port", mutate: func(c *Config) { c.HTTP.Port = 0 }, wantErr: "invalid HTTP port"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_MissingAccountsFails(t *testing.T) {
	for _, key := range []string{
		"CHECKBOOK_ACCOUNTING_DEBIT_ACCOUNT_ID",
		"CHECKBOOK_ACCOUNTING_CREDIT_ACCOUNT_ID",
		"CHECKBOOK_ACCOUNTING_AUXILIARY_ACCOUNT_ID",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "debit account id")
}
