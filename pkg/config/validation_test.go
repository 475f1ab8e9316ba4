package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verticedb/vertice/internal/bytesize"
)

func TestValidateDefaultConfig(t *testing.T) {
	assert.NoError(t, Validate(GetDefaultConfig()))
}

func TestValidateNilConfig(t *testing.T) {
	assert.Error(t, Validate(nil))
}

func TestValidateRejectsBadLogLevel(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Logging.Level = "VERBOSE"

	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "logging.level")
}

func TestValidateRejectsBadLogFormat(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Logging.Format = "xml"

	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "logging.format")
}

func TestValidateRejectsMissingRoots(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Store.DatabasesRoot = ""
	cfg.Store.TransactionLogsRoot = ""

	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.databasesroot")
	assert.Contains(t, err.Error(), "store.transactionlogsroot")
}

func TestValidateRejectsBadMetricsPort(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Metrics.Port = 70000

	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "metrics.port")
}

func TestValidateRejectsNonPowerOfTwoPageSize(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.PageCache.PageSize = bytesize.ByteSize(10000)

	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "power of two")
}

func TestValidateCollectsAllProblems(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Logging.Level = "VERBOSE"
	cfg.PageCache.PageSize = bytesize.ByteSize(10000)

	err := Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "logging.level")
	assert.Contains(t, err.Error(), "power of two")
}
