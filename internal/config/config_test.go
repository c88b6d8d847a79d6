package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chainExplorer/internal/model"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	flags := pflag.NewFlagSet("ingest", pflag.ContinueOnError)
	flags.String("rpc", "", "")
	flags.Uint64("start-height", 0, "")
	require.NoError(t, flags.Parse([]string{"--rpc", "http://localhost:8545"}))

	cfg, err := Load("", flags)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8545", cfg.RPCURL)
	assert.Equal(t, StorePostgres, cfg.Store)
	assert.False(t, cfg.HasStartHeight)
	assert.Equal(t, time.Second, cfg.PollInterval)
	assert.Equal(t, 30*time.Second, cfg.RetryMax)
	assert.Len(t, cfg.SkipBlocks, 20)
	assert.Len(t, cfg.SkipTxs, 8)

	blocks, txs, err := cfg.Denylists()
	require.NoError(t, err)
	assert.Equal(t, 20, blocks.Len())
	assert.Equal(t, 8, txs.Len())
	assert.True(t, txs.Contains("0xA003975AA8BA46C056F0FDB27E5441E421523BDF9B5DD6F575A53470028E5B36"))

	backoff := cfg.Backoff()
	assert.Equal(t, time.Second, backoff.Delay(3), "multiplier 1 keeps a fixed interval")
}

func TestLoadStartHeightFlag(t *testing.T) {
	flags := pflag.NewFlagSet("ingest", pflag.ContinueOnError)
	flags.String("rpc", "", "")
	flags.Uint64("start-height", 0, "")
	require.NoError(t, flags.Parse([]string{"--rpc", "http://node", "--start-height", "0"}))

	cfg, err := Load("", flags)
	require.NoError(t, err)
	assert.True(t, cfg.HasStartHeight, "an explicit zero is honoured")
	assert.Zero(t, cfg.StartHeight)
}

func TestLoadRejectsUnboundedBackoff(t *testing.T) {
	flags := pflag.NewFlagSet("ingest", pflag.ContinueOnError)
	flags.String("rpc", "", "")
	flags.Duration("retry-max", 30*time.Second, "")
	flags.Float64("retry-multiplier", 1, "")
	require.NoError(t, flags.Parse([]string{"--rpc", "http://node", "--retry-max", "0s", "--retry-multiplier", "2"}))

	_, err := Load("", flags)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "retry-max")

	require.NoError(t, flags.Set("retry-multiplier", "1"))
	cfg, err := Load("", flags)
	require.NoError(t, err, "a fixed interval needs no cap")
	assert.Zero(t, cfg.RetryMax)
}

func TestLoadRequiresRPC(t *testing.T) {
	_, err := Load("", nil)
	assert.Error(t, err)
}

func TestLoadFromFileAndEnv(t *testing.T) {
	path := writeConfig(t, `
rpc: http://node:8545
store: bolt
bolt-path: /tmp/chain.db
retry-multiplier: 2
skip-blocks: []
contracts:
  - address: "0x623761F60D677addBD5A07385e037105A13201EF"
    kind: token
    token:
      decimals: 6
      symbol: USDT
      name: Tether
  - address: "0xa61258EC3A0f0c99461Ea2F3458930a1dBEacF16"
    kind: router
    name: router
`)
	t.Setenv("EXPLORER_MIN_REORG_HEIGHT", "1200")
	t.Setenv("EXPLORER_PG_DSN", "postgres://explorer:secret@db:5432/explorer")

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, StoreBolt, cfg.Store)
	assert.Equal(t, uint64(1200), cfg.MinReorgHeight)
	assert.Equal(t, 2.0, cfg.RetryMultiplier)
	assert.Empty(t, cfg.SkipBlocks)
	require.Len(t, cfg.Contracts, 2)
	assert.Equal(t, uint8(6), cfg.Contracts[0].Token.Decimals)

	reg, err := cfg.Registry()
	require.NoError(t, err)
	assert.Equal(t, 2, reg.Len())
	assert.Equal(t, []string{"0x623761F60D677addBD5A07385e037105A13201EF"}, reg.OfKind(model.KindToken))

	redacted := cfg.Redacted()
	assert.Equal(t, "postgres://explorer:xxxxx@db:5432/explorer", redacted.PostgresDSN)
	assert.Equal(t, "postgres://explorer:secret@db:5432/explorer", cfg.PostgresDSN)
}

func TestLoadDecode(t *testing.T) {
	flags := pflag.NewFlagSet("decode", pflag.ContinueOnError)
	flags.Bool("once", false, "")
	flags.Int("batch-size", 1000, "")
	require.NoError(t, flags.Parse([]string{"--once", "--batch-size", "50"}))

	cfg, err := LoadDecode("", flags)
	require.NoError(t, err)
	assert.True(t, cfg.Once)
	assert.Equal(t, 50, cfg.BatchSize)
	assert.Equal(t, 10*time.Second, cfg.PollInterval)
	assert.Equal(t, 5*time.Minute, cfg.RetryAfter)

	skip, err := cfg.Denylist()
	require.NoError(t, err)
	assert.Equal(t, 2, skip.Len())

	reg, err := cfg.Registry()
	require.NoError(t, err)
	assert.Equal(t, 10, reg.Len(), "bundled contracts without configuration")
}

func TestLoadRejectsUnknownStore(t *testing.T) {
	t.Setenv("EXPLORER_STORE", "mongo")
	_, err := LoadQuery("", nil)
	assert.Error(t, err)
}

func TestRedactDSN(t *testing.T) {
	assert.Equal(t, "", redactDSN(""))
	assert.Equal(t, "postgres://localhost/db", redactDSN("postgres://localhost/db"))
	assert.Equal(t, "host=db user=x", redactDSN("host=db user=x"))
}
