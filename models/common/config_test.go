package common_test

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ipcollateral/lending-services/models/common"
	"github.com/op/go-logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testEnv = `
LOG_DIR=%s
LOG_LEVEL=DEBUG
DEMO_MODE=false
VERIFICATION_URL=http://localhost:9400/v1/
VERIFICATION_API_KEY=secret-api-key
POLL_MAX_ATTEMPTS=3
POLL_INTERVAL=250ms
REDIS_URL=localhost:6379
REDIS_PASSWORD=redis-password
NSQ_URL=http://localhost:4151
NSQ_LOOKUPD=localhost:4161
S3_HOST=localhost:9899
S3_KEY=minioadmin
S3_SECRET=minio-secret
MEDIA_BUCKET=lending-media
LEDGER_RPC_URL=http://127.0.0.1:8545
LEDGER_CHAIN_ID=1315
LEDGER_PRIVATE_KEY=b71c71a67e1177ad4e901695e1b4b9ee17ae16c6668d313eac2f96dbcda3f291
LENDING_CONTRACT_ADDRESS=0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed
LOAN_TOKEN_ADDRESS=0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359
BORROWER_CHAIN_ID=1315
`

func writeEnvFile(t *testing.T, envName, contents string) string {
	dir := t.TempDir()
	logDir := filepath.Join(dir, "logs")
	path := filepath.Join(dir, ".env."+envName)
	require.Nil(t, os.WriteFile(path, []byte(fmt.Sprintf(contents, logDir)), 0644))
	return dir
}

func TestLoadConfig(t *testing.T) {
	dir := writeEnvFile(t, "test", testEnv)
	config, err := common.LoadConfig(dir, "test")
	require.Nil(t, err)
	require.NotNil(t, config)

	assert.Equal(t, "test", config.ConfigName)
	assert.Equal(t, logging.DEBUG, config.LogLevel)
	assert.False(t, config.DemoMode)
	assert.Equal(t, "http://localhost:9400/v1", config.VerificationURL)
	assert.Equal(t, "story", config.VerificationNetwork)
	assert.Equal(t, 3, config.PollMaxAttempts)
	assert.Equal(t, 250*time.Millisecond, config.PollInterval)
	assert.Equal(t, 30*time.Second, config.VerificationTimeout)
	assert.Equal(t, "lending-media", config.MediaBucket)
	assert.Equal(t, int64(1315), config.LedgerChainID)
	assert.Equal(t, "0x77319B4031e6eF1250907aa00018B8B1c67a244b", config.IPAssetRegistryAddress)
	assert.True(t, config.LedgerConfigured())
	assert.DirExists(t, config.LogDir)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := common.LoadConfig(t.TempDir(), "test")
	assert.NotNil(t, err)
}

func TestLoadConfigMissingSettings(t *testing.T) {
	dir := writeEnvFile(t, "test", "LOG_DIR=%s\nREDIS_URL=localhost:6379\n")
	_, err := common.LoadConfig(dir, "test")
	require.NotNil(t, err)
	assert.Contains(t, err.Error(), "MEDIA_BUCKET")
	assert.Contains(t, err.Error(), "VERIFICATION_API_KEY")
}

func TestLoadConfigDemoMode(t *testing.T) {
	env := "LOG_DIR=%s\nDEMO_MODE=true\nREDIS_URL=localhost:6379\n" +
		"S3_HOST=localhost:9899\nMEDIA_BUCKET=media\n"
	dir := writeEnvFile(t, "dev", env)
	config, err := common.LoadConfig(dir, "dev")
	require.Nil(t, err)
	assert.True(t, config.DemoMode)
	assert.False(t, config.LedgerConfigured())
	assert.Equal(t, 10, config.PollMaxAttempts)
	assert.Equal(t, 2*time.Second, config.PollInterval)
}

func TestLoadConfigRejectsRemoteHostsInTest(t *testing.T) {
	env := "LOG_DIR=%s\nDEMO_MODE=true\nREDIS_URL=redis.example.com:6379\n" +
		"S3_HOST=localhost:9899\nMEDIA_BUCKET=media\n"
	dir := writeEnvFile(t, "test", env)
	_, err := common.LoadConfig(dir, "test")
	require.NotNil(t, err)
	assert.Contains(t, err.Error(), "REDIS_URL")

	// Other environments may use remote hosts.
	dir = writeEnvFile(t, "production", env)
	_, err = common.LoadConfig(dir, "production")
	assert.Nil(t, err)
}

func TestConfigToJSONRedactsSecrets(t *testing.T) {
	dir := writeEnvFile(t, "test", testEnv)
	config, err := common.LoadConfig(dir, "test")
	require.Nil(t, err)

	data, err := config.ToJSON()
	require.Nil(t, err)
	jsonString := string(data)
	assert.NotContains(t, jsonString, "secret-api-key")
	assert.NotContains(t, jsonString, "redis-password")
	assert.NotContains(t, jsonString, "minio-secret")
	assert.NotContains(t, jsonString, config.LedgerPrivateKey)

	values := make(map[string]interface{})
	require.Nil(t, json.Unmarshal(data, &values))
	assert.Equal(t, "********", values["VerificationAPIKey"])
	assert.Equal(t, "lending-media", values["MediaBucket"])

	// The original is untouched.
	assert.Equal(t, "secret-api-key", config.VerificationAPIKey)
}
