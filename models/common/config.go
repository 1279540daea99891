package common

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ipcollateral/lending-services/constants"
	"github.com/ipcollateral/lending-services/util"
	"github.com/ipcollateral/lending-services/util/logger"
	"github.com/op/go-logging"
	"github.com/spf13/viper"
)

const redacted = "********"

type Config struct {
	BorrowerChainID          int64
	ConfigName               string
	DemoMode                 bool
	IPAssetRegistryAddress   string
	LedgerChainID            int64
	LedgerPrivateKey         string
	LedgerRPCURL             string
	LendingContractAddress   string
	LoanTokenAddress         string
	LogDir                   string
	LogLevel                 logging.Level
	MaxFileSize              int64
	MediaBucket              string
	NsqLookupd               string
	NsqURL                   string
	PidFile                  string
	PollInterval             time.Duration
	PollMaxAttempts          int
	RedisDefaultDB           int
	RedisPassword            string
	RedisURL                 string
	S3Host                   string
	S3KeyID                  string
	S3SecretKey              string
	S3UseSSL                 bool
	VerificationAPIKey       string
	VerificationNetwork      string
	VerificationRateInterval time.Duration
	VerificationTimeout      time.Duration
	VerificationURL          string
	VerificationWorkers      int
}

// Returns a new config based on env vars LENDING_CONFIG_DIR and
// LENDING_ENV. Panics if the config can't be loaded.
func NewConfig() *Config {
	configDir, envName := getEnvVars()
	config, err := LoadConfig(configDir, envName)
	if err != nil {
		panic(fmt.Errorf("Fatal error config file: %s \n", err))
	}
	return config
}

// LoadConfig reads .env.<envName> from configDir.
func LoadConfig(configDir, envName string) (*Config, error) {
	v := viper.New()
	v.AddConfigPath(configDir)
	v.SetConfigName(".env." + envName)
	v.SetConfigType("env")
	setDefaults(v)
	err := v.ReadInConfig()
	if err != nil {
		return nil, err
	}
	logLevel, ok := logger.ParseLevel(v.GetString("LOG_LEVEL"))
	if !ok && v.GetString("LOG_LEVEL") != "" {
		return nil, fmt.Errorf("Unknown LOG_LEVEL '%s'", v.GetString("LOG_LEVEL"))
	}
	config := &Config{
		BorrowerChainID:          v.GetInt64("BORROWER_CHAIN_ID"),
		ConfigName:               envName,
		DemoMode:                 v.GetBool("DEMO_MODE"),
		IPAssetRegistryAddress:   v.GetString("IP_ASSET_REGISTRY_ADDRESS"),
		LedgerChainID:            v.GetInt64("LEDGER_CHAIN_ID"),
		LedgerPrivateKey:         v.GetString("LEDGER_PRIVATE_KEY"),
		LedgerRPCURL:             v.GetString("LEDGER_RPC_URL"),
		LendingContractAddress:   v.GetString("LENDING_CONTRACT_ADDRESS"),
		LoanTokenAddress:         v.GetString("LOAN_TOKEN_ADDRESS"),
		LogDir:                   v.GetString("LOG_DIR"),
		LogLevel:                 logLevel,
		MaxFileSize:              v.GetInt64("MAX_FILE_SIZE"),
		MediaBucket:              v.GetString("MEDIA_BUCKET"),
		NsqLookupd:               v.GetString("NSQ_LOOKUPD"),
		NsqURL:                   v.GetString("NSQ_URL"),
		PidFile:                  v.GetString("PID_FILE"),
		PollInterval:             v.GetDuration("POLL_INTERVAL"),
		PollMaxAttempts:          v.GetInt("POLL_MAX_ATTEMPTS"),
		RedisDefaultDB:           v.GetInt("REDIS_DEFAULT_DB"),
		RedisPassword:            v.GetString("REDIS_PASSWORD"),
		RedisURL:                 v.GetString("REDIS_URL"),
		S3Host:                   v.GetString("S3_HOST"),
		S3KeyID:                  v.GetString("S3_KEY"),
		S3SecretKey:              v.GetString("S3_SECRET"),
		S3UseSSL:                 v.GetBool("S3_USE_SSL"),
		VerificationAPIKey:       v.GetString("VERIFICATION_API_KEY"),
		VerificationNetwork:      v.GetString("VERIFICATION_NETWORK"),
		VerificationRateInterval: v.GetDuration("VERIFICATION_RATE_INTERVAL"),
		VerificationTimeout:      v.GetDuration("VERIFICATION_TIMEOUT"),
		VerificationURL:          strings.TrimRight(v.GetString("VERIFICATION_URL"), "/"),
		VerificationWorkers:      v.GetInt("VERIFICATION_WORKERS"),
	}
	err = config.expandPaths()
	if err == nil {
		err = config.validate()
	}
	if err == nil {
		err = config.sanityCheck()
	}
	if err == nil {
		err = config.makeDirs()
	}
	if err != nil {
		return nil, err
	}
	return config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("IP_ASSET_REGISTRY_ADDRESS", constants.DefaultIPAssetRegistry)
	v.SetDefault("LOG_LEVEL", "INFO")
	v.SetDefault("MAX_FILE_SIZE", 10*1024*1024)
	v.SetDefault("PID_FILE", "~/tmp/lending/verification_worker.pid")
	v.SetDefault("POLL_INTERVAL", constants.DefaultPollInterval)
	v.SetDefault("POLL_MAX_ATTEMPTS", constants.DefaultPollAttempts)
	v.SetDefault("VERIFICATION_NETWORK", constants.DefaultNetwork)
	v.SetDefault("VERIFICATION_RATE_INTERVAL", 200*time.Millisecond)
	v.SetDefault("VERIFICATION_TIMEOUT", 30*time.Second)
	v.SetDefault("VERIFICATION_WORKERS", 2)
}

func getEnvVars() (string, string) {
	configDir := getRequiredEnvVar("LENDING_CONFIG_DIR")
	envName := getRequiredEnvVar("LENDING_ENV")
	return configDir, envName
}

func getRequiredEnvVar(varName string) string {
	value := os.Getenv(varName)
	if value == "" {
		panic(fmt.Sprintf("Required env var %s not set", varName))
	}
	return value
}

// LedgerConfigured returns true if this config has enough settings
// to send transactions to the lending contract.
func (c *Config) LedgerConfigured() bool {
	return c.LedgerRPCURL != ""
}

// Expand ~ to home dir in path settings.
func (c *Config) expandPaths() error {
	var err error
	if c.LogDir, err = util.ExpandTilde(c.LogDir); err != nil {
		return err
	}
	c.PidFile, err = util.ExpandTilde(c.PidFile)
	return err
}

func (c *Config) validate() error {
	required := map[string]string{
		"LOG_DIR":      c.LogDir,
		"MEDIA_BUCKET": c.MediaBucket,
		"REDIS_URL":    c.RedisURL,
		"S3_HOST":      c.S3Host,
	}
	if !c.DemoMode {
		required["VERIFICATION_URL"] = c.VerificationURL
		required["VERIFICATION_API_KEY"] = c.VerificationAPIKey
	}
	if c.LedgerConfigured() {
		required["LEDGER_PRIVATE_KEY"] = c.LedgerPrivateKey
		required["LENDING_CONTRACT_ADDRESS"] = c.LendingContractAddress
	}
	missing := make([]string, 0)
	for name, value := range required {
		if value == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("Config is missing required settings: %s",
			strings.Join(missing, ", "))
	}
	if c.PollMaxAttempts < 1 {
		return fmt.Errorf("POLL_MAX_ATTEMPTS must be at least 1")
	}
	if c.PollInterval < 0 {
		return fmt.Errorf("POLL_INTERVAL cannot be negative")
	}
	return nil
}

// If this is dev or test env, don't let config point to any external
// services. This keeps a dev or test installation from moving real
// funds or overwriting real wallet data.
func (c *Config) sanityCheck() error {
	if c.ConfigName != "dev" && c.ConfigName != "test" {
		return nil
	}
	endpoints := map[string]string{
		"LEDGER_RPC_URL": c.LedgerRPCURL,
		"REDIS_URL":      c.RedisURL,
		"S3_HOST":        c.S3Host,
	}
	for name, endpoint := range endpoints {
		if endpoint != "" && !isLocalEndpoint(endpoint) {
			return fmt.Errorf("%s config cannot point %s at non-local host %s",
				c.ConfigName, name, endpoint)
		}
	}
	return nil
}

func isLocalEndpoint(endpoint string) bool {
	host := endpoint
	if strings.Contains(endpoint, "://") {
		parsed, err := url.Parse(endpoint)
		if err != nil {
			return false
		}
		host = parsed.Host
	}
	host = strings.Split(host, ":")[0]
	return host == "localhost" || host == "127.0.0.1"
}

func (c *Config) makeDirs() error {
	err := os.MkdirAll(c.LogDir, 0755)
	if err == nil && c.PidFile != "" {
		err = os.MkdirAll(filepath.Dir(c.PidFile), 0755)
	}
	return err
}

// ToJSON returns the config as JSON with secrets redacted. Apps print
// this at startup.
func (c *Config) ToJSON() ([]byte, error) {
	copied := *c
	for _, secret := range []*string{
		&copied.LedgerPrivateKey,
		&copied.RedisPassword,
		&copied.S3SecretKey,
		&copied.VerificationAPIKey,
	} {
		if *secret != "" {
			*secret = redacted
		}
	}
	return json.MarshalIndent(copied, "", "  ")
}
