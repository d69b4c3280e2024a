package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"

	"minichain/blockchain"
	"minichain/consensus"
	"minichain/logx"
)

var ErrInvalidConfig = errors.New("invalid config")

// Default returns a config that runs a standalone node on localhost:5000.
func Default() *Config {
	return &Config{
		Node: NodeConfig{
			Owner:  DefaultOwner,
			Listen: DefaultListen,
		},
		Log: LogConfig{
			MaxSizeMB:  DefaultLogMaxSizeMB,
			MaxAgeDays: DefaultLogMaxAgeDays,
			MaxBackups: DefaultLogMaxBackups,
		},
		Mining: MiningConfig{
			Difficulty:  DefaultDifficulty,
			MaxAttempts: DefaultMaxAttempts,
			TimeoutMs:   DefaultMineTimeout,
		},
		Consensus: ConsensusConfig{
			FetchTimeoutMs:       DefaultFetchTimeoutMs,
			MaxConcurrentFetches: DefaultMaxConcurrentFetches,
			ResolveIntervalS:     DefaultResolveIntervalS,
		},
	}
}

// Load starts from Default and applies the node file and the tuning file.
// An empty path skips that file.
func Load(nodePath, tuningPath string) (*Config, error) {
	cfg := Default()
	if nodePath != "" {
		if err := LoadNodeConfig(nodePath, cfg); err != nil {
			return nil, err
		}
	}
	if tuningPath != "" {
		if err := LoadTuningConfig(tuningPath, cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// LoadNodeConfig decodes the yaml node file into cfg. Keys absent from the
// file keep their current value.
func LoadNodeConfig(path string, cfg *Config) error {
	logx.Debug("CONFIG", "Loading node config from ", path)
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open node config: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode node config %s: %w", path, err)
	}
	logx.Info("CONFIG", fmt.Sprintf("Loaded node config %s: owner=%s listen=%s peers=%d", path, cfg.Node.Owner, cfg.Node.Listen, len(cfg.Peers)))
	return nil
}

// LoadTuningConfig strictly maps the [mining] and [consensus] sections of an ini file onto cfg.
func LoadTuningConfig(path string, cfg *Config) error {
	file, err := ini.Load(path)
	if err != nil {
		return fmt.Errorf("load tuning config: %w", err)
	}
	if err := file.Section("mining").StrictMapTo(&cfg.Mining); err != nil {
		return fmt.Errorf("map [mining] in %s: %w", path, err)
	}
	if err := file.Section("consensus").StrictMapTo(&cfg.Consensus); err != nil {
		return fmt.Errorf("map [consensus] in %s: %w", path, err)
	}
	logx.Info("CONFIG", fmt.Sprintf("Loaded tuning config %s: difficulty=%d", path, cfg.Mining.Difficulty))
	return nil
}

// Validate rejects configs a node cannot run with.
func (c *Config) Validate() error {
	if c.Mining.Difficulty < 1 || c.Mining.Difficulty > MaxDifficulty {
		return fmt.Errorf("%w: mining.difficulty must be in 1..%d, got %d", ErrInvalidConfig, MaxDifficulty, c.Mining.Difficulty)
	}
	if c.Node.Owner == "" {
		return fmt.Errorf("%w: node.owner must not be empty", ErrInvalidConfig)
	}
	if c.Node.Listen == "" {
		return fmt.Errorf("%w: node.listen must not be empty", ErrInvalidConfig)
	}
	if c.Mining.TimeoutMs < 0 || c.Consensus.FetchTimeoutMs < 0 || c.Consensus.ResolveIntervalS < 0 {
		return fmt.Errorf("%w: timeouts and intervals must not be negative", ErrInvalidConfig)
	}
	return nil
}

func (c *Config) ProofParams() blockchain.ProofParams {
	return blockchain.ProofParams{
		Difficulty:  c.Mining.Difficulty,
		MaxAttempts: c.Mining.MaxAttempts,
	}
}

func (c *Config) MineTimeout() time.Duration {
	return time.Duration(c.Mining.TimeoutMs) * time.Millisecond
}

func (c *Config) ResolveInterval() time.Duration {
	return time.Duration(c.Consensus.ResolveIntervalS) * time.Second
}

func (c *Config) ResolverConfig() consensus.Config {
	return consensus.Config{
		FetchTimeout:         time.Duration(c.Consensus.FetchTimeoutMs) * time.Millisecond,
		MaxConcurrentFetches: c.Consensus.MaxConcurrentFetches,
	}
}

func (c *Config) LogOptions() logx.Options {
	return logx.Options{
		File:       c.Log.File,
		MaxSizeMB:  c.Log.MaxSizeMB,
		MaxAgeDays: c.Log.MaxAgeDays,
		MaxBackups: c.Log.MaxBackups,
		Debug:      c.Log.Debug,
	}
}
