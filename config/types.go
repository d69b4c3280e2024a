package config

// Config is everything a node needs to start. Default fills every field;
// node.yml and config.ini override what they set.
type Config struct {
	Node      NodeConfig      `yaml:"node"`
	Peers     []string        `yaml:"peers"`
	Log       LogConfig       `yaml:"log"`
	Snapshot  SnapshotConfig  `yaml:"snapshot"`
	Mining    MiningConfig    `yaml:"-"`
	Consensus ConsensusConfig `yaml:"-"`
}

type NodeConfig struct {
	ID     string `yaml:"id"`
	Owner  string `yaml:"owner"`
	Listen string `yaml:"listen"`
}

type LogConfig struct {
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxAgeDays int    `yaml:"max_age_days"`
	MaxBackups int    `yaml:"max_backups"`
	Debug      bool   `yaml:"debug"`
}

type SnapshotConfig struct {
	// Path of the bbolt file. Empty disables snapshots.
	Path string `yaml:"path"`
}

type MiningConfig struct {
	Difficulty  int    `ini:"difficulty"`
	MaxAttempts uint64 `ini:"max_attempts"`
	TimeoutMs   int    `ini:"timeout_ms"`
}

type ConsensusConfig struct {
	FetchTimeoutMs       int `ini:"fetch_timeout_ms"`
	MaxConcurrentFetches int `ini:"max_concurrent_fetches"`
	ResolveIntervalS     int `ini:"resolve_interval_s"`
	MaxPeers             int `ini:"max_peers"`
}
