package config

const (
	DefaultListen = "localhost:5000"
	DefaultOwner  = "minichain-node"

	DefaultDifficulty  = 2
	DefaultMaxAttempts = 0
	DefaultMineTimeout = 0

	DefaultFetchTimeoutMs       = 5000
	DefaultMaxConcurrentFetches = 16
	DefaultResolveIntervalS     = 0

	DefaultLogMaxSizeMB  = 100
	DefaultLogMaxAgeDays = 7
	DefaultLogMaxBackups = 3

	// MaxDifficulty is the digest length; a difficulty above it can never be met.
	MaxDifficulty = 32
)
