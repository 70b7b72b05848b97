package config

// File paths and defaults used throughout the oliviad daemon
const (
	// Configuration file path
	DefaultConfigPath = "/etc/olivia/config.yaml"

	// Directory for operational log files, created before the first write
	DefaultLogDir = "logs"

	// Directory for catalog snapshots and the embedding index
	DefaultDataDir = "data"

	// Address of the status HTTP listener
	DefaultListenAddr = ":8080"
)
