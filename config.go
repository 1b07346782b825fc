package prism

import "time"

// Config consolidates engine settings.
type Config struct {
	Query   QueryConfig   `json:"query"`
	Flow    FlowSettings  `json:"flow"`
	Logging LoggingConfig `json:"logging"`
}

// QueryConfig contains query planning and execution settings.
type QueryConfig struct {
	DefaultTimeout      time.Duration `json:"defaultTimeout"`
	MaxRows             int           `json:"maxRows"`
	DefaultLimit        int           `json:"defaultLimit"`
	DistinctValuesLimit int           `json:"distinctValuesLimit"`
}

// FlowSettings contains flow-query defaults.
type FlowSettings struct {
	DefaultEntityLimit int `json:"defaultEntityLimit"`
	WarnDepth          int `json:"warnDepth"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	LogSQL bool `json:"logSql"`
}

// DuckDBConfig configures an embedded DuckDB database handle.
type DuckDBConfig struct {
	DBPath         string   `json:"dbPath"` // empty means in-memory
	MemoryLimitMB  int      `json:"memoryLimitMb"`
	MaxParallelism int      `json:"maxParallelism"`
	MaxConnections int      `json:"maxConnections"`
	Extensions     []string `json:"extensions"`
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() *Config {
	return &Config{
		Query: QueryConfig{
			DefaultTimeout:      30 * time.Second,
			MaxRows:             50000,
			DefaultLimit:        10000,
			DistinctValuesLimit: 1000,
		},
		Flow: FlowSettings{
			DefaultEntityLimit: 10000,
			WarnDepth:          4,
		},
		Logging: LoggingConfig{
			LogSQL: false,
		},
	}
}
