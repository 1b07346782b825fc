package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/lychee-technology/prism"
	"github.com/lychee-technology/prism/factory"
)

// Server is the HTTP facade over the semantic engine. Connections are owned
// here, never by the engine; each request borrows the shared handle through
// its QueryContext.
type Server struct {
	engine  prism.Engine
	conn    prism.Connection
	timeout time.Duration
	mux     *http.ServeMux
}

// NewServer creates a new Server instance.
func NewServer(engine prism.Engine, conn prism.Connection, timeout time.Duration) *Server {
	return &Server{
		engine:  engine,
		conn:    conn,
		timeout: timeout,
		mux:     http.NewServeMux(),
	}
}

// RegisterRoutes registers all API routes.
func (s *Server) RegisterRoutes() {
	s.mux.HandleFunc("/api/v1/metadata", s.handleMetadata)
	s.mux.HandleFunc("/api/v1/query", s.handleQuery)
	s.mux.HandleFunc("/api/v1/compile", s.handleCompile)
	s.mux.HandleFunc("/api/v1/flow", s.handleFlow)
	s.mux.HandleFunc("/api/v1/explain", s.handleExplain)
	s.mux.HandleFunc("/api/v1/indexes", s.handleIndexes)
	s.mux.HandleFunc("/api/v1/values/", s.handleDistinctValues)
}

// Start starts the HTTP server on the given port.
func (s *Server) Start(port string) error {
	zap.S().Infow("starting server", "port", port)
	return http.ListenAndServe(":"+port, s.mux)
}

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)
	sugar := logger.Sugar()

	cubeDir := getEnv("CUBE_DIR", "./cubes")
	sugar.Infof("cubeDir: %s", cubeDir)

	registry, err := loadCubeDir(cubeDir)
	if err != nil {
		sugar.Fatalf("failed to load cube definitions: %v", err)
	}

	engine, err := factory.NewEngine(registry, nil)
	if err != nil {
		sugar.Fatalf("failed to create engine: %v", err)
	}

	var conn prism.Connection
	switch backend := getEnv("DB_ENGINE", "postgres"); backend {
	case "postgres":
		dbConfig := databaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			Database:        getEnv("DB_NAME", "prism"),
			Username:        getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", ""),
			SSLMode:         getEnv("DB_SSL_MODE", "disable"),
			MaxConnections:  getEnvInt("DB_MAX_CONNECTIONS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: time.Duration(getEnvInt("DB_CONN_MAX_LIFETIME_SECONDS", 3600)) * time.Second,
			ConnMaxIdleTime: time.Duration(getEnvInt("DB_CONN_MAX_IDLE_TIME_SECONDS", 300)) * time.Second,
			Timeout:         time.Duration(getEnvInt("DB_TIMEOUT_SECONDS", 30)) * time.Second,
		}
		pool, err := createDatabasePoolFromConfig(dbConfig)
		if err != nil {
			sugar.Fatalf("failed to create database pool: %v", err)
		}
		defer pool.Close()
		conn = factory.NewPostgresConnection(pool)
	case "duckdb":
		duckConn, closeDB, err := factory.NewDuckDBConnection(prism.DuckDBConfig{
			DBPath:        getEnv("DUCKDB_PATH", ""),
			MemoryLimitMB: getEnvInt("DUCKDB_MEMORY_LIMIT_MB", 0),
		})
		if err != nil {
			sugar.Fatalf("failed to open duckdb: %v", err)
		}
		defer closeDB()
		conn = duckConn
	default:
		sugar.Fatalf("unsupported DB_ENGINE: %s", backend)
	}

	timeout := time.Duration(getEnvInt("QUERY_TIMEOUT_SECONDS", 30)) * time.Second

	server := NewServer(engine, conn, timeout)
	server.RegisterRoutes()

	port := getEnv("PORT", "8080")
	if err := server.Start(port); err != nil {
		sugar.Fatalf("server error: %v", err)
	}
}

// databaseConfig holds the Postgres pool settings read from the environment.
type databaseConfig struct {
	Host            string
	Port            int
	Database        string
	Username        string
	Password        string
	SSLMode         string
	MaxConnections  int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	Timeout         time.Duration
}

// createDatabasePoolFromConfig creates a PostgreSQL connection pool from config.
func createDatabasePoolFromConfig(config databaseConfig) (*pgxpool.Pool, error) {
	connString := fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		config.Username,
		config.Password,
		config.Host,
		config.Port,
		config.Database,
		config.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	poolConfig.MaxConns = int32(config.MaxConnections)
	poolConfig.MinConns = int32(config.MaxIdleConns)
	poolConfig.MaxConnLifetime = config.ConnMaxLifetime
	poolConfig.MaxConnIdleTime = config.ConnMaxIdleTime
	poolConfig.ConnConfig.ConnectTimeout = config.Timeout

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Test the connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
