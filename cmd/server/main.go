// Command server starts the asset delivery HTTP service.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"assetgate/internal/api"
	"assetgate/internal/assets"
	"assetgate/internal/observability/logging"
	"assetgate/internal/server"
	"assetgate/internal/storage"
)

func main() {
	addr := flag.String("addr", "", "HTTP listen address")
	mode := flag.String("mode", "", "server runtime mode (development or production)")
	logLevel := flag.String("log-level", "info", "log level (debug, info, warn, error)")
	logFormat := flag.String("log-format", "", "log format (json or text)")
	dataDir := flag.String("data-dir", "", "directory holding asset blobs")
	storageDriver := flag.String("storage-driver", "", "asset metadata driver (memory or postgres)")
	postgresDSN := flag.String("postgres-dsn", "", "Postgres connection string for asset metadata")
	postgresMaxConns := flag.Int("postgres-max-conns", 0, "maximum connections in the Postgres pool")
	postgresMinConns := flag.Int("postgres-min-conns", 0, "minimum idle connections maintained by the Postgres pool")
	postgresMaxConnLifetime := flag.Duration("postgres-max-conn-lifetime", 0, "maximum lifetime for a pooled Postgres connection")
	postgresMaxConnIdle := flag.Duration("postgres-max-conn-idle", 0, "maximum idle time for a pooled Postgres connection")
	postgresHealthInterval := flag.Duration("postgres-health-interval", 0, "interval between Postgres health checks")
	postgresAcquireTimeout := flag.Duration("postgres-acquire-timeout", 0, "timeout when acquiring a Postgres connection from the pool")
	postgresAppName := flag.String("postgres-app-name", "", "application_name reported to Postgres")
	tokenStoreDriver := flag.String("token-store", "", "token store driver (memory or redis)")
	tokenTTL := flag.Duration("token-ttl", 0, "default lifetime for issued access tokens")
	tokenPurgeInterval := flag.Duration("token-purge-interval", 0, "interval between expired token sweeps for the memory store")
	redisAddr := flag.String("redis-addr", "", "Redis address for the token store")
	redisAddrs := flag.String("redis-addrs", "", "comma separated Redis addresses for the token store")
	redisUsername := flag.String("redis-username", "", "Redis username for the token store")
	redisPassword := flag.String("redis-password", "", "Redis password for the token store")
	redisDB := flag.Int("redis-db", 0, "Redis database index for the token store")
	redisKeyPrefix := flag.String("redis-key-prefix", "", "Redis key prefix for token records")
	redisMasterName := flag.String("redis-sentinel-master", "", "Redis sentinel master name for the token store")
	redisPoolSize := flag.Int("redis-pool-size", 0, "maximum Redis connections for the token store")
	redisTimeout := flag.Duration("redis-timeout", 0, "timeout for Redis operations")
	redisTLSCA := flag.String("redis-tls-ca", "", "path to Redis TLS CA certificate")
	redisTLSCert := flag.String("redis-tls-cert", "", "path to Redis TLS client certificate")
	redisTLSKey := flag.String("redis-tls-key", "", "path to Redis TLS client key")
	redisTLSServerName := flag.String("redis-tls-server-name", "", "override Redis TLS server name")
	redisTLSSkipVerify := flag.Bool("redis-tls-skip-verify", false, "skip Redis TLS verification")
	apiKeys := flag.String("api-keys", "", "comma separated API keys (plaintext or pbkdf2 hashes)")
	maxUploadBytes := flag.Int64("max-upload-bytes", 0, "maximum accepted upload size in bytes")
	corsOrigins := flag.String("cors-origins", "", "comma separated origins allowed to call the API")
	tlsCert := flag.String("tls-cert", "", "path to TLS certificate file")
	tlsKey := flag.String("tls-key", "", "path to TLS private key file")
	flag.Parse()

	logger := logging.Init(logging.Config{
		Level:  firstNonEmpty(*logLevel, os.Getenv("ASSETGATE_LOG_LEVEL")),
		Format: firstNonEmpty(*logFormat, os.Getenv("ASSETGATE_LOG_FORMAT")),
	})

	serverMode := modeValue(*mode, os.Getenv("ASSETGATE_MODE"))
	listenAddr := resolveListenAddr(*addr, serverMode, os.Getenv("ASSETGATE_ADDR"))
	blobDir := resolveDataDir(*dataDir, os.Getenv("ASSETGATE_DATA_DIR"))

	postgresDefaultDSN := resolvePostgresDSN(*postgresDSN)
	driver, err := resolveStorageDriver(*storageDriver, os.Getenv("ASSETGATE_STORAGE_DRIVER"), postgresDefaultDSN)
	if err != nil {
		logger.Error("failed to resolve storage driver", "error", err)
		os.Exit(1)
	}
	if serverMode == "production" {
		if err := validateProductionDatastore(driver, postgresDefaultDSN); err != nil {
			logger.Error("production datastore validation failed", "error", err)
			os.Exit(1)
		}
	}

	ctx := context.Background()

	var (
		store       storage.AssetStore
		storeCloser func(context.Context) error
	)
	switch driver {
	case "memory":
		store = storage.NewMemoryAssetStore()
	case "postgres":
		pgStore, err := storage.NewPostgresAssetStore(ctx, storage.PostgresConfig{
			DSN:                 postgresDefaultDSN,
			MaxConnections:      int32(resolveInt(*postgresMaxConns, "ASSETGATE_POSTGRES_MAX_CONNS")),
			MinConnections:      int32(resolveInt(*postgresMinConns, "ASSETGATE_POSTGRES_MIN_CONNS")),
			MaxConnLifetime:     resolveDuration(*postgresMaxConnLifetime, "ASSETGATE_POSTGRES_MAX_CONN_LIFETIME", 0),
			MaxConnIdleTime:     resolveDuration(*postgresMaxConnIdle, "ASSETGATE_POSTGRES_MAX_CONN_IDLE", 0),
			HealthCheckInterval: resolveDuration(*postgresHealthInterval, "ASSETGATE_POSTGRES_HEALTH_INTERVAL", 0),
			AcquireTimeout:      resolveDuration(*postgresAcquireTimeout, "ASSETGATE_POSTGRES_ACQUIRE_TIMEOUT", 0),
			ApplicationName:     firstNonEmpty(*postgresAppName, os.Getenv("ASSETGATE_POSTGRES_APP_NAME")),
		})
		if err != nil {
			logger.Error("failed to open asset store", "error", err)
			os.Exit(1)
		}
		store = pgStore
		storeCloser = pgStore.Close
	default:
		logger.Error("unsupported storage driver", "driver", driver)
		os.Exit(1)
	}

	tokenDriver := resolveTokenStoreDriver(*tokenStoreDriver, os.Getenv("ASSETGATE_TOKEN_STORE"), firstNonEmpty(*redisAddr, os.Getenv("ASSETGATE_REDIS_ADDR"), *redisAddrs, os.Getenv("ASSETGATE_REDIS_ADDRS")))

	var (
		tokenStore  assets.TokenStore
		memoryStore *assets.MemoryTokenStore
		tokenCloser func() error
	)
	switch tokenDriver {
	case "memory":
		memoryStore = assets.NewMemoryTokenStore()
		tokenStore = memoryStore
	case "redis":
		redisStore, err := assets.NewRedisTokenStore(assets.RedisTokenStoreConfig{
			Addr:         firstNonEmpty(*redisAddr, os.Getenv("ASSETGATE_REDIS_ADDR")),
			Addrs:        splitAndTrim(firstNonEmpty(*redisAddrs, os.Getenv("ASSETGATE_REDIS_ADDRS"))),
			Username:     firstNonEmpty(*redisUsername, os.Getenv("ASSETGATE_REDIS_USERNAME")),
			Password:     firstNonEmpty(*redisPassword, os.Getenv("ASSETGATE_REDIS_PASSWORD")),
			DB:           resolveInt(*redisDB, "ASSETGATE_REDIS_DB"),
			KeyPrefix:    firstNonEmpty(*redisKeyPrefix, os.Getenv("ASSETGATE_REDIS_KEY_PREFIX")),
			MasterName:   firstNonEmpty(*redisMasterName, os.Getenv("ASSETGATE_REDIS_SENTINEL_MASTER")),
			PoolSize:     resolveInt(*redisPoolSize, "ASSETGATE_REDIS_POOL_SIZE"),
			DialTimeout:  resolveDuration(*redisTimeout, "ASSETGATE_REDIS_TIMEOUT", 2*time.Second),
			ReadTimeout:  resolveDuration(*redisTimeout, "ASSETGATE_REDIS_TIMEOUT", 2*time.Second),
			WriteTimeout: resolveDuration(*redisTimeout, "ASSETGATE_REDIS_TIMEOUT", 2*time.Second),
			TLS: assets.RedisTLSConfig{
				CAFile:             firstNonEmpty(*redisTLSCA, os.Getenv("ASSETGATE_REDIS_TLS_CA")),
				CertFile:           firstNonEmpty(*redisTLSCert, os.Getenv("ASSETGATE_REDIS_TLS_CERT")),
				KeyFile:            firstNonEmpty(*redisTLSKey, os.Getenv("ASSETGATE_REDIS_TLS_KEY")),
				ServerName:         firstNonEmpty(*redisTLSServerName, os.Getenv("ASSETGATE_REDIS_TLS_SERVER_NAME")),
				InsecureSkipVerify: resolveBool(*redisTLSSkipVerify, "ASSETGATE_REDIS_TLS_SKIP_VERIFY"),
			},
		})
		if err != nil {
			logger.Error("failed to open token store", "error", err)
			os.Exit(1)
		}
		tokenStore = redisStore
		tokenCloser = redisStore.Close
	default:
		logger.Error("unsupported token store driver", "driver", tokenDriver)
		os.Exit(1)
	}

	brokerOpts := []assets.BrokerOption{assets.WithTokenStore(tokenStore)}
	if ttl := resolveDuration(*tokenTTL, "ASSETGATE_TOKEN_TTL", 0); ttl > 0 {
		brokerOpts = append(brokerOpts, assets.WithDefaultTTL(ttl))
	}
	broker := assets.NewBroker(store, blobDir, brokerOpts...)
	uploader := storage.NewUploader(store, blobDir, resolveInt64(*maxUploadBytes, "ASSETGATE_MAX_UPLOAD_BYTES"))

	keys := splitAndTrim(firstNonEmpty(*apiKeys, os.Getenv("ASSETGATE_API_KEYS")))
	guard, err := api.NewAPIKeyGuard(keys)
	if err != nil {
		logger.Error("failed to configure api keys", "error", err)
		os.Exit(1)
	}

	handler := api.NewHandler(store, uploader, broker, guard, logging.WithComponent(logger, "api"))

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	purgeInterval := resolveDuration(*tokenPurgeInterval, "ASSETGATE_TOKEN_PURGE_INTERVAL", 15*time.Minute)
	var purger tokenPurger
	if memoryStore != nil {
		purger = memoryStore
	}
	purgeStop := startTokenPurgeWorker(workerCtx, logging.WithComponent(logger, "token-purger"), purger, purgeInterval)
	defer purgeStop()

	tlsCfg := server.TLSConfig{
		CertFile: firstNonEmpty(*tlsCert, os.Getenv("ASSETGATE_TLS_CERT")),
		KeyFile:  firstNonEmpty(*tlsKey, os.Getenv("ASSETGATE_TLS_KEY")),
	}

	srv, err := server.New(handler, server.Config{
		Addr:            listenAddr,
		TLS:             tlsCfg,
		CORS:            server.CORSConfig{AllowedOrigins: splitAndTrim(firstNonEmpty(*corsOrigins, os.Getenv("ASSETGATE_CORS_ORIGINS")))},
		Logger:          logger,
		ShutdownTimeout: 10 * time.Second,
	})
	if err != nil {
		logger.Error("failed to initialise server", "error", err)
		os.Exit(1)
	}

	runCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("asset delivery service listening", "addr", listenAddr, "mode", serverMode, "storage_driver", driver, "token_store", tokenDriver)
	if tlsCfg.CertFile != "" && tlsCfg.KeyFile != "" {
		logger.Info("TLS enabled", "cert_file", tlsCfg.CertFile)
	}
	if err := srv.Run(runCtx, nil); err != nil {
		logger.Error("server error", "error", err)
	}

	workerCancel()
	purgeStop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if storeCloser != nil {
		if err := storeCloser(shutdownCtx); err != nil {
			logger.Warn("failed to close asset store", "error", err)
		}
	}
	if tokenCloser != nil {
		if err := tokenCloser(); err != nil {
			logger.Warn("failed to close token store", "error", err)
		}
	}

	logger.Info("server stopped")
}

func modeValue(flagMode, envMode string) string {
	mode := strings.ToLower(strings.TrimSpace(flagMode))
	if mode == "" {
		mode = strings.ToLower(strings.TrimSpace(envMode))
	}
	if mode == "" {
		mode = "development"
	}
	return mode
}

func resolveListenAddr(flagValue, mode, envAddr string) string {
	listenAddr := strings.TrimSpace(flagValue)
	if listenAddr == "" {
		listenAddr = strings.TrimSpace(envAddr)
	}
	if listenAddr == "" {
		listenAddr = defaultListenForMode(mode)
	}
	return listenAddr
}

func defaultListenForMode(mode string) string {
	if mode == "production" {
		return ":80"
	}
	return ":8080"
}

func resolveDataDir(flagValue, envValue string) string {
	if dir := strings.TrimSpace(flagValue); dir != "" {
		return dir
	}
	if dir := strings.TrimSpace(envValue); dir != "" {
		return dir
	}
	return "data/assets"
}

func resolvePostgresDSN(flagValue string) string {
	return strings.TrimSpace(firstNonEmpty(flagValue, os.Getenv("ASSETGATE_POSTGRES_DSN"), os.Getenv("DATABASE_URL")))
}

func resolveStorageDriver(flagValue, envValue, postgresDSN string) (string, error) {
	if driver := strings.ToLower(strings.TrimSpace(flagValue)); driver != "" {
		return driver, nil
	}
	if driver := strings.ToLower(strings.TrimSpace(envValue)); driver != "" {
		return driver, nil
	}
	if strings.TrimSpace(postgresDSN) != "" {
		return "postgres", nil
	}
	return "memory", nil
}

func resolveTokenStoreDriver(flagValue, envValue, redisAddr string) string {
	if driver := strings.ToLower(strings.TrimSpace(flagValue)); driver != "" {
		return driver
	}
	if driver := strings.ToLower(strings.TrimSpace(envValue)); driver != "" {
		return driver
	}
	if strings.TrimSpace(redisAddr) != "" {
		return "redis"
	}
	return "memory"
}

func validateProductionDatastore(driver, postgresDSN string) error {
	if driver != "postgres" {
		return fmt.Errorf("production mode requires the postgres storage driver, got %q", driver)
	}
	if strings.TrimSpace(postgresDSN) == "" {
		return fmt.Errorf("postgres storage selected without DSN")
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func splitAndTrim(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func resolveInt(flagValue int, envKey string) int {
	if flagValue > 0 {
		return flagValue
	}
	if env := os.Getenv(envKey); env != "" {
		if value, err := strconv.Atoi(strings.TrimSpace(env)); err == nil {
			return value
		}
	}
	return 0
}

func resolveInt64(flagValue int64, envKey string) int64 {
	if flagValue > 0 {
		return flagValue
	}
	if env := os.Getenv(envKey); env != "" {
		if value, err := strconv.ParseInt(strings.TrimSpace(env), 10, 64); err == nil {
			return value
		}
	}
	return 0
}

func resolveDuration(flagValue time.Duration, envKey string, fallback time.Duration) time.Duration {
	if flagValue > 0 {
		return flagValue
	}
	if env := os.Getenv(envKey); env != "" {
		if value, err := time.ParseDuration(env); err == nil {
			return value
		}
	}
	if fallback > 0 {
		return fallback
	}
	return 0
}

func resolveBool(flagValue bool, envKey string) bool {
	if flagValue {
		return true
	}
	if env, ok := os.LookupEnv(envKey); ok {
		if value, err := strconv.ParseBool(strings.TrimSpace(env)); err == nil {
			return value
		}
	}
	return false
}
