package config

import (
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Cache    CacheConfig
	Store    StoreConfig
	Engine   EngineConfig
	Export   ExportConfig
	LogLevel string
}

type ServerConfig struct {
	Port           string
	Mode           string
	ReadTimeout    int
	WriteTimeout   int
	AllowedOrigins []string
}

// DatabaseConfig selects the record store backend.
// Driver is one of postgres (lib/pq), pgx, sqlite or memory.
type DatabaseConfig struct {
	Driver     string
	Host       string
	Port       string
	User       string
	Password   string
	DBName     string
	SSLMode    string
	URL        string
	SQLitePath string
	MaxTx      int64
}

type CacheConfig struct {
	Enabled       bool
	RedisURL      string
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
	TTLSeconds    int
}

// StoreConfig controls retries of record store writes.
type StoreConfig struct {
	RetryAttempts int
	RetryBackoff  time.Duration
}

type EngineConfig struct {
	WorkerCount         int
	AnalysisDays        int
	SimulationTrials    int
	MaxSimulationTrials int
	SimulationSeed      uint64
	SampleBatchSize     int
	ExportSimulations   bool
	TopCandidatesLimit  int
	ThresholdCASRetries int
}

// ExportConfig selects where simulation exports are written.
// Driver is one of none, fs, minio or s3.
type ExportConfig struct {
	Driver    string
	Bucket    string
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
	PathStyle bool
	FSRoot    string
	Prefix    string
}

var (
	once     sync.Once
	instance *Config
)

func Load() *Config {
	once.Do(func() {
		// Load .env file if it exists
		_ = godotenv.Load()

		setDefaults(viper.GetViper())

		// Read from environment variables
		viper.AutomaticEnv()

		instance = fromViper(viper.GetViper())
	})

	return instance
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("SERVER_MODE", "debug")
	v.SetDefault("SERVER_READ_TIMEOUT", 15)
	v.SetDefault("SERVER_WRITE_TIMEOUT", 30)
	v.SetDefault("SERVER_ALLOWED_ORIGINS", []string{"*"})
	v.SetDefault("LOG_LEVEL", "info")

	v.SetDefault("DB_DRIVER", "postgres")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "ddmrp")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("DB_SQLITE_PATH", "./data/ddmrp.db")
	v.SetDefault("DB_MAX_TX", 10)

	v.SetDefault("CACHE_ENABLED", false)
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("REDIS_HOST", "127.0.0.1")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("CACHE_TTL_SECONDS", 300)

	v.SetDefault("STORE_RETRY_ATTEMPTS", 3)
	v.SetDefault("STORE_RETRY_BACKOFF", "200ms")

	v.SetDefault("ENGINE_WORKER_COUNT", 4)
	v.SetDefault("ENGINE_ANALYSIS_DAYS", 90)
	v.SetDefault("ENGINE_SIMULATION_TRIALS", 1000)
	v.SetDefault("ENGINE_MAX_SIMULATION_TRIALS", 100000)
	v.SetDefault("ENGINE_SIMULATION_SEED", 0)
	v.SetDefault("ENGINE_SAMPLE_BATCH_SIZE", 500)
	v.SetDefault("ENGINE_EXPORT_SIMULATIONS", false)
	v.SetDefault("ENGINE_TOP_CANDIDATES_LIMIT", 20)
	v.SetDefault("ENGINE_THRESHOLD_CAS_RETRIES", 3)

	v.SetDefault("EXPORT_DRIVER", "none")
	v.SetDefault("EXPORT_BUCKET", "ddmrp-exports")
	v.SetDefault("EXPORT_ENDPOINT", "")
	v.SetDefault("EXPORT_ACCESS_KEY", "")
	v.SetDefault("EXPORT_SECRET_KEY", "")
	v.SetDefault("EXPORT_REGION", "us-east-1")
	v.SetDefault("EXPORT_USE_SSL", true)
	v.SetDefault("EXPORT_PATH_STYLE", true)
	v.SetDefault("EXPORT_FS_ROOT", "./data/exports")
	v.SetDefault("EXPORT_PREFIX", "safety_stock_simulation")
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		Server: ServerConfig{
			Port:           v.GetString("SERVER_PORT"),
			Mode:           v.GetString("SERVER_MODE"),
			ReadTimeout:    v.GetInt("SERVER_READ_TIMEOUT"),
			WriteTimeout:   v.GetInt("SERVER_WRITE_TIMEOUT"),
			AllowedOrigins: v.GetStringSlice("SERVER_ALLOWED_ORIGINS"),
		},
		Database: DatabaseConfig{
			Driver:     v.GetString("DB_DRIVER"),
			Host:       v.GetString("DB_HOST"),
			Port:       v.GetString("DB_PORT"),
			User:       v.GetString("DB_USER"),
			Password:   v.GetString("DB_PASSWORD"),
			DBName:     v.GetString("DB_NAME"),
			SSLMode:    v.GetString("DB_SSLMODE"),
			URL:        v.GetString("DATABASE_URL"),
			SQLitePath: v.GetString("DB_SQLITE_PATH"),
			MaxTx:      v.GetInt64("DB_MAX_TX"),
		},
		Cache: CacheConfig{
			Enabled:       v.GetBool("CACHE_ENABLED"),
			RedisURL:      v.GetString("REDIS_URL"),
			RedisHost:     v.GetString("REDIS_HOST"),
			RedisPort:     v.GetString("REDIS_PORT"),
			RedisPassword: v.GetString("REDIS_PASSWORD"),
			RedisDB:       v.GetInt("REDIS_DB"),
			TTLSeconds:    v.GetInt("CACHE_TTL_SECONDS"),
		},
		Store: StoreConfig{
			RetryAttempts: v.GetInt("STORE_RETRY_ATTEMPTS"),
			RetryBackoff:  v.GetDuration("STORE_RETRY_BACKOFF"),
		},
		Engine: EngineConfig{
			WorkerCount:         v.GetInt("ENGINE_WORKER_COUNT"),
			AnalysisDays:        v.GetInt("ENGINE_ANALYSIS_DAYS"),
			SimulationTrials:    v.GetInt("ENGINE_SIMULATION_TRIALS"),
			MaxSimulationTrials: v.GetInt("ENGINE_MAX_SIMULATION_TRIALS"),
			SimulationSeed:      v.GetUint64("ENGINE_SIMULATION_SEED"),
			SampleBatchSize:     v.GetInt("ENGINE_SAMPLE_BATCH_SIZE"),
			ExportSimulations:   v.GetBool("ENGINE_EXPORT_SIMULATIONS"),
			TopCandidatesLimit:  v.GetInt("ENGINE_TOP_CANDIDATES_LIMIT"),
			ThresholdCASRetries: v.GetInt("ENGINE_THRESHOLD_CAS_RETRIES"),
		},
		Export: ExportConfig{
			Driver:    v.GetString("EXPORT_DRIVER"),
			Bucket:    v.GetString("EXPORT_BUCKET"),
			Endpoint:  v.GetString("EXPORT_ENDPOINT"),
			AccessKey: v.GetString("EXPORT_ACCESS_KEY"),
			SecretKey: v.GetString("EXPORT_SECRET_KEY"),
			Region:    v.GetString("EXPORT_REGION"),
			UseSSL:    v.GetBool("EXPORT_USE_SSL"),
			PathStyle: v.GetBool("EXPORT_PATH_STYLE"),
			FSRoot:    v.GetString("EXPORT_FS_ROOT"),
			Prefix:    v.GetString("EXPORT_PREFIX"),
		},
		LogLevel: v.GetString("LOG_LEVEL"),
	}
}
