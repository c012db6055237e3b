package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	// App mode & server
	Mode        string
	ServerAddr  string
	TLSCertFile string
	TLSKeyFile  string
	LogEnv      string
	UploadDir   string

	// Kafka
	KafkaBroker    string
	KafkaTopic     string
	KafkaGroupID   string
	KafkaReadTO    time.Duration
	KafkaWriteTO   time.Duration

	// Cassandra
	CassandraHost     string
	CassandraKeyspace string
	CassandraUsername string
	CassandraPassword string
	CassandraTimeout  time.Duration
	CassandraDC       string
	MigrationsPath    string

	// Reconciler
	ReconcileWorkers int
}

var cfg *Config

// Init loads the config using Viper and returns it
func Init() *Config {
	// .env is optional; real environment variables win over it
	_ = godotenv.Load()

	viper.SetDefault("MODE", "server")
	viper.SetDefault("SERVER_ADDR", ":8080")
	viper.SetDefault("LOG_ENV", "production")
	viper.SetDefault("UPLOAD_DIR", "./uploads")

	viper.SetDefault("KAFKA_BROKER", "localhost:29092")
	viper.SetDefault("KAFKA_TOPIC", "edge-events")
	viper.SetDefault("KAFKA_GROUP_ID", "reconcile-group")
	viper.SetDefault("KAFKA_READ_TIMEOUT", "10s")
	viper.SetDefault("KAFKA_WRITE_TIMEOUT", "10s")

	viper.SetDefault("CASSANDRA_HOST", "localhost")
	viper.SetDefault("CASSANDRA_KEYSPACE", "popular")
	viper.SetDefault("CASSANDRA_TIMEOUT", "10s")
	viper.SetDefault("MIGRATIONS_PATH", "./migrations/cassandra")
	// Optional: Cassandra username/password/DC and TLS files can be empty

	viper.SetDefault("RECONCILE_WORKERS", 8)

	// Load env variables
	viper.AutomaticEnv()

	// Optional config file support
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	_ = viper.ReadInConfig() // ignore error if no file

	cfg = &Config{
		Mode:              viper.GetString("MODE"),
		ServerAddr:        viper.GetString("SERVER_ADDR"),
		TLSCertFile:       viper.GetString("TLS_CERT_FILE"),
		TLSKeyFile:        viper.GetString("TLS_KEY_FILE"),
		LogEnv:            viper.GetString("LOG_ENV"),
		UploadDir:         viper.GetString("UPLOAD_DIR"),
		KafkaBroker:       viper.GetString("KAFKA_BROKER"),
		KafkaTopic:        viper.GetString("KAFKA_TOPIC"),
		KafkaGroupID:      viper.GetString("KAFKA_GROUP_ID"),
		KafkaReadTO:       parseDuration(viper.GetString("KAFKA_READ_TIMEOUT"), 10*time.Second),
		KafkaWriteTO:      parseDuration(viper.GetString("KAFKA_WRITE_TIMEOUT"), 10*time.Second),
		CassandraHost:     viper.GetString("CASSANDRA_HOST"),
		CassandraKeyspace: viper.GetString("CASSANDRA_KEYSPACE"),
		CassandraUsername: viper.GetString("CASSANDRA_USERNAME"),
		CassandraPassword: viper.GetString("CASSANDRA_PASSWORD"),
		CassandraTimeout:  parseDuration(viper.GetString("CASSANDRA_TIMEOUT"), 10*time.Second),
		CassandraDC:       viper.GetString("CASSANDRA_DC"),
		MigrationsPath:    viper.GetString("MIGRATIONS_PATH"),
		ReconcileWorkers:  viper.GetInt("RECONCILE_WORKERS"),
	}

	return cfg
}

func parseDuration(s string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	return def
}

// Get returns the loaded config instance
func Get() *Config {
	return cfg
}
