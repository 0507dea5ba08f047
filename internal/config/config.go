package config

import (
	"os"
	"strconv"
	"strings"

	"companion_gateway/internal/logger"

	"github.com/joho/godotenv"
)

type Config struct {
	AppPort   string
	DeployEnv string

	AppVersion          string
	SkipAppVersionCheck bool

	LogServiceName string
	LogLevel       string
	LogJSON        bool

	DatabaseURL string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	// Lock endpoints; defaults to the single cache node when unset.
	RedisLockAddrs []string

	KafkaBrokers            []string
	KafkaProducerClientID   string
	KafkaProducerTopic      string
	KafkaProducerRoomsTopic string

	// PEM-encoded RSA keys, inline or a file path.
	JWTPrivateKeyPEM       string
	JWTPublicKeyPEM        string
	TokenValidDurationDays int

	SMSBaseURL           string
	SMSAppKey            string
	SMSMasterSecret      string
	SMSSignID            int
	SMSTempID            int
	SMPeriodOfValidity   int // seconds
	SMSDailyTokenTotal   int

	SecsOfBeingKickedOutFromQueue int
	SecsOfBeingTurnedOffInBattle  int

	// Operator-hosted room ids whose seat grid pre-fills both AI columns.
	HostedPrefillRoomIDs []string

	SysAccount  string
	SysDeviceID string

	APIRateLimit         int
	APIRateWindowSeconds int
}

// Load reads configuration from the environment.
func Load() *Config {
	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		logger.Fatal("DATABASE_URL is not set")
	}

	privPEM := pemEnv("JWT_PRIVATE_KEY_PEM")
	if privPEM == "" {
		logger.Fatal("JWT_PRIVATE_KEY_PEM is not set")
	}
	pubPEM := pemEnv("JWT_PUBLIC_KEY_PEM")
	if pubPEM == "" {
		logger.Fatal("JWT_PUBLIC_KEY_PEM is not set")
	}

	redisAddr := getEnv("REDIS_ADDR", "localhost:6379")
	lockAddrs := getArrayEnv("REDIS_LOCK_ADDRS", redisAddr)

	return &Config{
		AppPort:   getEnv("APP_PORT", "8080"),
		DeployEnv: getEnv("DEPLOY_ENV", "dev"),

		AppVersion:          getEnv("APP_VERSION", "0.1.0"),
		SkipAppVersionCheck: getBoolEnv("SKIP_APP_VERSION_CHECK", false),

		LogServiceName: getEnv("LOG_SERVICE_NAME", "CompanionGatewayService"),
		LogLevel:       getEnv("LOG_LEVEL", "debug"),
		LogJSON:        getBoolEnv("LOG_JSON", false),

		DatabaseURL: dbURL,

		RedisAddr:      redisAddr,
		RedisPassword:  os.Getenv("REDIS_PASSWORD"),
		RedisDB:        getIntEnv("REDIS_DB", 0),
		RedisLockAddrs: lockAddrs,

		KafkaBrokers:            getArrayEnv("KAFKA_BROKERS", "localhost:9092"),
		KafkaProducerClientID:   getEnv("KAFKA_PRODUCER_CLIENT_ID", "CompanionGatewayService_dev"),
		KafkaProducerTopic:      getEnv("KAFKA_PRODUCER_TOPIC", "companion-game-result-dev"),
		KafkaProducerRoomsTopic: getEnv("KAFKA_PRODUCER_ROOM_EVENT_TOPIC", "companion-room-event-dev"),

		JWTPrivateKeyPEM:       privPEM,
		JWTPublicKeyPEM:        pubPEM,
		TokenValidDurationDays: getIntEnv("TOKEN_VALID_DURATION_DAYS", 365),

		SMSBaseURL:         getEnv("SMS_BASE_URL", "https://api.sms.jpush.cn/v1"),
		SMSAppKey:          os.Getenv("SMS_APP_KEY"),
		SMSMasterSecret:    os.Getenv("SMS_MASTER_SECRET"),
		SMSSignID:          getIntEnv("SMS_SIGN_ID", 0),
		SMSTempID:          getIntEnv("SMS_TEMP_ID", 0),
		SMPeriodOfValidity: getIntEnv("SM_PERIOD_OF_VALIDITY_SEC", 60),
		SMSDailyTokenTotal: getIntEnv("SMS_DAILY_TOKEN_TOTAL", 5),

		SecsOfBeingKickedOutFromQueue: getIntEnv("SECS_OF_BEING_KICKED_OUT_FROM_THE_GAME_QUEUE", 600),
		SecsOfBeingTurnedOffInBattle:  getIntEnv("SECS_OF_BEING_TURNED_OFF_IN_GAME_BATTLE", 7200),

		HostedPrefillRoomIDs: getArrayEnv("HOSTED_PREFILL_ROOM_IDS", ""),

		SysAccount:  getEnv("SYS_ACCOUNT", "ums-admin"),
		SysDeviceID: getEnv("SYS_DEVICE_ID", "ABCDEF12-34567890ABCDEF12"),

		APIRateLimit:         getIntEnv("API_RATE_LIMIT", 60),
		APIRateWindowSeconds: getIntEnv("API_RATE_WINDOW_SECONDS", 60),
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getBoolEnv(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return strings.EqualFold(v, "true")
}

func getIntEnv(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getArrayEnv(key, def string) []string {
	v := os.Getenv(key)
	if v == "" {
		v = def
	}
	if v == "" {
		return nil
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// pemEnv reads a PEM from the env var, treating the value as a file path
// unless it already looks like inline PEM.
func pemEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		return ""
	}
	if strings.Contains(v, "-----BEGIN") {
		return v
	}
	b, err := os.ReadFile(v)
	if err != nil {
		logger.Fatal("failed to read PEM file", "env", key, "path", v, "error", err)
	}
	return string(b)
}
