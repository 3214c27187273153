package config

import (
	"crypto/rand"
	"encoding/hex"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerAddr     string
	DBHost         string
	DBPort         string
	DBUser         string
	DBPassword     string
	DBName         string
	JWTSecret      string
	RedisAddr      string
	AllowedOrigins []string

	// Google OAuth
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string

	// S3/MinIO image storage
	S3Endpoint     string
	S3Region       string
	S3AccessKey    string
	S3SecretKey    string
	S3Bucket       string
	S3UseSSL       bool
	S3UsePathStyle bool
}

func Load() *Config {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	useSSL, _ := strconv.ParseBool(getEnvOrDefault("S3_USE_SSL", "false"))
	pathStyle, _ := strconv.ParseBool(getEnvOrDefault("S3_USE_PATH_STYLE", "true"))

	return &Config{
		ServerAddr:         getEnvOrDefault("SERVER_ADDR", ":8080"),
		DBHost:             getEnvOrDefault("DB_HOST", "localhost"),
		DBPort:             getEnvOrDefault("DB_PORT", "5432"),
		DBUser:             getEnvOrDefault("DB_USER", "opensocial"),
		DBPassword:         getEnvOrDefault("DB_PASSWORD", "opensocial_dev_password"),
		DBName:             getEnvOrDefault("DB_NAME", "opensocial"),
		JWTSecret:          getEnvOrDefault("JWT_SECRET", generateDefaultSecret()),
		RedisAddr:          getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
		AllowedOrigins:     splitOrigins(getEnvOrDefault("FRONTEND_ORIGINS", "http://localhost:3000")),
		GoogleClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
		GoogleClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
		GoogleRedirectURL:  getEnvOrDefault("GOOGLE_REDIRECT_URL", "postmessage"),
		S3Endpoint:         getEnvOrDefault("S3_ENDPOINT", "http://localhost:9000"),
		S3Region:           getEnvOrDefault("S3_REGION", "us-east-1"),
		S3AccessKey:        getEnvOrDefault("S3_ACCESS_KEY", "minioadmin"),
		S3SecretKey:        getEnvOrDefault("S3_SECRET_KEY", "minioadmin"),
		S3Bucket:           getEnvOrDefault("S3_BUCKET", "post-images"),
		S3UseSSL:           useSSL,
		S3UsePathStyle:     pathStyle,
	}
}

func splitOrigins(s string) []string {
	var origins []string
	for _, o := range strings.Split(s, ",") {
		o = strings.TrimSpace(o)
		if o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func generateDefaultSecret() string {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "dev-secret-change-in-production"
	}
	return hex.EncodeToString(bytes)
}
