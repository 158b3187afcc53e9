package config

import (
	"os"
	"strconv"
	"time"
)

type R2 struct {
	AccountID  string
	AccessKey  string
	SecretKey  string
	BucketName string
	PublicURL  string
}

type Cloudinary struct {
	CloudName string
	APIKey    string
	APISecret string
	UploadURL string
}

type Media struct {
	Store          string // cloudinary, r2
	Folder         string
	UploadTimeout  time.Duration
	MaxConcurrency int
}

type Dispatch struct {
	Schedule        string
	Concurrency     int
	PlatformTimeout time.Duration
	LeaseTTL        time.Duration
	StaleAfter      time.Duration
	Lease           string // redis, local
}

type Config struct {
	PostgresURI        string
	RedisURI           string
	Port               string
	FrontendURL        string
	SecretKey          string
	CookieName         string
	DailyScheduleLimit int
	InstagramMarker    string
	Media              Media
	Cloudinary         Cloudinary
	R2                 R2
	Dispatch           Dispatch
}

func LoadConfig() *Config {
	return &Config{
		PostgresURI:        getEnv("POSTGRES_URI", ""),
		RedisURI:           getEnv("REDIS_URI", "localhost:6379"),
		Port:               getEnv("PORT", "3000"),
		FrontendURL:        getEnv("FRONTEND_URL", "http://localhost:5173"),
		SecretKey:          getEnv("SECRET_KEY", ""),
		CookieName:         getEnv("COOKIE_NAME", ""),
		DailyScheduleLimit: getEnvInt("DAILY_SCHEDULE_LIMIT", 10),
		InstagramMarker:    getEnv("INSTAGRAM_MARKER", "Instagram"),
		Media: Media{
			Store:          getEnv("MEDIA_STORE", "cloudinary"),
			Folder:         getEnv("MEDIA_FOLDER", "posts"),
			UploadTimeout:  getEnvDuration("UPLOAD_TIMEOUT", 30*time.Second),
			MaxConcurrency: getEnvInt("MAX_CONCURRENT_UPLOADS", 4),
		},
		Cloudinary: Cloudinary{
			CloudName: getEnv("CLOUDINARY_CLOUD_NAME", ""),
			APIKey:    getEnv("CLOUDINARY_API_KEY", ""),
			APISecret: getEnv("CLOUDINARY_API_SECRET", ""),
			UploadURL: getEnv("CLOUDINARY_UPLOAD_URL", ""),
		},
		R2: R2{
			AccountID:  getEnv("R2_ACCOUNT_ID", ""),
			AccessKey:  getEnv("R2_ACCESS_KEY", ""),
			SecretKey:  getEnv("R2_SECRET_KEY", ""),
			BucketName: getEnv("R2_BUCKET_NAME", ""),
			PublicURL:  getEnv("R2_PUBLIC_URL", ""),
		},
		Dispatch: Dispatch{
			Schedule:        getEnv("DISPATCH_SCHEDULE", "@every 1m"),
			Concurrency:     getEnvInt("DISPATCH_CONCURRENCY", 10),
			PlatformTimeout: getEnvDuration("DISPATCH_TIMEOUT", 30*time.Second),
			LeaseTTL:        getEnvDuration("DISPATCH_LEASE_TTL", 2*time.Minute),
			StaleAfter:      getEnvDuration("DISPATCH_STALE_AFTER", 10*time.Minute),
			Lease:           getEnv("DISPATCH_LEASE", "redis"),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(getEnv(key, ""))
	if err != nil || value <= 0 {
		return defaultValue
	}
	return value
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value, err := time.ParseDuration(getEnv(key, ""))
	if err != nil || value <= 0 {
		return defaultValue
	}
	return value
}
