package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// InitDB opens the MySQL connection from environment variables.
func InitDB() (*gorm.DB, error) {
	user := envOrDefault("DB_USER", "root")
	pass := os.Getenv("DB_PASSWORD")
	host := envOrDefault("DB_HOST", "127.0.0.1")
	port := envOrDefault("DB_PORT", "3306")
	name := envOrDefault("DB_NAME", "mangan_app")

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		user, pass, host, port, name)

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open mysql connection: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	return db, nil
}

// DeliveryConfig carries the store location, the fee formula knobs and the
// towns the store delivers to.
type DeliveryConfig struct {
	StoreLat float64
	StoreLng float64
	BaseFee  float64
	PerKmFee float64
	Cities   []string
}

// Delivery reads the delivery settings from the environment. The defaults
// match the store in Floridablanca and its neighbouring towns.
func Delivery() DeliveryConfig {
	return DeliveryConfig{
		StoreLat: envFloat("STORE_LAT", 14.9712),
		StoreLng: envFloat("STORE_LNG", 120.5297),
		BaseFee:  envFloat("DELIVERY_BASE_FEE", 49),
		PerKmFee: envFloat("DELIVERY_PER_KM_FEE", 12),
		Cities:   splitList(envOrDefault("DELIVERY_CITIES", "Floridablanca,Lubao,Guagua,Porac")),
	}
}

// ServesCity reports whether the given city is on the delivery allow-list.
// Matching is case-insensitive.
func (d DeliveryConfig) ServesCity(city string) bool {
	for _, c := range d.Cities {
		if strings.EqualFold(c, strings.TrimSpace(city)) {
			return true
		}
	}
	return false
}

// RecoveryConfig drives the abandoned-checkout reminder pipeline.
type RecoveryConfig struct {
	MaxReminders int
	Interval     time.Duration
	AbandonAfter time.Duration
	PollInterval time.Duration
}

func Recovery() RecoveryConfig {
	return RecoveryConfig{
		MaxReminders: envInt("RECOVERY_MAX_REMINDERS", 3),
		Interval:     envDuration("RECOVERY_INTERVAL", 3*time.Hour),
		AbandonAfter: envDuration("RECOVERY_ABANDON_AFTER", 30*time.Minute),
		PollInterval: envDuration("RECOVERY_POLL_INTERVAL", time.Minute),
	}
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
