package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	HTTP_PORT        string `env:"HTTP_PORT"`
	DB_STRING        string `env:"DB_STRING"`
	KAFKA_BROKERS    string `env:"KAFKA_BROKERS"`
	KAFKA_TOPIC      string `env:"KAFKA_TOPIC"`
	KAFKA_GROUP_ID   string `env:"KAFKA_GROUP_ID"`
	DOWNSTREAM_URL   string `env:"DOWNSTREAM_URL"`
	DISPATCH_TIMEOUT time.Duration
}

func LoadConfig() (*Config, error) {
	cfg := &Config{
		HTTP_PORT:      os.Getenv("HTTP_PORT"),
		DB_STRING:      os.Getenv("DB_STRING"),
		KAFKA_BROKERS:  os.Getenv("KAFKA_BROKERS"),
		KAFKA_TOPIC:    os.Getenv("KAFKA_TOPIC"),
		KAFKA_GROUP_ID: os.Getenv("KAFKA_GROUP_ID"),
		DOWNSTREAM_URL: os.Getenv("DOWNSTREAM_URL"),
	}

	if cfg.HTTP_PORT == "" {
		cfg.HTTP_PORT = "8080"
	}
	if cfg.KAFKA_TOPIC == "" {
		cfg.KAFKA_TOPIC = "incoming-orders"
	}
	if cfg.KAFKA_GROUP_ID == "" {
		cfg.KAFKA_GROUP_ID = "orders-bridge"
	}
	if cfg.DOWNSTREAM_URL == "" {
		return nil, fmt.Errorf("DOWNSTREAM_URL is required")
	}

	cfg.DISPATCH_TIMEOUT = 10 * time.Second
	if s := os.Getenv("DISPATCH_TIMEOUT_SECONDS"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v <= 0 {
			return nil, fmt.Errorf("bad DISPATCH_TIMEOUT_SECONDS %q", s)
		}
		cfg.DISPATCH_TIMEOUT = time.Duration(v) * time.Second
	}

	return cfg, nil
}
