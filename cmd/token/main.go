// Command token mints bearer tokens for operators and the payment processor webhook.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/simaogato/equityflow-backend/internal/auth"
	"github.com/simaogato/equityflow-backend/internal/config"
)

func main() {
	subject := flag.String("subject", "", "token subject, e.g. payment-processor")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	_ = godotenv.Load()
	logger := logrus.New()

	if *subject == "" {
		logger.Fatal("-subject is required")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Auth.JWTSecret == "" {
		logger.Fatal("auth.jwt_secret is not configured")
	}

	token, err := auth.NewTokenManager(cfg.Auth.JWTSecret).Issue(*subject, *ttl)
	if err != nil {
		logger.Fatalf("Failed to issue token: %v", err)
	}
	fmt.Fprintln(os.Stdout, token)
}
