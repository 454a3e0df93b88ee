package main

import (
	"github.com/shopyard/auth-service/config"
	"github.com/shopyard/auth-service/internal/api"
)

func main() {
	cfg := config.LoadConfig()
	api.StartServer(cfg)
}
