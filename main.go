package main

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/kilianp07/emsdispatch/cmd"
	"github.com/kilianp07/emsdispatch/infra/logger"
)

func main() {
	// A missing .env file is not an error.
	_ = godotenv.Load()
	if err := cmd.Execute(); err != nil {
		logger.New("main").Errorf("%v", err)
		os.Exit(1)
	}
}
