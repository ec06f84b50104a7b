package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/dreamtools/dream-background-remover/cmd/cli/commands"
)

func main() {
	// Optional .env for the daemon address
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: could not load .env: %v", err)
	}

	if err := commands.RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
