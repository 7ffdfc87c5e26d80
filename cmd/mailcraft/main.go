package main

import (
	"os"

	"github.com/mailcraft/mailcraft/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
