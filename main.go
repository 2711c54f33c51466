package main

import (
	"os"

	"github.com/FACorreiaa/go-portal-shell/cmd/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
