package main

import (
	"os"

	"github.com/tunnelguard/tunnelguard/client/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
