package main

import (
	"os"

	"github.com/magneticstudio/catalogd/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
