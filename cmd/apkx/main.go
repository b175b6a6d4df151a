package main

import (
	"os"

	"github.com/teamcutter/apkx/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
