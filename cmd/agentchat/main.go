package main

import (
	"os"

	"agentchat/internal/delivery/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
