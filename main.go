package main

import (
	"os"

	"github.com/beaconcast/beacon/cmd"
	"github.com/beaconcast/beacon/internal/logging"
)

func main() {
	level, ok := os.LookupEnv("LOG_LEVEL")
	if !ok {
		level = "error"
	}
	logging.Init(logging.Config{Level: level, Pretty: true, Output: os.Stderr})

	cmd.Execute()
}
