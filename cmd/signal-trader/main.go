package main

import (
	"fmt"
	"os"

	"signal-trader/internal/cli"
	"signal-trader/internal/logging"
)

func main() {
	logCfg := logging.DefaultLogConfig()
	logCfg.File = false
	logger := logging.NewLoggerWithConfig(logCfg)

	if err := cli.NewRootCmd(logger).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
