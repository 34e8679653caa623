package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/peto/internal/common"
)

func main() {
	args := os.Args[1:]

	command := "serve"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		command = args[0]
		args = args[1:]
	}

	switch command {
	case "serve":
		runServe(args)
	case "launch":
		runLaunch(args)
	case "stop":
		runStop(args)
	case "status":
		runStatus(args)
	case "version":
		fmt.Printf("Peto version %s\n", common.GetFullVersion())
	default:
		fmt.Fprintf(os.Stderr, "Unknown command %q\n\n", command)
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `Usage: peto [command] [flags]

Commands:
  serve    Run pipeline workers (default)
  launch   Launch a job-application campaign
  stop     Stop a running campaign
  status   Report a campaign's funnel counts
  version  Print version information

Run "peto <command> -h" for command flags.`)
}

// boot loads configuration and initializes the logger. When no -config flag
// is given, peto.toml in the working directory is used if present.
func boot(configPath string) (*common.Config, arbor.ILogger, error) {
	if configPath == "" {
		if _, err := os.Stat("peto.toml"); err == nil {
			configPath = "peto.toml"
		}
	}

	config, err := common.LoadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}
	logger := common.InitLogger(config)
	return config, logger, nil
}
