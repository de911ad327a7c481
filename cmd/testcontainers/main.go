package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/localnerve/formsdb/internal/logging"
	"github.com/localnerve/formsdb/tests/helpers"
)

func main() {
	var showHelp bool
	flag.BoolVar(&showHelp, "h", false, "show help")
	var envFilename string
	flag.StringVar(&envFilename, "f", "", "path to the .env file")
	var dataOnly bool
	flag.BoolVar(&dataOnly, "data", false, "start only the database and redis")
	flag.Parse()

	usage := `
Run the formsdb testcontainers with the environment variables from the .env file.

Usage:

testcontainers [-h] [-data] [-f ENV_FILE_PATH]

ENV_FILE_PATH: path to the .env file
-data: start only the database and redis, for a locally running server

example
  testcontainers -f /path/to/something/.env
`
	// if -h flag print usage and return
	if showHelp {
		fmt.Println(usage)
		return
	}

	if envFilename != "" {
		logging.Logger.Infof("Loading environment variables from %s", envFilename)
		if err := godotenv.Load(envFilename); err != nil {
			logging.Logger.Fatalf("Failed to load environment variables: %v", err)
		}
	} else {
		logging.Logger.Infof("No environment file specified, using current environment variables")
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	start := helpers.CreateAllTestContainers
	if dataOnly {
		start = helpers.CreateDataContainers
	}

	var testContainers *helpers.TestContainers
	go func() {
		var err error
		testContainers, err = start(nil)
		if err != nil {
			logging.Logger.Fatalf("Failed to create test containers: %v", err)
		}
	}()

	sig := <-sigs
	logging.Logger.Infof("Received signal: %v, terminating test containers...", sig)
	if testContainers != nil {
		testContainers.Terminate(nil)
	}
}
