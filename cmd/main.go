/*
Copyright 2025 LedgerLink Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"fmt"
	"log"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ledgerlink/ledgerlink"
	"github.com/ledgerlink/ledgerlink/config"
	"github.com/ledgerlink/ledgerlink/database"
	"github.com/ledgerlink/ledgerlink/internal/notification"
)

// LedgerLink represents the CLI application, encapsulating the root Cobra command.
type LedgerLink struct {
	cmd *cobra.Command
}

// ledgerlinkInstance holds the running network and its configuration so
// subcommands can share them.
type ledgerlinkInstance struct {
	network *ledgerlink.Network
	cnf     *config.Configuration
}

// recoverPanic handles any panics during program execution and logs the error.
func recoverPanic() {
	if rec := recover(); rec != nil {
		logrus.Error(rec)
		os.Exit(1)
	}
}

// preRun loads the configuration and builds the connector network before any
// command runs.
func preRun(app *ledgerlinkInstance) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		err := config.InitConfig("ledgerlink.json")
		if err != nil {
			log.Fatal("error loading config", err)
		}

		cnf, err := config.Fetch()
		if err != nil {
			return err
		}

		network, err := setupNetwork(cnf)
		if err != nil {
			notification.NotifyError(err)
			log.Fatal(err)
		}

		app.network = network
		app.cnf = cnf

		return nil
	}
}

// setupNetwork connects the data source and assembles the ledgers and
// connector from the configuration.
func setupNetwork(cfg *config.Configuration) (*ledgerlink.Network, error) {
	db, err := database.NewDataSource(cfg)
	if err != nil {
		return nil, fmt.Errorf("error getting datasource: %v", err)
	}

	network, err := ledgerlink.NewNetwork(db)
	if err != nil {
		return nil, fmt.Errorf("error creating network: %v", err)
	}
	return network, nil
}

// NewCLI creates the command-line interface for the LedgerLink application.
func NewCLI() *LedgerLink {
	var configFile string
	b := &ledgerlinkInstance{}

	var rootCmd = &cobra.Command{
		Use:   "ledgerlink",
		Short: "Inter-ledger payment connector",
		Run:   func(cmd *cobra.Command, args []string) {},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "./ledgerlink.json", "Configuration file for the connector")

	rootCmd.PersistentPreRunE = preRun(b)

	rootCmd.AddCommand(serverCommands(b))
	rootCmd.AddCommand(workerCommands(b))
	rootCmd.AddCommand(migrateCommands(b))

	return &LedgerLink{cmd: rootCmd}
}

// executeCLI runs the root command, handling any errors that occur during execution.
func (w LedgerLink) executeCLI() {
	if err := w.cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func main() {
	defer recoverPanic()

	cli := NewCLI()
	cli.executeCLI()
}
