/*
Copyright 2025 Pagador Authors.

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

	"github.com/pagadorhq/pagador"
	"github.com/pagadorhq/pagador/config"
	"github.com/pagadorhq/pagador/database"
	"github.com/pagadorhq/pagador/internal/notification"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// Pagador wraps the root Cobra command for the CLI.
type Pagador struct {
	cmd *cobra.Command
}

// pagadorInstance holds the runtime service and its configuration, shared by
// every subcommand.
type pagadorInstance struct {
	pagador *pagador.Pagador
	cnf     *config.Configuration
}

func recoverPanic() {
	if rec := recover(); rec != nil {
		logrus.Error(rec)
		os.Exit(1)
	}
}

// preRun loads the configuration and initializes the service before any
// subcommand executes.
func preRun(app *pagadorInstance) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		err := config.InitConfig("pagador.json")
		if err != nil {
			log.Fatal("error loading config", err)
		}

		cnf, err := config.Fetch()
		if err != nil {
			return err
		}

		newPagador, err := setupPagador(cnf)
		if err != nil {
			notification.NotifyError(err)
			log.Fatal(err)
		}

		app.pagador = newPagador
		app.cnf = cnf
		return nil
	}
}

func setupPagador(cfg *config.Configuration) (*pagador.Pagador, error) {
	db, err := database.NewDataSource(cfg)
	if err != nil {
		return nil, fmt.Errorf("error getting datasource: %v", err)
	}

	newPagador, err := pagador.NewPagador(db)
	if err != nil {
		return nil, fmt.Errorf("error creating pagador: %v", err)
	}
	return newPagador, nil
}

func NewCLI() *Pagador {
	var configFile string
	p := &pagadorInstance{}

	var rootCmd = &cobra.Command{
		Use:   "pagador",
		Short: "Payment gateway simulator",
		Run:   func(cmd *cobra.Command, args []string) {},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "./pagador.json", "Configuration file for pagador")
	rootCmd.PersistentPreRunE = preRun(p)

	rootCmd.AddCommand(serverCommands(p))
	rootCmd.AddCommand(workerCommands(p))

	return &Pagador{cmd: rootCmd}
}

func (w Pagador) executeCLI() {
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
