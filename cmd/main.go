/*
Copyright 2024 Blnk Finance Authors.

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
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/blnkfinance/tally"
	"github.com/blnkfinance/tally/config"
	redlock "github.com/blnkfinance/tally/internal/lock"
	"github.com/blnkfinance/tally/internal/notification"
	redis_db "github.com/blnkfinance/tally/internal/redis-db"
	"github.com/blnkfinance/tally/internal/traces"
	"github.com/blnkfinance/tally/ledger"
)

// Tally wraps the root cobra command.
type Tally struct {
	cmd *cobra.Command
}

// tallyInstance holds what every subcommand shares once preRun has run.
type tallyInstance struct {
	tally    *tally.Tally
	cnf      *config.Configuration
	locks    redlock.Factory
	redis    *redis_db.Redis
	sink     *tally.QueueSink
	shutdown traces.ShutdownFunc
}

func recoverPanic() {
	if rec := recover(); rec != nil {
		logrus.Error(rec)
		os.Exit(1)
	}
}

func preRun(app *tallyInstance, configFile *string, verbose *bool) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if *verbose {
			logrus.SetLevel(logrus.DebugLevel)
		} else {
			logrus.SetLevel(logrus.WarnLevel)
		}

		if err := config.InitConfig(*configFile); err != nil {
			return fmt.Errorf("error loading config: %w", err)
		}
		cnf, err := config.Fetch()
		if err != nil {
			return err
		}

		shutdown, err := traces.SetupTracing(cmd.Context(), cnf.Tracing)
		if err != nil {
			notification.NotifyError(err, logrus.Fields{"stage": "tracing"})
			return err
		}
		app.shutdown = shutdown
		app.cnf = cnf

		if err := setupTally(app, *verbose); err != nil {
			notification.NotifyError(err, logrus.Fields{"stage": "setup"})
			return err
		}
		return nil
	}
}

// setupTally wires redis backed references, card sessions and webhook
// delivery when redis is configured, and in-memory ones otherwise.
func setupTally(app *tallyInstance, verbose bool) error {
	cnf := app.cnf
	sinks := []ledger.EventSink{}
	if verbose {
		sinks = append(sinks, tally.LogSink())
	}
	opts := []tally.Option{tally.WithConfig(cnf)}
	app.locks = redlock.LocalFactory()

	if strings.TrimSpace(cnf.Redis.Dns) != "" {
		rdb, err := redis_db.NewRedisClient(redis_db.SplitAddresses(cnf.Redis.Dns))
		if err != nil {
			return fmt.Errorf("error connecting to redis: %w", err)
		}
		app.redis = rdb
		app.locks = redlock.RedisFactory(rdb.Client())
		ttl := time.Duration(cnf.Transfer.ReferenceTTLSec) * time.Second
		opts = append(opts, tally.WithReferenceStore(tally.NewRedisReferences(rdb.Client(), ttl)))

		if cnf.Notification.Webhook.Url != "" {
			sink, err := tally.NewQueueSink(cnf)
			if err != nil {
				return err
			}
			app.sink = sink
			sinks = append(sinks, sink)
		}
	}

	opts = append(opts, tally.WithEventSink(ledger.Sinks(sinks...)))
	app.tally = tally.NewTally(opts...)
	return nil
}

func postRun(app *tallyInstance) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if app.sink != nil {
			_ = app.sink.Close()
		}
		if app.redis != nil {
			_ = app.redis.Close()
		}
		if app.shutdown != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return app.shutdown(ctx)
		}
		return nil
	}
}

func NewCLI() *Tally {
	var configFile string
	var verbose bool
	app := &tallyInstance{}

	rootCmd := &cobra.Command{
		Use:           "tally",
		Short:         "In-memory ledger accounts with guarded balances",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "./tally.json", "Configuration file for tally")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log every ledger event")

	rootCmd.PersistentPreRunE = preRun(app, &configFile, &verbose)
	rootCmd.PersistentPostRunE = postRun(app)

	rootCmd.AddCommand(demoCommands(app))
	rootCmd.AddCommand(workerCommands(app))
	rootCmd.AddCommand(configCommands(app))

	return &Tally{cmd: rootCmd}
}

func (t Tally) executeCLI() {
	if err := t.cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func main() {
	defer recoverPanic()

	cli := NewCLI()
	cli.executeCLI()
}
