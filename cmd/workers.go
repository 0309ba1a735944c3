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
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/blnkfinance/tally"
	"github.com/blnkfinance/tally/config"
	redis_db "github.com/blnkfinance/tally/internal/redis-db"
)

func initializeWorkerServer(conf *config.Configuration) (*asynq.Server, error) {
	opt, err := redis_db.QueueOption(conf.Redis.Dns)
	if err != nil {
		return nil, fmt.Errorf("error parsing Redis URL: %w", err)
	}
	return asynq.NewServer(opt, asynq.Config{
		Concurrency: conf.Queue.Concurrency,
		Queues:      map[string]int{conf.Queue.WebhookQueue: 1},
		ErrorHandler: asynq.ErrorHandlerFunc(func(_ context.Context, task *asynq.Task, err error) {
			logrus.WithFields(logrus.Fields{"task": task.Type()}).WithError(err).Error("task failed")
		}),
	}), nil
}

func initializeTaskHandlers(conf *config.Configuration, mux *asynq.ServeMux) {
	mux.HandleFunc(conf.Queue.WebhookQueue, tally.ProcessWebhook)
}

// workerCommands starts the webhook delivery workers.
func workerCommands(app *tallyInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workers",
		Short: "start tally webhook workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			if app.cnf.Redis.Dns == "" {
				return errors.New("workers need redis: set TALLY_REDIS_DNS")
			}
			srv, err := initializeWorkerServer(app.cnf)
			if err != nil {
				return err
			}
			mux := asynq.NewServeMux()
			initializeTaskHandlers(app.cnf, mux)

			logrus.WithField("queue", app.cnf.Queue.WebhookQueue).Info("starting workers")
			if err := srv.Run(mux); err != nil {
				return fmt.Errorf("could not run server: %w", err)
			}
			return nil
		},
	}
	return cmd
}
