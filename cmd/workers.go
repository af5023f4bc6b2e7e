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
	"context"
	"log"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/pagadorhq/pagador"
	"github.com/pagadorhq/pagador/config"
	redis_db "github.com/pagadorhq/pagador/internal/redis-db"
)

func initializeWorkerServer(cfg *config.Configuration) (*asynq.Server, error) {
	redisClient, err := redis_db.NewRedisClient([]string{cfg.Redis.Dns}, cfg.Redis.SkipTLSVerify)
	if err != nil {
		return nil, err
	}

	return asynq.NewServer(
		redisClient,
		asynq.Config{
			Concurrency: 1,
			Queues: map[string]int{
				cfg.Queue.NotificationQueue: 1,
			},
		},
	), nil
}

// workerCommands defines the "workers" command that consumes the notification
// queue and delivers the queued payloads.
func workerCommands(p *pagadorInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workers",
		Short: "start pagador notification workers",
		Run: func(cmd *cobra.Command, args []string) {
			cfg, err := config.Fetch()
			if err != nil {
				log.Fatal("Error fetching config:", err)
			}

			srv, err := initializeWorkerServer(cfg)
			if err != nil {
				log.Fatal("Error initializing worker server:", err)
			}

			mux := asynq.NewServeMux()
			mux.HandleFunc(pagador.NotificationTaskType, p.pagador.ProcessNotification)

			log.Println(" [*] Starting notification workers")
			if err := srv.Run(mux); err != nil {
				log.Fatal("Error running worker server:", err)
			}
		},
	}

	cmd.AddCommand(sweepCommand(p))
	return cmd
}

// sweepCommand enqueues every unsent notification for redelivery, then exits.
func sweepCommand(p *pagadorInstance) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "enqueue unsent notifications for redelivery",
		Run: func(cmd *cobra.Command, args []string) {
			enqueued, err := p.pagador.EnqueuePendingNotifications(context.Background(), limit)
			if err != nil {
				log.Fatal("Error sweeping pending notifications:", err)
			}
			logrus.WithField("enqueued", enqueued).Info("pending notifications swept")
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 100, "maximum notifications to enqueue")
	return cmd
}
