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

package config

import (
	"encoding/json"
	"errors"
	"log"
	"os"
	"strings"
	"sync/atomic"

	"github.com/kelseyhightower/envconfig"

	"github.com/sirupsen/logrus"
)

const (
	DEFAULT_PORT            = "3000"
	DEFAULT_WEBHOOK_TIMEOUT = 30
)

var ConfigStore atomic.Value

type ServerConfig struct {
	Port string `json:"port" envconfig:"PAGADOR_SERVER_PORT"`
}

type DataSourceConfig struct {
	Dns string `json:"dns" envconfig:"PAGADOR_DATA_SOURCE_DNS"`
}

type RedisConfig struct {
	Dns           string `json:"dns" envconfig:"PAGADOR_REDIS_DNS"`
	SkipTLSVerify bool   `json:"skip_tls_verify" envconfig:"PAGADOR_REDIS_SKIP_TLS_VERIFY"`
}

type SlackWebhook struct {
	WebhookUrl string `json:"webhook_url" envconfig:"PAGADOR_SLACK_WEBHOOK_URL"`
}

// WebhookConfig describes where outcome notifications are POSTed and under
// which policy. NotifyStatuses is the list of statuses that trigger an
// automatic dispatch at creation time; lifecycle transitions always dispatch.
type WebhookConfig struct {
	Url            string            `json:"url" envconfig:"PAGADOR_WEBHOOK_URL"`
	Headers        map[string]string `json:"headers"`
	TimeoutSeconds int               `json:"timeout_seconds" envconfig:"PAGADOR_WEBHOOK_TIMEOUT_SECONDS"`
	NotifyStatuses []string          `json:"notify_statuses" envconfig:"PAGADOR_WEBHOOK_NOTIFY_STATUSES"`
}

type Notification struct {
	Slack   SlackWebhook  `json:"slack"`
	Webhook WebhookConfig `json:"webhook"`
}

type QueueConfig struct {
	NotificationQueue string `json:"notification_queue" envconfig:"PAGADOR_QUEUE_NOTIFICATION_QUEUE"`
	MaxRetryAttempts  int    `json:"max_retry_attempts" envconfig:"PAGADOR_QUEUE_MAX_RETRY_ATTEMPTS"`
}

type Configuration struct {
	ProjectName  string           `json:"project_name" envconfig:"PAGADOR_PROJECT_NAME"`
	Server       ServerConfig     `json:"server"`
	DataSource   DataSourceConfig `json:"data_source"`
	Redis        RedisConfig      `json:"redis"`
	Notification Notification     `json:"notification"`
	Queue        QueueConfig      `json:"queue"`
}

func loadConfigFromFile(file string) error {
	var cnf Configuration
	_, err := os.Stat(file)
	if err == nil {
		f, err := os.Open(file)
		if err != nil {
			return err
		}
		err = json.NewDecoder(f).Decode(&cnf)
		if err != nil {
			return err
		}

	} else if errors.Is(err, os.ErrNotExist) {
		log.Println("config json not passed, will use env variables")
	}

	// override config from environment variables
	err = envconfig.Process("pagador", &cnf)
	if err != nil {
		return err
	}

	err = cnf.validateAndAddDefaults()
	if err != nil {
		return err
	}

	ConfigStore.Store(&cnf)
	return err
}

func InitConfig(configFile string) error {
	logger()
	return loadConfigFromFile(configFile)
}

func Fetch() (*Configuration, error) {
	config := ConfigStore.Load()
	c, ok := config.(*Configuration)
	if !ok {
		return nil, errors.New("config not loaded from file. Create a json file called pagador.json with your config ❌")
	}
	return c, nil
}

// MockConfig stores a configuration for tests without reading a file.
func MockConfig(cnf *Configuration) error {
	err := cnf.validateAndAddDefaults()
	if err != nil {
		return err
	}
	ConfigStore.Store(cnf)
	return nil
}

func (cnf *Configuration) validateAndAddDefaults() error {
	if cnf.ProjectName == "" {
		log.Println("Warning: Project name is empty. Setting a default name.")
		cnf.ProjectName = "Pagador Simulator"
	}

	if cnf.DataSource.Dns == "" {
		log.Println("Error: Data source DNS is empty. It's a required field.")
		return errors.New("data source DNS is required")
	}

	if cnf.Redis.Dns == "" {
		log.Println("Error: Redis DNS is empty. It's a required field.")
		return errors.New("redis DNS is required")
	}

	// Trim white spaces from fields
	cnf.ProjectName = strings.TrimSpace(cnf.ProjectName)
	cnf.Server.Port = strings.TrimSpace(cnf.Server.Port)
	cnf.DataSource.Dns = strings.TrimSpace(cnf.DataSource.Dns)
	cnf.Redis.Dns = strings.TrimSpace(cnf.Redis.Dns)
	cnf.Notification.Webhook.Url = strings.TrimSpace(cnf.Notification.Webhook.Url)

	// Set default value for Port if it's empty
	if cnf.Server.Port == "" {
		cnf.Server.Port = DEFAULT_PORT
		log.Printf("Warning: Port not specified in config. Setting default port: %s", DEFAULT_PORT)
	}

	if cnf.Notification.Webhook.TimeoutSeconds <= 0 {
		cnf.Notification.Webhook.TimeoutSeconds = DEFAULT_WEBHOOK_TIMEOUT
	}

	// Latest processing rule: approved, rejected and pending all notify.
	if len(cnf.Notification.Webhook.NotifyStatuses) == 0 {
		cnf.Notification.Webhook.NotifyStatuses = []string{"approved", "rejected", "pending"}
	}

	if cnf.Queue.NotificationQueue == "" {
		cnf.Queue.NotificationQueue = "new:notification"
	}
	if cnf.Queue.MaxRetryAttempts <= 0 {
		cnf.Queue.MaxRetryAttempts = 3
	}

	return nil
}

func logger() {
	logger := logrus.New()
	log.SetOutput(logger.Writer())
}
