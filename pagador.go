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

package pagador

import (
	"github.com/pagadorhq/pagador/config"
	"github.com/pagadorhq/pagador/database"
)

// Pagador is the payment simulator service: it decides outcomes, persists
// payments and delivers outcome notifications.
type Pagador struct {
	datasource database.IDataSource
	dispatcher *Dispatcher
	queue      *Queue
}

// NewPagador initializes the service with the provided datasource. Dispatcher
// and queue are built from the fetched configuration.
func NewPagador(db database.IDataSource) (*Pagador, error) {
	configuration, err := config.Fetch()
	if err != nil {
		return nil, err
	}

	newQueue := NewQueue(configuration)
	newPagador := &Pagador{
		datasource: db,
		dispatcher: NewDispatcher(configuration),
		queue:      newQueue,
	}
	return newPagador, nil
}
