/*
 * Copyright (c) CERN 2016
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *    http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package queues

import (
	"github.com/CedricDViou/cobalt2-compliance/bus/exchanges"
	"github.com/CedricDViou/cobalt2-compliance/types/bench"
	"github.com/streadway/amqp"
)

// Bind defines a bind between a queue and an exchange
type Bind struct {
	Exchange   *exchanges.Exchange
	RoutingKey string
}

// Queue defines a queue on the message broker
type Queue struct {
	Name       string
	Durable    bool
	AutoDelete bool
	Bind       *Bind
}

// Declarer is the part of an AMQP channel needed to declare queues
type Declarer interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
}

var (
	// Results is the queue used by the result store. All the tests end up here.
	Results = &Queue{
		Name:       "cobalt.q.results",
		Durable:    true,
		AutoDelete: false,
		Bind: &Bind{
			Exchange:   exchanges.Results,
			RoutingKey: "#",
		},
	}
)

// ForTest returns a queue that only gets the results of the given test
func ForTest(test bench.TestName) *Queue {
	return &Queue{
		Name:       "cobalt.q.results." + string(test),
		Durable:    true,
		AutoDelete: false,
		Bind: &Bind{
			Exchange:   exchanges.Results,
			RoutingKey: string(test),
		},
	}
}

// Declare a new queue, and do the binding as well if configured.
func (q *Queue) Declare(channel Declarer) error {
	if _, err := channel.QueueDeclare(
		q.Name,
		q.Durable,
		q.AutoDelete,
		false, // exclusive
		false, // no-wait
		nil,   // args
	); err != nil {
		return err
	}

	if q.Bind != nil {
		if err := channel.QueueBind(
			q.Name,
			q.Bind.RoutingKey,
			q.Bind.Exchange.Name,
			false, // no-wait
			nil,   // args
		); err != nil {
			return err
		}
	}
	return nil
}
