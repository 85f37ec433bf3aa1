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

package sink

import (
	"context"
	"encoding/json"
	"github.com/CedricDViou/cobalt2-compliance/bus/exchanges"
	"github.com/CedricDViou/cobalt2-compliance/bus/queues"
	"github.com/CedricDViou/cobalt2-compliance/types/bench"
	"github.com/CedricDViou/cobalt2-compliance/types/perf"
	log "github.com/sirupsen/logrus"
	"github.com/streadway/amqp"
	"time"
)

type (
	// Channel is the part of an AMQP channel used to publish
	Channel interface {
		exchanges.Declarer
		Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
		Close() error
	}

	// Publisher sends finished runs, and live progress, to the broker
	Publisher struct {
		conn    *amqp.Connection
		channel Channel
	}
)

// NewPublisher connects to the broker at addr, and declares the exchanges
func NewPublisher(addr string) (*Publisher, error) {
	conn, err := amqp.Dial(addr)
	if err != nil {
		return nil, err
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	p, err := NewPublisherWithChannel(channel)
	if err != nil {
		conn.Close()
		return nil, err
	}
	p.conn = conn
	return p, nil
}

// NewPublisherWithChannel uses an existing channel, and declares the exchanges
func NewPublisherWithChannel(channel Channel) (*Publisher, error) {
	if err := exchanges.Results.Declare(channel); err != nil {
		return nil, err
	}
	if err := exchanges.Progress.Declare(channel); err != nil {
		return nil, err
	}
	return &Publisher{channel: channel}, nil
}

// Store publishes the run, with the test name as routing key
func (p *Publisher) Store(run *bench.Run) error {
	if err := run.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(run)
	if err != nil {
		return err
	}
	log.WithField("run", run.ID).Debug("Publishing run")
	return p.channel.Publish(
		exchanges.Results.Name,
		string(run.Test),
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    string(run.ID),
			Timestamp:    run.Finished,
			AppId:        run.Host,
			Body:         data,
		},
	)
}

// Progress publishes a snapshot of the markers
func (p *Publisher) Progress(host string, markers []perf.Marker) error {
	data, err := json.Marshal(markers)
	if err != nil {
		return err
	}
	return p.channel.Publish(
		exchanges.Progress.Name,
		"",
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType: "application/json",
			Timestamp:   time.Now(),
			AppId:       host,
			Body:        data,
		},
	)
}

// Watch publishes the board every interval, until ctx is done
func (p *Publisher) Watch(ctx context.Context, host string, board *perf.Board, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.Progress(host, board.Snapshot()); err != nil {
				log.WithError(err).Warn("Failed to publish progress")
			}
		}
	}
}

// Close closes the channel and the connection
func (p *Publisher) Close() error {
	err := p.channel.Close()
	if p.conn != nil {
		if cerr := p.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// requeueDelay is how long Consume waits before giving back a run it could not store
var requeueDelay = 5 * time.Second

// Consume stores every run delivered into target, until the deliveries
// channel is closed. Runs that can not be parsed are rejected. Runs that can
// not be stored are requeued once, after requeueDelay, and dropped if they
// fail again.
func Consume(deliveries <-chan amqp.Delivery, target Sink) error {
	for d := range deliveries {
		l := log.WithField("message", d.MessageId)

		var run bench.Run
		if err := json.Unmarshal(d.Body, &run); err != nil {
			l.WithError(err).Warn("Malformed run, dropping it")
			d.Reject(false)
			continue
		}
		if err := run.Validate(); err != nil {
			l.WithError(err).Warn("Incomplete run, dropping it")
			d.Reject(false)
			continue
		}

		if err := target.Store(&run); err != nil {
			if d.Redelivered {
				l.WithError(err).Error("Failed to store the run again, dropping it")
				d.Nack(false, false)
				continue
			}
			l.WithError(err).Error("Failed to store the run, requeuing it")
			time.Sleep(requeueDelay)
			d.Nack(false, true)
			continue
		}
		l.WithFields(log.Fields{
			"host": run.Host,
			"test": run.Test,
		}).Info("Stored run ", run.ID)
		d.Ack(false)
	}
	return nil
}

// Subscribe connects to the broker at addr and consumes the given queue into
// target. It returns when the connection is lost.
func Subscribe(addr string, queue *queues.Queue, consumerTag string, target Sink) error {
	conn, err := amqp.Dial(addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	channel, err := conn.Channel()
	if err != nil {
		return err
	}
	defer channel.Close()

	if err = queue.Bind.Exchange.Declare(channel); err != nil {
		return err
	}
	if err = queue.Declare(channel); err != nil {
		return err
	}

	deliveries, err := channel.Consume(
		queue.Name,
		consumerTag,
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return err
	}

	log.Info("Subscribed to ", queue.Name)
	return Consume(deliveries, target)
}
