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

package main

import (
	"github.com/CedricDViou/cobalt2-compliance/bus/queues"
	"github.com/CedricDViou/cobalt2-compliance/config"
	"github.com/CedricDViou/cobalt2-compliance/sink"
	"github.com/CedricDViou/cobalt2-compliance/types/bench"
	"github.com/CedricDViou/cobalt2-compliance/util"
	"github.com/satori/go.uuid"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"time"
)

var storeCmd = &cobra.Command{
	Use:   "bench-stored",
	Short: "Store the results published by the benchmarks",
	Run: func(cmd *cobra.Command, args []string) {
		reconnectWait := viper.GetInt("amqp.reconnect.wait")
		reconnectMaxRetries := viper.GetInt("amqp.reconnect.retry")
		reconnectRetries := 0

		// Everything but the broker itself is a target
		targets := config.SinkConfig()
		broker := targets.Amqp
		targets.Amqp = ""
		if broker == "" {
			util.Fatal("A broker is required")
		}
		if targets.History == "" && targets.Redis == "" && targets.Database == "" {
			util.Fatal("At least one of history, redis, or database is required")
		}

		store, err := sink.Open(targets)
		if err != nil {
			util.Fatal(err)
		}
		util.OnExit(func() {
			store.Close()
		})

		queue := queues.Results
		if test := viper.GetString("stored.test"); test != "" {
			queue = queues.ForTest(bench.TestName(test))
		}
		consumerTag := "bench-stored-" + util.Hostname() + "-" + uuid.NewV4().String()

		l := log.WithField("broker", broker)
		for {
			err := sink.Subscribe(broker, queue, consumerTag, store)
			if err == nil {
				l.Warn("Lost connection with broker")
				reconnectRetries = 0
			} else {
				reconnectRetries++
				if reconnectRetries > reconnectMaxRetries {
					util.Fatal("Could not reconnect to the broker after ", reconnectMaxRetries, " attempts: ", err)
				}
				l.WithError(err).Errorf("Failed to connect, wait %d seconds", reconnectWait)
			}
			time.Sleep(time.Duration(reconnectWait) * time.Second)
		}
	},
}

func main() {
	// Config file
	configFile := storeCmd.Flags().String("Config", "", "Use configuration from this file")

	config.BindLogFlags(storeCmd, "stored")
	config.BindSinkFlags(storeCmd)

	// Specific flags
	storeCmd.Flags().String("Test", "", "Only store the results of this test")
	storeCmd.Flags().Int("AmqpReconnectRetry", 5, "Maximum number of reconnect retries")
	storeCmd.Flags().Int("AmqpReconnectWait", 1, "Number of seconds to wait between reconnection attempts")

	viper.BindPFlag("stored.test", storeCmd.Flags().Lookup("Test"))
	viper.BindPFlag("amqp.reconnect.retry", storeCmd.Flags().Lookup("AmqpReconnectRetry"))
	viper.BindPFlag("amqp.reconnect.wait", storeCmd.Flags().Lookup("AmqpReconnectWait"))

	cobra.OnInitialize(config.Initialize(configFile, "stored"))

	if err := storeCmd.Execute(); err != nil {
		util.Fatal(err)
	}
	util.Exit(0)
}
