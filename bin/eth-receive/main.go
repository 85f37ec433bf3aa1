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
	"fmt"
	"github.com/CedricDViou/cobalt2-compliance/config"
	"github.com/CedricDViou/cobalt2-compliance/network"
	"github.com/CedricDViou/cobalt2-compliance/session"
	"github.com/CedricDViou/cobalt2-compliance/types/bench"
	"github.com/CedricDViou/cobalt2-compliance/util"
	"github.com/CedricDViou/cobalt2-compliance/version"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var receiveCmd = &cobra.Command{
	Use:   "eth-receive",
	Short: "UDP receiver, with loss accounting",
	Run: func(cmd *cobra.Command, args []string) {
		streams := &network.Streams{
			Host:      viper.GetString("eth.host"),
			FirstPort: viper.GetInt("eth.port"),
			Ports:     viper.GetInt("eth.ports"),
			Params: network.Params{
				MessageSize: network.MaxMessageSize,
				BatchSize:   viper.GetInt("eth.batchsize"),
				Batches:     viper.GetInt("eth.batches"),
				Oversend:    network.DefaultOversend,
			},
		}
		if streams.Host == "" {
			cmd.Usage()
			util.Exit(1)
		}

		s, err := session.Open(bench.TestReceive)
		if err != nil {
			util.Fatal("Could not set up the result sinks: ", err)
		}
		defer s.Close()
		streams.Board = s.Board

		reports, err := streams.Receive(s.Context())
		if err != nil {
			util.Fatal(err)
		}

		summary := bench.SummarizeReceive(reports)
		s.Run.ReceiveReports = reports
		if err = s.Finish(summary); err == session.ErrInterrupted {
			log.Warn(err)
		} else if err != nil {
			log.WithError(err).Error("Failed to store the results")
		}

		fmt.Println(" ----- Test results -----")
		fmt.Printf("Test version: %s\n", version.Version)
		fmt.Printf("Total speed:  %.2f Gbit/s\n", summary.Gbps)
		fmt.Printf("Average loss: %.3f%%\n", summary.LossPerc)
	},
}

func main() {
	// Config file
	configFile := receiveCmd.Flags().String("Config", "", "Use configuration from this file")

	config.BindLogFlags(receiveCmd, "eth")
	config.BindSinkFlags(receiveCmd)
	config.BindStatusFlags(receiveCmd)

	// Specific flags
	receiveCmd.Flags().StringP("Host", "H", "", "Host name (or IP address) to receive on")
	receiveCmd.Flags().IntP("Port", "P", network.DefaultFirstPort, "First port number to receive on")
	receiveCmd.Flags().Int("Ports", network.DefaultPorts, "Number of ports to receive on")
	receiveCmd.Flags().Int("BatchSize", network.DefaultBatchSize, "Messages per batch receive")
	receiveCmd.Flags().Int("Batches", network.DefaultBatches, "Number of batches to receive")

	viper.BindPFlag("eth.host", receiveCmd.Flags().Lookup("Host"))
	viper.BindPFlag("eth.port", receiveCmd.Flags().Lookup("Port"))
	viper.BindPFlag("eth.ports", receiveCmd.Flags().Lookup("Ports"))
	viper.BindPFlag("eth.batchsize", receiveCmd.Flags().Lookup("BatchSize"))
	viper.BindPFlag("eth.batches", receiveCmd.Flags().Lookup("Batches"))

	cobra.OnInitialize(config.Initialize(configFile, "eth"))

	if err := receiveCmd.Execute(); err != nil {
		util.Fatal(err)
	}
	util.Exit(0)
}
