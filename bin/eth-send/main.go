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

var sendCmd = &cobra.Command{
	Use:   "eth-send",
	Short: "Paced UDP sender, emulating antenna fields",
	Run: func(cmd *cobra.Command, args []string) {
		streams := streamsFromFlags()
		if streams.Host == "" {
			cmd.Usage()
			util.Exit(1)
		}

		s, err := session.Open(bench.TestSend)
		if err != nil {
			util.Fatal("Could not set up the result sinks: ", err)
		}
		defer s.Close()
		streams.Board = s.Board

		reports, err := streams.Send(s.Context())
		if err != nil {
			util.Fatal(err)
		}

		summary := bench.SummarizeSend(reports)
		summary.DesiredGbps = streams.Params.RateBps * float64(streams.Ports) / 1e9
		if summary.DesiredGbps > 0 {
			summary.Percent = 100.0 * summary.Gbps / summary.DesiredGbps
		}
		s.Run.SendReports = reports
		if err = s.Finish(summary); err == session.ErrInterrupted {
			log.Warn(err)
		} else if err != nil {
			log.WithError(err).Error("Failed to store the results")
		}

		fmt.Println(" ----- Test results -----")
		fmt.Printf("Test version: %s\n", version.Version)
		fmt.Printf("Total speed:  %.2f Gbit/s\n", summary.Gbps)
		fmt.Printf("Average late: %.3f%%\n", summary.LatePerc)
		fmt.Println("Done.")
	},
}

func streamsFromFlags() *network.Streams {
	return &network.Streams{
		Host:      viper.GetString("eth.host"),
		FirstPort: viper.GetInt("eth.port"),
		Ports:     viper.GetInt("eth.ports"),
		Params: network.Params{
			MessageSize: viper.GetInt("eth.size"),
			BatchSize:   network.DefaultBatchSize,
			Batches:     viper.GetInt("eth.batches"),
			Oversend:    network.DefaultOversend,
			RateBps:     viper.GetFloat64("eth.rate") * 1e9,
		},
	}
}

func main() {
	// Config file
	configFile := sendCmd.Flags().String("Config", "", "Use configuration from this file")

	config.BindLogFlags(sendCmd, "eth")
	config.BindSinkFlags(sendCmd)
	config.BindStatusFlags(sendCmd)

	// Specific flags
	sendCmd.Flags().StringP("Host", "H", "", "Host name (or IP address) to send to")
	sendCmd.Flags().IntP("Port", "P", network.DefaultFirstPort, "First port number to send to")
	sendCmd.Flags().Int("Ports", network.DefaultPorts, "Number of ports to send to")
	sendCmd.Flags().Int("Size", network.MaxMessageSize, "Message size")
	sendCmd.Flags().Int("Batches", network.DefaultBatches, "Number of batches the receiver expects")
	sendCmd.Flags().Float64("Rate", network.DefaultRateBps/1e9, "Speed per port, in Gbit/s")

	viper.BindPFlag("eth.host", sendCmd.Flags().Lookup("Host"))
	viper.BindPFlag("eth.port", sendCmd.Flags().Lookup("Port"))
	viper.BindPFlag("eth.ports", sendCmd.Flags().Lookup("Ports"))
	viper.BindPFlag("eth.size", sendCmd.Flags().Lookup("Size"))
	viper.BindPFlag("eth.batches", sendCmd.Flags().Lookup("Batches"))
	viper.BindPFlag("eth.rate", sendCmd.Flags().Lookup("Rate"))

	cobra.OnInitialize(config.Initialize(configFile, "eth"))

	if err := sendCmd.Execute(); err != nil {
		util.Fatal(err)
	}
	util.Exit(0)
}
