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
	"github.com/CedricDViou/cobalt2-compliance/placement"
	"github.com/CedricDViou/cobalt2-compliance/session"
	"github.com/CedricDViou/cobalt2-compliance/station"
	"github.com/CedricDViou/cobalt2-compliance/types/bench"
	"github.com/CedricDViou/cobalt2-compliance/util"
	"github.com/CedricDViou/cobalt2-compliance/version"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var memCmd = &cobra.Command{
	Use:   "mem-test",
	Short: "Station pipeline memory bandwidth test",
	Long: "Runs the ten memory stages of every station concurrently, each at the\n" +
		"speed the station data flows through it, and reports if the node keeps up.",
	Run: func(cmd *cobra.Command, args []string) {
		stages := bench.DefaultStages()
		if stageFile := viper.GetString("mem.stages"); stageFile != "" {
			var err error
			if stages, err = config.LoadStages(stageFile); err != nil {
				util.Fatal("Could not load the stages: ", err)
			}
		}

		var policy placement.Policy = placement.Null{}
		if !viper.GetBool("mem.nonuma") {
			numa, err := placement.NewNUMA(viper.GetString("mem.sysfs"))
			if err != nil {
				util.Fatal(err)
			}
			policy = numa
		}

		s, err := session.Open(bench.TestMemory)
		if err != nil {
			util.Fatal("Could not set up the result sinks: ", err)
		}
		defer s.Close()

		coordinator := &station.Coordinator{
			Stations:  viper.GetInt("mem.stations"),
			Stages:    stages,
			Placement: policy,
			Board:     s.Board,
		}
		reports, err := coordinator.Run(s.Context())
		if err != nil {
			util.Fatal(err)
		}

		summary := bench.Summarize(reports)
		s.Run.Reports = reports
		if err = s.Finish(summary); err == session.ErrInterrupted {
			log.Warn(err)
		} else if err != nil {
			log.WithError(err).Error("Failed to store the results")
		}

		fmt.Println(" ----- Test results -----")
		fmt.Printf("Test version:    %s\n", version.Version)
		fmt.Printf("Desired speed:   %.2f Gbit/s\n", summary.DesiredGbps)
		fmt.Printf("Measured speed:  %.2f Gbit/s (%.2f%% of desired)\n", summary.Gbps, summary.Percent)
		fmt.Printf("Average late:    %.3f%%\n", summary.LatePerc)
	},
}

func main() {
	// Config file
	configFile := memCmd.Flags().String("Config", "", "Use configuration from this file")

	config.BindLogFlags(memCmd, "mem")
	config.BindSinkFlags(memCmd)
	config.BindStatusFlags(memCmd)

	// Specific flags
	memCmd.Flags().Int("Stations", bench.DefaultStations, "Number of stations to emulate")
	memCmd.Flags().String("Stages", "", "Load the station stages from this yaml file")
	memCmd.Flags().Bool("NoNuma", false, "Do not bind stations to NUMA nodes")
	memCmd.Flags().String("Sysfs", placement.SysfsNodeRoot, "Where to read the NUMA topology from")

	viper.BindPFlag("mem.stations", memCmd.Flags().Lookup("Stations"))
	viper.BindPFlag("mem.stages", memCmd.Flags().Lookup("Stages"))
	viper.BindPFlag("mem.nonuma", memCmd.Flags().Lookup("NoNuma"))
	viper.BindPFlag("mem.sysfs", memCmd.Flags().Lookup("Sysfs"))

	cobra.OnInitialize(config.Initialize(configFile, "mem"))

	if err := memCmd.Execute(); err != nil {
		util.Fatal(err)
	}
	util.Exit(0)
}
