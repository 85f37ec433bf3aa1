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
	"github.com/CedricDViou/cobalt2-compliance/device"
	"github.com/CedricDViou/cobalt2-compliance/session"
	"github.com/CedricDViou/cobalt2-compliance/types/bench"
	"github.com/CedricDViou/cobalt2-compliance/util"
	"github.com/CedricDViou/cobalt2-compliance/version"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var copyCmd = &cobra.Command{
	Use:   "gpu-copy",
	Short: "Host to device and device to host copy speed test",
	Run: func(cmd *cobra.Command, args []string) {
		log.Info("Initialising devices...")
		test := &device.Test{
			Devices:    viper.GetInt("gpu.devices"),
			Iterations: viper.GetInt("gpu.iterations"),
			BufferSize: uint64(viper.GetInt64("gpu.buffer")),
			Open:       device.HostOpener(uint64(viper.GetFloat64("gpu.memory") * bench.GByte)),
		}
		if err := test.Validate(); err != nil {
			util.Fatal(err)
		}

		s, err := session.Open(bench.TestDevice)
		if err != nil {
			util.Fatal("Could not set up the result sinks: ", err)
		}
		defer s.Close()

		reports, err := test.Run()
		if err != nil {
			util.Fatal(err)
		}

		totals := bench.SummarizeDevices(reports)
		s.Run.DeviceReports = reports
		s.Run.DeviceSummary = &totals
		if err = s.Finish(bench.Summary{Gbps: totals.WriteGbps + totals.ReadGbps, Count: len(reports)}); err == session.ErrInterrupted {
			log.Warn(err)
		} else if err != nil {
			log.WithError(err).Error("Failed to store the results")
		}

		fmt.Println(" ----- Test results -----")
		fmt.Printf("Test version:      %s\n", version.Version)
		fmt.Printf("Total write speed: %.2f Gbit/s\n", totals.WriteGbps)
		fmt.Printf("Total read speed:  %.2f Gbit/s\n", totals.ReadGbps)
	},
}

func main() {
	// Config file
	configFile := copyCmd.Flags().String("Config", "", "Use configuration from this file")

	config.BindLogFlags(copyCmd, "gpu")
	config.BindSinkFlags(copyCmd)

	// Specific flags
	copyCmd.Flags().Int("Devices", 1, "Number of devices to test")
	copyCmd.Flags().Int("Iterations", device.DefaultIterations, "Number of copies in each direction")
	copyCmd.Flags().Int64("BufferSize", 0, "Bytes per copy. Just about all the device memory if 0")
	copyCmd.Flags().Float64("Memory", 1, "Emulated device memory, in GByte")

	viper.BindPFlag("gpu.devices", copyCmd.Flags().Lookup("Devices"))
	viper.BindPFlag("gpu.iterations", copyCmd.Flags().Lookup("Iterations"))
	viper.BindPFlag("gpu.buffer", copyCmd.Flags().Lookup("BufferSize"))
	viper.BindPFlag("gpu.memory", copyCmd.Flags().Lookup("Memory"))

	cobra.OnInitialize(config.Initialize(configFile, "gpu"))

	if err := copyCmd.Execute(); err != nil {
		util.Fatal(err)
	}
	util.Exit(0)
}
