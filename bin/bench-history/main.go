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
	"encoding/json"
	"fmt"
	"github.com/CedricDViou/cobalt2-compliance/config"
	"github.com/CedricDViou/cobalt2-compliance/sink"
	"github.com/CedricDViou/cobalt2-compliance/types/bench"
	"github.com/CedricDViou/cobalt2-compliance/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"os"
	"text/tabwriter"
)

var historyCmd = &cobra.Command{
	Use:   "bench-history",
	Short: "Browse the results kept in a local history",
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the stored runs, newest first",
	Run: func(cmd *cobra.Command, args []string) {
		history := openHistory()
		runs, err := history.List(bench.TestName(viper.GetString("history.test")), viper.GetInt("history.limit"))
		if err != nil {
			util.Fatal(err)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTEST\tVERSION\tSTARTED\tGBIT/S\t% DESIRED\tLATE %\tLOSS %")
		for _, run := range runs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.2f\t%.2f\t%.3f\t%.3f\n",
				run.ID, run.Test, run.Version, run.Started.Format("2006-01-02 15:04:05"),
				run.Summary.Gbps, run.Summary.Percent, run.Summary.LatePerc, run.Summary.LossPerc)
		}
		w.Flush()
	},
}

var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print a stored run as JSON",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		history := openHistory()
		run, err := history.Get(bench.RunID(args[0]))
		if err != nil {
			util.Fatal(args[0], ": ", err)
		}
		data, err := json.MarshalIndent(run, "", "  ")
		if err != nil {
			util.Fatal(err)
		}
		fmt.Println(string(data))
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <id>...",
	Short: "Remove runs from the history",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		history := openHistory()
		for _, id := range args {
			if err := history.Delete(bench.RunID(id)); err != nil {
				util.Fatal(id, ": ", err)
			}
			fmt.Println("Deleted", id)
		}
	},
}

func openHistory() *sink.History {
	path := viper.GetString("sink.history")
	if path == "" {
		util.Fatal("No history configured")
	}
	history, err := sink.OpenHistory(path)
	if err != nil {
		util.Fatal(err)
	}
	util.OnExit(func() {
		history.Close()
	})
	return history
}

func main() {
	// Config file
	configFile := historyCmd.PersistentFlags().String("Config", "", "Use configuration from this file")

	config.BindLogFlags(historyCmd, "history")

	historyCmd.PersistentFlags().String("History", "", "Path of the local history")
	viper.BindPFlag("sink.history", historyCmd.PersistentFlags().Lookup("History"))

	listCmd.Flags().String("Test", "", "Only list runs of this test")
	listCmd.Flags().Int("Limit", 20, "Maximum number of runs to list, 0 for all")
	viper.BindPFlag("history.test", listCmd.Flags().Lookup("Test"))
	viper.BindPFlag("history.limit", listCmd.Flags().Lookup("Limit"))

	historyCmd.AddCommand(listCmd, showCmd, deleteCmd)

	cobra.OnInitialize(config.Initialize(configFile, "history"))

	if err := historyCmd.Execute(); err != nil {
		util.Fatal(err)
	}
	util.Exit(0)
}
