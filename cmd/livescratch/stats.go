/*
 * Copyright 2025 The LiveScratch Authors. All rights reserved.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
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
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/livescratch/livescratch/api/types"
	"github.com/livescratch/livescratch/server/rpc"
)

var (
	rpcAddr string
)

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show the session statistics of a running server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateOutput(); err != nil {
				return err
			}

			stats, err := fetchStats(rpcAddr)
			if err != nil {
				return err
			}

			switch output {
			case "yaml":
				marshalled, err := yaml.Marshal(stats)
				if err != nil {
					return errors.New("failed to marshal YAML")
				}
				fmt.Println(string(marshalled))
				return nil
			case "json":
				marshalled, err := json.MarshalIndent(stats, "", "  ")
				if err != nil {
					return errors.New("failed to marshal JSON")
				}
				fmt.Println(string(marshalled))
				return nil
			}

			tw := table.NewWriter()
			tw.Style().Options.DrawBorder = false
			tw.Style().Options.SeparateColumns = false
			tw.Style().Options.SeparateFooter = false
			tw.Style().Options.SeparateHeader = false
			tw.Style().Options.SeparateRows = false
			tw.AppendHeader(table.Row{
				"PROJECTS",
				"EXTERNAL REFS",
				"LOADED",
				"ACTIVE PROJECTS",
				"ACTIVE SESSIONS",
				"IDENTITIES",
			})
			tw.AppendRow(table.Row{
				stats.Projects,
				stats.ExternalRefs,
				stats.LoadedProjects,
				stats.ActiveProjects,
				stats.ActiveSessions,
				strings.Join(stats.ActiveIdentities, ","),
			})
			cmd.Printf("%s\n", tw.Render())

			return nil
		},
	}
}

func fetchStats(addr string) (*rpc.StatsResponse, error) {
	cli := &http.Client{Timeout: 5 * time.Second}
	resp, err := cli.Get(strings.TrimSuffix(addr, "/") + "/stats")
	if err != nil {
		return nil, fmt.Errorf("fetch stats: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		var errResp rpc.ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
			return nil, fmt.Errorf("fetch stats: %s", resp.Status)
		}
		return nil, fmt.Errorf("fetch stats: %s: %s", resp.Status, errResp.Err)
	}

	stats := &rpc.StatsResponse{Stats: &types.Stats{}}
	if err := json.NewDecoder(resp.Body).Decode(stats); err != nil {
		return nil, fmt.Errorf("decode stats: %w", err)
	}
	return stats, nil
}

func init() {
	cmd := newStatsCmd()
	cmd.Flags().StringVar(
		&rpcAddr,
		"rpc-addr",
		"http://localhost:3000",
		"Address of the RPC server",
	)
	cmd.Flags().StringVarP(
		&output,
		"output",
		"o",
		output,
		"One of 'yaml' or 'json'.",
	)

	rootCmd.AddCommand(cmd)
}
