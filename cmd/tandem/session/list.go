/*
 * Copyright 2026 The Tandem Authors. All rights reserved.
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

package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"

	"github.com/tandem-team/tandem/server/sessions"
)

func newListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ls",
		Short: "List live sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateOutput(output); err != nil {
				return err
			}

			var summaries []sessions.Summary
			if err := getJSON("/api/sessions", &summaries); err != nil {
				return err
			}

			return printSessions(cmd.OutOrStdout(), summaries, output, time.Now())
		},
	}
}

func printSessions(w io.Writer, summaries []sessions.Summary, format string, now time.Time) error {
	switch format {
	case "":
		tw := table.NewWriter()
		tw.Style().Options.DrawBorder = false
		tw.Style().Options.SeparateColumns = false
		tw.Style().Options.SeparateFooter = false
		tw.Style().Options.SeparateHeader = false
		tw.Style().Options.SeparateRows = false
		tw.AppendHeader(table.Row{
			"DOCUMENT",
			"SESSION",
			"STATUS",
			"VERSION",
			"LENGTH",
			"PARTICIPANTS",
			"LOCK HOLDER",
			"AGE",
		})
		for _, summary := range summaries {
			var users []string
			for _, p := range summary.Participants {
				users = append(users, p.UserID)
			}
			holder := ""
			if summary.Lock != nil {
				holder = summary.Lock.HolderID
			}

			tw.AppendRow(table.Row{
				summary.DocumentID,
				summary.SessionID,
				summary.Status,
				summary.Version,
				summary.Length,
				strings.Join(users, ","),
				holder,
				now.Sub(summary.CreatedAt).Round(time.Second),
			})
		}
		_, err := fmt.Fprintf(w, "%s\n", tw.Render())
		return err
	case "yaml":
		marshalled, err := yaml.Marshal(summaries)
		if err != nil {
			return errors.New("failed to marshal YAML")
		}
		_, err = fmt.Fprintln(w, string(marshalled))
		return err
	case "json":
		marshalled, err := json.MarshalIndent(summaries, "", "  ")
		if err != nil {
			return errors.New("failed to marshal JSON")
		}
		_, err = fmt.Fprintln(w, string(marshalled))
		return err
	}

	return validateOutput(format)
}

func init() {
	SubCmd.AddCommand(newListCommand())
}
