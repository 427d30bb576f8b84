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

// Package session provides the commands that inspect live sessions of a
// running Tandem server.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

var (
	// SubCmd represents the session command.
	SubCmd = &cobra.Command{
		Use:   "session",
		Short: "Manage sessions",
	}

	// Addr is the address of the Tandem server.
	Addr string

	output string
)

// requestTimeout bounds one request to the server.
const requestTimeout = 10 * time.Second

// errorBody mirrors the JSON error the server writes.
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// getJSON fetches path from the server and decodes the body into v.
func getJSON(path string, v interface{}) error {
	cli := &http.Client{Timeout: requestTimeout}
	resp, err := cli.Get(fmt.Sprintf("http://%s%s", Addr, path))
	if err != nil {
		return fmt.Errorf("get %s: %w", path, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		var body errorBody
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.Message == "" {
			return fmt.Errorf("get %s: %s", path, resp.Status)
		}
		return fmt.Errorf("get %s: %s: %s", path, body.Code, body.Message)
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func validateOutput(output string) error {
	if output != "" && output != "yaml" && output != "json" {
		return errors.New(`--output must be 'yaml' or 'json'`)
	}

	return nil
}

func init() {
	SubCmd.PersistentFlags().StringVarP(
		&output,
		"output",
		"o",
		"",
		"One of 'yaml' or 'json'.",
	)
}
