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

package redis

import (
	"errors"
	"fmt"
)

// DefaultKeyPrefix is the prefix of every key written by the client.
const DefaultKeyPrefix = "tandem:"

// ErrEmptyAddr occurs when the address of Redis is not given.
var ErrEmptyAddr = errors.New("redis address is empty")

// Config is the configuration for creating a Client instance.
type Config struct {
	Addr      string `yaml:"Addr"`
	Password  string `yaml:"Password"`
	DB        int    `yaml:"DB"`
	KeyPrefix string `yaml:"KeyPrefix"`
}

// Validate returns an error if the provided Config is invalidated.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf(`invalid argument "" for "--redis-addr" flag: %w`, ErrEmptyAddr)
	}

	if c.DB < 0 {
		return fmt.Errorf(`invalid argument "%d" for "--redis-db" flag`, c.DB)
	}

	return nil
}

func (c *Config) keyPrefix() string {
	if c.KeyPrefix == "" {
		return DefaultKeyPrefix
	}
	return c.KeyPrefix
}
