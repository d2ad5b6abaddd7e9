// Copyright 2024 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cfg

import (
	"fmt"

	"github.com/spf13/viper"
)

// Load reads configFile, if non-empty, as YAML into viper and unmarshals
// the merged result (file values beneath whatever BindFlags already bound)
// into a fresh Config. With an empty configFile it unmarshals flag and
// default values alone.
func Load(configFile string) (Config, error) {
	if configFile != "" {
		viper.SetConfigFile(configFile)
		viper.SetConfigType("yaml")
		if err := viper.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config file %s: %w", configFile, err)
		}
	}

	var c Config
	if err := viper.Unmarshal(&c, viper.DecodeHook(DecodeHook())); err != nil {
		return Config{}, fmt.Errorf("unmarshaling config: %w", err)
	}
	return c, nil
}
