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

// Command cryptfsctl drives an encrypted filesystem data root directly,
// without a kernel mount, for manual testing and scripting.
package main

import (
	"fmt"
	"os"

	"github.com/cryptofs/cryptofs/cfg"
	"github.com/cryptofs/cryptofs/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile       string
	password      string
	bindErr       error
	configFileErr error
	config        cfg.Config
)

var rootCmd = &cobra.Command{
	Use:   "cryptfsctl <command> [args]",
	Short: "Inspect and manipulate an encrypted filesystem data root",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if bindErr != nil {
			return bindErr
		}
		if configFileErr != nil {
			return configFileErr
		}
		c, err := cfg.Load(cfgFile)
		if err != nil {
			return err
		}
		config = c
		logger.SetLevel(logger.ParseSeverity(string(config.Logging.Severity)))
		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config-file", "", "Path to a YAML config file.")
	rootCmd.PersistentFlags().StringVar(&password, "password", os.Getenv("CRYPTOFS_PASSWORD"), "Data root password. Defaults to $CRYPTOFS_PASSWORD.")
	bindErr = cfg.BindFlags(rootCmd.PersistentFlags())
	viper.AutomaticEnv()

	rootCmd.AddCommand(initCmd, mkdirCmd, putCmd, getCmd, lsCmd, rmCmd, statCmd)
}

func main() {
	Execute()
}
