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

// Package cfg holds the engine's tunables: where its data directory lives,
// how expensive its key derivation is, how large its content chunks are,
// and how it logs. A Config is populated by BindFlags plus viper.Unmarshal,
// which layers a YAML file beneath pflag-bound command line overrides.
// engine.New takes only a data directory and a password, so of these values
// cryptfsctl applies DataDir and Logging.Severity; the rest are loaded and
// validated but not passed on.
package cfg

import (
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the root of the engine's configuration tree.
type Config struct {
	DataDir string `yaml:"data-dir"`

	KeyDerivation KeyDerivationConfig `yaml:"key-derivation"`

	Content ContentConfig `yaml:"content"`

	Logging LoggingConfig `yaml:"logging"`

	Metrics MetricsConfig `yaml:"metrics"`
}

// KeyDerivationConfig holds scrypt cost parameters loaded from flags or a
// config file. crypto.DeriveKeys does not read them; it always uses its own
// fixed N=16384, r=8, p=1.
type KeyDerivationConfig struct {
	N int `yaml:"n"`
	R int `yaml:"r"`
	P int `yaml:"p"`
}

// ContentConfig holds a content chunk size loaded from flags or a config
// file. The content cipher does not read it; crypto.ChunkSize fixes chunks
// at 64 KiB.
type ContentConfig struct {
	ChunkSizeBytes int `yaml:"chunk-size-bytes"`
}

// LoggingConfig holds the log sink, its format, its severity, and its
// rotation policy. cryptfsctl applies only Severity, via logger.SetLevel;
// the other fields are not applied.
type LoggingConfig struct {
	FilePath   string      `yaml:"file-path"`
	Format     string      `yaml:"format"`
	Severity   LogSeverity `yaml:"severity"`
	MaxSizeMB  int         `yaml:"max-size-mb"`
	MaxBackups int         `yaml:"max-backups"`
	Compress   bool        `yaml:"compress"`
}

// MetricsConfig holds whether prometheus metrics are enabled and the address
// to serve them on. Nothing in this module reads these fields or serves
// /metrics; the engine is instrumented only when a caller passes
// engine.WithMetrics.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
}

// BindFlags registers the engine's command line flags on flagSet and binds
// each to its viper key, so a flag, the config file, and the default all
// resolve through a single Unmarshal call.
func BindFlags(flagSet *pflag.FlagSet) error {
	var err error

	flagSet.StringP("data-dir", "d", DefaultDataDir, "Directory holding the encrypted filesystem's data.")
	if err = viper.BindPFlag("data-dir", flagSet.Lookup("data-dir")); err != nil {
		return err
	}

	flagSet.Int("scrypt-n", DefaultScryptN, "scrypt CPU/memory cost parameter, as a power of two.")
	if err = viper.BindPFlag("key-derivation.n", flagSet.Lookup("scrypt-n")); err != nil {
		return err
	}

	flagSet.Int("scrypt-r", DefaultScryptR, "scrypt block size parameter.")
	if err = viper.BindPFlag("key-derivation.r", flagSet.Lookup("scrypt-r")); err != nil {
		return err
	}

	flagSet.Int("scrypt-p", DefaultScryptP, "scrypt parallelization parameter.")
	if err = viper.BindPFlag("key-derivation.p", flagSet.Lookup("scrypt-p")); err != nil {
		return err
	}

	flagSet.Int("chunk-size-bytes", DefaultChunkSizeBytes, "Plaintext chunk size used to encrypt file content.")
	if err = viper.BindPFlag("content.chunk-size-bytes", flagSet.Lookup("chunk-size-bytes")); err != nil {
		return err
	}

	flagSet.String("log-file", "", "Path to a log file. Empty logs to stderr.")
	if err = viper.BindPFlag("logging.file-path", flagSet.Lookup("log-file")); err != nil {
		return err
	}

	flagSet.String("log-format", DefaultLogFormat, "Log output format: text or json.")
	if err = viper.BindPFlag("logging.format", flagSet.Lookup("log-format")); err != nil {
		return err
	}

	flagSet.String("log-severity", string(DefaultLogSeverity), "Minimum severity logged: TRACE, DEBUG, INFO, WARNING, ERROR, or OFF.")
	if err = viper.BindPFlag("logging.severity", flagSet.Lookup("log-severity")); err != nil {
		return err
	}

	flagSet.Bool("metrics", false, "Serve prometheus metrics.")
	if err = viper.BindPFlag("metrics.enabled", flagSet.Lookup("metrics")); err != nil {
		return err
	}

	flagSet.String("metrics-address", DefaultMetricsAddress, "Address the metrics server listens on, when enabled.")
	if err = viper.BindPFlag("metrics.address", flagSet.Lookup("metrics-address")); err != nil {
		return err
	}

	return nil
}
