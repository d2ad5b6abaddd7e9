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

// Defaults for the engine's tunables, used both as pflag defaults and by
// Default() for callers that construct a Config without going through
// BindFlags at all (library embedding, tests).
const (
	DefaultDataDir = "."

	DefaultScryptN = 1 << 15
	DefaultScryptR = 8
	DefaultScryptP = 1

	DefaultChunkSizeBytes = 64 * 1024

	DefaultLogFormat      = "text"
	DefaultLogSeverity    = InfoLogSeverity
	DefaultMetricsAddress = "127.0.0.1:9321"
)

// Default returns a Config populated entirely with the package defaults,
// the same values BindFlags registers as its flag defaults.
func Default() Config {
	return Config{
		DataDir: DefaultDataDir,
		KeyDerivation: KeyDerivationConfig{
			N: DefaultScryptN,
			R: DefaultScryptR,
			P: DefaultScryptP,
		},
		Content: ContentConfig{
			ChunkSizeBytes: DefaultChunkSizeBytes,
		},
		Logging: LoggingConfig{
			Format:     DefaultLogFormat,
			Severity:   DefaultLogSeverity,
			MaxSizeMB:  512,
			MaxBackups: 10,
			Compress:   true,
		},
		Metrics: MetricsConfig{
			Address: DefaultMetricsAddress,
		},
	}
}
