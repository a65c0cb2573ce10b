// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
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

package core

import "context"

// Matrix expands the cross product of algorithms and party counts into run
// configs, silently skipping combinations the algorithm rejects (for example
// a dissemination run at six parties).
func Matrix(algorithms []string, parties []int, episodes int, reduction, pinThreads bool) []Config {
	var configs []Config
	for _, alg := range algorithms {
		for _, p := range parties {
			cfg := Config{
				Algorithm:  alg,
				Parties:    p,
				Episodes:   episodes,
				Reduction:  reduction,
				PinThreads: pinThreads,
			}
			if cfg.Validate() != nil {
				continue
			}
			configs = append(configs, cfg)
		}
	}
	return configs
}

// Sweep runs the configs sequentially, forwarding each finished report to
// onReport when non-nil. It returns the reports collected so far along with
// the context error if the sweep was cut short.
func Sweep(ctx context.Context, configs []Config, onReport func(Report)) ([]Report, error) {
	reports := make([]Report, 0, len(configs))
	for _, cfg := range configs {
		if err := ctx.Err(); err != nil {
			return reports, err
		}
		runner, err := NewRunner(cfg)
		if err != nil {
			return reports, err
		}
		report, err := runner.Run(ctx)
		reports = append(reports, report)
		if onReport != nil {
			onReport(report)
		}
		if err != nil {
			return reports, err
		}
	}
	return reports, nil
}
