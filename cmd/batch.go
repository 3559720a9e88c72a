/*
Copyright © 2025 Valentyn Solomko <valentyn.solomko@gmail.com>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/valpere/adaptran/internal"
)

var (
	batchInput        string
	batchOutput       string
	batchLanguage     string
	batchLevel        string
	batchMotherTongue string
	batchConcurrency  int
	batchNoCache      bool
)

// batchLine is one request of a batch file. Empty fields fall back to the
// command's flags.
type batchLine struct {
	Text         string `json:"text"`
	Language     string `json:"language"`
	Level        string `json:"level"`
	MotherTongue string `json:"motherTongue"`
}

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Adapt every request of a JSON Lines file",
	Long: `Run one adaptation workflow per line of a JSON Lines file and write one
JSON result per line, in input order.

Each input line is an object {"text", "language", "level", "motherTongue"};
missing fields take the --language, --level and --mother-tongue values.
A failed line is reported in the output and does not stop the batch.

Example:
  adaptran batch -i requests.jsonl -o results.jsonl -l Beginner -c 4`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if batchConcurrency < 1 {
			return fmt.Errorf("--concurrency must be at least 1")
		}

		in, err := os.Open(batchInput)
		if err != nil {
			return fmt.Errorf("failed to open input file: %w", err)
		}
		defer in.Close()

		reqs, err := readBatch(in)
		if err != nil {
			return err
		}

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		results := runBatch(cmd.Context(), a, reqs)

		var out io.Writer = cmd.OutOrStdout()
		if batchOutput != "" {
			f, err := os.Create(batchOutput)
			if err != nil {
				return fmt.Errorf("failed to create output file: %w", err)
			}
			defer f.Close()
			out = f
		}

		enc := json.NewEncoder(out)
		failed := 0
		for _, r := range results {
			if !r.Success {
				failed++
			}
			if err := enc.Encode(r); err != nil {
				return fmt.Errorf("failed to write result: %w", err)
			}
		}

		fmt.Fprintf(cmd.ErrOrStderr(), "Adapted %d/%d requests\n", len(results)-failed, len(results))
		return cmd.Context().Err()
	},
}

// readBatch parses JSON Lines input, skipping blank lines. Line numbers are
// 1-based.
func readBatch(r io.Reader) ([]numberedRequest, error) {
	var reqs []numberedRequest
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for n := 1; scanner.Scan(); n++ {
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}
		var line batchLine
		if err := json.Unmarshal([]byte(raw), &line); err != nil {
			return nil, fmt.Errorf("line %d: invalid request: %w", n, err)
		}
		reqs = append(reqs, numberedRequest{
			line: n,
			req: internal.AdaptationRequest{
				OriginalText:     line.Text,
				TargetLanguage:   orDefault(line.Language, batchLanguage),
				ProficiencyLevel: orDefault(line.Level, batchLevel),
				MotherTongue:     orDefault(line.MotherTongue, batchMotherTongue),
			},
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read input file: %w", err)
	}
	return reqs, nil
}

type numberedRequest struct {
	line int
	req  internal.AdaptationRequest
}

// runBatch runs the requests with at most batchConcurrency workflows in
// flight. Results keep input order.
func runBatch(ctx context.Context, a *app, reqs []numberedRequest) []adaptationOutput {
	results := make([]adaptationOutput, len(reqs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(batchConcurrency)
	for i, nr := range reqs {
		g.Go(func() error {
			res, err := a.adapt(ctx, nr.req, !batchNoCache)
			results[i] = newAdaptationOutput(res, err)
			results[i].Line = nr.line
			if err != nil {
				logger.Warn("batch request failed", zap.Int("line", nr.line), zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().StringVarP(&batchInput, "input", "i", "", "JSON Lines file of requests (required)")
	batchCmd.Flags().StringVarP(&batchOutput, "output", "o", "", "Output file for JSON Lines results (default stdout)")
	batchCmd.Flags().StringVarP(&batchLanguage, "language", "t", "", "Default target language")
	batchCmd.Flags().StringVarP(&batchLevel, "level", "l", "", "Default proficiency level")
	batchCmd.Flags().StringVarP(&batchMotherTongue, "mother-tongue", "m", "English", "Default mother tongue")
	batchCmd.Flags().IntVarP(&batchConcurrency, "concurrency", "c", 2, "Maximum workflows in flight")
	batchCmd.Flags().BoolVar(&batchNoCache, "no-cache", false, "Skip the adaptation cache")

	batchCmd.MarkFlagRequired("input")
}
