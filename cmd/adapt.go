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
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/valpere/adaptran/internal"
	"github.com/valpere/adaptran/internal/markdown"
)

var (
	inputFile    string
	outputFile   string
	language     string
	level        string
	motherTongue string
	outputFormat string
	markdownIn   bool
	noCache      bool
)

var adaptCmd = &cobra.Command{
	Use:   "adapt [text]",
	Short: "Adapt a text to a proficiency level",
	Long: `Adapt a text for a learner of the target language at the given
proficiency level, then print the adapted text and its vocabulary list.

The text is taken from --input, from the arguments, or from stdin.
Levels: Beginner, Intermediate, Advanced (or A1, B1, C1).

Finished workflows are kept in the history database and successful
results are cached; --no-cache forces a fresh adaptation.

Example:
  adaptran adapt -i story.txt -t Spanish -l Beginner -m English
  echo "..." | adaptran adapt -t French -l B1 --format json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := checkFormat(outputFormat); err != nil {
			return err
		}
		if inputFile != "" && inputFile == outputFile {
			return fmt.Errorf("input file and output file cannot be the same")
		}

		text, err := readInput(cmd.InOrStdin(), args)
		if err != nil {
			return err
		}
		if markdownIn {
			text = markdown.ToPlainText([]byte(text))
		}

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		req := internal.AdaptationRequest{
			OriginalText:     text,
			TargetLanguage:   language,
			ProficiencyLevel: level,
			MotherTongue:     motherTongue,
		}
		result, err := a.adapt(cmd.Context(), req, !noCache)
		if err != nil {
			return err
		}

		var buf bytes.Buffer
		if err := writeAdaptation(&buf, outputFormat, result); err != nil {
			return err
		}

		if outputFile == "" {
			_, err := cmd.OutOrStdout().Write(buf.Bytes())
			return err
		}
		if err := os.MkdirAll(filepath.Dir(outputFile), 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
		if err := os.WriteFile(outputFile, buf.Bytes(), 0644); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}

		source := "adapted"
		if result.Cached {
			source = "adapted (from cache)"
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Successfully %s to %s %s: %s\n", source, language, level, outputFile)
		return nil
	},
}

func readInput(stdin io.Reader, args []string) (string, error) {
	var (
		data []byte
		err  error
	)
	switch {
	case inputFile == "-":
		data, err = io.ReadAll(stdin)
	case inputFile != "":
		data, err = os.ReadFile(inputFile)
	case len(args) > 0:
		return strings.Join(args, " "), nil
	default:
		data, err = io.ReadAll(stdin)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return string(data), nil
}

func init() {
	rootCmd.AddCommand(adaptCmd)

	adaptCmd.Flags().StringVarP(&inputFile, "input", "i", "", "Input file to adapt (- for stdin)")
	adaptCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default stdout)")
	adaptCmd.Flags().StringVarP(&language, "language", "t", "", "Target language, e.g. Spanish (required)")
	adaptCmd.Flags().StringVarP(&level, "level", "l", "", "Proficiency level: Beginner, Intermediate, Advanced (required)")
	adaptCmd.Flags().StringVarP(&motherTongue, "mother-tongue", "m", "English", "Learner's mother tongue")
	adaptCmd.Flags().StringVarP(&outputFormat, "format", "f", formatText, "Output format: text, json or html")
	adaptCmd.Flags().BoolVar(&markdownIn, "markdown", false, "Treat the input as Markdown and adapt its plain text")
	adaptCmd.Flags().BoolVar(&noCache, "no-cache", false, "Skip the adaptation cache")

	adaptCmd.MarkFlagRequired("language")
	adaptCmd.MarkFlagRequired("level")
}
