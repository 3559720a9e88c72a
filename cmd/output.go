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
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/valpere/adaptran/internal"
	"github.com/valpere/adaptran/internal/markdown"
)

const (
	formatText = "text"
	formatJSON = "json"
	formatHTML = "html"
)

// adaptationOutput is the JSON shape of one adaptation, shared by adapt
// and batch.
type adaptationOutput struct {
	Line        int                       `json:"line,omitempty"`
	Success     bool                      `json:"success"`
	WorkflowID  string                    `json:"workflowId,omitempty"`
	Cached      bool                      `json:"cached,omitempty"`
	AdaptedText string                    `json:"adaptedText,omitempty"`
	Vocabulary  []internal.VocabularyItem `json:"vocabulary,omitempty"`
	Metrics     *internal.Metrics         `json:"metrics,omitempty"`
	Error       string                    `json:"error,omitempty"`
}

func newAdaptationOutput(a *adaptation, err error) adaptationOutput {
	var out adaptationOutput
	if a != nil {
		out.WorkflowID = a.WorkflowID
		out.Cached = a.Cached
	}
	if err != nil {
		out.Error = err.Error()
		return out
	}
	out.Success = true
	out.AdaptedText = a.Result.AdaptedText
	out.Vocabulary = a.Result.Vocabulary
	out.Metrics = &a.Result.Metrics
	return out
}

func checkFormat(format string) error {
	switch format {
	case formatText, formatJSON, formatHTML:
		return nil
	default:
		return fmt.Errorf("unknown output format %q (expected text, json or html)", format)
	}
}

func writeAdaptation(w io.Writer, format string, a *adaptation) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(newAdaptationOutput(a, nil))
	case formatHTML:
		_, err := io.WriteString(w, markdown.RenderAdaptation(a.Result.AdaptedText, a.Result.Vocabulary))
		return err
	default:
		_, err := io.WriteString(w, renderText(a.Result))
		return err
	}
}

func renderText(result *internal.AdaptationResult) string {
	var sb strings.Builder
	sb.WriteString(strings.TrimSpace(result.AdaptedText))
	sb.WriteString("\n")

	if len(result.Vocabulary) > 0 {
		sb.WriteString("\nVocabulary:\n")
		for _, item := range result.Vocabulary {
			fmt.Fprintf(&sb, "  %s - %s", item.Word, item.Translation)
			if item.Difficulty != "" {
				fmt.Fprintf(&sb, " (%s)", item.Difficulty)
			}
			sb.WriteString("\n")
			if item.Context != "" {
				fmt.Fprintf(&sb, "      %s\n", item.Context)
			}
		}
	}
	return sb.String()
}
