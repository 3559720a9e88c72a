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
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/valpere/adaptran/internal/rules"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Inspect the linguistic adaptation rules",
	Long:  `List the languages and levels the rules document defines, or show the constraints for one pair.`,
}

var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List languages and their levels",
	RunE: func(cmd *cobra.Command, args []string) error {
		rs, err := loadRules()
		if err != nil {
			return err
		}

		p := rs.Policy()
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "KEY\tNAME\tLEVELS")
		for _, lang := range rs.Languages() {
			fmt.Fprintf(w, "%s\t%s\t%s\n", lang, rs.DisplayName(lang), strings.Join(rs.Levels(lang), ", "))
		}
		if err := w.Flush(); err != nil {
			return err
		}

		fmt.Printf("\nShort texts: under %d words adapt to %d words\n", p.ShortTextThreshold, p.ShortTextTarget)
		fmt.Printf("Long texts:  reduced by %g%%\n", p.LongTextReductionPercent)
		fmt.Printf("Max revision cycles: %d\n", p.MaxRevisionCycles)
		return nil
	},
}

var rulesShowCmd = &cobra.Command{
	Use:   "show <language> <level>",
	Short: "Show the constraints for a language at a level",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		rs, err := loadRules()
		if err != nil {
			return err
		}

		cefr, err := rules.MapLevel(args[1])
		if err != nil {
			return err
		}
		lr, err := rs.Lookup(args[0], cefr)
		if err != nil {
			return err
		}

		fmt.Printf("%s %s\n", rs.DisplayName(args[0]), cefr)
		printList("Allowed grammar", lr.AllowedGrammar)
		printList("Avoid grammar", lr.AvoidGrammar)
		printList("Verb restrictions", lr.VerbRestrictions)
		printList("Specific features", lr.SpecificFeatures)

		if u, err := rs.Universal(cefr); err == nil {
			fmt.Println("\nUniversal principles:")
			fmt.Printf("  Vocabulary: %s\n", u.FrequencyBand)
			fmt.Printf("  Max clauses per sentence: %d\n", u.MaxClauses)
			fmt.Printf("  Subordination: %s\n", u.Subordination)
		}
		return nil
	},
}

func printList(title string, items []string) {
	fmt.Printf("\n%s:\n", title)
	if len(items) == 0 {
		fmt.Println("  (none)")
		return
	}
	for _, item := range items {
		fmt.Printf("  - %s\n", item)
	}
}

func init() {
	rootCmd.AddCommand(rulesCmd)

	rulesCmd.AddCommand(rulesListCmd)
	rulesCmd.AddCommand(rulesShowCmd)
}
