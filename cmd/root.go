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
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/valpere/adaptran/internal/config"
	"github.com/valpere/adaptran/internal/logging"
)

var version = "0.1.0"

var (
	cfgFile string
	verbose bool

	v      = viper.New()
	cfg    *config.Config
	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "adaptran",
	Short: "Adapt texts to a learner's proficiency level",
	Long: `A CLI application that rewrites a text for a language learner at a given
proficiency level, has the adaptation reviewed, and extracts a short
vocabulary list.

Each adaptation runs three phases against an LLM backend:
  adaptation   rewrite under the grammar rules for the language and level
  review       approve the text or send it back with feedback (bounded)
  vocabulary   pick 5-8 words the learner will likely not know

Supported backends: openai, openrouter, ollama, gemini, anthropic

Use "adaptran adapt --help" for adaptation options.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(v, cfgFile)
		if err != nil {
			return err
		}
		if verbose {
			loaded.Log.Level = "debug"
		}

		l, err := logging.New(loaded.Log)
		if err != nil {
			return err
		}
		cfg, logger = loaded, l
		logger.Debug("configuration loaded",
			zap.String("config_file", v.ConfigFileUsed()),
			zap.String("provider", cfg.LLM.Provider),
			zap.String("model", cfg.LLM.Model))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "Config file (default ./adaptran.yaml or $HOME/.config/adaptran/adaptran.yaml)")
	pf.BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	pf.String("log-level", "", "Log level (debug, info, warn, error)")
	pf.String("log-format", "", "Log format (console or json)")
	pf.String("provider", "", "LLM provider (openai, openrouter, ollama, gemini, anthropic)")
	pf.String("model", "", "LLM model name")
	pf.String("base-url", "", "LLM base URL override")
	pf.Duration("timeout", 0, "Timeout for each LLM call")
	pf.String("rules", "", "Path to the linguistic adaptation rules document")
	pf.String("policy", "", "Path to the workflow policy document")
	pf.String("db", "", "Database path for adaptation history and cache")

	for key, flag := range map[string]string{
		"log.level":         "log-level",
		"log.format":        "log-format",
		"llm.provider":      "provider",
		"llm.model":         "model",
		"llm.base_url":      "base-url",
		"llm.timeout":       "timeout",
		"rules.rules_path":  "rules",
		"rules.policy_path": "policy",
		"store.path":        "db",
	} {
		if err := v.BindPFlag(key, pf.Lookup(flag)); err != nil {
			panic(err)
		}
	}
}
