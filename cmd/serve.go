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
	"github.com/spf13/cobra"

	"github.com/valpere/adaptran/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the adaptation workflow over HTTP",
	Long: `Start an HTTP server exposing:

  POST /api/adapt             run one adaptation workflow
  GET  /api/workflows/{id}    fetch a recorded workflow
  GET  /healthz               liveness check

The server stops gracefully on SIGINT or SIGTERM.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		var history server.History
		if a.db != nil {
			history = a.db
		}

		srv := server.New(a.orch, history, logger, server.Options{
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
			MaxBodyBytes: cfg.Server.MaxBodyBytes,
			Version:      version,
		})
		return srv.ListenAndServe(cmd.Context(), cfg.Server.Addr)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "Listen address (default :8080)")
	if err := v.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr")); err != nil {
		panic(err)
	}
}
