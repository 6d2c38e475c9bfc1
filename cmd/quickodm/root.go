// Copyright 2025 The QuickODM Authors
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

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/quickodm/quickodm"
	"github.com/quickodm/quickodm/config"
	"github.com/quickodm/quickodm/log"
)

var (
	cfgPath   string
	logFormat string
	logLevel  string
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "quickodm",
		Short:        "Cross-backend ODM utility",
		SilenceUsage: true,
	}
	var flags *pflag.FlagSet = root.PersistentFlags()
	flags.SortFlags = false
	flags.StringVar(&cfgPath, "config", "quickodm.yaml", "path to the databases configuration file")
	flags.StringVar(&logFormat, "log-format", "standard", "log format: standard or json")
	flags.StringVar(&logLevel, "log-level", log.Info, "log level: DEBUG, INFO, WARN, ERROR")

	root.AddCommand(newValidateCmd())
	root.AddCommand(newPingCmd())
	return root
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Parse and validate a configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := config.LoadFile(cfgPath)
			if err != nil {
				return err
			}
			for _, db := range f.Databases {
				fmt.Fprintf(cmd.OutOrStdout(), "alias %q: %s (%s ids) ok\n", db.Alias, db.Type, db.IDStrategy.Kind)
			}
			return nil
		},
	}
}

func newPingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Connect every configured database and report reachability",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := log.NewLogger(logFormat, logLevel, cmd.OutOrStdout(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			f, err := config.LoadFile(cfgPath)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			quickodm.Init(logger)
			defer quickodm.Close(context.WithoutCancel(ctx))

			for _, db := range f.Databases {
				if err := quickodm.AddDatabase(ctx, db); err != nil {
					fmt.Fprintf(cmd.OutOrStdout(), "alias %q: %v\n", db.Alias, err)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "alias %q: reachable\n", db.Alias)
			}
			return nil
		},
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
