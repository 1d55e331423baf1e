// Copyright (c) 2021 Siemens AG
//
// Permission is hereby granted, free of charge, to any person obtaining a copy of
// this software and associated documentation files (the "Software"), to deal in
// the Software without restriction, including without limitation the rights to
// use, copy, modify, merge, publish, distribute, sublicense, and/or sell copies of
// the Software, and to permit persons to whom the Software is furnished to do so,
// subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY, FITNESS
// FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE AUTHORS OR
// COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER
// IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN
// CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.
//
// Author(s): Jonas Plum

// Package cmd implements the subcommands of the browserartifacts command
// line tool.
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/forensicanalysis/browserartifacts/config"
	"github.com/forensicanalysis/browserartifacts/store"
)

type app struct {
	v       *viper.Viper
	cfgFile string
	verbose bool
	cfg     *config.Config
	logger  *zap.Logger
}

// Root returns the browserartifacts command with all subcommands.
func Root() *cobra.Command {
	a := &app{v: config.New(), logger: zap.NewNop()}
	rootCmd := &cobra.Command{
		Use:               "browserartifacts",
		Short:             "Extract and normalize browser artifacts",
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: func(*cobra.Command, []string) {
			_ = a.logger.Sync()
		},
	}
	rootCmd.PersistentFlags().StringVarP(&a.cfgFile, "config", "c", "", "config file (default: .browserartifacts.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "log debug messages")
	rootCmd.AddCommand(extractCommand(a), discoverCommand(), timestampCommand(a), Element(), Validate())
	return rootCmd
}

func (a *app) setup(*cobra.Command, []string) error {
	cfg, err := config.Load(a.v, a.cfgFile)
	if err != nil {
		return err
	}
	level, err := cfg.Level()
	if err != nil {
		return err
	}
	if a.verbose {
		level = zapcore.DebugLevel
	}
	logger, err := newLogger(level)
	if err != nil {
		return err
	}
	zap.ReplaceGlobals(logger)
	a.cfg, a.logger = cfg, logger
	return nil
}

func newLogger(level zapcore.Level) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}

// bind connects flags to config keys. Flags only override the config when set.
func bind(v *viper.Viper, flags *pflag.FlagSet, keys map[string]string) {
	for key, name := range keys {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			panic(err)
		}
	}
}

// Element is the forensicstore element commandline subcommand.
func Element() *cobra.Command {
	elementCommand := &cobra.Command{
		Use:   "element",
		Short: "Read the elements of a forensicstore",
	}
	elementCommand.AddCommand(getCommand(), selectCommand(), allCommand(), searchCommand())
	return elementCommand
}

// Validate is the forensicstore validate commandline subcommand.
func Validate() *cobra.Command {
	var noFail bool
	validateCommand := &cobra.Command{
		Use:   "validate <forensicstore>",
		Short: "Validate all elements and archived files",
		Args:  requireOneStore,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := store.Open(args[0])
			if err != nil {
				return err
			}
			defer s.Close()
			flaws, err := s.Validate()
			if err != nil {
				return err
			}
			if len(flaws) == 0 {
				return nil
			}
			for i, v := range flaws {
				flaws[i] = strings.ReplaceAll(v, "\"", "\\\"")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "[\"%s\"]\n", strings.Join(flaws, "\", \""))
			if noFail {
				return nil
			}
			return fmt.Errorf("%d flaws found", len(flaws))
		},
	}
	validateCommand.Flags().BoolVar(&noFail, "no-fail", false, "return exit code 0")
	return validateCommand
}

func requireOneStore(_ *cobra.Command, args []string) error {
	if len(args) != 1 {
		return errors.New("requires exactly one store")
	}
	if _, err := os.Stat(args[0]); os.IsNotExist(err) {
		return errors.Wrap(os.ErrNotExist, args[0])
	}
	return nil
}
