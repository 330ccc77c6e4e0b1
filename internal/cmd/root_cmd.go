/*
Copyright 2023 Red Hat Inc.

Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file except in
compliance with the License. You may obtain a copy of the License at

  http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software distributed under the License is
distributed on an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or
implied. See the License for the specific language governing permissions and limitations under the
License.
*/

package cmd

import (
	"errors"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/jpoppe/seedbank/internal"
	"github.com/jpoppe/seedbank/internal/cmd/list"
	"github.com/jpoppe/seedbank/internal/cmd/provision"
	"github.com/jpoppe/seedbank/internal/cmd/remove"
	"github.com/jpoppe/seedbank/internal/config"
	"github.com/jpoppe/seedbank/internal/exit"
)

// Root creates and returns the root command.
func Root() *cobra.Command {
	command := &rootCommand{}
	result := &cobra.Command{
		Use:               "seedbank",
		Short:             "Manages netboot images, installation ISOs and PXE bootloader files",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: command.init,
	}
	command.addFlags(result.PersistentFlags())
	result.AddCommand(provision.Provision())
	result.AddCommand(remove.RemoveRelease())
	result.AddCommand(list.ListReleases())
	return result
}

type rootCommand struct {
	flags struct {
		config   string
		logLevel string
	}
}

func (c *rootCommand) addFlags(flags *pflag.FlagSet) {
	flags.StringVar(
		&c.flags.config,
		"config",
		"",
		"Configuration file. If not specified '"+config.DefaultFile+"' will be used if "+
			"it exists, otherwise the built in configuration.",
	)
	flags.StringVar(
		&c.flags.logLevel,
		"log-level",
		"info",
		"Log level, one of 'debug', 'info', 'warn' or 'error'.",
	)
}

func (c *rootCommand) init(cmd *cobra.Command, argv []string) error {
	// Get the context:
	ctx := cmd.Context()

	// Create the logger and the console:
	logger, err := internal.NewLogger().
		SetLevel(c.flags.logLevel).
		Build()
	if err != nil {
		return err
	}
	console, err := internal.NewConsole().
		SetLogger(logger).
		Build()
	if err != nil {
		logger.Error(err, "Failed to create console")
		return exit.Error(1)
	}

	// Load the configuration:
	cfg, err := c.loadConfig()
	if err != nil {
		console.Error("Failed to load configuration: %v", err)
		return exit.Error(1)
	}

	// Put the dependencies in the context:
	ctx = internal.ContextWithLogger(ctx, logger)
	ctx = internal.ContextWithConsole(ctx, console)
	ctx = internal.ContextWithConfig(ctx, cfg)
	cmd.SetContext(ctx)

	return nil
}

func (c *rootCommand) loadConfig() (result config.Config, err error) {
	if c.flags.config != "" {
		return config.LoadFile(c.flags.config)
	}
	_, err = os.Stat(config.DefaultFile)
	if errors.Is(err, os.ErrNotExist) {
		return config.Default()
	}
	if err != nil {
		return
	}
	return config.LoadFile(config.DefaultFile)
}
