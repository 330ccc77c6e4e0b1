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

package provision

import (
	"github.com/spf13/cobra"

	"github.com/jpoppe/seedbank/internal"
	"github.com/jpoppe/seedbank/internal/exit"
)

// ProvisionNetboot creates and returns the `provision netboot` command.
func ProvisionNetboot() *cobra.Command {
	command := &provisionNetbootCommand{}
	result := &cobra.Command{
		Use:   "netboot NAME",
		Short: "Downloads and installs a netboot image, for example 'debian-wheezy-amd64'",
		Args:  cobra.ExactArgs(1),
		RunE:  command.run,
	}
	flags := result.Flags()
	flags.BoolVar(
		&command.flags.force,
		"force",
		false,
		"Install the release even if it isn't in the configuration.",
	)
	return result
}

type provisionNetbootCommand struct {
	flags struct {
		force bool
	}
}

func (c *provisionNetbootCommand) run(cmd *cobra.Command, argv []string) error {
	// Get the context:
	ctx := cmd.Context()

	// Get the dependencies from the context:
	logger := internal.LoggerFromContext(ctx)
	console := internal.ConsoleFromContext(ctx)
	cfg := internal.ConfigFromContext(ctx)

	// Check the arguments:
	name := argv[0]
	if !cfg.IsNetboot(name) && !c.flags.force {
		console.Error(
			"Release '%s' has not been defined in settings, use '--force' to install it "+
				"anyway",
			name,
		)
		return exit.Error(1)
	}

	// Create and run the provisioner:
	provisioner, err := createProvisioner(cmd)
	if err != nil {
		logger.Error(err, "Failed to create provisioner")
		return exit.Error(1)
	}
	console.Info("Installing netboot image '%s' ...", name)
	err = provisioner.ProvisionNetboot(ctx, name)
	if err != nil {
		console.Error("Failed to install netboot image '%s': %v", name, err)
		return exit.Error(1)
	}
	console.Info("Installed netboot image '%s' to '%s'", name, provisioner.NetbootDir(name))

	return nil
}
