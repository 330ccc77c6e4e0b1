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

// ProvisionISO creates and returns the `provision iso` command.
func ProvisionISO() *cobra.Command {
	command := &provisionISOCommand{}
	result := &cobra.Command{
		Use:   "iso NAME",
		Short: "Downloads an installation ISO, for example 'debian-wheezy-amd64-7.8.0'",
		Args:  cobra.ExactArgs(1),
		RunE:  command.run,
	}
	flags := result.Flags()
	flags.BoolVar(
		&command.flags.force,
		"force",
		false,
		"Download the ISO even if it isn't in the configuration.",
	)
	return result
}

type provisionISOCommand struct {
	flags struct {
		force bool
	}
}

func (c *provisionISOCommand) run(cmd *cobra.Command, argv []string) error {
	// Get the context:
	ctx := cmd.Context()

	// Get the dependencies from the context:
	logger := internal.LoggerFromContext(ctx)
	console := internal.ConsoleFromContext(ctx)
	cfg := internal.ConfigFromContext(ctx)

	// Check the arguments:
	name := argv[0]
	if !cfg.IsISO(name) && !c.flags.force {
		console.Error(
			"ISO '%s' has not been defined in settings, use '--force' to download it "+
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
	console.Info("Downloading ISO '%s' ...", name)
	err = provisioner.ProvisionISO(ctx, name)
	if err != nil {
		console.Error("Failed to download ISO '%s': %v", name, err)
		return exit.Error(1)
	}
	console.Info("ISO '%s' is available in '%s'", name, provisioner.ISOFile(name))

	return nil
}
