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

// ProvisionBootloader creates and returns the `provision bootloader` command.
func ProvisionBootloader() *cobra.Command {
	command := &provisionBootloaderCommand{}
	result := &cobra.Command{
		Use:   "bootloader",
		Short: "Downloads syslinux and installs the PXE bootloader files",
		Args:  cobra.NoArgs,
		RunE:  command.run,
	}
	return result
}

type provisionBootloaderCommand struct {
}

func (c *provisionBootloaderCommand) run(cmd *cobra.Command, argv []string) error {
	// Get the context:
	ctx := cmd.Context()

	// Get the dependencies from the context:
	logger := internal.LoggerFromContext(ctx)
	console := internal.ConsoleFromContext(ctx)

	// Create and run the provisioner:
	provisioner, err := createProvisioner(cmd)
	if err != nil {
		logger.Error(err, "Failed to create provisioner")
		return exit.Error(1)
	}
	console.Info("Installing bootloader files ...")
	err = provisioner.ProvisionBootloader(ctx)
	if err != nil {
		console.Error("Failed to install bootloader files: %v", err)
		return exit.Error(1)
	}
	console.Info("Installed bootloader files")

	return nil
}
