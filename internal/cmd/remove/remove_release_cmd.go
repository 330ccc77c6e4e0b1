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

package remove

import (
	"github.com/spf13/cobra"

	"github.com/jpoppe/seedbank/internal"
	"github.com/jpoppe/seedbank/internal/exit"
)

// RemoveRelease creates and returns the `remove` command.
func RemoveRelease() *cobra.Command {
	command := &removeReleaseCommand{}
	result := &cobra.Command{
		Use:   "remove NAME",
		Short: "Removes the files of a netboot image or installation ISO",
		Args:  cobra.ExactArgs(1),
		RunE:  command.run,
	}
	return result
}

type removeReleaseCommand struct {
}

func (c *removeReleaseCommand) run(cmd *cobra.Command, argv []string) error {
	// Get the context:
	ctx := cmd.Context()

	// Get the dependencies from the context:
	logger := internal.LoggerFromContext(ctx)
	console := internal.ConsoleFromContext(ctx)
	cfg := internal.ConfigFromContext(ctx)

	// Create and run the remover:
	remover, err := internal.NewReleaseRemover().
		SetLogger(logger).
		SetConfig(cfg).
		Build()
	if err != nil {
		logger.Error(err, "Failed to create remover")
		return exit.Error(1)
	}
	name := argv[0]
	if !cfg.IsNetboot(name) && !cfg.IsISO(name) {
		console.Warn("Release '%s' has not been defined in settings, nothing to remove", name)
	}
	err = remover.Remove(ctx, name)
	if err != nil {
		console.Error("Failed to remove release '%s': %v", name, err)
		return exit.Error(1)
	}

	return nil
}
