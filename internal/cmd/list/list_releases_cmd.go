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

package list

import (
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jpoppe/seedbank/internal"
	"github.com/jpoppe/seedbank/internal/exit"
)

// ListReleases creates and returns the `list` command.
func ListReleases() *cobra.Command {
	command := &listReleasesCommand{}
	result := &cobra.Command{
		Use:   "list",
		Short: "Lists the configured releases and whether they are installed",
		Args:  cobra.NoArgs,
		RunE:  command.run,
	}
	return result
}

type listReleasesCommand struct {
}

func (c *listReleasesCommand) run(cmd *cobra.Command, argv []string) error {
	// Get the context:
	ctx := cmd.Context()

	// Get the dependencies from the context:
	logger := internal.LoggerFromContext(ctx)
	console := internal.ConsoleFromContext(ctx)
	cfg := internal.ConfigFromContext(ctx)

	// Collect the releases:
	provisioner, err := internal.NewProvisioner().
		SetLogger(logger).
		SetConfig(cfg).
		Build()
	if err != nil {
		logger.Error(err, "Failed to create provisioner")
		return exit.Error(1)
	}
	releases, err := provisioner.Releases()
	if err != nil {
		console.Error("Failed to check releases: %v", err)
		return exit.Error(1)
	}

	// Print the table:
	writer := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintf(writer, "NAME\tTYPE\tINSTALLED\tFIRMWARE\tSIZE\n")
	for _, release := range releases {
		size := "-"
		if release.Installed && release.Kind == internal.ReleaseKindISO {
			size = humanize.Bytes(uint64(release.Size))
		}
		firmware := "-"
		if release.Kind == internal.ReleaseKindNetboot {
			firmware = yesNo(release.Firmware)
		}
		fmt.Fprintf(
			writer, "%s\t%s\t%s\t%s\t%s\n",
			release.Name, release.Kind, yesNo(release.Installed), firmware, size,
		)
	}
	return writer.Flush()
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
