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
	"time"

	"github.com/spf13/cobra"

	"github.com/jpoppe/seedbank/internal"
)

// Provision creates and returns the `provision` command.
func Provision() *cobra.Command {
	result := &cobra.Command{
		Use:   "provision",
		Short: "Downloads and installs releases and bootloader files",
		Args:  cobra.NoArgs,
	}
	result.PersistentFlags().Duration(
		downloadTimeoutFlag,
		30*time.Minute,
		"Maximum time to wait for the server to send data.",
	)
	result.AddCommand(ProvisionBootloader())
	result.AddCommand(ProvisionNetboot())
	result.AddCommand(ProvisionISO())
	return result
}

const downloadTimeoutFlag = "download-timeout"

// createProvisioner creates the provisioner using the logger and the configuration stored in the
// context of the command.
func createProvisioner(cmd *cobra.Command) (result *internal.Provisioner, err error) {
	ctx := cmd.Context()
	logger := internal.LoggerFromContext(ctx)
	cfg := internal.ConfigFromContext(ctx)
	timeout, err := cmd.Flags().GetDuration(downloadTimeoutFlag)
	if err != nil {
		return
	}
	downloader, err := internal.NewDownloader().
		SetLogger(logger).
		SetTimeout(timeout).
		Build()
	if err != nil {
		return
	}
	result, err = internal.NewProvisioner().
		SetLogger(logger).
		SetConfig(cfg).
		SetDownloader(downloader).
		Build()
	return
}
