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

package exit

import (
	"fmt"
)

// Error is an error type that contains a process exit code. This is intended for situations where
// you want to call os.Exit only in one place, but also to propagate the exit code from other
// places. For example, in a command:
//
//	func runMyCommand(cmd *cobra.Command, argv []string) error {
//		...
//		if err != nil {
//			console.Error("Something failed: %v", err)
//			return exit.Error(1)
//		}
//		...
//	}
//
// And then in the main function:
//
//	err := rootCmd.Execute()
//	if err != nil {
//		var exitErr exit.Error
//		if errors.As(err, &exitErr) {
//			os.Exit(exitErr.Code())
//		}
//		os.Exit(1)
//	}
type Error int

// Error returns the error message.
func (e Error) Error() string {
	return fmt.Sprintf("exit code %d", int(e))
}

// Code returns the exit code.
func (e Error) Code() int {
	return int(e)
}
