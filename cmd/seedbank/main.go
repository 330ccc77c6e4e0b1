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

package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/jpoppe/seedbank/internal/cmd"
	"github.com/jpoppe/seedbank/internal/exit"
)

func main() {
	root := cmd.Root()
	err := root.ExecuteContext(context.Background())
	if err != nil {
		var exitErr exit.Error
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code())
		}
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}
