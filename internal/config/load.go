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

package config

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// DefaultFile is the location of the configuration file used when no other file is given.
const DefaultFile = "/etc/seedbank/settings.yaml"

//go:embed settings.yaml
var defaultSettings []byte

// LoadFile reads the configuration from a YAML file.
func LoadFile(path string) (result Config, err error) {
	// #nosec G304
	data, err := os.ReadFile(path)
	if err != nil {
		err = fmt.Errorf("failed to read config file: %w", err)
		return
	}
	return Parse(data)
}

// Default returns the configuration built into the binary.
func Default() (result Config, err error) {
	return Parse(defaultSettings)
}

// Parse decodes and validates a configuration from YAML text. Settings missing from the text
// take the values of the built in configuration. Lists and maps present in the text replace the
// built in ones completely.
func Parse(data []byte) (result Config, err error) {
	var settings Settings
	err = decode(defaultSettings, &settings)
	if err != nil {
		err = fmt.Errorf("failed to decode default config: %w", err)
		return
	}
	err = decode(data, &settings)
	if err != nil {
		return
	}
	result, err = New(settings)
	if err != nil {
		err = fmt.Errorf("configuration validation failed: %w", err)
	}
	return
}

func decode(data []byte, settings *Settings) error {
	var raw map[string]any
	err := yaml.Unmarshal(data, &raw)
	if err != nil {
		return fmt.Errorf("failed to unmarshal yaml: %w", err)
	}
	if len(raw) == 0 {
		return nil
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		ZeroFields: true,
		Result:     settings,
	})
	if err != nil {
		return err
	}
	err = decoder.Decode(raw)
	if err != nil {
		return fmt.Errorf("failed to decode config: %w", err)
	}
	return nil
}
