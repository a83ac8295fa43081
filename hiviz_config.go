//  Copyright 2024 Google LLC
//
//  Licensed under the Apache License, Version 2.0 (the "License");
//  you may not use this file except in compliance with the License.
//  You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
//  Unless required by applicable law or agreed to in writing, software
//  distributed under the License is distributed on an "AS IS" BASIS,
//  WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//  See the License for the specific language governing permissions and
//  limitations under the License.

package hiviz

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// FileConfig is the TOML representation of a logger configuration. Unset
// keys keep the value they had before the file was applied.
//
//	log_file = "app.log"
//	log = true
//	terminal_level = "warning"
//	color = "green"
//	max_bytes = 1048576
//	backup_count = 5
//
//	[formats]
//	error = "{timestamp} {level} {file}:{line} {message}"
type FileConfig struct {
	LogFile       *string           `toml:"log_file,omitempty" validate:"omitempty,min=1"`
	Debug         *bool             `toml:"debug,omitempty"`
	File          *bool             `toml:"log,omitempty"`
	Terminal      *bool             `toml:"terminal,omitempty"`
	Level         *string           `toml:"level,omitempty" validate:"omitempty,hiviz_level"`
	TerminalLevel *string           `toml:"terminal_level,omitempty" validate:"omitempty,hiviz_level"`
	FileLevel     *string           `toml:"file_level,omitempty" validate:"omitempty,hiviz_level"`
	StderrLevel   *string           `toml:"stderr_level,omitempty" validate:"omitempty,hiviz_level"`
	Color         *string           `toml:"color,omitempty" validate:"omitempty,hiviz_color"`
	JSON          *bool             `toml:"json,omitempty"`
	MaxBytes      *int64            `toml:"max_bytes,omitempty"`
	BackupCount   *int              `toml:"backup_count,omitempty" validate:"omitempty,gte=0"`
	ColorMode     *string           `toml:"color_mode,omitempty" validate:"omitempty,oneof=always auto never"`
	Formats       map[string]string `toml:"formats,omitempty" validate:"omitempty,dive,keys,hiviz_level,endkeys"`
}

// ConfigError is a single invalid configuration key.
type ConfigError struct {
	// Field is the TOML key path, e.g. "backup_count" or "formats[trace]".
	Field string
	// Message is a human readable description of the problem.
	Message string
}

// ConfigErrors is the list of problems found validating a FileConfig.
type ConfigErrors []ConfigError

// Error implements the error interface.
func (ce ConfigErrors) Error() string {
	if len(ce) == 0 {
		return "no validation errors"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("validation failed with %d error(s):\n", len(ce)))
	for i, err := range ce {
		sb.WriteString(fmt.Sprintf("  %d. %s: %s\n", i+1, err.Field, err.Message))
	}
	return sb.String()
}

var validate *validator.Validate

func init() {
	validate = validator.New()

	if err := validate.RegisterValidation("hiviz_level", validateLevelName); err != nil {
		panic(err)
	}
	if err := validate.RegisterValidation("hiviz_color", validateColorName); err != nil {
		panic(err)
	}

	// Report fields by their TOML key.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("toml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// validateLevelName accepts the level names ResolveLevel understands.
func validateLevelName(fl validator.FieldLevel) bool {
	_, found := levelNames[strings.ToUpper(strings.TrimSpace(fl.Field().String()))]
	return found
}

// validateColorName accepts the color names ResolveColor understands.
func validateColorName(fl validator.FieldLevel) bool {
	_, err := ResolveColor(fl.Field().String())
	return err == nil
}

// validationMessage returns a human-readable message for a validation error.
func validationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "min":
		return fmt.Sprintf("must be at least %s characters long", e.Param())
	case "gte":
		return fmt.Sprintf("must be >= %s", e.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", e.Param())
	case "hiviz_level":
		return fmt.Sprintf("must be a level name, one of: %s", ValidLevels())
	case "hiviz_color":
		return fmt.Sprintf("must be one of: %s", strings.Join(colorNames, ", "))
	default:
		return fmt.Sprintf("validation failed: %s", e.Tag())
	}
}

// Validate checks every key of the configuration and returns all problems
// found as ConfigErrors.
func (fc *FileConfig) Validate() error {
	err := validate.Struct(fc)
	if err == nil {
		return nil
	}

	var validatorErrs validator.ValidationErrors
	if !errors.As(err, &validatorErrs) {
		return err
	}

	var configErrs ConfigErrors
	for _, e := range validatorErrs {
		configErrs = append(configErrs, ConfigError{
			Field:   e.Field(),
			Message: validationMessage(e),
		})
	}
	return configErrs
}

// LoadConfig reads and validates a TOML configuration file. Unknown keys are
// rejected.
func LoadConfig(path string) (*FileConfig, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return ParseConfig(content)
}

// ParseConfig decodes and validates a TOML configuration.
func ParseConfig(content []byte) (*FileConfig, error) {
	var config FileConfig

	decoder := toml.NewDecoder(bytes.NewReader(content)).DisallowUnknownFields()
	if err := decoder.Decode(&config); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			row, col := derr.Position()
			return nil, fmt.Errorf("failed to parse config at line %d, column %d: %w", row, col, err)
		}
		var serr *toml.StrictMissingError
		if errors.As(err, &serr) {
			return nil, fmt.Errorf("unknown config keys:\n%s", serr.String())
		}
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Options returns the options setting every key present in the
// configuration.
func (fc *FileConfig) Options() ([]Option, error) {
	if err := fc.Validate(); err != nil {
		return nil, err
	}

	var opts []Option

	if fc.LogFile != nil {
		opts = append(opts, WithLogFile(*fc.LogFile))
	}
	if fc.Debug != nil {
		opts = append(opts, WithDebug(*fc.Debug))
	}
	if fc.File != nil {
		opts = append(opts, WithFile(*fc.File))
	}
	if fc.Terminal != nil {
		opts = append(opts, WithTerminal(*fc.Terminal))
	}
	if fc.Level != nil {
		opts = append(opts, WithLevel(*fc.Level))
	}
	if fc.TerminalLevel != nil {
		opts = append(opts, WithTerminalLevel(*fc.TerminalLevel))
	}
	if fc.FileLevel != nil {
		opts = append(opts, WithFileLevel(*fc.FileLevel))
	}
	if fc.StderrLevel != nil {
		opts = append(opts, WithStderrLevel(*fc.StderrLevel))
	}
	if fc.Color != nil {
		opts = append(opts, WithColorName(*fc.Color))
	}
	if fc.JSON != nil {
		opts = append(opts, WithJSON(*fc.JSON))
	}
	if fc.MaxBytes != nil {
		opts = append(opts, WithMaxBytes(*fc.MaxBytes))
	}
	if fc.BackupCount != nil {
		opts = append(opts, WithBackupCount(*fc.BackupCount))
	}
	if fc.ColorMode != nil {
		mode, err := ParseColorMode(*fc.ColorMode)
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithColorMode(mode))
	}

	names := make([]string, 0, len(fc.Formats))
	for name := range fc.Formats {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		level := ResolveLevel(name, InfoLevel)
		opts = append(opts, WithFormat(level, fc.Formats[name]))
	}

	return opts, nil
}

// Marshal encodes the configuration as TOML.
func (fc *FileConfig) Marshal() ([]byte, error) {
	buf := bytes.Buffer{}
	enc := toml.NewEncoder(&buf)
	enc.SetIndentTables(true)
	if err := enc.Encode(fc); err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	return buf.Bytes(), nil
}

// NewFileConfig returns the configuration file representation of opts. The
// terminal writers have no file representation and are left out.
func NewFileConfig(opts Options) *FileConfig {
	fc := &FileConfig{
		LogFile:       &opts.LogFile,
		Debug:         &opts.Debug,
		File:          &opts.File,
		Terminal:      &opts.Terminal,
		Level:         levelName(opts.Level),
		TerminalLevel: levelName(opts.TerminalLevel),
		FileLevel:     levelName(opts.FileLevel),
		StderrLevel:   levelName(opts.StderrLevel),
		JSON:          &opts.JSON,
		MaxBytes:      &opts.MaxBytes,
		BackupCount:   &opts.BackupCount,
	}

	if opts.Color >= Black && opts.Color <= White {
		color := opts.Color.String()
		fc.Color = &color
	}

	mode := opts.ColorMode.String()
	fc.ColorMode = &mode

	if len(opts.Formats) > 0 {
		fc.Formats = make(map[string]string, len(opts.Formats))
		for level, format := range opts.Formats {
			fc.Formats[strings.ToLower(level.String())] = format
		}
	}

	return fc
}

// levelName returns a pointer to the lower cased name of level.
func levelName(level Level) *string {
	name := strings.ToLower(level.String())
	return &name
}

// WithConfigFile applies the TOML configuration file at path.
func WithConfigFile(path string) Option {
	return func(opts *Options) error {
		config, err := LoadConfig(path)
		if err != nil {
			return err
		}

		options, err := config.Options()
		if err != nil {
			return err
		}

		res, err := opts.apply(options...)
		if err != nil {
			return err
		}
		*opts = res
		return nil
	}
}
