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
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Color is a named terminal foreground color.
type Color int

const (
	// CurrentColor selects the logger's active color at the time the entry is
	// emitted.
	CurrentColor Color = iota
	// Black is the black foreground color.
	Black
	// Red is the red foreground color.
	Red
	// Green is the green foreground color.
	Green
	// Yellow is the yellow foreground color.
	Yellow
	// Blue is the blue foreground color.
	Blue
	// Magenta is the magenta foreground color.
	Magenta
	// Cyan is the cyan foreground color.
	Cyan
	// White is the white foreground color.
	White
)

// Reset is the escape sequence restoring the terminal's default attributes.
const Reset = "\x1b[0m"

// ErrInvalidColor is matched (with errors.Is) by every color resolution
// failure.
var ErrInvalidColor = errors.New("invalid color")

var (
	// colorNames is the ordered list of the supported color names.
	colorNames = []string{"black", "red", "green", "yellow", "blue", "magenta", "cyan", "white"}

	// ansiPattern matches CSI escape sequences.
	ansiPattern = regexp.MustCompile(`\x1b\[[0-?]*[ -/]*[@-~]`)
)

// InvalidColorError is returned when a color name is not supported.
type InvalidColorError struct {
	// Name is the rejected color name.
	Name string
	// Allowed is the list of supported color names.
	Allowed []string
}

// Error implements the error interface.
func (e *InvalidColorError) Error() string {
	return fmt.Sprintf("invalid color %q, must be one of: %s", e.Name, strings.Join(e.Allowed, ", "))
}

// Is makes errors.Is(err, ErrInvalidColor) report true.
func (e *InvalidColorError) Is(target error) bool {
	return target == ErrInvalidColor
}

// ColorNames returns the names accepted by ResolveColor.
func ColorNames() []string {
	res := make([]string, len(colorNames))
	copy(res, colorNames)
	return res
}

// ResolveColor returns the color named name, the lookup is case insensitive.
// Unlike levels, unknown colors are rejected with an *InvalidColorError.
func ResolveColor(name string) (Color, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	for i, curr := range colorNames {
		if curr == key {
			return Color(i + 1), nil
		}
	}
	return CurrentColor, &InvalidColorError{Name: name, Allowed: ColorNames()}
}

// String returns the color name.
func (c Color) String() string {
	if c < Black || c > White {
		return "current"
	}
	return colorNames[c-1]
}

// Code returns the ANSI escape sequence selecting c as foreground color, or
// an empty string for CurrentColor.
func (c Color) Code() string {
	if c < Black || c > White {
		return ""
	}
	return fmt.Sprintf("\x1b[%dm", 29+int(c))
}

// colorize wraps msg with the c foreground code and Reset.
func colorize(c Color, msg string) string {
	code := c.Code()
	if code == "" {
		return msg
	}
	return code + msg + Reset
}

// StripANSI removes ANSI escape sequences from s.
func StripANSI(s string) string {
	return ansiPattern.ReplaceAllString(s, "")
}
