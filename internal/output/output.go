/*
Copyright © 2026 Benny Powers <web@bennypowers.com>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/

// Package output provides shared terminal output utilities for the
// bundler CLI commands: colored status/error reporting during a compile,
// and writing the final bundle to stdout or a file.
package output

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/viper"

	"bundlr.dev/bundlr/bundler"
	"bundlr.dev/bundlr/fs"
)

var (
	statusColor = color.New(color.FgCyan)
	errorColor  = color.New(color.FgRed, color.Bold)
	doneColor   = color.New(color.FgGreen)
)

// Status prints a compile status transition in color, matching the
// phases a Bundler emits on its Status() channel.
func Status(s bundler.Status) {
	switch s {
	case bundler.StatusError:
		errorColor.Fprintln(color.Error, "error")
	case bundler.StatusDone:
		doneColor.Fprintln(color.Output, "done")
	default:
		statusColor.Fprintf(color.Output, "%s...\n", s)
	}
}

// CompileError reports a compile failure in color to stderr.
func CompileError(err error) {
	errorColor.Fprintf(color.Error, "compile failed: %v\n", err)
}

// Bundle writes the evaluated/bundled output to stdout or a file.
// If viper's "output" flag is set, writes to that file; otherwise prints
// to stdout.
func Bundle(osfs fs.FileSystem, content []byte) error {
	if outputPath := viper.GetString("output"); outputPath != "" {
		return osfs.WriteFile(outputPath, content, 0644)
	}
	fmt.Println(string(content))
	return nil
}
