// Package flags provides the flags shared by the votechain commands.
//
// Command-specific flags are defined locally in the command file.
package flags

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const (
	// DefaultConfigFile is read from the working directory when --config is not set.
	DefaultConfigFile = "votechain.yml"

	OutputTable = "table"
	OutputYAML  = "yaml"
)

var outputFormats = []string{OutputTable, OutputYAML}

// MustString returns the string value, ignoring the error.
// Safe to use with registered flags where GetString cannot fail.
func MustString(s string, _ error) string { return s }

// MustBool returns the bool value, ignoring the error.
// Safe to use with registered flags where GetBool cannot fail.
func MustBool(b bool, _ error) bool { return b }

// MustUint64 returns the uint64 value, ignoring the error.
func MustUint64(u uint64, _ error) uint64 { return u }

// MustInt returns the int value, ignoring the error.
func MustInt(i int, _ error) int { return i }

// MustStringSlice returns the string slice value, ignoring the error.
func MustStringSlice(s []string, _ error) []string { return s }

// Config adds the persistent --config/-c flag naming the client configuration file. Env vars
// override the file and are used alone when the file does not exist.
func Config(cmd *cobra.Command) {
	cmd.PersistentFlags().StringP("config", "c", DefaultConfigFile, "Client configuration file")
}

// Output adds the persistent --output/-o flag selecting table or yaml rendering.
func Output(cmd *cobra.Command) {
	cmd.PersistentFlags().StringP("output", "o", OutputTable, "Output format (table|yaml)")
}

// OutputFormat returns the validated value of the --output flag.
func OutputFormat(fs *pflag.FlagSet) (string, error) {
	format, err := fs.GetString("output")
	if err != nil {
		return "", err
	}
	if !slices.Contains(outputFormats, format) {
		return "", fmt.Errorf("invalid output format %q, expected one of %v", format, outputFormats)
	}

	return format, nil
}

// Election adds the required --election flag.
// Retrieve the value with cmd.Flags().GetUint64("election").
func Election(cmd *cobra.Command) {
	cmd.Flags().Uint64("election", 0, "Election id, starting at 1 (required)")
	_ = cmd.MarkFlagRequired("election")
}
