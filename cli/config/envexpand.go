// Package config loads testbridge.yaml, the defaults file for testbridge commands.
package config

import (
	"os"
	"regexp"
	"strings"
)

// envRef matches ${VAR} and ${VAR:-default}. A bare $VAR is left alone so
// literal dollar signs in engine arguments survive.
var envRef = regexp.MustCompile(`\$\{[A-Za-z_][A-Za-z0-9_]*(?::-[^}]*)?\}`)

// ExpandEnv substitutes environment references in a config document.
// An unset or empty variable takes its default, or the empty string when it
// has none; required values left empty are caught by Validate.
func ExpandEnv(input string) string {
	return envRef.ReplaceAllStringFunc(input, func(ref string) string {
		name, def, _ := strings.Cut(ref[2:len(ref)-1], ":-")
		if v := os.Getenv(name); v != "" {
			return v
		}
		return def
	})
}
