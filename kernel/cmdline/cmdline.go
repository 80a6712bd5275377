// Package cmdline parses the boot command line into the key/value toggles
// consulted by drivers while probing.
package cmdline

import "strings"

var active map[string]string

// Parse splits a boot command line into its key/value pairs. Pairs are
// separated by whitespace; "foo=bar" maps foo to bar while a bare "nofoo"
// maps nofoo to itself. Pairs with more than one '=' are ignored.
func Parse(cmdLine string) map[string]string {
	kv := make(map[string]string)
	for _, pair := range strings.Fields(cmdLine) {
		parts := strings.Split(pair, "=")
		switch len(parts) {
		case 2: // foo=bar
			kv[parts[0]] = parts[1]
		case 1: // nofoo
			kv[parts[0]] = parts[0]
		}
	}

	return kv
}

// Set replaces the active command line.
func Set(cmdLine string) {
	active = Parse(cmdLine)
}

// Get returns the value for key in the active command line and whether the
// key was present.
func Get(key string) (string, bool) {
	v, ok := active[key]
	return v, ok
}

// Enabled reports whether key is present and not explicitly disabled with a
// value of "0".
func Enabled(key string) bool {
	v, ok := active[key]
	return ok && v != "0"
}
