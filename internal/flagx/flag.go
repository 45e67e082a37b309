// Package flagx holds helpers that let several packages read their own flags
// from one command line without tripping over each other.
package flagx

import (
	"flag"
	"strings"
)

// FilterArgs returns the subset of args made of allowedFlags and their values.
//
// Accepted forms are "-c conf.json" (value as the next argument, unless it
// starts with a dash) and "--config=conf.json". Order is preserved and the
// result is never nil.
func FilterArgs(args []string, allowedFlags []string) []string {
	allowed := make(map[string]struct{}, len(allowedFlags))
	for _, f := range allowedFlags {
		allowed[f] = struct{}{}
	}

	filtered := make([]string, 0, len(args))

	for i := 0; i < len(args); i++ {
		arg := args[i]

		if strings.HasPrefix(arg, "-") && strings.Contains(arg, "=") {
			name := strings.SplitN(arg, "=", 2)[0]
			if _, ok := allowed[name]; ok {
				filtered = append(filtered, arg)
			}
			continue
		}

		if _, ok := allowed[arg]; ok {
			filtered = append(filtered, arg)
			if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
				filtered = append(filtered, args[i+1])
				i++
			}
		}
	}

	return filtered
}

// BoolFlag reports whether the boolean flag name is set in args. Both "-demo"
// and "-demo=true" enable it; "-demo=false" disables it. Values following the
// flag as a separate argument are not consumed.
func BoolFlag(args []string, name string) bool {
	set := false
	for _, arg := range args {
		if arg == name {
			set = true
			continue
		}
		if v, ok := strings.CutPrefix(arg, name+"="); ok {
			set = v == "1" || strings.EqualFold(v, "true")
		}
	}
	return set
}

// ConfigPath extracts the JSON config file path given with -c or -config.
// An empty string means no file was requested.
func ConfigPath(args []string) string {
	var config string

	fs := flag.NewFlagSet("json", flag.ContinueOnError)
	fs.StringVar(&config, "config", "", "Path to config file")
	fs.StringVar(&config, "c", "", "Path to config file (short)")
	_ = fs.Parse(FilterArgs(args, []string{"-c", "-config"}))

	return config
}
