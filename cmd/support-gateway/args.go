// ABOUTME: Minimal flag parsing for CLI subcommands
// ABOUTME: Accepts "--name value" and "--name=value" and rejects unknown flags

package main

import (
	"fmt"
	"strconv"
	"strings"
)

// parsedArgs holds the values of value flags and the set of bool flags seen.
type parsedArgs struct {
	values map[string]string
	bools  map[string]bool
}

// parseArgs parses args against the declared flag names (without dashes).
func parseArgs(args []string, valueFlags, boolFlags []string) (*parsedArgs, error) {
	known := make(map[string]bool, len(valueFlags)+len(boolFlags))
	for _, f := range valueFlags {
		known[f] = true
	}
	isBool := make(map[string]bool, len(boolFlags))
	for _, f := range boolFlags {
		isBool[f] = true
	}

	p := &parsedArgs{values: map[string]string{}, bools: map[string]bool{}}
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if !strings.HasPrefix(arg, "--") {
			return nil, fmt.Errorf("unexpected argument: %s", arg)
		}

		name, value, hasValue := strings.Cut(strings.TrimPrefix(arg, "--"), "=")
		switch {
		case isBool[name]:
			if hasValue {
				b, err := strconv.ParseBool(value)
				if err != nil {
					return nil, fmt.Errorf("--%s expects true or false", name)
				}
				p.bools[name] = b
			} else {
				p.bools[name] = true
			}
		case known[name]:
			if !hasValue {
				if i+1 >= len(args) {
					return nil, fmt.Errorf("--%s requires a value", name)
				}
				value = args[i+1]
				i++
			}
			p.values[name] = value
		default:
			return nil, fmt.Errorf("unknown flag: --%s", name)
		}
	}
	return p, nil
}

// require returns the trimmed value of a flag or an error if it is missing.
func (p *parsedArgs) require(name string) (string, error) {
	v := strings.TrimSpace(p.values[name])
	if v == "" {
		return "", fmt.Errorf("--%s flag is required", name)
	}
	return v, nil
}

// requireID parses a required positive integer flag.
func (p *parsedArgs) requireID(name string) (int64, error) {
	v, err := p.require(name)
	if err != nil {
		return 0, err
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("--%s must be a positive integer", name)
	}
	return id, nil
}
