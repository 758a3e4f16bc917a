// Package args parses the command line for the openapi-patch tool.
package args

import (
	"fmt"

	"github.com/spf13/pflag"
)

// Command selects which tool mode to run.
type Command string

const (
	// CommandDiscover prints the metadata extracted from a descriptor set.
	CommandDiscover Command = "discover"
	// CommandPatch runs the full transform pipeline over a document.
	CommandPatch Command = "patch"
	// CommandVersion prints the build version and exits.
	CommandVersion Command = "version"
)

// Args holds the parsed command line.
type Args struct {
	Command Command

	// Descriptor is the compiled FileDescriptorSet file.
	Descriptor string
	// Input and Output are the OpenAPI YAML files (patch only).
	Input  string
	Output string
	// Config is the optional project TOML file (patch only).
	Config string

	// JSON switches discover output to JSON.
	JSON bool
	// Verbose enables debug logging.
	Verbose bool
}

// Usage is printed when parsing fails or no subcommand is given.
const Usage = `usage:
  openapi-patch discover --descriptor FILE [--json]
  openapi-patch patch --descriptor FILE --input FILE --output FILE [--config FILE] [-v]
  openapi-patch version`

// Parse reads a subcommand and its flags from argv (without the program
// name).
func Parse(argv []string) (*Args, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("missing subcommand\n%s", Usage)
	}

	a := &Args{Command: Command(argv[0])}
	if argv[0] == "--version" {
		a.Command = CommandVersion
	}

	switch a.Command {
	case CommandDiscover:
		flags := pflag.NewFlagSet("discover", pflag.ContinueOnError)
		flags.StringVar(&a.Descriptor, "descriptor", "", "compiled FileDescriptorSet file")
		flags.BoolVar(&a.JSON, "json", false, "print metadata as JSON")
		flags.BoolVarP(&a.Verbose, "verbose", "v", false, "enable debug logging")
		if err := flags.Parse(argv[1:]); err != nil {
			return nil, err
		}
		if a.Descriptor == "" {
			return nil, fmt.Errorf("discover: --descriptor is required")
		}

	case CommandPatch:
		flags := pflag.NewFlagSet("patch", pflag.ContinueOnError)
		flags.StringVar(&a.Descriptor, "descriptor", "", "compiled FileDescriptorSet file")
		flags.StringVar(&a.Input, "input", "", "OpenAPI YAML document to patch")
		flags.StringVar(&a.Output, "output", "", "destination for the patched document")
		flags.StringVar(&a.Config, "config", "", "project TOML configuration file")
		flags.BoolVarP(&a.Verbose, "verbose", "v", false, "enable debug logging")
		if err := flags.Parse(argv[1:]); err != nil {
			return nil, err
		}
		switch {
		case a.Descriptor == "":
			return nil, fmt.Errorf("patch: --descriptor is required")
		case a.Input == "":
			return nil, fmt.Errorf("patch: --input is required")
		case a.Output == "":
			return nil, fmt.Errorf("patch: --output is required")
		}

	case CommandVersion:

	default:
		return nil, fmt.Errorf("unknown subcommand %q\n%s", argv[0], Usage)
	}

	return a, nil
}
