// Package config parses the command-line and environment configuration of
// the transform driver.
package config

import (
	"fmt"
	"strings"

	"pintrace/internal/parse"
)

// CustomAttribute is a user-defined record attribute: the expression is
// evaluated against every emitted record and its result stored under Name.
type CustomAttribute struct {
	// Name is the record key for the attribute
	Name string
	// Expression is the expr-lang expression to evaluate
	Expression string
}

// Config holds the parsed command-line configuration.
type Config struct {
	// Mode selects the transform variant
	Mode parse.Mode
	// StaticPath is the static metadata file (empty in memory mode)
	StaticPath string
	// DynamicPath is the dynamic event file
	DynamicPath string
	// ArgumentsPath is an optional per-function argument metadata file
	ArgumentsPath string
	// OutputPath receives the emitted records; empty means stdout
	OutputPath string
	// Workload labels the records with the profiled program's inputs
	Workload string
	// BasicBlocksOnly marks a run where only basic blocks were instrumented
	BasicBlocksOnly bool
	// CustomAttributes are evaluated against every emitted record
	CustomAttributes []CustomAttribute
	// OTELExport additionally exports time-mode records as spans
	OTELExport bool
	// Verbosity counts the -v flags; 2 and above enables debug diagnostics
	Verbosity int
}

func usage(programName string) string {
	return fmt.Sprintf(
		"Usage: %s --mode <time|instructions|memory> --dynamic <file> [--static <file>] [options]\n"+
			"Example: %s --mode time --static static.txt --dynamic dynamic.txt --workload 10000",
		programName, programName)
}

// ParseArgs parses command-line arguments and returns a Config.
func ParseArgs(args []string) (*Config, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("no arguments provided")
	}

	programName := args[0]
	cfg := &Config{}
	modeName := ""

	value := func(i int, flag string) (string, error) {
		if i+1 >= len(args) {
			return "", fmt.Errorf("%s requires a value", flag)
		}
		return args[i+1], nil
	}

	for i := 1; i < len(args); i++ {
		var err error
		switch arg := args[i]; arg {
		case "--mode", "-m":
			modeName, err = value(i, arg)
			i++
		case "--static", "-s":
			cfg.StaticPath, err = value(i, arg)
			i++
		case "--dynamic", "-d":
			cfg.DynamicPath, err = value(i, arg)
			i++
		case "--arguments":
			cfg.ArgumentsPath, err = value(i, arg)
			i++
		case "--output", "-o":
			cfg.OutputPath, err = value(i, arg)
			i++
		case "--workload", "-w":
			cfg.Workload, err = value(i, arg)
			i++
		case "--basic-blocks-only", "-b":
			cfg.BasicBlocksOnly = true
		case "--otel":
			cfg.OTELExport = true
		case "--attribute", "-a":
			var spec string
			if spec, err = value(i, arg); err == nil {
				var attr CustomAttribute
				if attr, err = parseCustomAttribute(spec); err == nil {
					cfg.CustomAttributes = append(cfg.CustomAttributes, attr)
				}
			}
			i++
		default:
			if isVerbosityFlag(arg) {
				cfg.Verbosity += len(arg) - 1
				continue
			}
			err = fmt.Errorf("unknown flag %q\n%s", arg, usage(programName))
		}
		if err != nil {
			return nil, err
		}
	}

	if modeName == "" {
		return nil, fmt.Errorf("--mode is required\n%s", usage(programName))
	}
	mode, err := parse.ParseMode(modeName)
	if err != nil {
		return nil, err
	}
	cfg.Mode = mode

	if cfg.DynamicPath == "" {
		return nil, fmt.Errorf("--dynamic is required\n%s", usage(programName))
	}
	if cfg.StaticPath == "" && cfg.Mode != parse.ModeMemory {
		return nil, fmt.Errorf("--static is required in %s mode\n%s", cfg.Mode, usage(programName))
	}

	return cfg, nil
}

// parseCustomAttribute parses a "name=expression" attribute definition.
func parseCustomAttribute(spec string) (CustomAttribute, error) {
	name, expression, found := strings.Cut(spec, "=")
	if !found || name == "" || expression == "" {
		return CustomAttribute{}, fmt.Errorf("invalid attribute %q, expected name=expression", spec)
	}
	return CustomAttribute{Name: name, Expression: expression}, nil
}

// isVerbosityFlag accepts -v, -vv, -vvv and so on.
func isVerbosityFlag(arg string) bool {
	if len(arg) < 2 || arg[0] != '-' {
		return false
	}
	return strings.Trim(arg[1:], "v") == ""
}
