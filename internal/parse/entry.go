// Package parse reconstructs profile records from the flat event stream
// produced by the dynamic-instrumentation backend. One raw line is decoded
// and folded into backlog state at a time; complementary BEFORE/AFTER entries
// are paired into records, and when only basic blocks were instrumented the
// function call stack is simulated from block boundary information.
package parse

import (
	"fmt"
	"strings"

	"pintrace/internal/program"
)

// Mode selects which event layout the parser decodes and which resource the
// emitted records measure.
type Mode uint8

const (
	// ModeTime measures wall-clock duration of functions and basic blocks.
	ModeTime Mode = iota
	// ModeInstructions measures executed instruction counts of basic blocks.
	ModeInstructions
	// ModeMemory records allocation and deallocation sizes.
	ModeMemory
)

func (m Mode) String() string {
	switch m {
	case ModeTime:
		return "time"
	case ModeInstructions:
		return "instructions"
	case ModeMemory:
		return "memory"
	default:
		return "unknown"
	}
}

// ParseMode converts a mode name from the command line into a Mode.
func ParseMode(name string) (Mode, error) {
	switch name {
	case "time":
		return ModeTime, nil
	case "instructions":
		return ModeInstructions, nil
	case "memory":
		return ModeMemory, nil
	default:
		return 0, fmt.Errorf("unknown engine mode: %q", name)
	}
}

// Location marks whether an entry was recorded before or after its
// instrumented unit.
type Location uint8

const (
	Before Location = iota
	After
)

// Entry is one decoded event at routine or basic-block granularity, shared by
// the time and instructions modes. Timestamp and Args are only populated in
// time mode.
type Entry struct {
	Granularity program.Granularity
	Location    Location

	ID  uint64
	TID uint64
	PID uint64

	Timestamp uint64
	Args      []program.FunctionArgument
}

// Before reports whether the entry opens its instrumented unit.
func (e Entry) Before() bool { return e.Location == Before }

// FunctionGranularity reports whether the entry describes a whole routine.
func (e Entry) FunctionGranularity() bool { return e.Granularity == program.GranularityRoutine }

// SameScope reports whether both entries were recorded by the same thread of
// the same process.
func (e Entry) SameScope(other Entry) bool {
	return e.PID == other.PID && e.TID == other.TID
}

// ComplementaryTo reports whether the two entries form an open/close pair:
// same unit id, thread id and process id, opposite locations. This predicate
// is deliberately distinct from structural equality; complementary entries
// differ in payload.
func (e Entry) ComplementaryTo(other Entry) bool {
	return e.ID == other.ID &&
		e.TID == other.TID &&
		e.PID == other.PID &&
		e.Location != other.Location
}

// decodeFlags parses the fixed-width flag field that prefixes time and
// instruction entries: one granularity digit followed by one location digit.
func decodeFlags(field string) (program.Granularity, Location, error) {
	if len(field) != 2 {
		return 0, 0, fmt.Errorf("malformed flags field %q", field)
	}
	var granularity program.Granularity
	switch field[0] {
	case '0':
		granularity = program.GranularityRoutine
	case '1':
		granularity = program.GranularityBasicBlock
	default:
		return 0, 0, fmt.Errorf("malformed granularity flag %q", field)
	}
	var location Location
	switch field[1] {
	case '0':
		location = Before
	case '1':
		location = After
	default:
		return 0, 0, fmt.Errorf("malformed location flag %q", field)
	}
	return granularity, location, nil
}

// decodeEntry parses one raw line in the time or instructions layout:
// flags;id;tid;pid[;timestamp[;argvalue...]]. The timestamp field and the
// trailing argument values exist in time mode only.
func (p *Parser) decodeEntry(line string) (Entry, error) {
	fields := strings.Split(line, entrySeparator)

	baseLen := 4
	if p.mode == ModeTime {
		baseLen = 5
	}
	if len(fields) < baseLen {
		return Entry{}, fmt.Errorf("expected at least %d fields, got %d", baseLen, len(fields))
	}

	granularity, location, err := decodeFlags(fields[0])
	if err != nil {
		return Entry{}, err
	}

	entry := Entry{Granularity: granularity, Location: location}
	numeric := []struct {
		name string
		dst  *uint64
	}{
		{"id", &entry.ID},
		{"tid", &entry.TID},
		{"pid", &entry.PID},
	}
	for i, field := range numeric {
		value, err := parseUint(fields[i+1])
		if err != nil {
			return Entry{}, fmt.Errorf("malformed %s field %q", field.name, fields[i+1])
		}
		*field.dst = value
	}

	if p.mode == ModeTime {
		entry.Timestamp, err = parseUint(fields[4])
		if err != nil {
			return Entry{}, fmt.Errorf("malformed timestamp field %q", fields[4])
		}
	}

	if entry.FunctionGranularity() && len(fields) > baseLen {
		args, err := p.decodeArguments(entry.ID, fields[baseLen:])
		if err != nil {
			return Entry{}, err
		}
		entry.Args = args
	}

	return entry, nil
}

// decodeArguments coerces the trailing argument values of a routine entry
// according to the declared static types: character pointers store the length
// of the textual value, single characters their ordinal value, everything
// else its numeric value.
func (p *Parser) decodeArguments(functionID uint64, values []string) ([]program.FunctionArgument, error) {
	fn := p.program.Function(functionID)
	if fn == nil || len(fn.Arguments) == 0 {
		return nil, nil
	}

	count := min(len(fn.Arguments), len(values))
	args := make([]program.FunctionArgument, count)
	copy(args, fn.Arguments[:count])

	for i := range args {
		value := values[i]
		switch {
		case strings.Contains(args[i].Type, "char*"):
			args[i].Value = int64(len(value))
		case strings.Contains(args[i].Type, "char"):
			if value == "" {
				args[i].Value = 0
				continue
			}
			args[i].Value = int64([]rune(value)[0])
		default:
			parsed, err := parseInt(value)
			if err != nil {
				return nil, fmt.Errorf("malformed argument value %q for function %s", value, fn.Name)
			}
			args[i].Value = parsed
		}
	}
	return args, nil
}
