package parse

import (
	"fmt"
	"strconv"
	"strings"

	"pintrace/internal/profile"
)

// Memory mode wire layouts. The backend emits no location flag for memory
// entries; lines are discriminated purely by field count.
const (
	memoryBeforeFieldCount = 8 // address;name;parent_address;parent_name;tid;pid;source_file;source_line[;arg...]
	memoryAfterFieldCount  = 5 // address;name;tid;pid;return_pointer
)

// MemoryEntry is one decoded memory-operation event. The BEFORE layout
// carries the call site and argument values, the AFTER layout only what is
// needed to pair the entries plus the returned pointer.
type MemoryEntry struct {
	Address  uint64
	Name     string
	TID      uint64
	PID      uint64
	Location Location

	// BEFORE payload.
	ParentAddress uint64
	ParentName    string
	SourceFile    string
	SourceLine    int
	Args          []string

	// AFTER payload.
	ReturnPointer string
}

// Before reports whether the entry opens a memory operation.
func (e MemoryEntry) Before() bool { return e.Location == Before }

// ComplementaryTo reports whether the two entries describe the open and close
// of the same memory operation call.
func (e MemoryEntry) ComplementaryTo(other MemoryEntry) bool {
	return e.Address == other.Address &&
		e.Name == other.Name &&
		e.TID == other.TID &&
		e.PID == other.PID &&
		e.Location != other.Location
}

// argUint returns the i-th argument as a number, or 0 when it is absent or
// textual (pointer arguments are passed as hex strings).
func (e MemoryEntry) argUint(i int) uint64 {
	if i >= len(e.Args) {
		return 0
	}
	value, err := strconv.ParseUint(e.Args[i], 10, 64)
	if err != nil {
		return 0
	}
	return value
}

func decodeMemoryEntry(line string) (MemoryEntry, error) {
	fields := strings.Split(line, entrySeparator)

	switch {
	case len(fields) >= memoryBeforeFieldCount:
		return decodeMemoryBefore(fields)
	case len(fields) == memoryAfterFieldCount:
		return decodeMemoryAfter(fields)
	default:
		return MemoryEntry{}, fmt.Errorf("unexpected memory entry field count %d", len(fields))
	}
}

func decodeMemoryBefore(fields []string) (MemoryEntry, error) {
	entry := MemoryEntry{
		Location:   Before,
		Name:       fields[1],
		ParentName: fields[3],
		SourceFile: fields[6],
		Args:       fields[memoryBeforeFieldCount:],
	}

	var err error
	if entry.Address, err = parseUint(fields[0]); err != nil {
		return MemoryEntry{}, fmt.Errorf("malformed address field %q", fields[0])
	}
	if entry.ParentAddress, err = parseUint(fields[2]); err != nil {
		return MemoryEntry{}, fmt.Errorf("malformed parent address field %q", fields[2])
	}
	if entry.TID, err = parseUint(fields[4]); err != nil {
		return MemoryEntry{}, fmt.Errorf("malformed tid field %q", fields[4])
	}
	if entry.PID, err = parseUint(fields[5]); err != nil {
		return MemoryEntry{}, fmt.Errorf("malformed pid field %q", fields[5])
	}
	if entry.SourceLine, err = strconv.Atoi(fields[7]); err != nil {
		return MemoryEntry{}, fmt.Errorf("malformed source line field %q", fields[7])
	}
	return entry, nil
}

func decodeMemoryAfter(fields []string) (MemoryEntry, error) {
	entry := MemoryEntry{
		Location:      After,
		Name:          fields[1],
		ReturnPointer: fields[4],
	}

	var err error
	if entry.Address, err = parseUint(fields[0]); err != nil {
		return MemoryEntry{}, fmt.Errorf("malformed address field %q", fields[0])
	}
	if entry.TID, err = parseUint(fields[2]); err != nil {
		return MemoryEntry{}, fmt.Errorf("malformed tid field %q", fields[2])
	}
	if entry.PID, err = parseUint(fields[3]); err != nil {
		return MemoryEntry{}, fmt.Errorf("malformed pid field %q", fields[3])
	}
	return entry, nil
}

// memoryArgInfo maps each recognized operation to the static metadata of its
// collected arguments.
var memoryArgInfo = map[string][]struct {
	argType string
	argName string
}{
	"new":     {{"size_t", "size"}},
	"delete":  {{"void*", "pointer_address"}},
	"malloc":  {{"size_t", "size"}},
	"free":    {{"void*", "pointer_address"}},
	"calloc":  {{"int", "count"}, {"size_t", "size"}},
	"realloc": {{"void*", "pointer_address"}, {"size_t", "size"}},
}

func isRelease(name string) bool {
	return name == "free" || name == "delete"
}

// processMemory folds one memory entry into the backlog. Release operations
// have no AFTER entry in this protocol and are emitted immediately; all other
// operations wait for the complementary close carrying the returned pointer.
func (p *Parser) processMemory(e MemoryEntry) ([]profile.Record, error) {
	if e.Before() {
		if isRelease(e.Name) {
			return []profile.Record{p.memoryRecord(e, nil)}, nil
		}
		p.memoryBacklog = append(p.memoryBacklog, e)
		return nil, nil
	}

	for i := len(p.memoryBacklog) - 1; i >= 0; i-- {
		if !p.memoryBacklog[i].ComplementaryTo(e) {
			continue
		}
		opened := p.memoryBacklog[i]
		p.memoryBacklog = append(p.memoryBacklog[:i], p.memoryBacklog[i+1:]...)
		return []profile.Record{p.memoryRecord(opened, &e)}, nil
	}

	p.log.Debug().Msg("closing entry does not have a pair in the backlog")
	return nil, nil
}

// memoryAmount computes the record amount from the operation's arguments.
func memoryAmount(e MemoryEntry) uint64 {
	switch e.Name {
	case "calloc":
		return e.argUint(0) * e.argUint(1)
	case "realloc":
		return e.argUint(1)
	case "malloc", "new":
		return e.argUint(0)
	default:
		// Release operations and unrecognized names carry no size.
		return 0
	}
}

func (p *Parser) memoryRecord(opened MemoryEntry, closing *MemoryEntry) profile.Record {
	rec := profile.Record{
		"type":     typeMemory,
		"amount":   memoryAmount(opened),
		"tid":      opened.TID,
		"pid":      opened.PID,
		"uid":      opened.Name + callerSeparator + opened.ParentName,
		"caller":   opened.ParentName,
		"workload": p.opts.Workload,
		// The call site of the memory operation, not its implementation.
		"source-lines": opened.SourceLine,
		"source-file":  opened.SourceFile,
	}

	if closing != nil {
		rec["return-value"] = closing.ReturnPointer
		rec["return-value-type"] = "void*"
	}

	info := memoryArgInfo[opened.Name]
	for i, raw := range opened.Args {
		var value any = raw
		if parsed, err := parseInt(raw); err == nil {
			value = parsed
		}
		if i < len(info) {
			rec.SetArgument(i, value, info[i].argType, info[i].argName)
		} else {
			rec[fmt.Sprintf("arg_value#%d", i)] = value
		}
	}
	return rec
}
