package parse

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"pintrace/internal/profile"
	"pintrace/internal/program"
	"pintrace/internal/tracefile"
)

const (
	entrySeparator  = ";"
	callerSeparator = "#"
)

// Fatal stream conditions. Both indicate that the trace as a whole cannot be
// trusted, not just that an edge pair is missing.
var (
	// ErrUnexpectedGranularity is returned when a routine-granularity entry
	// appears in a mode that only instruments basic blocks.
	ErrUnexpectedGranularity = errors.New("instructions mode expects only basic block entries in the dynamic data")

	// ErrCorruptCallStack is returned when the call-stack simulation cannot
	// locate the enclosing function entry a basic block structurally requires.
	ErrCorruptCallStack = errors.New("no enclosing function entry for basic block in the call backlog")
)

// Options carry the run parameters supplied by the collection driver.
type Options struct {
	// Workload labels every emitted record with the inputs the profiled
	// program ran on.
	Workload string

	// BasicBlocksOnly marks a run where functions themselves were not
	// instrumented and function records must be synthesized from basic block
	// boundaries.
	BasicBlocksOnly bool

	// Logger receives non-fatal diagnostics at debug level. The zero value
	// discards them.
	Logger zerolog.Logger
}

// functionStart tracks whether the next basic block in a given scope opens a
// new function. At stream start a function start is expected anywhere: the
// first block encountered is the program entry point, and its scope is not
// known yet.
type functionStart struct {
	expected bool
	scoped   bool
	pid, tid uint64
}

func (s functionStart) matches(e Entry) bool {
	return !s.scoped || (s.pid == e.PID && s.tid == e.TID)
}

func expectStartIn(e Entry) functionStart {
	return functionStart{expected: true, scoped: true, pid: e.PID, tid: e.TID}
}

// Parser turns the raw dynamic event stream into a lazy, forward-only
// sequence of profile records. It owns its backlogs and the shared read-only
// program metadata it was constructed with; no state is shared between
// parser instances.
type Parser struct {
	mode    Mode
	program *program.Data
	opts    Options
	log     zerolog.Logger

	scanner *bufio.Scanner
	closer  io.Closer
	lineNum int

	functionBacklog backlog
	blockBacklog    backlog
	memoryBacklog   []MemoryEntry
	start           functionStart

	pending []profile.Record
	err     error
}

// New creates a parser reading raw entries from r. The program metadata is
// shared and read-only for the lifetime of the parser.
func New(r io.Reader, mode Mode, data *program.Data, opts Options) *Parser {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &Parser{
		mode:    mode,
		program: data,
		opts:    opts,
		log:     opts.Logger,
		scanner: scanner,
		start:   functionStart{expected: true},
	}
}

// Open creates a parser reading from the dynamic data file at path.
// Compressed trace files are decoded transparently. The caller must Close the
// parser on every path, including early termination.
func Open(path string, mode Mode, data *program.Data, opts Options) (*Parser, error) {
	rc, err := tracefile.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening dynamic data file: %w", err)
	}
	p := New(rc, mode, data, opts)
	p.closer = rc
	return p, nil
}

// Close releases the underlying trace file, if any. Abandoning a partially
// consumed stream is allowed; whatever remains in the backlogs is discarded.
func (p *Parser) Close() error {
	if p.closer == nil {
		return nil
	}
	c := p.closer
	p.closer = nil
	return c.Close()
}

// Next returns the next profile record. It reads and decodes raw lines until
// one of them completes a record, returning io.EOF once the stream is
// exhausted. A single line may complete two records (a basic block and the
// simulated function call it closes); the surplus is buffered for the next
// call. Any error other than io.EOF is fatal and repeats on further calls.
func (p *Parser) Next() (profile.Record, error) {
	if p.err != nil {
		return nil, p.err
	}
	if len(p.pending) > 0 {
		rec := p.pending[0]
		p.pending = p.pending[1:]
		return rec, nil
	}

	for {
		line, ok := p.readLine()
		if !ok {
			if err := p.scanner.Err(); err != nil {
				p.err = fmt.Errorf("reading dynamic data: %w", err)
			} else {
				p.reportResiduals()
				p.err = io.EOF
			}
			return nil, p.err
		}

		records, err := p.processLine(line)
		if err != nil {
			p.err = fmt.Errorf("dynamic data line %d: %w", p.lineNum, err)
			return nil, p.err
		}
		if len(records) == 0 {
			continue
		}
		p.pending = records[1:]
		return records[0], nil
	}
}

func (p *Parser) readLine() (string, bool) {
	for p.scanner.Scan() {
		p.lineNum++
		line := strings.TrimSpace(p.scanner.Text())
		if line != "" {
			return line, true
		}
	}
	return "", false
}

func (p *Parser) processLine(line string) ([]profile.Record, error) {
	if p.mode == ModeMemory {
		entry, err := decodeMemoryEntry(line)
		if err != nil {
			return nil, err
		}
		return p.processMemory(entry)
	}

	entry, err := p.decodeEntry(line)
	if err != nil {
		return nil, err
	}
	return p.processDuration(entry)
}

// processDuration folds one time- or instructions-mode entry into the
// backlog state, emitting records for every pairing it completes.
func (p *Parser) processDuration(e Entry) ([]profile.Record, error) {
	if p.mode == ModeInstructions && e.FunctionGranularity() {
		return nil, ErrUnexpectedGranularity
	}

	usesBlockBacklog := p.opts.BasicBlocksOnly || !e.FunctionGranularity()

	var block *program.BasicBlockData
	if usesBlockBacklog {
		if block = p.program.BasicBlock(e.ID); block == nil {
			p.log.Debug().Uint64("id", e.ID).Msg("entry references an unknown basic block id, skipping")
			return nil, nil
		}
	} else if p.program.Function(e.ID) == nil {
		p.log.Debug().Uint64("id", e.ID).Msg("entry references an unknown routine id, skipping")
		return nil, nil
	}

	current := &p.functionBacklog
	if usesBlockBacklog {
		current = &p.blockBacklog
	}

	if e.Before() {
		// Opening entries never yield output; they wait in the backlog for
		// their complementary closing entry.
		caller := p.callerPath(e)
		item := backlogEntry{entry: e, caller: caller}
		if block != nil {
			item.count = block.InstructionCount
		}
		current.push(item)

		if p.opts.BasicBlocksOnly {
			if err := p.simulateCallOpen(e, block, caller); err != nil {
				return nil, err
			}
		}
		return nil, nil
	}

	i := current.findComplement(e)
	if i < 0 {
		p.log.Debug().Msg("closing entry does not have a pair in the backlog")
		return nil, nil
	}
	opened := current.removeAt(i)

	records := []profile.Record{p.unitRecord(opened, e, block)}

	if p.opts.BasicBlocksOnly && block.IsFunctionEnd() {
		// The block ends a function: close the simulated call as well and
		// emit a function-level record for it.
		fi := p.functionBacklog.findEnclosingFunction(e, p.program)
		if fi < 0 {
			return nil, ErrCorruptCallStack
		}
		call := p.functionBacklog.removeAt(fi)
		records = append(records, p.simulatedFunctionRecord(call, e))

		// The closed call's instructions also ran on behalf of its caller;
		// the root entry ends up accumulating the whole run.
		if ci := p.functionBacklog.findScope(e); ci >= 0 {
			p.functionBacklog[ci].count += call.count
		}
	}

	return records, nil
}

// simulateCallOpen maintains the simulated function call stack on every
// opening basic block entry. A block opening in the scope where a function
// start is expected seeds a new simulated call; any other block contributes
// its instructions to the call it executes within. A block ending in a call
// instruction arms the start expectation for its own scope: the next block
// there belongs to the callee. The call instruction itself stays attributed
// to the caller's block.
func (p *Parser) simulateCallOpen(e Entry, block *program.BasicBlockData, caller string) error {
	if p.start.expected && p.start.matches(e) {
		p.start = functionStart{}
		if block.IsFunctionStart() {
			p.start = expectStartIn(e)
		}
		p.functionBacklog.push(backlogEntry{entry: e, caller: caller, count: block.InstructionCount})
		return nil
	}

	if p.mode == ModeInstructions {
		i := p.functionBacklog.findEnclosingFunction(e, p.program)
		if i < 0 {
			return ErrCorruptCallStack
		}
		p.functionBacklog[i].count += block.InstructionCount
	}
	if block.IsFunctionStart() {
		p.start = expectStartIn(e)
	}
	return nil
}

// callerPath forms the chain of enclosing function names from the immediate
// caller back to the program root, joined by the caller separator. The most
// recent function backlog entry in e's scope is the caller; no such entry
// means e is the root of its scope and the path is empty. Immediate
// self-recursion is collapsed: a name never repeats at the head of the path.
func (p *Parser) callerPath(e Entry) string {
	i := p.functionBacklog.findScope(e)
	if i < 0 {
		return ""
	}

	caller := p.functionBacklog[i]
	callerName := p.program.FunctionName(caller.entry.ID, caller.entry.Granularity)
	if caller.caller == "" {
		return callerName
	}
	if head, _, _ := strings.Cut(caller.caller, callerSeparator); head == callerName {
		return caller.caller
	}
	return callerName + callerSeparator + caller.caller
}

// reportResiduals logs entries left unmatched at end of stream. The trace is
// still usable, just incomplete at its edges, so this is diagnostic only.
func (p *Parser) reportResiduals() {
	switch p.mode {
	case ModeMemory:
		if n := len(p.memoryBacklog); n > 0 {
			p.log.Debug().Msgf("unpaired memory entries in backlog: %d", n)
		}
	default:
		if len(p.functionBacklog) > 0 || len(p.blockBacklog) > 0 {
			p.log.Debug().Msgf("unpaired entries in backlogs: functions - %d and basic blocks - %d",
				len(p.functionBacklog), len(p.blockBacklog))
		}
	}
}

func parseUint(s string) (uint64, error) {
	return strconv.ParseUint(s, 10, 64)
}

func parseInt(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}
