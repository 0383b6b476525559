package program

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// Static data dump layout: a sequence of tables, each introduced by a header
// line whose first character is the table separator mark followed by the
// table name. Table entries are field-separated lines; the first line that no
// longer matches an entry layout ends the table.
const (
	tableSeparatorMark  = "#"
	entryValueSeparator = ";"
)

// StaticParser ingests the static data file produced by the instrumentation
// backend and builds the program metadata table. Externally supplied argument
// metadata is merged into routine entries by exact name match.
type StaticParser struct {
	functionInfo map[string]FunctionInfo
	log          zerolog.Logger

	scanner *bufio.Scanner
	line    string
	eof     bool

	data *Data
}

// NewStaticParser returns a parser that merges functionInfo into the routine
// table while parsing. functionInfo may be nil.
func NewStaticParser(functionInfo map[string]FunctionInfo, log zerolog.Logger) *StaticParser {
	return &StaticParser{
		functionInfo: functionInfo,
		log:          log,
		data:         NewData(),
	}
}

// ParseFile opens and parses the static data file at path. The file handle is
// closed before returning, on every path.
func (p *StaticParser) ParseFile(path string) (*Data, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening static data file: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	return p.Parse(f)
}

// Parse reads the static data stream and returns the populated metadata
// table. Unknown tables are skipped with a diagnostic; a table whose entries
// stop matching the expected layout ends that table only, and parsing resumes
// at the next table header.
func (p *StaticParser) Parse(r io.Reader) (*Data, error) {
	p.scanner = bufio.NewScanner(r)
	p.scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	p.advance()

	for !p.eof {
		if !strings.HasPrefix(p.line, tableSeparatorMark) {
			p.advance()
			continue
		}

		tableName := strings.TrimLeft(strings.TrimSpace(p.line), tableSeparatorMark)
		switch tableName {
		case "Files":
			p.parseSourceFilesTable()
		case "Routines":
			p.parseRoutinesTable()
		case "Basic blocks":
			p.parseBasicBlocksTable()
		default:
			p.log.Debug().Msgf("skipping table with unknown separator: #%s", tableName)
			p.advance()
		}
	}

	if err := p.scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading static data: %w", err)
	}
	return p.data, nil
}

func (p *StaticParser) advance() {
	if p.scanner.Scan() {
		p.line = p.scanner.Text()
		return
	}
	p.line = ""
	p.eof = true
}

// parseSourceFilesTable reads the `<path>;<id>` file list. The backend writes
// it last-to-first, so entries are prepended to restore id order.
func (p *StaticParser) parseSourceFilesTable() {
	var files []string
	p.advance()

	for !p.eof {
		if !strings.Contains(p.line, entryValueSeparator) {
			break
		}
		path, _, _ := strings.Cut(strings.TrimSpace(p.line), entryValueSeparator)
		files = append([]string{path}, files...)
		p.advance()
	}

	p.data.SourceFiles = files
}

// parseRoutinesTable reads `<id>;<name>;<file_id>;<line_start>;<line_end>`
// entries.
func (p *StaticParser) parseRoutinesTable() {
	const routineFieldCount = 5

	var functions []FunctionData
	p.advance()

	for !p.eof {
		if !strings.Contains(p.line, entryValueSeparator) {
			break
		}

		fields := strings.Split(strings.TrimSpace(p.line), entryValueSeparator)
		if len(fields) != routineFieldCount {
			// Layout no longer matches, the table has ended.
			break
		}

		id, err0 := strconv.ParseUint(fields[0], 10, 64)
		fileID, err1 := strconv.Atoi(fields[2])
		lineStart, err2 := strconv.Atoi(fields[3])
		lineEnd, err3 := strconv.Atoi(fields[4])
		if err0 != nil || err1 != nil || err2 != nil || err3 != nil {
			break
		}

		fn := FunctionData{
			ID:         id,
			Name:       fields[1],
			SourceFile: fileID,
			LineStart:  lineStart,
			LineEnd:    lineEnd,
		}
		if info, ok := p.functionInfo[fn.Name]; ok {
			fn.Arguments = info.Arguments
		}
		functions = append(functions, fn)

		p.advance()
	}

	p.data.Functions = functions
}

// parseBasicBlocksTable reads
// `<id>;<function_name>;<location>;<instruction_count>;<file_id>;<line>...`
// entries. The trailing line-number list is variable length; a 0 in it means
// "no associated line" and is dropped.
func (p *StaticParser) parseBasicBlocksTable() {
	const blockFieldCount = 6

	blocks := make(map[uint64]*BasicBlockData)
	p.advance()

	for !p.eof {
		if !strings.Contains(p.line, entryValueSeparator) {
			break
		}

		fields := strings.Split(strings.TrimSpace(p.line), entryValueSeparator)
		if len(fields) < blockFieldCount {
			// At least one source line number is expected at the end.
			break
		}

		id, err0 := strconv.ParseUint(fields[0], 10, 64)
		location, err1 := strconv.Atoi(fields[2])
		count, err2 := strconv.ParseUint(fields[3], 10, 64)
		fileID, err3 := strconv.Atoi(fields[4])
		if err0 != nil || err1 != nil || err2 != nil || err3 != nil ||
			location < int(BlockStart) || location > int(BlockEnd) {
			break
		}

		var lines []int
		tailOK := true
		for _, field := range fields[blockFieldCount-1:] {
			line, err := strconv.Atoi(field)
			if err != nil {
				tailOK = false
				break
			}
			if line != 0 {
				lines = append(lines, line)
			}
		}
		if !tailOK {
			break
		}

		blocks[id] = &BasicBlockData{
			ID:               id,
			FunctionName:     fields[1],
			Location:         BlockLocation(location),
			InstructionCount: count,
			SourceFile:       fileID,
			SourceLines:      lines,
		}

		p.advance()
	}

	p.data.BasicBlocks = blocks
}
