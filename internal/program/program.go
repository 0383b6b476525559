// Package program holds the static metadata model of an instrumented binary:
// its functions, basic blocks and source files. The model is built once per
// collection run from the instrumentation backend's static data dump and is
// read-only afterwards.
package program

// Granularity distinguishes routine-level events from basic-block-level events.
type Granularity uint8

const (
	GranularityRoutine Granularity = iota
	GranularityBasicBlock
)

func (g Granularity) String() string {
	switch g {
	case GranularityRoutine:
		return "routine"
	case GranularityBasicBlock:
		return "basic block"
	default:
		return "unknown"
	}
}

// BlockLocation is the position of a basic block within its owning function.
//
// A BlockStart block ends with a call instruction; the function it calls
// executes in the following basic block. A BlockEnd block ends with a return
// instruction. Everything else is BlockBody.
type BlockLocation uint8

const (
	BlockStart BlockLocation = iota
	BlockBody
	BlockEnd
)

// FunctionArgument describes one formal argument of an instrumented function.
// Value is filled in per dynamic entry when argument collection is enabled.
type FunctionArgument struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Index int    `json:"index"`
	Value int64  `json:"-"`
}

// FunctionInfo is the externally supplied argument metadata for one function,
// keyed by exact function name. It is produced by the binary scanner that runs
// before collection.
type FunctionInfo struct {
	Name      string             `json:"name"`
	Arguments []FunctionArgument `json:"arguments"`
}

// FunctionData is the static description of one instrumented function.
type FunctionData struct {
	ID         uint64
	Name       string
	SourceFile int
	LineStart  int
	LineEnd    int
	Arguments  []FunctionArgument
}

// BasicBlockData is the static description of one instrumented basic block.
type BasicBlockData struct {
	ID               uint64
	FunctionName     string
	Location         BlockLocation
	InstructionCount uint64
	SourceFile       int
	SourceLines      []int
}

// IsFunctionStart reports whether the block ends with a call instruction.
func (b *BasicBlockData) IsFunctionStart() bool { return b.Location == BlockStart }

// IsFunctionEnd reports whether the block ends with a return instruction.
func (b *BasicBlockData) IsFunctionEnd() bool { return b.Location == BlockEnd }

// Data owns the static tables of the instrumented program. Functions are
// indexed by their dense id, basic blocks by their (sparse) id, and source
// files by their id.
type Data struct {
	Functions   []FunctionData
	BasicBlocks map[uint64]*BasicBlockData
	SourceFiles []string
}

// NewData returns an empty metadata table. The memory mode runs with one,
// since its backend emits no static data.
func NewData() *Data {
	return &Data{BasicBlocks: make(map[uint64]*BasicBlockData)}
}

// Function returns the function with the given id, or nil if the id is out of
// range.
func (d *Data) Function(id uint64) *FunctionData {
	if id >= uint64(len(d.Functions)) {
		return nil
	}
	return &d.Functions[id]
}

// BasicBlock returns the basic block with the given id, or nil if unknown.
func (d *Data) BasicBlock(id uint64) *BasicBlockData {
	return d.BasicBlocks[id]
}

// SourceFile returns the source file path with the given id, or "" if the id
// is out of range.
func (d *Data) SourceFile(id int) string {
	if id < 0 || id >= len(d.SourceFiles) {
		return ""
	}
	return d.SourceFiles[id]
}

// FunctionName resolves the display name of a unit at either granularity: the
// function's own name for routine ids, the owning function's name for basic
// block ids. Unknown ids resolve to "".
func (d *Data) FunctionName(id uint64, granularity Granularity) string {
	switch granularity {
	case GranularityBasicBlock:
		if block := d.BasicBlock(id); block != nil {
			return block.FunctionName
		}
	case GranularityRoutine:
		if fn := d.Function(id); fn != nil {
			return fn.Name
		}
	}
	return ""
}
