package parse

import (
	"fmt"
	"slices"

	"pintrace/internal/profile"
	"pintrace/internal/program"
)

// Record field values shared by the duration modes.
const (
	typeMixed        = "mixed"
	typeMemory       = "memory"
	subtypeTimeDelta = "time delta"
)

// baseRecord fills the fields common to every duration record.
func (p *Parser) baseRecord(opened backlogEntry) profile.Record {
	return profile.Record{
		"type":     typeMixed,
		"subtype":  subtypeTimeDelta,
		"tid":      opened.entry.TID,
		"pid":      opened.entry.PID,
		"caller":   opened.caller,
		"workload": p.opts.Workload,
	}
}

// unitRecord builds the record for one paired unit: a routine in time mode,
// or a single basic block execution in either duration mode.
func (p *Parser) unitRecord(opened backlogEntry, closing Entry, block *program.BasicBlockData) profile.Record {
	rec := p.baseRecord(opened)

	if p.mode == ModeTime {
		rec["timestamp"] = opened.entry.Timestamp
		rec["amount"] = timeDelta(opened.entry, closing)
	} else {
		rec["amount"] = block.InstructionCount
	}

	if opened.entry.FunctionGranularity() {
		fn := p.program.Function(opened.entry.ID)
		rec["uid"] = fn.Name
		rec["source-lines"] = lineRange(fn.LineStart, fn.LineEnd)
		rec["source-file"] = p.program.SourceFile(fn.SourceFile)
		for _, arg := range opened.entry.Args {
			rec.SetArgument(arg.Index, arg.Value, arg.Type, arg.Name)
		}
		return rec
	}

	rec["uid"] = fmt.Sprintf("BBL%s%s%s%d", callerSeparator, block.FunctionName, callerSeparator, opened.entry.ID)
	rec["source-lines"] = block.SourceLines
	rec["source-file"] = p.program.SourceFile(block.SourceFile)
	return rec
}

// simulatedFunctionRecord builds the function-level record synthesized from a
// closed simulated call: the call's seed block provides the identity, the
// closing FUNCTION_END block the end of the covered source range.
func (p *Parser) simulatedFunctionRecord(call backlogEntry, closing Entry) profile.Record {
	rec := p.baseRecord(call)

	if p.mode == ModeTime {
		rec["timestamp"] = call.entry.Timestamp
		rec["amount"] = timeDelta(call.entry, closing)
	} else {
		rec["amount"] = call.count
	}

	startBlock := p.program.BasicBlock(call.entry.ID)
	endBlock := p.program.BasicBlock(closing.ID)
	rec["uid"] = startBlock.FunctionName
	rec["source-lines"] = coveredLineRange(startBlock.SourceLines, endBlock.SourceLines)
	rec["source-file"] = p.program.SourceFile(startBlock.SourceFile)
	return rec
}

func timeDelta(opened, closing Entry) uint64 {
	if closing.Timestamp >= opened.Timestamp {
		return closing.Timestamp - opened.Timestamp
	}
	return opened.Timestamp - closing.Timestamp
}

// lineRange expands an inclusive start/end line pair into the explicit list
// the record format uses for basic blocks.
func lineRange(start, end int) []int {
	if end < start {
		return nil
	}
	lines := make([]int, 0, end-start+1)
	for line := start; line <= end; line++ {
		lines = append(lines, line)
	}
	return lines
}

// coveredLineRange spans from the lowest line covered by the first block of a
// simulated call to the highest line covered by its last block. Blocks
// without associated source lines yield no range.
func coveredLineRange(startLines, endLines []int) []int {
	if len(startLines) == 0 || len(endLines) == 0 {
		return nil
	}
	return lineRange(slices.Min(startLines), slices.Max(endLines))
}
