package program

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const staticSample = `#Files
b.c;1
a.c;0
#Routines
0;main;0;1;10
1;helper;1;12;20
#Basic blocks
0;main;0;5;0;2;3
1;main;1;3;0;4;0
2;main;2;2;0;5
`

func TestStaticParser_AllTables(t *testing.T) {
	data, err := NewStaticParser(nil, zerolog.Nop()).Parse(strings.NewReader(staticSample))
	require.NoError(t, err)

	assert.Equal(t, []string{"a.c", "b.c"}, data.SourceFiles)

	require.Len(t, data.Functions, 2)
	assert.Equal(t, FunctionData{ID: 0, Name: "main", SourceFile: 0, LineStart: 1, LineEnd: 10}, data.Functions[0])
	assert.Equal(t, "helper", data.Functions[1].Name)
	assert.Equal(t, 1, data.Functions[1].SourceFile)

	require.Len(t, data.BasicBlocks, 3)
	start := data.BasicBlock(0)
	require.NotNil(t, start)
	assert.Equal(t, "main", start.FunctionName)
	assert.Equal(t, BlockStart, start.Location)
	assert.Equal(t, uint64(5), start.InstructionCount)
	assert.Equal(t, []int{2, 3}, start.SourceLines)
	assert.True(t, start.IsFunctionStart())

	end := data.BasicBlock(2)
	require.NotNil(t, end)
	assert.True(t, end.IsFunctionEnd())
}

func TestStaticParser_ZeroLinesDropped(t *testing.T) {
	data, err := NewStaticParser(nil, zerolog.Nop()).Parse(strings.NewReader(staticSample))
	require.NoError(t, err)

	body := data.BasicBlock(1)
	require.NotNil(t, body)
	assert.Equal(t, []int{4}, body.SourceLines, "a 0 in the line tail means no associated line")
}

func TestStaticParser_MergesFunctionInfo(t *testing.T) {
	info := map[string]FunctionInfo{
		"helper": {
			Name: "helper",
			Arguments: []FunctionArgument{
				{Name: "count", Type: "int", Index: 0},
			},
		},
	}

	data, err := NewStaticParser(info, zerolog.Nop()).Parse(strings.NewReader(staticSample))
	require.NoError(t, err)

	assert.Empty(t, data.Functions[0].Arguments, "no metadata supplied for main")
	require.Len(t, data.Functions[1].Arguments, 1)
	assert.Equal(t, "count", data.Functions[1].Arguments[0].Name)
}

func TestStaticParser_SkipsUnknownTable(t *testing.T) {
	input := `#Images
libm.so;0
#Files
a.c;0
`
	var buf bytes.Buffer
	log := zerolog.New(&buf).Level(zerolog.DebugLevel)

	data, err := NewStaticParser(nil, log).Parse(strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, []string{"a.c"}, data.SourceFiles)
	assert.Contains(t, buf.String(), "skipping table with unknown separator: #Images")
}

func TestStaticParser_LayoutDriftEndsTable(t *testing.T) {
	input := `#Routines
0;main;0;1;10
1;helper;0
#Files
a.c;0
`
	data, err := NewStaticParser(nil, zerolog.Nop()).Parse(strings.NewReader(input))
	require.NoError(t, err)

	require.Len(t, data.Functions, 1)
	assert.Equal(t, "main", data.Functions[0].Name)
	assert.Equal(t, []string{"a.c"}, data.SourceFiles, "parsing resumes at the next table header")
}

func TestStaticParser_EmptyInput(t *testing.T) {
	data, err := NewStaticParser(nil, zerolog.Nop()).Parse(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, data.Functions)
	assert.Empty(t, data.BasicBlocks)
	assert.Empty(t, data.SourceFiles)
}

func TestData_FunctionName(t *testing.T) {
	data, err := NewStaticParser(nil, zerolog.Nop()).Parse(strings.NewReader(staticSample))
	require.NoError(t, err)

	assert.Equal(t, "helper", data.FunctionName(1, GranularityRoutine))
	assert.Equal(t, "main", data.FunctionName(1, GranularityBasicBlock))
	assert.Equal(t, "", data.FunctionName(99, GranularityRoutine))
	assert.Equal(t, "", data.FunctionName(99, GranularityBasicBlock))
}

func TestData_SourceFileOutOfRange(t *testing.T) {
	data := NewData()
	assert.Equal(t, "", data.SourceFile(0))
	assert.Equal(t, "", data.SourceFile(-1))
}
