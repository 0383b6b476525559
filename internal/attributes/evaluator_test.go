package attributes

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pintrace/internal/config"
	"pintrace/internal/profile"
)

func testRecord() profile.Record {
	return profile.Record{
		"uid":      "main",
		"caller":   "",
		"workload": "10000",
		"type":     "mixed",
		"amount":   uint64(2500),
		"tid":      uint64(1),
		"pid":      uint64(1234),
	}
}

func TestEvaluator_AnnotatesRecord(t *testing.T) {
	attrs := []config.CustomAttribute{
		{Name: "slow", Expression: "amount > 1000"},
		{Name: "scope", Expression: `uid + "@" + workload`},
	}

	evaluator, err := NewEvaluator(attrs, zerolog.Nop())
	require.NoError(t, err)

	rec := testRecord()
	evaluator.Annotate(rec)

	assert.Equal(t, true, rec["slow"])
	assert.Equal(t, "main@10000", rec["scope"])
}

func TestEvaluator_RecordAccess(t *testing.T) {
	attrs := []config.CustomAttribute{
		{Name: "subtype_copy", Expression: `record["subtype"]`},
	}

	evaluator, err := NewEvaluator(attrs, zerolog.Nop())
	require.NoError(t, err)

	rec := testRecord()
	rec["subtype"] = "time delta"
	evaluator.Annotate(rec)

	assert.Equal(t, "time delta", rec["subtype_copy"])
}

func TestEvaluator_CompileError(t *testing.T) {
	attrs := []config.CustomAttribute{
		{Name: "broken", Expression: "amount >"},
	}

	_, err := NewEvaluator(attrs, zerolog.Nop())
	require.Error(t, err)
	assert.ErrorContains(t, err, `failed to compile expression for attribute "broken"`)
}

func TestEvaluator_NoAttributes(t *testing.T) {
	evaluator, err := NewEvaluator(nil, zerolog.Nop())
	require.NoError(t, err)

	rec := testRecord()
	evaluator.Annotate(rec)
	assert.Len(t, rec, 7, "no attributes leaves the record untouched")
}
