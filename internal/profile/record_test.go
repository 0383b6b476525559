package profile

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecord_Int(t *testing.T) {
	rec := Record{
		"a": int(1),
		"b": int64(2),
		"c": uint64(3),
		"d": float64(4),
		"e": "five",
	}

	assert.Equal(t, int64(1), rec.Int("a"))
	assert.Equal(t, int64(2), rec.Int("b"))
	assert.Equal(t, int64(3), rec.Int("c"))
	assert.Equal(t, int64(4), rec.Int("d"))
	assert.Equal(t, int64(0), rec.Int("e"))
	assert.Equal(t, int64(0), rec.Int("missing"))
}

func TestRecord_String(t *testing.T) {
	rec := Record{"uid": "main", "amount": uint64(5)}

	assert.Equal(t, "main", rec.String("uid"))
	assert.Equal(t, "5", rec.String("amount"))
	assert.Equal(t, "", rec.String("missing"))
}

func TestRecord_SetArgument(t *testing.T) {
	rec := Record{}
	rec.SetArgument(1, int64(42), "int", "n")

	assert.Equal(t, int64(42), rec["arg_value#1"])
	assert.Equal(t, "int", rec["arg_type#1"])
	assert.Equal(t, "n", rec["arg_name#1"])
}
