package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordInt(t *testing.T) {
	r := Record{
		"from_db":   int64(42),
		"from_json": json.Number("42"),
		"as_float":  float64(42),
		"as_int":    42,
		"null":      nil,
		"text":      "42",
	}

	assert.Equal(t, int64(42), r.Int("from_db"))
	assert.Equal(t, int64(42), r.Int("from_json"))
	assert.Equal(t, int64(42), r.Int("as_float"))
	assert.Equal(t, int64(42), r.Int("as_int"))
	assert.Equal(t, int64(0), r.Int("null"))
	assert.Equal(t, int64(0), r.Int("text"))
	assert.Equal(t, int64(0), r.Int("missing"))
}

func TestRecordIsNull(t *testing.T) {
	r := Record{"set": int64(1), "null": nil}

	assert.False(t, r.IsNull("set"))
	assert.True(t, r.IsNull("null"))
	assert.True(t, r.IsNull("missing"))
}

func TestRecordFloat(t *testing.T) {
	r := Record{
		"float":  1.5,
		"int":    int64(3),
		"number": json.Number("2.25"),
	}

	assert.Equal(t, 1.5, r.Float("float"))
	assert.Equal(t, 3.0, r.Float("int"))
	assert.Equal(t, 2.25, r.Float("number"))
	assert.Equal(t, 0.0, r.Float("missing"))
}

func TestRecordIntList(t *testing.T) {
	r := Record{
		"from_store": []int64{1, 2, 3},
		"from_json":  []any{json.Number("1"), json.Number("2"), json.Number("3")},
		"floats":     []any{float64(7), float64(8)},
	}

	assert.Equal(t, []int64{1, 2, 3}, r.IntList("from_store"))
	assert.Equal(t, []int64{1, 2, 3}, r.IntList("from_json"))
	assert.Equal(t, []int64{7, 8}, r.IntList("floats"))
	assert.Nil(t, r.IntList("missing"))
}

func TestRecordClone(t *testing.T) {
	orig := Record{"id": int64(1), "members": []int64{10, 20}}
	cp := orig.Clone()

	cp["id"] = int64(2)
	cp.IntList("members")[0] = 99

	assert.Equal(t, int64(1), orig.Int("id"))
	assert.Equal(t, []int64{10, 20}, orig.IntList("members"))
	assert.Equal(t, []int64{99, 20}, cp.IntList("members"))
}

func TestIDs(t *testing.T) {
	records := []Record{
		{"id": int64(5)},
		{"id": json.Number("3")},
		{"id": int64(9)},
	}

	assert.Equal(t, []int64{5, 3, 9}, IDs(records, "id"))
}

func TestSortByID(t *testing.T) {
	records := []Record{
		{"id": int64(30)},
		{"id": int64(10)},
		{"id": int64(20)},
	}

	SortByID(records)

	assert.Equal(t, []int64{10, 20, 30}, IDs(records, "id"))
}

func TestHuddleHash(t *testing.T) {
	a := HuddleHash([]int64{3, 1, 2})
	b := HuddleHash([]int64{1, 2, 3})
	c := HuddleHash([]int64{1, 2, 4})

	require.Len(t, a, 40)
	assert.Equal(t, a, b, "hash must not depend on member order")
	assert.NotEqual(t, a, c)
}

func TestHuddleHashDoesNotMutateInput(t *testing.T) {
	ids := []int64{3, 1, 2}
	HuddleHash(ids)
	assert.Equal(t, []int64{3, 1, 2}, ids)
}
