package dialect

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecord(t *testing.T) {
	r := Record{"id": int32(4), "labels": []any{"A", 1, "B"}, "props": map[string]any{"a": 1}}
	n, ok := r.Int64("id")
	assert.True(t, ok)
	assert.Equal(t, int64(4), n)
	_, ok = r.Int64("missing")
	assert.False(t, ok)
	assert.Equal(t, []string{"A", "B"}, r.Strings("labels"))
	assert.Nil(t, r.Strings("id"))
	assert.Equal(t, map[string]any{"a": 1}, r.Properties("props"))
	assert.Nil(t, r.Properties("labels"))
}

func TestResultSingle(t *testing.T) {
	var res *Result
	_, ok := res.Single()
	assert.False(t, ok)
	res = &Result{Records: []Record{{"id": 1}}}
	rec, ok := res.Single()
	assert.True(t, ok)
	assert.Equal(t, 1, rec["id"])
}

func TestCounters(t *testing.T) {
	c := Counters{NodesCreated: 1, RelationshipsCreated: 2}
	c.Add(Counters{NodesCreated: 1, RelationshipsDeleted: 3, PropertiesSet: 4})
	assert.Equal(t, "created 2 and deleted 0 nodes, created 2 and deleted 3 relationships and set 4 properties", c.String())
}

func TestValuesEqual(t *testing.T) {
	tests := []struct {
		a, b any
		want bool
	}{
		{int64(1), 1, true},
		{int8(3), uint16(3), true},
		{1.5, 1, false},
		{1.0, int64(1), true},
		{1.5, 1.7, false},
		{"a", "a", true},
		{"1", 1, false},
		{nil, nil, true},
		{nil, int64(0), false},
		{[]string{"a"}, []string{"a"}, true},
		{int64(1<<62 + 1), int64(1 << 62), false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ValuesEqual(tt.a, tt.b), "%v == %v", tt.a, tt.b)
	}
}

func TestOp(t *testing.T) {
	assert.Equal(t, "SaveNode", OpSaveNode.String())
	assert.Equal(t, "Unknown", Op(200).String())
	assert.True(t, OpDeleteRelationships.IsWrite())
	assert.False(t, OpExpand.IsWrite())
	assert.Equal(t, OpCreateRelationshipsWithProperties, CreateRelationshipsWithProperties{}.Op())
	assert.True(t, NodeRef{ID: 1}.ByStoreID())
	assert.False(t, NodeRef{IDProperty: "key"}.ByStoreID())
}
