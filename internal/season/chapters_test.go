package season

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalize(t *testing.T) {
	tests := []struct {
		name   string
		ranges []Range
		n      int
		want   []Range
	}{
		{
			name:   "already exact",
			ranges: []Range{{Start: 0, End: 2}, {Start: 3, End: 4}},
			n:      5,
			want:   []Range{{Start: 0, End: 2}, {Start: 3, End: 4}},
		},
		{
			name:   "out of range indexes clamped",
			ranges: []Range{{Start: -4, End: 1}, {Start: 2, End: 99}},
			n:      4,
			want:   []Range{{Start: 0, End: 1}, {Start: 2, End: 3}},
		},
		{
			name:   "unsorted",
			ranges: []Range{{Start: 3, End: 4, Reason: "b"}, {Start: 0, End: 2, Reason: "a"}},
			n:      5,
			want:   []Range{{Start: 0, End: 2, Reason: "a"}, {Start: 3, End: 4, Reason: "b"}},
		},
		{
			name:   "overlap trimmed from later range",
			ranges: []Range{{Start: 0, End: 3}, {Start: 2, End: 5}},
			n:      6,
			want:   []Range{{Start: 0, End: 3}, {Start: 4, End: 5}},
		},
		{
			name:   "contained range dropped",
			ranges: []Range{{Start: 0, End: 5}, {Start: 1, End: 2}},
			n:      6,
			want:   []Range{{Start: 0, End: 5}},
		},
		{
			name:   "gap extends preceding range",
			ranges: []Range{{Start: 0, End: 1}, {Start: 4, End: 5}},
			n:      6,
			want:   []Range{{Start: 0, End: 3}, {Start: 4, End: 5}},
		},
		{
			name:   "missing head and tail",
			ranges: []Range{{Start: 2, End: 3}},
			n:      6,
			want:   []Range{{Start: 0, End: 5}},
		},
		{
			name:   "inverted range",
			ranges: []Range{{Start: 3, End: 1}},
			n:      5,
			want:   []Range{{Start: 0, End: 4}},
		},
		{
			name: "no entries",
			n:    0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Canonicalize(tt.ranges, tt.n)
			assert.Equal(t, tt.want, got)
			if tt.n > 0 {
				covered := 0
				for i, r := range got {
					assert.Equal(t, covered, r.Start, "range %d", i)
					covered = r.End + 1
				}
				assert.Equal(t, tt.n, covered)
			}
		})
	}
}

func TestParseBoundaries(t *testing.T) {
	ranges, err := ParseBoundaries("Here:\n```json\n[{\"start_index\": 0, \"end_index\": 2, \"reason\": \" Start \"}, {\"start_index\": \"x\"}, {\"reason\": \"rest\"}]\n```", 8)
	require.NoError(t, err)
	assert.Equal(t, []Range{{Start: 0, End: 2, Reason: "Start"}, {Start: 0, End: 7, Reason: "rest"}}, ranges)

	ranges, err = ParseBoundaries(`{"seasons": [{"start_index": 1, "end_index": 2}]}`, 3)
	require.NoError(t, err)
	assert.Len(t, ranges, 1)

	for _, resp := range []string{"nothing", "[]", `[{"start_index": "a"}]`} {
		_, err := ParseBoundaries(resp, 3)
		assert.Error(t, err, resp)
	}
}
