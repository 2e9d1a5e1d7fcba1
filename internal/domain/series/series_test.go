package series

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/TechIntel/internal/domain/payload"
)

func snapshot(t *testing.T, pairs ...string) payload.Snapshot {
	t.Helper()
	require.True(t, len(pairs)%2 == 0)
	var entities []payload.Entity
	for i := 0; i < len(pairs); i += 2 {
		p, err := payload.Decode([]byte(pairs[i+1]))
		require.NoError(t, err)
		entities = append(entities, payload.Entity{Name: pairs[i], Payload: p})
	}
	return payload.NewSnapshot(entities...)
}

func value(t *testing.T, r Row, entity string) float64 {
	t.Helper()
	v, ok := r.Value(entity)
	require.True(t, ok, "year %d entity %s unset", r.Year, entity)
	return v
}

func TestAlignAdditive_MixedShapes(t *testing.T) {
	snap := snapshot(t,
		"ai", `{"dashboard": {"trend_curve": [10, 20, 30]}}`,
		"robotics", `{"dashboard": {"trend_curve": [{"year": 2021, "value": 5}, {"year": 2023, "count": 7}, {"year": 2024}]}}`,
	)

	s := AlignTrend(snap)

	assert.Equal(t, []string{"ai", "robotics"}, s.Entities)
	require.Len(t, s.Rows, 5)
	years := []int{}
	for _, r := range s.Rows {
		years = append(years, r.Year)
		assert.Len(t, r.Values, 2, "every row carries every entity")
	}
	assert.Equal(t, []int{2020, 2021, 2022, 2023, 2024}, years)

	assert.Equal(t, 10.0, value(t, s.Rows[0], "ai"))
	_, ok := s.Rows[0].Value("robotics")
	assert.False(t, ok)

	assert.Equal(t, 20.0, value(t, s.Rows[1], "ai"))
	assert.Equal(t, 5.0, value(t, s.Rows[1], "robotics"))
	assert.Equal(t, 7.0, value(t, s.Rows[3], "robotics"))
	assert.Equal(t, 0.0, value(t, s.Rows[4], "robotics"), "object without value or count counts as 0")
	_, ok = s.Rows[4].Value("ai")
	assert.False(t, ok)
}

func TestAlignAdditive_NumericYearOrder(t *testing.T) {
	snap := snapshot(t,
		"a", `{"dashboard": {"trend_curve": [{"year": 2010, "value": 1}, {"year": 999, "value": 2}]}}`,
		"b", `{"dashboard": {"trend_curve": [{"year": 10000, "value": 3}]}}`,
	)

	s := AlignTrend(snap)

	require.Len(t, s.Rows, 3)
	assert.Equal(t, 999, s.Rows[0].Year)
	assert.Equal(t, 2010, s.Rows[1].Year)
	assert.Equal(t, 10000, s.Rows[2].Year)
	first, last, ok := s.Span()
	assert.True(t, ok)
	assert.Equal(t, 999, first)
	assert.Equal(t, 10000, last)
}

func TestAlignAdditive_SkipsMalformedElements(t *testing.T) {
	snap := snapshot(t,
		"a", `{"dashboard": {"trend_curve": [{"value": 4}, {"year": "soon", "value": 1}, {"year": 2022, "value": "high"}, "x", null, {"year": 2023, "value": 2}]}}`,
		"b", `{"dashboard": {"trend_curve": "not a list"}}`,
	)

	s := AlignTrend(snap)

	require.Len(t, s.Rows, 1)
	assert.Equal(t, 2023, s.Rows[0].Year)
	assert.Equal(t, 2.0, value(t, s.Rows[0], "a"))
	_, ok := s.Rows[0].Value("b")
	assert.False(t, ok)
}

func TestAlignAdditive_LaterElementWins(t *testing.T) {
	snap := snapshot(t, "a", `{"dashboard": {"trend_curve": [{"year": 2021, "value": 1}, {"year": 2021, "value": 9}]}}`)

	s := AlignTrend(snap)

	require.Len(t, s.Rows, 1)
	assert.Equal(t, 9.0, value(t, s.Rows[0], "a"))
}

func TestAlignAdditive_NestedField(t *testing.T) {
	snap := snapshot(t, "a", `{"dashboard": {"signals": {"hiring": [1, 2]}}}`)

	s := AlignAdditive(snap, "signals.hiring")

	require.Len(t, s.Rows, 2)
	assert.Equal(t, 2021, s.Rows[1].Year)
}

func TestAlignAdditive_Idempotent(t *testing.T) {
	snap := snapshot(t,
		"a", `{"dashboard": {"trend_curve": [1, 2, 3]}}`,
		"b", `{"dashboard": {"trend_curve": [{"year": 2022, "value": 4}]}}`,
	)

	first, err := json.Marshal(AlignTrend(snap))
	require.NoError(t, err)
	second, err := json.Marshal(AlignTrend(snap))
	require.NoError(t, err)
	assert.JSONEq(t, string(first), string(second))
}

func TestAlignCumulativePatents(t *testing.T) {
	snap := snapshot(t,
		"ai", `{"dashboard": {"patent_timeline": [{"year": 2021, "count": 3}, {"year": 2021, "count": 2}, {"year": 2022}]}}`,
		"quantum", `{"dashboard": {"patent_timeline": [{"year": 2023, "count": 4}, {"year": 2023, "count": "x"}]}}`,
		"empty", `{}`,
	)

	s := AlignCumulativePatents(snap)

	require.Len(t, s.Rows, 3)
	assert.Equal(t, 5.0, value(t, s.Rows[0], "ai"), "same-year entries are summed")
	assert.Equal(t, 1.0, value(t, s.Rows[1], "ai"), "missing count is one filing")
	assert.Equal(t, 0.0, value(t, s.Rows[1], "quantum"))
	assert.Equal(t, 4.0, value(t, s.Rows[2], "quantum"))
	for _, r := range s.Rows {
		assert.Len(t, r.Values, 3)
		assert.Equal(t, 0.0, value(t, r, "empty"))
	}
}

func TestRow_MarshalJSON(t *testing.T) {
	one := 1.0
	r := Row{Year: 2021, Values: map[string]*float64{"a": &one, "b": nil}}

	out, err := json.Marshal(r)
	require.NoError(t, err)
	assert.JSONEq(t, `{"year": 2021, "a": 1, "b": null}`, string(out))
}

func TestSeries_Between(t *testing.T) {
	snap := snapshot(t, "a", `{"dashboard": {"trend_curve": [1, 2, 3, 4]}}`)

	s := AlignTrend(snap).Between(2021, 2022)

	require.Len(t, s.Rows, 2)
	assert.Equal(t, 2021, s.Rows[0].Year)
	_, _, ok := Series{}.Span()
	assert.False(t, ok)
}

func TestPatentEntry(t *testing.T) {
	y, n, ok := PatentEntry(map[string]interface{}{"year": int64(2020), "count": "3"})
	assert.True(t, ok)
	assert.Equal(t, 2020, y)
	assert.Equal(t, 3.0, n)

	_, _, ok = PatentEntry(5.0)
	assert.False(t, ok)
}

func TestRow_UnmarshalJSON(t *testing.T) {
	var r Row
	require.NoError(t, json.Unmarshal([]byte(`{"year": 2022, "a": 2.5, "b": null}`), &r))

	assert.Equal(t, 2022, r.Year)
	v, ok := r.Value("a")
	assert.True(t, ok)
	assert.Equal(t, 2.5, v)
	_, ok = r.Value("b")
	assert.False(t, ok)
	assert.Contains(t, r.Values, "b")

	assert.Error(t, json.Unmarshal([]byte(`{"a": 1}`), &r))
}
