package compute

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/sprintpulse/sprintpulse/internal/paginate"
)

const pointsField = "customfield_10014"

func TestAttainment(t *testing.T) {
	cases := []struct {
		name                 string
		estimated, completed float64
		want                 float64
	}{
		{"over delivered", 20, 25, 125},
		{"under delivered", 10, 5, 50},
		{"nothing committed", 0, 5, 100},
		{"nothing at all", 0, 0, 100},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, Attainment(tc.estimated, tc.completed), 1e-9)
		})
	}
}

func TestNewVelocity_DiffAndText(t *testing.T) {
	v := NewVelocity(Measure{Value: 20, Text: "20.0"}, Measure{Value: 25, Text: "25.0"})

	assert.Equal(t, 5.0, v.Diff.Value)
	assert.Equal(t, "5", v.Diff.Text)
	assert.Equal(t, 125.0, v.Attainment.Value)
	assert.Equal(t, "125.0%", v.Attainment.Text)
	assert.Equal(t, "20.0", v.Estimated.Text, "upstream text is kept")
}

func TestNewVelocity_AttainmentKeepsPrecision(t *testing.T) {
	v := NewVelocity(Measure{Value: 3}, Measure{Value: 1})
	assert.InDelta(t, 33.333333, v.Attainment.Value, 1e-5)
	assert.Equal(t, "33.3%", v.Attainment.Text)
}

func record(est, comp float64) VelocityRecord {
	return VelocityRecord{Velocity: NewVelocity(Measure{Value: est}, Measure{Value: comp})}
}

func TestAverageAttainment_SkipsZeroCommitment(t *testing.T) {
	avg := AverageAttainment([]VelocityRecord{
		record(20, 25), // 125
		record(10, 10), // 100
		record(0, 3),   // 100, excluded
	})
	require.NotNil(t, avg)
	assert.InDelta(t, 112.5, *avg, 1e-9)
}

func TestAverageAttainment_NoEligibleSprints(t *testing.T) {
	assert.Nil(t, AverageAttainment(nil))
	assert.Nil(t, AverageAttainment([]VelocityRecord{record(0, 4), record(0, 0)}))
}

func TestSumPoints_MissingCountsAsZero(t *testing.T) {
	issues := []gjson.Result{
		gjson.Parse(issueJSON("A-1", "5")),
		gjson.Parse(issueJSON("A-2", "null")),
		gjson.Parse(issueJSON("A-3", "3")),
		gjson.Parse(issueJSON("A-4", "")),
		gjson.Parse(issueJSON("A-5", `"eight"`)),
		gjson.Parse(`{"key":"A-6"}`),
	}
	assert.Equal(t, 8.0, SumPoints(issues, pointsField))
}

func TestSumPoints_FieldNameIsNotAPath(t *testing.T) {
	issues := []gjson.Result{gjson.Parse(`{"fields":{"story.points":2,"story":{"points":40}}}`)}
	assert.Equal(t, 2.0, SumPoints(issues, "story.points"))
}

func TestComputeBoardVelocity(t *testing.T) {
	f := newFakeTracker()
	f.sprints[146] = []string{
		sprintJSON(12, "Sprint 12", "closed", "2024-02-01T09:00:00.000Z", "2024-02-14T17:00:00.000Z"),
		sprintJSON(11, "Sprint 11", "closed", "2024-01-15T09:00:00.000Z", "2024-01-28T17:00:00.000Z"),
		sprintJSON(14, "Sprint 14", "active", "2024-03-01T09:00:00.000Z", "2024-03-14T17:00:00.000Z"),
		sprintJSON(13, "Sprint 13", "active", "2024-02-15T09:00:00.000Z", "2024-02-28T17:00:00.000Z"),
	}
	f.velocity[146] = `{"velocityStatEntries":{
		"12":{"estimated":{"value":20,"text":"20.0"},"completed":{"value":25,"text":"25.0"}},
		"999":{"estimated":{"value":8,"text":"8.0"},"completed":{"value":8,"text":"8.0"}},
		"11":{"estimated":{"value":10,"text":"10.0"},"completed":{"value":10,"text":"10.0"}}
	}}`
	f.issues[13] = []string{issueJSON("P-1", "5"), issueJSON("P-2", "null"), issueJSON("P-3", "3")}
	f.issues[14] = []string{issueJSON("P-4", "2"), issueJSON("P-5", "1"), issueJSON("P-6", "")}

	agg := NewAggregator(f, pointsField, paginate.Options{PageSize: 2})
	bv, err := agg.ComputeBoardVelocity(context.Background(), 146)
	require.NoError(t, err)

	require.Len(t, bv.Velocities, 3)
	assert.Equal(t, int64(11), bv.Velocities[0].Sprint.ID, "sorted by start date")
	assert.Equal(t, int64(12), bv.Velocities[1].Sprint.ID)
	assert.Nil(t, bv.Velocities[2].Sprint, "orphan sorts last")
	assert.Equal(t, "999", bv.Velocities[2].SprintKey)
	assert.Equal(t, 1, bv.Orphans)

	assert.Equal(t, 5.0, bv.Velocities[1].Velocity.Diff.Value)
	assert.Equal(t, 125.0, bv.Velocities[1].Velocity.Attainment.Value)

	// (100 + 125 + 100) / 3: the orphan still has a positive commitment.
	require.NotNil(t, bv.Metrics.AverageAttainment)
	assert.InDelta(t, 325.0/3, *bv.Metrics.AverageAttainment, 1e-9)

	require.Len(t, bv.Active, 2)
	assert.Equal(t, int64(13), bv.Active[0].Sprint.ID, "active sorted by start date")
	assert.Equal(t, 8.0, bv.Active[0].Points)
	assert.Equal(t, int64(14), bv.Active[1].Sprint.ID)
	assert.Equal(t, 3.0, bv.Active[1].Points)
}

func TestComputeBoardVelocity_JoinNormalizesKeys(t *testing.T) {
	f := newFakeTracker()
	f.sprints[1] = []string{sprintJSON(42, "S42", "closed", "2024-01-01", "2024-01-14")}
	f.velocity[1] = `{"velocityStatEntries":{"042":{"estimated":{"value":4},"completed":{"value":2}}}}`

	bv, err := NewAggregator(f, pointsField, paginate.Options{}).ComputeBoardVelocity(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, bv.Velocities, 1)
	require.NotNil(t, bv.Velocities[0].Sprint)
	assert.Equal(t, "S42", bv.Velocities[0].Sprint.Name)
	assert.Equal(t, "4", bv.Velocities[0].Velocity.Estimated.Text, "missing text is rendered from value")
	assert.Zero(t, bv.Orphans)
}

func TestComputeBoardVelocity_JoinUsesFirstDuplicate(t *testing.T) {
	f := newFakeTracker()
	f.sprints[1] = []string{
		sprintJSON(5, "First", "closed", "2024-01-01", "2024-01-14"),
		sprintJSON(5, "Second", "closed", "2024-02-01", "2024-02-14"),
	}
	f.velocity[1] = `{"velocityStatEntries":{"5":{"estimated":{"value":3},"completed":{"value":3}}}}`

	bv, err := NewAggregator(f, pointsField, paginate.Options{}).ComputeBoardVelocity(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, bv.Velocities, 1)
	require.NotNil(t, bv.Velocities[0].Sprint)
	assert.Equal(t, "First", bv.Velocities[0].Sprint.Name)
}

func TestComputeBoardVelocity_EmptyBoard(t *testing.T) {
	f := newFakeTracker()

	bv, err := NewAggregator(f, pointsField, paginate.Options{}).ComputeBoardVelocity(context.Background(), 7)
	require.NoError(t, err)
	assert.Empty(t, bv.Velocities)
	assert.Empty(t, bv.Active)
	assert.Nil(t, bv.Metrics.AverageAttainment)
	assert.Zero(t, f.calls["issues"])
}

func TestComputeBoardVelocity_SortIsStableForEqualStarts(t *testing.T) {
	f := newFakeTracker()
	f.sprints[1] = []string{
		sprintJSON(1, "A", "closed", "2024-01-01", "2024-01-14"),
		sprintJSON(2, "B", "closed", "2024-01-01", "2024-01-14"),
	}
	f.velocity[1] = `{"velocityStatEntries":{"2":{"estimated":{"value":1},"completed":{"value":1}},"1":{"estimated":{"value":1},"completed":{"value":1}}}}`

	bv, err := NewAggregator(f, pointsField, paginate.Options{}).ComputeBoardVelocity(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, bv.Velocities, 2)
	assert.Equal(t, "2", bv.Velocities[0].SprintKey, "document order kept on ties")
	assert.Equal(t, "1", bv.Velocities[1].SprintKey)
}
