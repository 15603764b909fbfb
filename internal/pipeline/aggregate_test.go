package pipeline

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func contactWith(stages ...string) ContactSnapshot {
	c := ContactSnapshot{ContactID: uuid.New()}
	for i, s := range stages {
		a := activity(day0.Add(time.Duration(i)*time.Hour), s)
		a.ContactID = c.ContactID
		c.Activities = append(c.Activities, a)
	}
	return c
}

func typed(c ContactSnapshot, types ...ActivityType) ContactSnapshot {
	for i := range c.Activities {
		if i < len(types) {
			c.Activities[i].Type = types[i]
		}
	}
	return c
}

func TestPipelineStatsEmptyInputHasAllKeysZeroed(t *testing.T) {
	stats := NewAggregator(DefaultTaxonomy()).PipelineStats(nil)

	require.Len(t, stats.ActiveStages, 4)
	require.Len(t, stats.PassiveStages, 4)
	for _, n := range stats.ActiveStages {
		assert.Zero(t, n)
	}
	for _, n := range stats.PassiveStages {
		assert.Zero(t, n)
	}
	assert.Zero(t, stats.ActiveCount)
	assert.Zero(t, stats.PassiveCount)
}

func TestPipelineStatsBucketsByCurrentStage(t *testing.T) {
	contacts := []ContactSnapshot{
		contactWith(),                           // Lead by default
		contactWith(StageLead, StageQualified),  // Qualified
		contactWith(StageProposal, StageClient), // Client
		contactWith(StageClient, StageArchived), // Archived
		contactWith(StageQualifiedOut),          // Qualified Out
		contactWith(StageQualified, "Prospect"), // dropped
	}

	stats := NewAggregator(DefaultTaxonomy()).PipelineStats(contacts)

	assert.Equal(t, map[string]int{
		StageLead: 1, StageQualified: 1, StageProposal: 0, StageClient: 1,
	}, stats.ActiveStages)
	assert.Equal(t, map[string]int{
		StageQualifiedOut: 1, StageLostProposal: 0, StageWorkCompleted: 0, StageArchived: 1,
	}, stats.PassiveStages)
	assert.Equal(t, 3, stats.ActiveCount)
	assert.Equal(t, 2, stats.PassiveCount)
	assert.Equal(t, len(contacts)-1, stats.ActiveCount+stats.PassiveCount)
}

func TestFilterCountsOmitsZeroStages(t *testing.T) {
	contacts := []ContactSnapshot{
		contactWith(StageLead),
		contactWith(StageLead),
		contactWith(StageWorkCompleted),
		contactWith("Prospect"),
	}

	counts := NewAggregator(DefaultTaxonomy()).FilterCounts(contacts)

	assert.Equal(t, map[string]int{StageLead: 2, StageWorkCompleted: 1}, counts.StageCounts)
	for stage, n := range counts.StageCounts {
		assert.Positive(t, n, stage)
	}
}

func TestFilterCountsCountsActivitiesNotContacts(t *testing.T) {
	contacts := []ContactSnapshot{
		typed(contactWith(StageLead, StageLead, StageQualified), ActivityCall, ActivityCall, ActivityEmail),
		typed(contactWith(StageLead), ActivityCall),
		contactWith(),
	}

	counts := NewAggregator(DefaultTaxonomy()).FilterCounts(contacts)

	assert.Equal(t, map[string]int{ActivityCall: 3, ActivityEmail: 1}, counts.ActivityTypeCounts)
	assert.Equal(t, map[string]int{StageLead: 2, StageQualified: 1}, counts.StageCounts)
}

func TestFilterCountsEmptyInputZeroesActivityTypes(t *testing.T) {
	counts := NewAggregator(DefaultTaxonomy()).FilterCounts(nil)

	assert.Empty(t, counts.StageCounts)
	assert.Equal(t, map[string]int{
		ActivityCall: 0, ActivityMeeting: 0, ActivityEmail: 0, ActivityNote: 0,
	}, counts.ActivityTypeCounts)
}

func TestFilterCountsOnlySeesGivenContacts(t *testing.T) {
	matching := typed(contactWith(StageClient), ActivityMeeting)
	other := typed(contactWith(StageLead, StageLead), ActivityCall, ActivityCall)

	agg := NewAggregator(DefaultTaxonomy())
	scoped := agg.FilterCounts([]ContactSnapshot{matching})
	all := agg.FilterCounts([]ContactSnapshot{matching, other})

	assert.Equal(t, map[string]int{ActivityMeeting: 1}, scoped.ActivityTypeCounts)
	assert.Equal(t, 2, all.ActivityTypeCounts[ActivityCall])
	assert.Zero(t, scoped.ActivityTypeCounts[ActivityCall])
}

func TestAggregatorUsesInjectedTaxonomy(t *testing.T) {
	tax := NewTaxonomy([]Stage{"Open"}, []Stage{"Closed"})
	agg := NewAggregator(tax)

	stats := agg.PipelineStats([]ContactSnapshot{contactWith("Open"), contactWith(StageLead)})
	assert.Equal(t, map[string]int{"Open": 1}, stats.ActiveStages)
	assert.Equal(t, map[string]int{"Closed": 0}, stats.PassiveStages)

	counts := agg.FilterCounts([]ContactSnapshot{contactWith("Closed")})
	assert.Equal(t, map[string]int{"Closed": 1}, counts.StageCounts)
	assert.Equal(t, tax.All(), agg.Taxonomy().All())
}
