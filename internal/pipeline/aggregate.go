package pipeline

// PipelineStats is the per-stage breakdown of contacts by current stage.
// Every taxonomy stage is present in its bucket, zero or not.
type PipelineStats struct {
	ActiveStages  map[string]int `json:"active_stages"`
	PassiveStages map[string]int `json:"passive_stages"`
	ActiveCount   int            `json:"active_count"`
	PassiveCount  int            `json:"passive_count"`
}

// FilterCounts backs the filter sidebar. StageCounts only carries stages with
// at least one contact.
type FilterCounts struct {
	StageCounts        map[string]int `json:"stage_counts"`
	ActivityTypeCounts map[string]int `json:"activity_type_counts"`
}

// Aggregator computes statistics over contact snapshots using one taxonomy.
type Aggregator struct {
	taxonomy Taxonomy
}

// NewAggregator returns an aggregator bound to taxonomy.
func NewAggregator(taxonomy Taxonomy) *Aggregator {
	return &Aggregator{taxonomy: taxonomy}
}

// Taxonomy returns the taxonomy the aggregator classifies with.
func (a *Aggregator) Taxonomy() Taxonomy {
	return a.taxonomy
}

// PipelineStats counts contacts by current stage. Contacts whose current stage
// is outside the taxonomy are not counted anywhere.
func (a *Aggregator) PipelineStats(contacts []ContactSnapshot) PipelineStats {
	stats := PipelineStats{
		ActiveStages:  make(map[string]int, len(a.taxonomy.active)),
		PassiveStages: make(map[string]int, len(a.taxonomy.passive)),
	}
	for _, s := range a.taxonomy.active {
		stats.ActiveStages[s] = 0
	}
	for _, s := range a.taxonomy.passive {
		stats.PassiveStages[s] = 0
	}

	for _, c := range contacts {
		stage := c.CurrentStage()
		switch a.taxonomy.Classify(stage) {
		case CategoryActive:
			stats.ActiveStages[stage]++
			stats.ActiveCount++
		case CategoryPassive:
			stats.PassiveStages[stage]++
			stats.PassiveCount++
		}
	}
	return stats
}

// FilterCounts counts contacts per known current stage and activities per type.
// Activity types are counted over every activity of the given contacts. With no
// contacts the fixed activity types are reported as zero.
func (a *Aggregator) FilterCounts(contacts []ContactSnapshot) FilterCounts {
	counts := FilterCounts{
		StageCounts:        make(map[string]int),
		ActivityTypeCounts: make(map[string]int),
	}

	if len(contacts) == 0 {
		for _, t := range ActivityTypes() {
			counts.ActivityTypeCounts[t] = 0
		}
		return counts
	}

	for _, c := range contacts {
		stage := c.CurrentStage()
		if a.taxonomy.Classify(stage) != CategoryUnknown {
			counts.StageCounts[stage]++
		}
		for _, act := range c.Activities {
			counts.ActivityTypeCounts[act.Type]++
		}
	}
	return counts
}
