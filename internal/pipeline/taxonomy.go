// Package pipeline derives a contact's pipeline stage from its activity log
// and aggregates stage and activity statistics over sets of contacts.
//
// Nothing here touches storage: callers hand in immutable snapshots and get
// plain values back, so the same rules serve HTTP, MCP and background callers.
package pipeline

// Stage is a pipeline stage label as stored on an activity. Stored labels are
// free text; only the eight taxonomy stages are counted by the aggregator.
type Stage = string

// Active stages.
const (
	StageLead      Stage = "Lead"
	StageQualified Stage = "Qualified"
	StageProposal  Stage = "Proposal"
	StageClient    Stage = "Client"
)

// Passive stages.
const (
	StageQualifiedOut  Stage = "Qualified Out"
	StageLostProposal  Stage = "Lost Proposal"
	StageWorkCompleted Stage = "Work Completed"
	StageArchived      Stage = "Archived"
)

// DefaultStage is the stage of a contact with no activities.
const DefaultStage = StageLead

// Category classifies a stage within the taxonomy.
type Category int

const (
	CategoryUnknown Category = iota
	CategoryActive
	CategoryPassive
)

func (c Category) String() string {
	switch c {
	case CategoryActive:
		return "active"
	case CategoryPassive:
		return "passive"
	default:
		return "unknown"
	}
}

// Taxonomy is the fixed partition of known stages into active and passive.
// Both statistics operations read it, so the two buckets cannot drift apart.
type Taxonomy struct {
	active  []Stage
	passive []Stage
	index   map[Stage]Category
}

// NewTaxonomy builds a taxonomy from two disjoint stage lists. Order is kept
// for All, Active and Passive.
func NewTaxonomy(active, passive []Stage) Taxonomy {
	t := Taxonomy{
		active:  append([]Stage(nil), active...),
		passive: append([]Stage(nil), passive...),
		index:   make(map[Stage]Category, len(active)+len(passive)),
	}
	for _, s := range t.active {
		t.index[s] = CategoryActive
	}
	for _, s := range t.passive {
		t.index[s] = CategoryPassive
	}
	return t
}

// DefaultTaxonomy returns the CRM's stage taxonomy.
func DefaultTaxonomy() Taxonomy {
	return NewTaxonomy(
		[]Stage{StageLead, StageQualified, StageProposal, StageClient},
		[]Stage{StageQualifiedOut, StageLostProposal, StageWorkCompleted, StageArchived},
	)
}

// Classify returns the category of stage. Matching is exact.
func (t Taxonomy) Classify(stage string) Category {
	return t.index[stage]
}

// Active returns the active stages in order.
func (t Taxonomy) Active() []Stage { return append([]Stage(nil), t.active...) }

// Passive returns the passive stages in order.
func (t Taxonomy) Passive() []Stage { return append([]Stage(nil), t.passive...) }

// All returns active stages followed by passive stages.
func (t Taxonomy) All() []Stage {
	out := make([]Stage, 0, len(t.active)+len(t.passive))
	out = append(out, t.active...)
	return append(out, t.passive...)
}

// IsActive reports whether stage is one of the active stages.
func (t Taxonomy) IsActive(stage string) bool {
	return t.Classify(stage) == CategoryActive
}

// ActivityType is the kind of interaction an activity records.
type ActivityType = string

const (
	ActivityCall    ActivityType = "Call"
	ActivityMeeting ActivityType = "Meeting"
	ActivityEmail   ActivityType = "Email"
	ActivityNote    ActivityType = "Note"
)

// DefaultActivityType is used when an activity is created without a type.
const DefaultActivityType = ActivityNote

// ActivityTypes returns the fixed activity types in display order.
func ActivityTypes() []ActivityType {
	return []ActivityType{ActivityCall, ActivityMeeting, ActivityEmail, ActivityNote}
}

// IsValidActivityType reports whether t is one of the fixed activity types.
func IsValidActivityType(t string) bool {
	for _, known := range ActivityTypes() {
		if t == known {
			return true
		}
	}
	return false
}
