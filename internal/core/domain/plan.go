package domain

// TraceType identifies how a plan's duration was derived.
type TraceType string

const (
	// TraceTypeStandard marks a duration produced by the full formula.
	TraceTypeStandard TraceType = "standard"

	// TraceTypeCustom marks an explicit override that skipped the formula.
	TraceTypeCustom TraceType = "custom"
)

// PlanTrace is the audit trail of a duration calculation. Values holds every
// intermediate number keyed by a stable label so the derivation can be
// replayed after the fact.
type PlanTrace struct {
	Type   TraceType          `json:"type"`
	Values map[string]float64 `json:"values"`
}

// InterviewPlan is the immutable schedule for one session, produced once at
// session start by the planner.
type InterviewPlan struct {
	RoleTitle          string    `json:"role_title"`
	SkillList          []string  `json:"skill_list"`
	ProjectNames       []string  `json:"project_names"`
	PlannedMinutes     int       `json:"planned_minutes"`
	MaxExtendedMinutes int       `json:"max_extended_minutes"`
	CalculationTrace   PlanTrace `json:"calculation_trace"`
}

// Topics returns the questioning order: skills first, then projects.
func (p InterviewPlan) Topics() []string {
	topics := make([]string, 0, len(p.SkillList)+len(p.ProjectNames))
	topics = append(topics, p.SkillList...)
	topics = append(topics, p.ProjectNames...)
	return topics
}

// IsProject reports whether a topic came from the project list rather than
// the skill list. Topic transitions are phrased differently for each.
func (p InterviewPlan) IsProject(topic string) bool {
	for _, name := range p.ProjectNames {
		if name == topic {
			return true
		}
	}
	return false
}

// PlannedSeconds returns the base budget in seconds.
func (p InterviewPlan) PlannedSeconds() float64 {
	return float64(p.PlannedMinutes) * 60
}

// ExtendedSeconds returns the hard ceiling in seconds: the planned budget
// plus the 15% extension headroom. Extension checks compare elapsed time
// against this value, not against MaxExtendedMinutes, which is the floored
// minute figure reported in the trace.
func (p InterviewPlan) ExtendedSeconds() float64 {
	return p.PlannedSeconds() * 1.15
}
