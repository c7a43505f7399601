// Package planner derives the planned duration of an interview session from
// the job requirements and the candidate profile. The calculation is pure
// and records every intermediate value in the plan's audit trail.
package planner

import (
	"math"
	"strings"

	"github.com/tjfontaine/interview-conductor/internal/core/domain"
)

const (
	baseDurationMinutes = 30.0
	skillTimeAllocation = 2.5
	projectTimeBonus    = 1.5
	experienceTimeBonus = 2.0
	extensionPercent    = 0.15
	minDurationMinutes  = 15.0
	maxDurationMinutes  = 75.0
)

// roleMultipliers is scanned in order; the first key that is a
// case-insensitive substring of the role title wins. The ordering is load
// bearing: "Senior Software Engineer" matches "software engineer" before
// "senior" and resolves to 1.0.
var roleMultipliers = []struct {
	key        string
	multiplier float64
}{
	{"junior", 0.7},
	{"software engineer", 1.0},
	{"senior", 1.3},
	{"lead", 1.5},
	{"principal", 1.7},
	{"architect", 1.8},
	{"manager", 1.4},
	{"director", 1.6},
}

// Input is the planning request: the job's role and skills plus the
// candidate's project and experience counts.
type Input struct {
	RoleTitle       string
	Skills          []string
	Projects        []string
	ExperienceCount int

	// OverrideMinutes, when positive, skips the formula entirely and is
	// used verbatim.
	OverrideMinutes int
}

// Build produces the immutable session plan. Duplicate skills are dropped
// preserving first occurrence so the topic loop never revisits a topic.
func Build(in Input) domain.InterviewPlan {
	skills := dedupe(in.Skills)
	projects := dedupe(in.Projects)

	plan := domain.InterviewPlan{
		RoleTitle:    in.RoleTitle,
		SkillList:    skills,
		ProjectNames: projects,
	}

	if in.OverrideMinutes > 0 {
		plan.PlannedMinutes = in.OverrideMinutes
		plan.MaxExtendedMinutes = extendedMinutes(in.OverrideMinutes)
		plan.CalculationTrace = domain.PlanTrace{
			Type:   domain.TraceTypeCustom,
			Values: map[string]float64{"duration": float64(in.OverrideMinutes)},
		}
		return plan
	}

	values := make(map[string]float64)

	duration := baseDurationMinutes
	values["base_duration"] = baseDurationMinutes

	multiplier := roleMultiplier(in.RoleTitle)
	duration *= multiplier
	values["role_multiplier"] = multiplier
	values["after_role_adjustment"] = duration

	skillTime := float64(len(skills)) * skillTimeAllocation
	duration += skillTime
	values["skills_count"] = float64(len(skills))
	values["skill_time_added"] = skillTime
	values["after_skill_adjustment"] = duration

	complexity := float64(len(projects))*projectTimeBonus + float64(in.ExperienceCount)*experienceTimeBonus
	duration += complexity
	values["complexity_bonus"] = complexity
	values["projects_count"] = float64(len(projects))
	values["experience_count"] = float64(in.ExperienceCount)

	duration = math.Max(minDurationMinutes, math.Min(maxDurationMinutes, duration))

	plan.PlannedMinutes = int(duration)
	plan.MaxExtendedMinutes = extendedMinutes(plan.PlannedMinutes)
	values["final_duration"] = float64(plan.PlannedMinutes)
	values["max_allowed_with_extension"] = float64(plan.MaxExtendedMinutes)

	plan.CalculationTrace = domain.PlanTrace{
		Type:   domain.TraceTypeStandard,
		Values: values,
	}
	return plan
}

func roleMultiplier(roleTitle string) float64 {
	role := strings.ToLower(roleTitle)
	for _, entry := range roleMultipliers {
		if strings.Contains(role, entry.key) {
			return entry.multiplier
		}
	}
	return 1.0
}

func extendedMinutes(planned int) int {
	return int(math.Floor(float64(planned) * (1 + extensionPercent)))
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
