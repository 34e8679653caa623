package models

// RequirementLevel is the ordered strength of a hiring requirement, inferred
// by the analyzer from a job description.
type RequirementLevel string

const (
	RequirementNonNegotiable     RequirementLevel = "Non-Negotiable"
	RequirementCore              RequirementLevel = "Core Requirement"
	RequirementStronglyPreferred RequirementLevel = "Strongly Preferred"
	RequirementLowPriority       RequirementLevel = "Low Priority"
)

// RequirementLevels lists the allowed levels from strongest to weakest.
var RequirementLevels = []RequirementLevel{
	RequirementNonNegotiable,
	RequirementCore,
	RequirementStronglyPreferred,
	RequirementLowPriority,
}

// Evaluation categories in the priorities blueprint. The set is fixed; the
// analyzer must classify every category.
const (
	CategoryExperience      = "experience"
	CategoryDomainAlignment = "domain_alignment"
	CategoryTechMatch       = "tech_match"
	CategorySeniority       = "seniority"
	CategoryLogistics       = "logistics" // location/availability
	CategoryCompensation    = "compensation"
	CategoryCulture         = "culture"
)

// PriorityCategories lists the fixed evaluation category set in report order.
var PriorityCategories = []string{
	CategoryExperience,
	CategoryDomainAlignment,
	CategoryTechMatch,
	CategorySeniority,
	CategoryLogistics,
	CategoryCompensation,
	CategoryCulture,
}

// PrioritiesBlueprint maps each evaluation category to its inferred
// requirement level for one job description.
type PrioritiesBlueprint struct {
	Levels map[string]RequirementLevel `json:"levels"`
}

// OverrideLocationFlexibility downgrades the logistics category from
// Non-Negotiable to Strongly Preferred. The candidate is modeled as globally
// flexible, so the override is applied identically before every decision
// call. Pure function: the input blueprint is not mutated.
func OverrideLocationFlexibility(in PrioritiesBlueprint) PrioritiesBlueprint {
	out := PrioritiesBlueprint{Levels: make(map[string]RequirementLevel, len(in.Levels))}
	for category, level := range in.Levels {
		if category == CategoryLogistics && level == RequirementNonNegotiable {
			level = RequirementStronglyPreferred
		}
		out.Levels[category] = level
	}
	return out
}
