package models

import (
	"time"
)

// Resume is a candidate resume profile, loaded from a YAML file at startup
// or created via the control surface.
type Resume struct {
	ID       string            `json:"id" yaml:"id" badgerhold:"key"`
	OwnerID  string            `json:"owner_id" yaml:"owner_id" badgerhold:"index"`
	Name     string            `json:"name" yaml:"name"`
	Contact  map[string]string `json:"contact,omitempty" yaml:"contact,omitempty"`
	Sections map[string]string `json:"sections" yaml:"sections"`
	Skills   []string          `json:"skills,omitempty" yaml:"skills,omitempty"`

	// Blueprint caches the analyzer-produced narrative summary of this
	// resume. It is session-stable and expensive to regenerate, so the
	// matcher memoizes it here on first use.
	Blueprint *ResumeBlueprint `json:"blueprint,omitempty" yaml:"-"`

	CreatedAt time.Time `json:"created_at" yaml:"-"`
	UpdatedAt time.Time `json:"updated_at" yaml:"-"`
}

// ResumeBlueprint is the analyzer's structured synthesis of a resume, used
// as input to later decision and tailoring calls.
type ResumeBlueprint struct {
	Summary        string   `json:"summary"`
	CoreStrengths  []string `json:"core_strengths,omitempty"`
	YearsExperience int     `json:"years_experience,omitempty"`
	Domains        []string `json:"domains,omitempty"`
	Technologies   []string `json:"technologies,omitempty"`
	Seniority      string   `json:"seniority,omitempty"`
	Contact        string   `json:"contact,omitempty"`
}

// WithFlexibility returns a copy of the blueprint with the global-flexibility
// statement injected into the summary and contact sections. The candidate is
// modeled as location-flexible, so the statement is injected identically on
// every decision call.
func (b ResumeBlueprint) WithFlexibility() ResumeBlueprint {
	const statement = "Open to relocation and fully flexible on location, time zone, and work arrangement."
	out := b
	if out.Summary != "" {
		out.Summary = out.Summary + " " + statement
	} else {
		out.Summary = statement
	}
	if out.Contact != "" {
		out.Contact = out.Contact + " | " + statement
	} else {
		out.Contact = statement
	}
	return out
}
