// Copyright 2025 James Ross
// Package hierarchy implements the parameter provider (C1): a pure,
// stateless function that yields the ordered list of filter values to try
// at a given layer of the enumeration hierarchy. Every layer except
// skill_subcategories is static configuration data; skill_subcategories is
// the one layer whose output depends on the value already bound for
// skill_categories in the caller's parameter set.
package hierarchy

import "github.com/goldilockshq/profile-crawler/internal/paramset"

// Layer names, in traversal order. The producer walks this slice by index;
// Names[i] is passed to ValuesForLayer at recursion depth i.
var Names = []string{
	"last_modified_date",
	"completion_score",
	"current_job_seniorities",
	"current_job_functions",
	"skill_categories",
	"skill_subcategories",
	"cities",
	"profile_tags",
}

// StaticCountry is the root binding applied once before the first layer.
// The search space is scoped to a single country for the lifetime of a run;
// widening it is a configuration change, not a code change.
var StaticCountry = paramset.FilterValue{
	{Value: []string{"United Kingdom"}, Operator: paramset.OpIsOneOf},
}

func oneOf(values ...string) paramset.FilterValue {
	return paramset.FilterValue{{Value: values, Operator: paramset.OpIsOneOf}}
}

func dateRange(since, before string) paramset.FilterValue {
	return paramset.FilterValue{
		{Value: since, Operator: paramset.OpSince},
		{Value: before, Operator: paramset.OpBefore},
	}
}

func scoreRange(gt, lt string) paramset.FilterValue {
	return paramset.FilterValue{
		{Value: gt, Operator: paramset.OpGreaterThan},
		{Value: lt, Operator: paramset.OpLessThan},
	}
}

// dateRanges holds six trailing monthly windows ending 2025-05-31 and
// reaching back to 2024-12-01. Regenerating this table is a configuration
// change; it is not derived at runtime so that a run's search space is
// reproducible regardless of the clock on the machine that launches it.
var dateRanges = []paramset.FilterValue{
	dateRange("2025-05-01", "2025-05-31"),
	dateRange("2025-04-01", "2025-04-30"),
	dateRange("2025-03-01", "2025-03-31"),
	dateRange("2025-02-01", "2025-02-28"),
	dateRange("2025-01-01", "2025-01-31"),
	dateRange("2024-12-01", "2024-12-31"),
}

var completionScoreRanges = []paramset.FilterValue{
	scoreRange("0.4", "0.45"),
	scoreRange("0.45", "0.50"),
	scoreRange("0.50", "0.55"),
	scoreRange("0.55", "0.60"),
	scoreRange("0.6", "1.0"),
}

var jobSeniorities = []paramset.FilterValue{
	oneOf("Board Member"),
	oneOf("C-Level"),
	oneOf("VP"),
	oneOf("Director"),
	oneOf("Manager"),
	oneOf("Individual Contributor"),
	oneOf("Other"),
}

var jobFunctions = []paramset.FilterValue{
	oneOf("Accounting"),
	oneOf("Business Development"),
	oneOf("Consulting"),
	oneOf("Customer Success and Support"),
	oneOf("Engineering"),
	oneOf("Finance"),
	oneOf("Human Resources"),
	oneOf("Information Technology"),
	oneOf("Legal"),
	oneOf("Marketing"),
	oneOf("Operations"),
	oneOf("Product Management"),
	oneOf("Sales"),
}

var skillCategories = []paramset.FilterValue{
	oneOf("Administration"),
	oneOf("Agriculture"),
	oneOf("Architecture and Construction"),
	oneOf("Communication and Media"),
	oneOf("Customer and Client Success"),
	oneOf("Design"),
	oneOf("Economics and Social Studies"),
	oneOf("Education"),
	oneOf("Engineering"),
	oneOf("Finance"),
	oneOf("Healthcare"),
	oneOf("Hospitality and Food Services"),
	oneOf("Human Resources (HR)"),
	oneOf("Information Technology (IT)"),
	oneOf("Legal, Regulation, and Compliance"),
	oneOf("Maintenance and Repair Services"),
	oneOf("Management"),
	oneOf("Manufacturing"),
	oneOf("Marketing and Public Relations"),
	oneOf("Sales"),
	oneOf("Science and Research"),
	oneOf("Transportation"),
}

// skillHierarchy maps a skill category to its subcategories. Only
// categories with a documented taxonomy in the source enums carry entries;
// the rest yield an empty subcategory list, which prunes that branch of
// the tree at the skill_subcategories layer.
var skillHierarchy = map[string][]string{
	"Administration": {
		"Data Entry and Transcription",
		"Document Management",
		"Office Management and Coordination",
		"Office Productivity Software",
	},
	"Engineering": {
		"Aerospace Engineering",
		"Biomedical Engineering",
		"Chemical Engineering",
		"Computer-Aided Design (CAD) and Computer-Aided Manufacturing (CAM)",
		"Electrical Engineering",
		"Mechanical Engineering",
		"Systems Engineering",
	},
	"Information Technology (IT)": {
		".NET Technology",
		"Augmented Reality and Virtual Reality (AR/VR)",
		"Business Intelligence and Analytics",
		"Cloud Computing & Virtualization",
		"Cybersecurity",
		"Data Science and Analytics",
		"DevOps and Automation",
		"Machine Learning",
		"Networking and Communications",
		"Software Development",
		"Web Development and Design",
	},
}

var citiesToggle = []paramset.FilterValue{
	{{Value: []string{"London"}, Operator: paramset.OpIsOneOf}},
	{{Value: []string{"London"}, Operator: paramset.OpIsNotOneOf}},
}

var profileTagsToggle = []paramset.FilterValue{
	{{Value: []string{"Profile Has Phone", "Profile Has Address", "Profile Has Email"}, Operator: paramset.OpIsOneOf}},
	{{Value: []string{"Profile Has Phone", "Profile Has Address", "Profile Has Email"}, Operator: paramset.OpIsNotOneOf}},
}

// ValuesForLayer returns the ordered candidate values for layerName given
// the parameters already bound by the caller. Order is deterministic and
// is the traversal order the explorer follows depth-first.
func ValuesForLayer(layerName string, current paramset.Set) []paramset.FilterValue {
	switch layerName {
	case "last_modified_date":
		return dateRanges
	case "completion_score":
		return completionScoreRanges
	case "current_job_seniorities":
		return jobSeniorities
	case "current_job_functions":
		return jobFunctions
	case "skill_categories":
		return skillCategories
	case "skill_subcategories":
		return subcategoriesFor(current)
	case "cities":
		return citiesToggle
	case "profile_tags":
		return profileTagsToggle
	default:
		return nil
	}
}

// subcategoriesFor resolves the skill_subcategories layer, the one
// context-dependent layer in the hierarchy. It looks at the value already
// bound under skill_categories and returns that category's subcategory
// list, or nil if nothing is bound or the category has none on record.
func subcategoriesFor(current paramset.Set) []paramset.FilterValue {
	bound, ok := current.Get("skill_categories")
	if !ok || len(bound) == 0 {
		return nil
	}
	values, ok := bound[0].Value.([]string)
	if !ok || len(values) == 0 {
		return nil
	}
	subs, ok := skillHierarchy[values[0]]
	if !ok || len(subs) == 0 {
		return nil
	}
	out := make([]paramset.FilterValue, 0, len(subs))
	for _, sub := range subs {
		out = append(out, oneOf(sub))
	}
	return out
}
