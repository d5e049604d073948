// Copyright 2025 James Ross
package hierarchy

import (
	"testing"

	"github.com/goldilockshq/profile-crawler/internal/paramset"
)

func TestValuesForLayerStaticLayers(t *testing.T) {
	cases := []struct {
		layer string
		want  int
	}{
		{"last_modified_date", 6},
		{"completion_score", 5},
		{"current_job_seniorities", 7},
		{"current_job_functions", 13},
		{"skill_categories", 22},
		{"cities", 2},
		{"profile_tags", 2},
	}
	for _, tc := range cases {
		got := ValuesForLayer(tc.layer, paramset.New())
		if len(got) != tc.want {
			t.Errorf("%s: got %d values, want %d", tc.layer, len(got), tc.want)
		}
	}
}

func TestSkillSubcategoriesEmptyWithoutBoundCategory(t *testing.T) {
	got := ValuesForLayer("skill_subcategories", paramset.New())
	if len(got) != 0 {
		t.Fatalf("expected no subcategories without a bound category, got %d", len(got))
	}
}

func TestSkillSubcategoriesDependOnBoundCategory(t *testing.T) {
	bound := paramset.New().With("skill_categories", paramset.FilterValue{
		{Value: []string{"Engineering"}, Operator: paramset.OpIsOneOf},
	})
	got := ValuesForLayer("skill_subcategories", bound)
	if len(got) == 0 {
		t.Fatalf("expected subcategories for Engineering")
	}
}

func TestSkillSubcategoriesEmptyForCategoryWithoutTaxonomy(t *testing.T) {
	bound := paramset.New().With("skill_categories", paramset.FilterValue{
		{Value: []string{"Agriculture"}, Operator: paramset.OpIsOneOf},
	})
	got := ValuesForLayer("skill_subcategories", bound)
	if len(got) != 0 {
		t.Fatalf("expected no subcategories recorded for Agriculture, got %d", len(got))
	}
}

func TestUnknownLayerReturnsNil(t *testing.T) {
	if got := ValuesForLayer("not_a_real_layer", paramset.New()); got != nil {
		t.Fatalf("expected nil for unknown layer, got %v", got)
	}
}
