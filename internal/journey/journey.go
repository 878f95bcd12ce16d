// Package journey groups active workflows into the four customer lifecycle
// stages shown on the journey view.
package journey

import "clynto/backend/pkg/models"

// Stage is a fixed lifecycle stage and the workflow category it collects.
type Stage struct {
	ID       string          `json:"id"`
	Label    string          `json:"label"`
	Category models.Category `json:"category"`
}

// Stages are the lifecycle stages in display order. Adoption collects the
// at_risk category; there is no separate "At Risk" stage.
var Stages = []Stage{
	{ID: "onboarding", Label: "Onboarding", Category: models.CategoryOnboarding},
	{ID: "adoption", Label: "Adoption", Category: models.CategoryAtRisk},
	{ID: "renewal", Label: "Renewal", Category: models.CategoryRenewal},
	{ID: "expansion", Label: "Expansion", Category: models.CategoryExpansion},
}

// StageFor returns the stage that collects category c.
func StageFor(c models.Category) (Stage, bool) {
	for _, s := range Stages {
		if s.Category == c {
			return s, true
		}
	}
	return Stage{}, false
}

// StageSummary is one stage bucket with its aggregates.
type StageSummary struct {
	Stage
	Count           int                     `json:"count"`
	AverageProgress float64                 `json:"average_progress"`
	Workflows       []models.ActiveWorkflow `json:"workflows"`
}

// Group buckets workflows by stage. Every stage is returned in order; empty
// stages have a zero count and zero average.
func Group(workflows []models.ActiveWorkflow) []StageSummary {
	out := make([]StageSummary, len(Stages))
	index := make(map[models.Category]int, len(Stages))
	for i, s := range Stages {
		out[i] = StageSummary{Stage: s, Workflows: []models.ActiveWorkflow{}}
		index[s.Category] = i
	}

	sums := make([]int, len(Stages))
	for _, w := range workflows {
		i, ok := index[w.Category]
		if !ok {
			continue
		}
		out[i].Workflows = append(out[i].Workflows, w)
		out[i].Count++
		sums[i] += w.Progress.Percentage
	}
	for i := range out {
		if out[i].Count > 0 {
			out[i].AverageProgress = float64(sums[i]) / float64(out[i].Count)
		}
	}
	return out
}

// NonEmpty drops stages without workflows, as the grouped view does.
func NonEmpty(stages []StageSummary) []StageSummary {
	out := make([]StageSummary, 0, len(stages))
	for _, s := range stages {
		if s.Count > 0 {
			out = append(out, s)
		}
	}
	return out
}
