package journey

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"clynto/backend/pkg/models"
)

func wf(id string, c models.Category, pct int) models.ActiveWorkflow {
	return models.ActiveWorkflow{ID: id, Category: c, Progress: models.Progress{Percentage: pct}}
}

func TestGroup(t *testing.T) {
	stages := Group([]models.ActiveWorkflow{
		wf("1", models.CategoryOnboarding, 20),
		wf("2", models.CategoryOnboarding, 60),
		wf("3", models.CategoryAtRisk, 45),
		wf("4", models.CategoryRenewal, 90),
	})

	assert.Len(t, stages, 4)
	assert.Equal(t, "onboarding", stages[0].ID)
	assert.Equal(t, 2, stages[0].Count)
	assert.Equal(t, float64(40), stages[0].AverageProgress)

	assert.Equal(t, "Adoption", stages[1].Label)
	assert.Equal(t, 1, stages[1].Count)
	assert.Equal(t, "3", stages[1].Workflows[0].ID)

	assert.Equal(t, 0, stages[3].Count)
	assert.Equal(t, float64(0), stages[3].AverageProgress)
	assert.Empty(t, stages[3].Workflows)
}

func TestGroup_AtRiskLandsInAdoption(t *testing.T) {
	stages := Group([]models.ActiveWorkflow{wf("r1", models.CategoryAtRisk, 10), wf("r2", models.CategoryAtRisk, 30)})
	for _, s := range stages {
		assert.NotEqual(t, "At Risk", s.Label)
		if s.ID == "adoption" {
			assert.Equal(t, 2, s.Count)
			assert.Equal(t, float64(20), s.AverageProgress)
		} else {
			assert.Zero(t, s.Count)
		}
	}
}

func TestNonEmpty(t *testing.T) {
	grouped := NonEmpty(Group([]models.ActiveWorkflow{wf("1", models.CategoryExpansion, 70)}))
	if assert.Len(t, grouped, 1) {
		assert.Equal(t, "expansion", grouped[0].ID)
	}
	assert.Empty(t, NonEmpty(Group(nil)))
}

func TestStageFor(t *testing.T) {
	s, ok := StageFor(models.CategoryAtRisk)
	assert.True(t, ok)
	assert.Equal(t, "adoption", s.ID)

	_, ok = StageFor(models.Category("churned"))
	assert.False(t, ok)
}
