package workflow

import (
	"strings"

	"clynto/backend/pkg/models"
)

// CategoryAll disables the category predicate of Filter.
const CategoryAll = "all"

// Filter keeps workflows whose account or playbook name contains search
// (case-insensitive) and whose category equals category. "all" or an empty
// category matches every category.
func Filter(list []models.ActiveWorkflow, category, search string) []models.ActiveWorkflow {
	needle := strings.ToLower(strings.TrimSpace(search))
	out := make([]models.ActiveWorkflow, 0, len(list))
	for _, w := range list {
		if category != "" && category != CategoryAll && string(w.Category) != category {
			continue
		}
		if needle != "" &&
			!strings.Contains(strings.ToLower(w.Account.Name), needle) &&
			!strings.Contains(strings.ToLower(w.Playbook.Name), needle) {
			continue
		}
		out = append(out, w)
	}
	return out
}
