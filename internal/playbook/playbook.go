// Package playbook loads playbook templates and instantiates them into
// workflow instances.
package playbook

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	apperrors "clynto/backend/internal/errors"
	"clynto/backend/pkg/models"
)

//go:embed templates/*.yaml
var builtinFS embed.FS

// Builtin returns the playbook templates shipped with the service.
func Builtin() ([]models.Playbook, error) {
	return Load(builtinFS, "templates")
}

// Load parses every .yaml/.yml file under dir of fsys as a playbook template.
// Templates are returned sorted by id.
func Load(fsys fs.FS, dir string) ([]models.Playbook, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read playbook dir %s: %w", dir, err)
	}

	var playbooks []models.Playbook
	seen := make(map[string]string)
	for _, e := range entries {
		ext := path.Ext(e.Name())
		if e.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		data, err := fs.ReadFile(fsys, path.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", e.Name(), err)
		}
		pb, err := Parse(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", e.Name(), err)
		}
		if other, dup := seen[pb.ID]; dup {
			return nil, fmt.Errorf("%s: playbook id %q already defined in %s", e.Name(), pb.ID, other)
		}
		seen[pb.ID] = e.Name()
		playbooks = append(playbooks, *pb)
	}

	sort.Slice(playbooks, func(i, j int) bool { return playbooks[i].ID < playbooks[j].ID })
	return playbooks, nil
}

// Parse decodes and validates a single YAML template.
func Parse(data []byte) (*models.Playbook, error) {
	var pb models.Playbook
	if err := yaml.Unmarshal(data, &pb); err != nil {
		return nil, fmt.Errorf("failed to decode playbook: %w", err)
	}
	if err := Validate(&pb); err != nil {
		return nil, err
	}
	return &pb, nil
}

// Validate checks a template for the fields instantiation relies on and for
// duplicate phase, task and subtask ids.
func Validate(pb *models.Playbook) error {
	if strings.TrimSpace(pb.ID) == "" {
		return apperrors.NewValidationError("id", "is required")
	}
	if strings.TrimSpace(pb.Name) == "" {
		return apperrors.NewValidationError("name", "is required")
	}
	if !pb.Category.Valid() {
		return apperrors.NewValidationError("category", fmt.Sprintf("unknown category %q", pb.Category))
	}
	if len(pb.Phases) == 0 {
		return apperrors.NewValidationError("phases", "at least one phase is required")
	}

	ids := make(map[string]bool)
	claim := func(kind, id string) error {
		if id == "" {
			return apperrors.NewValidationError(kind, "id is required")
		}
		if ids[id] {
			return apperrors.NewValidationError(kind, fmt.Sprintf("duplicate id %q", id))
		}
		ids[id] = true
		return nil
	}
	for _, phase := range pb.Phases {
		if err := claim("phase", phase.ID); err != nil {
			return err
		}
		for _, task := range phase.Tasks {
			if err := claim("task", task.ID); err != nil {
				return err
			}
			if task.Status != "" && !task.Status.Valid() {
				return apperrors.NewValidationError("task", fmt.Sprintf("task %s has unknown status %q", task.ID, task.Status))
			}
			for _, st := range task.SubTasks {
				if err := claim("subtask", st.ID); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// Instantiate creates a fresh workflow instance of pb for account. The phase
// tree is deep-copied and every task starts pending.
func Instantiate(pb *models.Playbook, tenantID string, account models.AccountRef, now time.Time) *models.WorkflowInstance {
	return &models.WorkflowInstance{
		ID:           uuid.New().String(),
		TenantID:     tenantID,
		Account:      account,
		Playbook:     models.PlaybookRef{ID: pb.ID, Name: pb.Name},
		Category:     pb.Category,
		Phases:       clonePhases(pb.Phases),
		LastActivity: now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func clonePhases(src []models.Phase) []models.Phase {
	phases := models.ClonePhases(src)
	for i := range phases {
		for j := range phases[i].Tasks {
			t := &phases[i].Tasks[j]
			t.Status = models.TaskStatusPending
			for k := range t.SubTasks {
				t.SubTasks[k].Completed = false
			}
		}
	}
	return phases
}
