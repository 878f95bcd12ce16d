package services

import (
	"context"
	"time"

	apperrors "clynto/backend/internal/errors"
	"clynto/backend/internal/logging"
	"clynto/backend/internal/playbook"
	"clynto/backend/internal/repository"
	"clynto/backend/internal/retry"
	"clynto/backend/pkg/models"
)

// PlaybookService manages the playbook template catalog.
type PlaybookService struct {
	store  repository.PlaybookStore
	logger *logging.Logger
	policy retry.Policy
}

// NewPlaybookService creates a new PlaybookService.
func NewPlaybookService(store repository.PlaybookStore, logger *logging.Logger, policy retry.Policy) *PlaybookService {
	return &PlaybookService{store: store, logger: logger, policy: policy}
}

func (s *PlaybookService) List(ctx context.Context) ([]models.Playbook, error) {
	return retry.Value(ctx, s.policy, "list playbooks", func(ctx context.Context) ([]models.Playbook, error) {
		return s.store.ListPlaybooks(ctx)
	})
}

func (s *PlaybookService) Get(ctx context.Context, id string) (*models.Playbook, error) {
	return retry.Value(ctx, s.policy, "get playbook", func(ctx context.Context) (*models.Playbook, error) {
		return s.store.GetPlaybook(ctx, id)
	})
}

// Save validates pb and stores it, replacing any template with the same id.
func (s *PlaybookService) Save(ctx context.Context, pb *models.Playbook) error {
	if err := playbook.Validate(pb); err != nil {
		return err
	}
	for i := range pb.Phases {
		for j := range pb.Phases[i].Tasks {
			pb.Phases[i].Tasks[j].Status = models.TaskStatusPending
		}
	}
	if err := retry.Do(ctx, s.policy, "save playbook", func(ctx context.Context) error {
		return s.store.SavePlaybook(ctx, pb)
	}); err != nil {
		return err
	}
	s.logger.Info("saved playbook", "playbook_id", pb.ID)
	return nil
}

func (s *PlaybookService) Delete(ctx context.Context, id string) error {
	return retry.Do(ctx, s.policy, "delete playbook", func(ctx context.Context) error {
		return s.store.DeletePlaybook(ctx, id)
	})
}

// SeedBuiltin stores every shipped template that is not in the catalog yet.
// Existing templates are left untouched. It returns the number added.
func (s *PlaybookService) SeedBuiltin(ctx context.Context) (int, error) {
	builtin, err := playbook.Builtin()
	if err != nil {
		return 0, err
	}
	added := 0
	for i := range builtin {
		pb := &builtin[i]
		_, err := s.Get(ctx, pb.ID)
		if err == nil {
			continue
		}
		if !apperrors.Is(err, apperrors.ErrNotFound) {
			return added, err
		}
		now := time.Now().UTC()
		pb.CreatedAt, pb.UpdatedAt = now, now
		if err := s.Save(ctx, pb); err != nil {
			return added, err
		}
		added++
	}
	s.logger.Info("seeded playbook templates", "added", added, "available", len(builtin))
	return added, nil
}
