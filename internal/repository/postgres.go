package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	apperrors "clynto/backend/internal/errors"
	"clynto/backend/pkg/models"
)

// PostgresStore is the PostgreSQL implementation of Repository.
type PostgresStore struct {
	db  *pgxpool.Pool
	sql sq.StatementBuilderType
}

var _ Repository = (*PostgresStore)(nil)

// NewPostgresStore creates a PostgresStore on an open pool.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{
		db:  db,
		sql: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// Connect opens a pool for dsn and verifies it.
func Connect(ctx context.Context, dsn string, maxConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, classify("connect", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, classify("ping", err)
	}
	return pool, nil
}

// classify maps driver errors onto the application taxonomy.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "23505":
			return apperrors.NewConflictError("%s: duplicate key (%s)", op, pgErr.ConstraintName)
		case pgErr.Code == "40001", pgErr.Code == "40P01", strings.HasPrefix(pgErr.Code, "08"), pgErr.Code == "57P01":
			return apperrors.NewTransientError(op, err)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) || pgconn.SafeToRetry(err) || pgconn.Timeout(err) {
		return apperrors.NewTransientError(op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func notFound(err error, resource, id string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NewNotFoundError(resource, id)
	}
	return classify("get "+resource, err)
}

func (s *PostgresStore) exec(ctx context.Context, op string, b sq.Sqlizer) (pgconn.CommandTag, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return pgconn.CommandTag{}, fmt.Errorf("%s: build query: %w", op, err)
	}
	tag, err := s.db.Exec(ctx, query, args...)
	return tag, classify(op, err)
}

func (s *PostgresStore) query(ctx context.Context, op string, b sq.Sqlizer) (pgx.Rows, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s: build query: %w", op, err)
	}
	rows, err := s.db.Query(ctx, query, args...)
	return rows, classify(op, err)
}

func (s *PostgresStore) queryRow(ctx context.Context, b sq.Sqlizer) (pgx.Row, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	return s.db.QueryRow(ctx, query, args...), nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return classify("ping", s.db.Ping(ctx))
}

func (s *PostgresStore) Close() { s.db.Close() }

// Tenants

func (s *PostgresStore) GetTenantByDomain(ctx context.Context, domain string) (*models.Tenant, error) {
	row, err := s.queryRow(ctx, s.sql.
		Select("id", "name", "domain", "created_at", "updated_at").
		From("tenants").
		Where("lower(domain) = lower(?)", domain))
	if err != nil {
		return nil, err
	}
	var t models.Tenant
	if err := row.Scan(&t.ID, &t.Name, &t.Domain, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, notFound(err, "tenant", domain)
	}
	return &t, nil
}

func (s *PostgresStore) CreateTenant(ctx context.Context, t *models.Tenant) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = now
	}
	_, err := s.exec(ctx, "create tenant", s.sql.
		Insert("tenants").
		Columns("id", "name", "domain", "created_at", "updated_at").
		Values(t.ID, t.Name, t.Domain, t.CreatedAt, t.UpdatedAt))
	return err
}

// Playbooks

var playbookColumns = []string{"id", "name", "category", "description", "phases", "created_at", "updated_at"}

func scanPlaybook(row pgx.Row) (*models.Playbook, error) {
	var (
		pb     models.Playbook
		phases []byte
	)
	if err := row.Scan(&pb.ID, &pb.Name, &pb.Category, &pb.Description, &phases, &pb.CreatedAt, &pb.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(phases, &pb.Phases); err != nil {
		return nil, fmt.Errorf("decode phases of playbook %s: %w", pb.ID, err)
	}
	return &pb, nil
}

func (s *PostgresStore) ListPlaybooks(ctx context.Context) ([]models.Playbook, error) {
	rows, err := s.query(ctx, "list playbooks", s.sql.Select(playbookColumns...).From("playbooks").OrderBy("id"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]models.Playbook, 0)
	for rows.Next() {
		pb, err := scanPlaybook(rows)
		if err != nil {
			return nil, classify("list playbooks", err)
		}
		out = append(out, *pb)
	}
	return out, classify("list playbooks", rows.Err())
}

func (s *PostgresStore) GetPlaybook(ctx context.Context, id string) (*models.Playbook, error) {
	row, err := s.queryRow(ctx, s.sql.Select(playbookColumns...).From("playbooks").Where(sq.Eq{"id": id}))
	if err != nil {
		return nil, err
	}
	pb, err := scanPlaybook(row)
	if err != nil {
		return nil, notFound(err, "playbook", id)
	}
	return pb, nil
}

func (s *PostgresStore) SavePlaybook(ctx context.Context, pb *models.Playbook) error {
	phases, err := json.Marshal(pb.Phases)
	if err != nil {
		return fmt.Errorf("encode phases: %w", err)
	}
	now := time.Now().UTC()
	if pb.CreatedAt.IsZero() {
		pb.CreatedAt = now
	}
	pb.UpdatedAt = now
	_, err = s.exec(ctx, "save playbook", s.sql.
		Insert("playbooks").
		Columns(playbookColumns...).
		Values(pb.ID, pb.Name, string(pb.Category), pb.Description, phases, pb.CreatedAt, pb.UpdatedAt).
		Suffix(`ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			category = EXCLUDED.category,
			description = EXCLUDED.description,
			phases = EXCLUDED.phases,
			updated_at = EXCLUDED.updated_at`))
	return err
}

func (s *PostgresStore) DeletePlaybook(ctx context.Context, id string) error {
	tag, err := s.exec(ctx, "delete playbook", s.sql.Delete("playbooks").Where(sq.Eq{"id": id}))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NewNotFoundError("playbook", id)
	}
	return nil
}

// Awaiting accounts

var awaitingColumns = []string{"tenant_id", "id", "name", "segment", "arr", "health_score", "source", "suggested_stage", "created_at"}

func scanAwaiting(row pgx.Row) (*models.AwaitingAccount, error) {
	var a models.AwaitingAccount
	err := row.Scan(&a.TenantID, &a.ID, &a.Name, &a.Segment, &a.ARR, &a.HealthScore, &a.Source, &a.SuggestedStage, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *PostgresStore) ListAwaiting(ctx context.Context, tenantID string) ([]models.AwaitingAccount, error) {
	rows, err := s.query(ctx, "list awaiting accounts", s.sql.
		Select(awaitingColumns...).
		From("awaiting_accounts").
		Where(sq.Eq{"tenant_id": tenantID}).
		OrderBy("created_at", "id"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]models.AwaitingAccount, 0)
	for rows.Next() {
		a, err := scanAwaiting(rows)
		if err != nil {
			return nil, classify("list awaiting accounts", err)
		}
		out = append(out, *a)
	}
	return out, classify("list awaiting accounts", rows.Err())
}

func (s *PostgresStore) GetAwaiting(ctx context.Context, tenantID, id string) (*models.AwaitingAccount, error) {
	row, err := s.queryRow(ctx, s.sql.
		Select(awaitingColumns...).
		From("awaiting_accounts").
		Where(sq.Eq{"tenant_id": tenantID, "id": id}))
	if err != nil {
		return nil, err
	}
	a, err := scanAwaiting(row)
	if err != nil {
		return nil, notFound(err, "awaiting account", id)
	}
	return a, nil
}

func (s *PostgresStore) CreateAwaiting(ctx context.Context, a *models.AwaitingAccount) error {
	_, err := s.exec(ctx, "create awaiting account", s.sql.
		Insert("awaiting_accounts").
		Columns(awaitingColumns...).
		Values(a.TenantID, a.ID, a.Name, a.Segment, a.ARR, a.HealthScore, string(a.Source), string(a.SuggestedStage), a.CreatedAt))
	return err
}

// Workflows

var workflowColumns = []string{
	"tenant_id", "id", "account_id", "account_name", "segment", "arr", "health_score",
	"playbook_id", "playbook_name", "category", "phases", "paused",
	"last_activity", "created_at", "updated_at",
}

func workflowValues(w *models.WorkflowInstance) ([]any, error) {
	phases, err := json.Marshal(w.Phases)
	if err != nil {
		return nil, fmt.Errorf("encode phases: %w", err)
	}
	return []any{
		w.TenantID, w.ID, w.Account.ID, w.Account.Name, w.Account.Segment, w.Account.ARR, w.Account.HealthScore,
		w.Playbook.ID, w.Playbook.Name, string(w.Category), phases, w.Paused,
		w.LastActivity, w.CreatedAt, w.UpdatedAt,
	}, nil
}

func scanWorkflow(row pgx.Row) (*models.WorkflowInstance, error) {
	var (
		w      models.WorkflowInstance
		phases []byte
	)
	err := row.Scan(
		&w.TenantID, &w.ID, &w.Account.ID, &w.Account.Name, &w.Account.Segment, &w.Account.ARR, &w.Account.HealthScore,
		&w.Playbook.ID, &w.Playbook.Name, &w.Category, &phases, &w.Paused,
		&w.LastActivity, &w.CreatedAt, &w.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(phases, &w.Phases); err != nil {
		return nil, fmt.Errorf("decode phases of workflow %s: %w", w.ID, err)
	}
	return &w, nil
}

func (s *PostgresStore) AssignPlaybook(ctx context.Context, tenantID, awaitingID string, w *models.WorkflowInstance) error {
	values, err := workflowValues(w)
	if err != nil {
		return err
	}
	del, delArgs, err := s.sql.Delete("awaiting_accounts").Where(sq.Eq{"tenant_id": tenantID, "id": awaitingID}).ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	ins, insArgs, err := s.sql.Insert("workflow_instances").Columns(workflowColumns...).Values(values...).ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	err = pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, del, delArgs...)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return apperrors.NewNotFoundError("awaiting account", awaitingID)
		}
		_, err = tx.Exec(ctx, ins, insArgs...)
		return err
	})
	if apperrors.Is(err, apperrors.ErrNotFound) {
		return err
	}
	return classify("assign playbook", err)
}

func (s *PostgresStore) ListWorkflows(ctx context.Context, tenantID string) ([]*models.WorkflowInstance, error) {
	rows, err := s.query(ctx, "list workflows", s.sql.
		Select(workflowColumns...).
		From("workflow_instances").
		Where(sq.Eq{"tenant_id": tenantID}).
		OrderBy("created_at", "id"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]*models.WorkflowInstance, 0)
	for rows.Next() {
		w, err := scanWorkflow(rows)
		if err != nil {
			return nil, classify("list workflows", err)
		}
		out = append(out, w)
	}
	return out, classify("list workflows", rows.Err())
}

func (s *PostgresStore) GetWorkflow(ctx context.Context, tenantID, id string) (*models.WorkflowInstance, error) {
	row, err := s.queryRow(ctx, s.sql.
		Select(workflowColumns...).
		From("workflow_instances").
		Where(sq.Eq{"tenant_id": tenantID, "id": id}))
	if err != nil {
		return nil, err
	}
	w, err := scanWorkflow(row)
	if err != nil {
		return nil, notFound(err, "workflow", id)
	}
	return w, nil
}

func (s *PostgresStore) SaveWorkflow(ctx context.Context, w *models.WorkflowInstance) error {
	values, err := workflowValues(w)
	if err != nil {
		return err
	}
	_, err = s.exec(ctx, "save workflow", s.sql.
		Insert("workflow_instances").
		Columns(workflowColumns...).
		Values(values...).
		Suffix(`ON CONFLICT (tenant_id, id) DO UPDATE SET
			account_name = EXCLUDED.account_name,
			segment = EXCLUDED.segment,
			arr = EXCLUDED.arr,
			health_score = EXCLUDED.health_score,
			phases = EXCLUDED.phases,
			paused = EXCLUDED.paused,
			last_activity = EXCLUDED.last_activity,
			updated_at = EXCLUDED.updated_at`))
	return err
}

// Canvas

func (s *PostgresStore) ListAccounts(ctx context.Context, tenantID string) ([]models.Account, error) {
	rows, err := s.query(ctx, "list accounts", s.sql.
		Select("tenant_id", "id", "name", "segment", "industry", "arr", "health_score", "renewal_date", "owner").
		From("accounts").
		Where(sq.Eq{"tenant_id": tenantID}).
		OrderBy("name"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]models.Account, 0)
	for rows.Next() {
		var (
			a       models.Account
			renewal *time.Time
		)
		if err := rows.Scan(&a.TenantID, &a.ID, &a.Name, &a.Segment, &a.Industry, &a.ARR, &a.HealthScore, &renewal, &a.Owner); err != nil {
			return nil, classify("list accounts", err)
		}
		if renewal != nil {
			a.RenewalDate = *renewal
		}
		out = append(out, a)
	}
	return out, classify("list accounts", rows.Err())
}

func (s *PostgresStore) ListTickets(ctx context.Context, tenantID string) ([]models.Ticket, error) {
	rows, err := s.query(ctx, "list tickets", s.sql.
		Select("tenant_id", "id", "account_id", "account_name", "subject", "status", "priority", "opened_at").
		From("tickets").
		Where(sq.Eq{"tenant_id": tenantID}).
		OrderBy("opened_at DESC", "id"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]models.Ticket, 0)
	for rows.Next() {
		var t models.Ticket
		if err := rows.Scan(&t.TenantID, &t.ID, &t.AccountID, &t.AccountName, &t.Subject, &t.Status, &t.Priority, &t.OpenedAt); err != nil {
			return nil, classify("list tickets", err)
		}
		out = append(out, t)
	}
	return out, classify("list tickets", rows.Err())
}

func (s *PostgresStore) ListMeetings(ctx context.Context, tenantID string) ([]models.Meeting, error) {
	rows, err := s.query(ctx, "list meetings", s.sql.
		Select("tenant_id", "id", "account_id", "account_name", "title", "scheduled_at", "status").
		From("meetings").
		Where(sq.Eq{"tenant_id": tenantID}).
		OrderBy("scheduled_at", "id"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]models.Meeting, 0)
	for rows.Next() {
		var m models.Meeting
		if err := rows.Scan(&m.TenantID, &m.ID, &m.AccountID, &m.AccountName, &m.Title, &m.ScheduledAt, &m.Status); err != nil {
			return nil, classify("list meetings", err)
		}
		out = append(out, m)
	}
	return out, classify("list meetings", rows.Err())
}

func (s *PostgresStore) ListRevenue(ctx context.Context, tenantID string) ([]models.RevenueEntry, error) {
	rows, err := s.query(ctx, "list revenue", s.sql.
		Select("tenant_id", "account_id", "account_name", "month", "projected", "collected", "variance_amount", "variance_reason").
		From("revenue_entries").
		Where(sq.Eq{"tenant_id": tenantID}).
		OrderBy("account_name", "month"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]models.RevenueEntry, 0)
	for rows.Next() {
		var (
			e      models.RevenueEntry
			amount *float64
			reason *string
		)
		if err := rows.Scan(&e.TenantID, &e.AccountID, &e.AccountName, &e.Month, &e.Projected, &e.Collected, &amount, &reason); err != nil {
			return nil, classify("list revenue", err)
		}
		if amount != nil {
			e.Variance = &models.Variance{Amount: *amount}
			if reason != nil {
				e.Variance.Reason = *reason
			}
		}
		out = append(out, e)
	}
	return out, classify("list revenue", rows.Err())
}

func (s *PostgresStore) SaveAccount(ctx context.Context, a *models.Account) error {
	var renewal *time.Time
	if !a.RenewalDate.IsZero() {
		renewal = &a.RenewalDate
	}
	_, err := s.exec(ctx, "save account", s.sql.
		Insert("accounts").
		Columns("tenant_id", "id", "name", "segment", "industry", "arr", "health_score", "renewal_date", "owner").
		Values(a.TenantID, a.ID, a.Name, a.Segment, a.Industry, a.ARR, a.HealthScore, renewal, a.Owner).
		Suffix(`ON CONFLICT (tenant_id, id) DO UPDATE SET
			name = EXCLUDED.name,
			segment = EXCLUDED.segment,
			industry = EXCLUDED.industry,
			arr = EXCLUDED.arr,
			health_score = EXCLUDED.health_score,
			renewal_date = EXCLUDED.renewal_date,
			owner = EXCLUDED.owner`))
	return err
}

func (s *PostgresStore) SaveTicket(ctx context.Context, t *models.Ticket) error {
	_, err := s.exec(ctx, "save ticket", s.sql.
		Insert("tickets").
		Columns("tenant_id", "id", "account_id", "account_name", "subject", "status", "priority", "opened_at").
		Values(t.TenantID, t.ID, t.AccountID, t.AccountName, t.Subject, string(t.Status), string(t.Priority), t.OpenedAt).
		Suffix(`ON CONFLICT (tenant_id, id) DO UPDATE SET
			subject = EXCLUDED.subject,
			status = EXCLUDED.status,
			priority = EXCLUDED.priority`))
	return err
}

func (s *PostgresStore) SaveMeeting(ctx context.Context, m *models.Meeting) error {
	_, err := s.exec(ctx, "save meeting", s.sql.
		Insert("meetings").
		Columns("tenant_id", "id", "account_id", "account_name", "title", "scheduled_at", "status").
		Values(m.TenantID, m.ID, m.AccountID, m.AccountName, m.Title, m.ScheduledAt, string(m.Status)).
		Suffix(`ON CONFLICT (tenant_id, id) DO UPDATE SET
			title = EXCLUDED.title,
			scheduled_at = EXCLUDED.scheduled_at,
			status = EXCLUDED.status`))
	return err
}

func (s *PostgresStore) SaveRevenue(ctx context.Context, e *models.RevenueEntry) error {
	var (
		amount *float64
		reason *string
	)
	if e.Variance != nil {
		amount = &e.Variance.Amount
		reason = &e.Variance.Reason
	}
	_, err := s.exec(ctx, "save revenue", s.sql.
		Insert("revenue_entries").
		Columns("tenant_id", "account_id", "account_name", "month", "projected", "collected", "variance_amount", "variance_reason").
		Values(e.TenantID, e.AccountID, e.AccountName, e.Month, e.Projected, e.Collected, amount, reason).
		Suffix(`ON CONFLICT (tenant_id, account_id, month) DO UPDATE SET
			projected = EXCLUDED.projected,
			collected = EXCLUDED.collected,
			variance_amount = EXCLUDED.variance_amount,
			variance_reason = EXCLUDED.variance_reason`))
	return err
}

// Onboarding

var onboardingColumns = []string{"tenant_id", "id", "current_step", "completed_steps", "answers", "status", "created_at", "updated_at"}

func (s *PostgresStore) GetOnboardingSession(ctx context.Context, tenantID, id string) (*models.OnboardingSession, error) {
	row, err := s.queryRow(ctx, s.sql.
		Select(onboardingColumns...).
		From("onboarding_sessions").
		Where(sq.Eq{"tenant_id": tenantID, "id": id}))
	if err != nil {
		return nil, err
	}
	var (
		sess           models.OnboardingSession
		steps, answers []byte
	)
	if err := row.Scan(&sess.TenantID, &sess.ID, &sess.CurrentStep, &steps, &answers, &sess.Status, &sess.CreatedAt, &sess.UpdatedAt); err != nil {
		return nil, notFound(err, "onboarding session", id)
	}
	if err := json.Unmarshal(steps, &sess.CompletedSteps); err != nil {
		return nil, fmt.Errorf("decode completed steps: %w", err)
	}
	if err := json.Unmarshal(answers, &sess.Answers); err != nil {
		return nil, fmt.Errorf("decode answers: %w", err)
	}
	return &sess, nil
}

func (s *PostgresStore) SaveOnboardingSession(ctx context.Context, sess *models.OnboardingSession) error {
	steps := sess.CompletedSteps
	if steps == nil {
		steps = []models.OnboardingStep{}
	}
	stepsJSON, err := json.Marshal(steps)
	if err != nil {
		return fmt.Errorf("encode completed steps: %w", err)
	}
	answers, err := json.Marshal(sess.Answers)
	if err != nil {
		return fmt.Errorf("encode answers: %w", err)
	}
	_, err = s.exec(ctx, "save onboarding session", s.sql.
		Insert("onboarding_sessions").
		Columns(onboardingColumns...).
		Values(sess.TenantID, sess.ID, string(sess.CurrentStep), stepsJSON, answers, string(sess.Status), sess.CreatedAt, sess.UpdatedAt).
		Suffix(`ON CONFLICT (tenant_id, id) DO UPDATE SET
			current_step = EXCLUDED.current_step,
			completed_steps = EXCLUDED.completed_steps,
			answers = EXCLUDED.answers,
			status = EXCLUDED.status,
			updated_at = EXCLUDED.updated_at`))
	return err
}

func (s *PostgresStore) DeleteOnboardingSession(ctx context.Context, tenantID, id string) error {
	tag, err := s.exec(ctx, "delete onboarding session", s.sql.
		Delete("onboarding_sessions").
		Where(sq.Eq{"tenant_id": tenantID, "id": id}))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NewNotFoundError("onboarding session", id)
	}
	return nil
}
