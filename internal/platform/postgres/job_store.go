package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/sentinel/internal/domain"
	"github.com/phrazzld/sentinel/internal/platform/logger"
	"github.com/phrazzld/sentinel/internal/store"
)

const selectJobColumns = `id, name, idea, template, options, state, result, created_at, updated_at`

// PostgresJobStore implements store.JobStore on a PostgreSQL jobs table.
type PostgresJobStore struct {
	db *sql.DB
}

// NewPostgresJobStore creates a new PostgresJobStore.
func NewPostgresJobStore(db *sql.DB) *PostgresJobStore {
	return &PostgresJobStore{db: db}
}

// Ensure PostgresJobStore implements store.JobStore
var _ store.JobStore = (*PostgresJobStore)(nil)

// Create inserts a new job row.
func (s *PostgresJobStore) Create(ctx context.Context, job *domain.Job) error {
	log := logger.FromContext(ctx)

	if err := job.Validate(); err != nil {
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}

	options, err := json.Marshal(job.Options)
	if err != nil {
		return fmt.Errorf("%w: options: %w", store.ErrInvalidEntity, err)
	}

	query := `
		INSERT INTO jobs (id, name, idea, template, options, state, result, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err = s.db.ExecContext(ctx, query,
		job.ID,
		job.Name,
		job.Idea,
		job.Template,
		options,
		string(job.State),
		job.Result,
		job.CreatedAt,
		job.UpdatedAt,
	)
	if err != nil {
		mapped := MapError(err)
		if store.IsDuplicateError(mapped) {
			log.Warn("job already exists", "job_id", job.ID)
			return mapped
		}
		log.Error("failed to insert job", "job_id", job.ID, "error", err)
		return store.NewStoreError("job", "create", "failed to insert job", mapped)
	}

	log.Debug("job created", "job_id", job.ID, "state", job.State)
	return nil
}

// Get retrieves a job by its ID.
func (s *PostgresJobStore) Get(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	query := `SELECT ` + selectJobColumns + ` FROM jobs WHERE id = $1`

	job, err := scanJob(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			logger.FromContext(ctx).Error("failed to get job", "job_id", id, "error", err)
		}
		return nil, MapError(err)
	}
	return job, nil
}

// Transition locks the job row, applies the state change and writes it back
// in one transaction. Concurrent callers serialize on the row lock, so only
// the first of several workers can move a queued job to running.
func (s *PostgresJobStore) Transition(
	ctx context.Context,
	id uuid.UUID,
	next domain.JobState,
	result string,
) (*domain.Job, error) {
	var updated *domain.Job

	err := store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		query := `SELECT ` + selectJobColumns + ` FROM jobs WHERE id = $1 FOR UPDATE`

		job, err := scanJob(tx.QueryRowContext(ctx, query, id))
		if err != nil {
			return MapError(err)
		}

		if err := job.Transition(next, result); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE jobs SET state = $1, result = $2, updated_at = $3 WHERE id = $4`,
			string(job.State),
			job.Result,
			job.UpdatedAt,
			job.ID,
		)
		if err != nil {
			return store.NewStoreError("job", "transition", "failed to update job",
				fmt.Errorf("%w: %w", store.ErrUpdateFailed, MapError(err)))
		}

		updated = job
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.FromContext(ctx).Debug("job transitioned", "job_id", id, "state", next)
	return updated, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*domain.Job, error) {
	var (
		job       domain.Job
		state     string
		options   []byte
		createdAt time.Time
		updatedAt time.Time
	)

	if err := row.Scan(
		&job.ID,
		&job.Name,
		&job.Idea,
		&job.Template,
		&options,
		&state,
		&job.Result,
		&createdAt,
		&updatedAt,
	); err != nil {
		return nil, err
	}

	job.State = domain.JobState(state)
	job.CreatedAt = createdAt.UTC()
	job.UpdatedAt = updatedAt.UTC()
	job.Options = map[string]any{}
	if len(options) > 0 {
		if err := json.Unmarshal(options, &job.Options); err != nil {
			return nil, fmt.Errorf("failed to decode job options: %w", err)
		}
	}
	return &job, nil
}
