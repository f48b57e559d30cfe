package repository

import (
	"context"
	stdsql "database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/slides-explainer/constants"
	"github.com/joseph-ayodele/slides-explainer/internal/common"
	"github.com/joseph-ayodele/slides-explainer/internal/entity"
)

// NewJob describes a job to insert in the pending state.
type NewJob struct {
	ID         uuid.UUID // uuid.Nil -> generated
	SourceName string
	OwnerID    *uuid.UUID
}

type JobRepository interface {
	Create(ctx context.Context, in NewJob) (*entity.Job, error)
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Job, error)
	// LatestByOwner returns the most recently submitted job for the owner,
	// restricted to sourceName when it is non-empty.
	LatestByOwner(ctx context.Context, ownerIdentifier, sourceName string) (*entity.Job, error)
	ListPending(ctx context.Context, limit int) ([]*entity.Job, error)
	// Claim moves a job pending -> processing. It reports false when the job was no longer pending.
	Claim(ctx context.Context, id uuid.UUID) (bool, error)
	Complete(ctx context.Context, id uuid.UUID) error
	Fail(ctx context.Context, id uuid.UUID, message string) error
	CountByState(ctx context.Context) (map[constants.JobState]int, error)
}

// Option customizes a repository.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock overrides time.Now for submitted_at / finished_at stamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

type jobRepo struct {
	db  *DB
	log *slog.Logger
	now func() time.Time
}

func NewJobRepository(db *DB, log *slog.Logger, opts ...Option) JobRepository {
	if log == nil {
		log = slog.Default()
	}
	o := buildOptions(opts)
	return &jobRepo{db: db, log: log, now: o.now}
}

var jobColumns = []string{"id", "source_name", "state", "submitted_at", "finished_at", "error_message", "user_id"}

func (r *jobRepo) builder() *entsql.DialectBuilder {
	return entsql.Dialect(r.db.Dialect())
}

func (r *jobRepo) Create(ctx context.Context, in NewJob) (*entity.Job, error) {
	id := in.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	owner := uuid.NullUUID{}
	if in.OwnerID != nil {
		owner = uuid.NullUUID{UUID: *in.OwnerID, Valid: true}
	}
	now := r.now().UTC()

	query, args := r.builder().
		Insert(JobsTable.Name).
		Columns("id", "source_name", "state", "submitted_at", "user_id").
		Values(id, in.SourceName, string(constants.JobStatePending), now, owner).
		Query()
	if _, err := r.db.SQL().ExecContext(ctx, query, args...); err != nil {
		r.log.Error("job create failed", "job_id", id, "source_name", in.SourceName, "err", err)
		return nil, common.StorageError("create job", err)
	}
	r.log.Info("job created", "job_id", id, "source_name", in.SourceName, "has_owner", in.OwnerID != nil)
	return &entity.Job{
		ID:          id,
		OwnerID:     in.OwnerID,
		SourceName:  in.SourceName,
		State:       constants.JobStatePending,
		SubmittedAt: now,
	}, nil
}

func (r *jobRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	b := r.builder()
	query, args := b.Select(jobColumns...).
		From(b.Table(JobsTable.Name)).
		Where(entsql.EQ("id", id)).
		Query()
	return r.queryOne(ctx, query, args, fmt.Sprintf("job %s not found", id))
}

func (r *jobRepo) LatestByOwner(ctx context.Context, ownerIdentifier, sourceName string) (*entity.Job, error) {
	b := r.builder()
	j := b.Table(JobsTable.Name)
	u := b.Table(UsersTable.Name)

	cols := make([]string, len(jobColumns))
	for i, c := range jobColumns {
		cols[i] = j.C(c)
	}
	sel := b.Select(cols...).
		From(j).
		Join(u).On(j.C("user_id"), u.C("id")).
		Where(entsql.EQ(u.C("identifier"), ownerIdentifier))
	if sourceName != "" {
		sel.Where(entsql.EQ(j.C("source_name"), sourceName))
	}
	query, args := sel.OrderBy(entsql.Desc(j.C("submitted_at"))).Limit(1).Query()
	return r.queryOne(ctx, query, args, fmt.Sprintf("no job for owner %q and source %q", ownerIdentifier, sourceName))
}

func (r *jobRepo) ListPending(ctx context.Context, limit int) ([]*entity.Job, error) {
	b := r.builder()
	sel := b.Select(jobColumns...).
		From(b.Table(JobsTable.Name)).
		Where(entsql.EQ("state", string(constants.JobStatePending))).
		OrderBy("submitted_at")
	if limit > 0 {
		sel.Limit(limit)
	}
	query, args := sel.Query()

	rows, err := r.db.SQL().QueryContext(ctx, query, args...)
	if err != nil {
		r.log.Error("list pending jobs failed", "err", err)
		return nil, common.StorageError("list pending jobs", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*entity.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, common.StorageError("scan job", err)
		}
		out = append(out, j)
	}
	if err := rows.Err(); err != nil {
		return nil, common.StorageError("iterate pending jobs", err)
	}
	return out, nil
}

func (r *jobRepo) Claim(ctx context.Context, id uuid.UUID) (bool, error) {
	n, err := r.transition(ctx, id, constants.JobStatePending, constants.JobStateProcessing, nil)
	if err != nil {
		r.log.Error("job claim failed", "job_id", id, "err", err)
		return false, err
	}
	if n == 0 {
		r.log.Debug("job claim lost", "job_id", id)
		return false, nil
	}
	r.log.Info("job claimed", "job_id", id)
	return true, nil
}

func (r *jobRepo) Complete(ctx context.Context, id uuid.UUID) error {
	n, err := r.transition(ctx, id, constants.JobStateProcessing, constants.JobStateCompleted, nil)
	if err != nil {
		r.log.Error("job finish(completed) failed", "job_id", id, "err", err)
		return err
	}
	if n == 0 {
		return common.StorageError(fmt.Sprintf("complete job %s", id), errors.New("job is not processing"))
	}
	r.log.Info("job finished (completed)", "job_id", id)
	return nil
}

func (r *jobRepo) Fail(ctx context.Context, id uuid.UUID, message string) error {
	n, err := r.transition(ctx, id, constants.JobStateProcessing, constants.JobStateFailed, &message)
	if err != nil {
		r.log.Error("job finish(failed) failed", "job_id", id, "err", err)
		return err
	}
	if n == 0 {
		return common.StorageError(fmt.Sprintf("fail job %s", id), errors.New("job is not processing"))
	}
	r.log.Warn("job finished (failed)", "job_id", id, "error", message)
	return nil
}

// transition is a conditional update: it only touches the row while it is still in from.
func (r *jobRepo) transition(ctx context.Context, id uuid.UUID, from, to constants.JobState, message *string) (int64, error) {
	if !entity.CanTransition(from, to) {
		return 0, fmt.Errorf("illegal transition %s -> %s", from, to)
	}
	upd := r.builder().
		Update(JobsTable.Name).
		Set("state", string(to))
	if to.Terminal() {
		upd.Set("finished_at", r.now().UTC())
	}
	if message != nil {
		upd.Set("error_message", *message)
	}
	query, args := upd.
		Where(entsql.And(entsql.EQ("id", id), entsql.EQ("state", string(from)))).
		Query()

	res, err := r.db.SQL().ExecContext(ctx, query, args...)
	if err != nil {
		return 0, common.StorageError(fmt.Sprintf("transition job %s to %s", id, to), err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, common.StorageError("rows affected", err)
	}
	return n, nil
}

func (r *jobRepo) CountByState(ctx context.Context) (map[constants.JobState]int, error) {
	b := r.builder()
	query, args := b.Select("state", entsql.Count("*")).
		From(b.Table(JobsTable.Name)).
		GroupBy("state").
		Query()
	rows, err := r.db.SQL().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, common.StorageError("count jobs", err)
	}
	defer func() { _ = rows.Close() }()

	out := make(map[constants.JobState]int, len(constants.AllJobStates))
	for rows.Next() {
		var (
			state string
			n     int
		)
		if err := rows.Scan(&state, &n); err != nil {
			return nil, common.StorageError("scan job count", err)
		}
		out[constants.JobState(state)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, common.StorageError("iterate job counts", err)
	}
	return out, nil
}

func (r *jobRepo) queryOne(ctx context.Context, query string, args []any, notFound string) (*entity.Job, error) {
	row := r.db.SQL().QueryRowContext(ctx, query, args...)
	j, err := scanJob(row)
	if errors.Is(err, stdsql.ErrNoRows) {
		return nil, common.NotFoundError(notFound)
	}
	if err != nil {
		r.log.Error("job lookup failed", "err", err)
		return nil, common.StorageError("get job", err)
	}
	return j, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(s scanner) (*entity.Job, error) {
	var (
		j        entity.Job
		state    string
		finished stdsql.NullTime
		errMsg   stdsql.NullString
		owner    uuid.NullUUID
	)
	if err := s.Scan(&j.ID, &j.SourceName, &state, &j.SubmittedAt, &finished, &errMsg, &owner); err != nil {
		return nil, err
	}
	j.State = constants.JobState(state)
	if finished.Valid {
		t := finished.Time
		j.FinishedAt = &t
	}
	if errMsg.Valid {
		m := errMsg.String
		j.ErrorMessage = &m
	}
	if owner.Valid {
		o := owner.UUID
		j.OwnerID = &o
	}
	return &j, nil
}
