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

	"github.com/joseph-ayodele/slides-explainer/internal/common"
	"github.com/joseph-ayodele/slides-explainer/internal/entity"
)

type UserRepository interface {
	// GetOrCreate resolves the user with this exact identifier, creating it on first reference.
	GetOrCreate(ctx context.Context, identifier string) (*entity.User, error)
	GetByIdentifier(ctx context.Context, identifier string) (*entity.User, error)
}

type userRepository struct {
	db     *DB
	logger *slog.Logger
	now    func() time.Time
}

func NewUserRepository(db *DB, logger *slog.Logger, opts ...Option) UserRepository {
	if logger == nil {
		logger = slog.Default()
	}
	o := buildOptions(opts)
	return &userRepository{
		db:     db,
		logger: logger,
		now:    o.now,
	}
}

func (r *userRepository) GetOrCreate(ctx context.Context, identifier string) (*entity.User, error) {
	// insert-or-ignore then read back, so concurrent first references converge on one row
	query, args := entsql.Dialect(r.db.Dialect()).
		Insert(UsersTable.Name).
		Columns("id", "identifier", "created_at").
		Values(uuid.New(), identifier, r.now().UTC()).
		OnConflict(entsql.ConflictColumns("identifier"), entsql.DoNothing()).
		Query()
	if _, err := r.db.SQL().ExecContext(ctx, query, args...); err != nil {
		r.logger.Error("failed to upsert user", "identifier", identifier, "error", err)
		return nil, common.StorageError("create user", err)
	}
	return r.GetByIdentifier(ctx, identifier)
}

func (r *userRepository) GetByIdentifier(ctx context.Context, identifier string) (*entity.User, error) {
	b := entsql.Dialect(r.db.Dialect())
	query, args := b.Select("id", "identifier", "created_at").
		From(b.Table(UsersTable.Name)).
		Where(entsql.EQ("identifier", identifier)).
		Query()

	var u entity.User
	err := r.db.SQL().QueryRowContext(ctx, query, args...).Scan(&u.ID, &u.Identifier, &u.CreatedAt)
	if errors.Is(err, stdsql.ErrNoRows) {
		return nil, common.NotFoundError(fmt.Sprintf("user %q not found", identifier))
	}
	if err != nil {
		r.logger.Error("failed to get user", "identifier", identifier, "error", err)
		return nil, common.StorageError("get user", err)
	}
	return &u, nil
}
