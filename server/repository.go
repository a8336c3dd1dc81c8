package server

import (
	"context"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Users is the account repository.
type Users interface {
	repository.Repository[*User]

	GetByUsername(ctx context.Context, username string) (*User, error)
}

type users struct {
	repository.Repository[*User]
	db *bun.DB
}

// NewUsersRepository returns the bun-backed Users implementation.
func NewUsersRepository(db *bun.DB) Users {
	repo := repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
	})

	return &users{
		Repository: repo,
		db:         db,
	}
}

func (r *users) GetByUsername(ctx context.Context, username string) (*User, error) {
	record := &User{}
	err := r.db.NewSelect().
		Model(record).
		Where("?TableAlias.username = ?", username).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{"username": username})
		}
		return nil, err
	}

	return record, nil
}

// Tasks is the task repository. All accessors are scoped to an owner so one
// user can never read or mutate another user's tasks.
type Tasks interface {
	repository.Repository[*Task]

	ListByUser(ctx context.Context, userID uuid.UUID) ([]*Task, error)
	GetForUser(ctx context.Context, id, userID uuid.UUID) (*Task, error)
	UpdateForUser(ctx context.Context, task *Task) (*Task, error)
	DeleteForUser(ctx context.Context, id, userID uuid.UUID) (bool, error)
}

type tasks struct {
	repository.Repository[*Task]
	db *bun.DB
}

// NewTasksRepository returns the bun-backed Tasks implementation.
func NewTasksRepository(db *bun.DB) Tasks {
	repo := repository.NewRepository[*Task](db, repository.ModelHandlers[*Task]{
		NewRecord: func() *Task { return &Task{} },
		GetID: func(t *Task) uuid.UUID {
			if t == nil {
				return uuid.Nil
			}
			return t.ID
		},
		SetID: func(t *Task, id uuid.UUID) {
			if t != nil {
				t.ID = id
			}
		},
	})

	return &tasks{
		Repository: repo,
		db:         db,
	}
}

func (r *tasks) ListByUser(ctx context.Context, userID uuid.UUID) ([]*Task, error) {
	records := []*Task{}
	err := r.db.NewSelect().
		Model(&records).
		Where("?TableAlias.user_id = ?", userID).
		Order("created_at DESC").
		Scan(ctx)

	if err != nil {
		return nil, err
	}

	return records, nil
}

func (r *tasks) GetForUser(ctx context.Context, id, userID uuid.UUID) (*Task, error) {
	record := &Task{}
	err := r.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Where("?TableAlias.user_id = ?", userID).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{"id": id.String()})
		}
		return nil, err
	}

	return record, nil
}

func (r *tasks) UpdateForUser(ctx context.Context, task *Task) (*Task, error) {
	now := time.Now()
	task.UpdatedAt = &now

	res, err := r.db.NewUpdate().
		Model(task).
		Column("title", "description", "completed", "updated_at").
		Where("?TableAlias.id = ?", task.ID).
		Where("?TableAlias.user_id = ?", task.UserID).
		Exec(ctx)

	if err != nil {
		return nil, err
	}

	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return nil, repository.NewRecordNotFound().
			WithMetadata(map[string]any{"id": task.ID.String()})
	}

	return task, nil
}

func (r *tasks) DeleteForUser(ctx context.Context, id, userID uuid.UUID) (bool, error) {
	res, err := r.db.NewDelete().
		Model((*Task)(nil)).
		Where("id = ?", id).
		Where("user_id = ?", userID).
		Exec(ctx)

	if err != nil {
		return false, err
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return rows > 0, nil
}
