package auth

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/joao-fontenele/storefront/internal/domain"
)

var ErrEmailTaken = errors.New("email already in use")

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	user.ID = uuid.New().String()

	err := r.db.QueryRowContext(ctx, `
		INSERT INTO users (id, full_name, email, password, profile_pic)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING is_admin, created_at
	`, user.ID, user.FullName, user.Email, user.PasswordHash, user.ProfilePic).Scan(&user.IsAdmin, &user.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrEmailTaken
		}
		return err
	}
	return nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getOne(ctx, `WHERE lower(email) = lower($1)`, email)
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}
	return r.getOne(ctx, `WHERE id = $1`, id)
}

func (r *UserRepository) getOne(ctx context.Context, where string, arg any) (*domain.User, error) {
	user := &domain.User{}

	err := r.db.QueryRowContext(ctx, `
		SELECT id, full_name, email, password, profile_pic, is_admin, created_at
		FROM users
		`+where, arg).Scan(&user.ID, &user.FullName, &user.Email, &user.PasswordHash, &user.ProfilePic, &user.IsAdmin, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}
