// Package repository реализует хранилище сервиса подписок на основе PostgreSQL.
// Единственность текущей подписки пользователя обеспечивает частичный
// уникальный индекс subscriptions_one_current_per_user.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	// Регистрация драйвера pgx для использования с database/sql.
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/magabrotheeeer/nextgig-subscriptions/internal/models"
	"github.com/magabrotheeeer/nextgig-subscriptions/internal/storage"
)

const (
	uniqueViolation        = "23505"
	currentSubscriptionIdx = "subscriptions_one_current_per_user"
	userEmailIdx           = "users_email_unique"
)

// querier общий набор методов *sql.DB и *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// repo реализует storage.Repository поверх соединения или транзакции.
type repo struct {
	q querier
}

// Storage инкапсулирует соединение с базой данных PostgreSQL
// и реализует storage.Store.
type Storage struct {
	repo
	DB *sql.DB
}

var _ storage.Store = (*Storage)(nil)

// New создаёт подключение к PostgreSQL и проверяет его.
func New(storageConnectionString string) (*Storage, error) {
	const op = "storage.New"

	db, err := sql.Open("pgx", storageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = db.PingContext(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{
		repo: repo{q: db},
		DB:   db,
	}, nil
}

// CheckDatabaseReady проверяет, что миграции применены.
func CheckDatabaseReady(ctx context.Context, storage *Storage) error {
	var exists bool
	err := storage.DB.QueryRowContext(ctx, `SELECT EXISTS (
        SELECT FROM information_schema.tables
        WHERE table_name = 'subscriptions'
    )`).Scan(&exists)
	if err != nil {
		return fmt.Errorf("required table subscriptions query error: %w", err)
	}
	if !exists {
		return errors.New("required table subscriptions missing")
	}
	return nil
}

// InTx выполняет fn в транзакции. Ошибка fn откатывает все изменения.
func (s *Storage) InTx(ctx context.Context, fn func(ctx context.Context, repo storage.Repository) error) error {
	const op = "storage.InTx"

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := fn(ctx, &repo{q: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return fmt.Errorf("%s: rollback: %v: %w", op, rbErr, err)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: %w", op, mapError(err))
	}
	return nil
}

// Ping проверяет соединение.
func (s *Storage) Ping(ctx context.Context) error {
	return s.DB.PingContext(ctx)
}

// Close закрывает пул соединений.
func (s *Storage) Close(context.Context) error {
	return s.DB.Close()
}

// AddTester добавляет e-mail в список тестировщиков.
func (s *Storage) AddTester(ctx context.Context, email string) error {
	const op = "storage.AddTester"
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO testers (email) VALUES (lower($1)) ON CONFLICT (email) DO NOTHING`, email)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// mapError переводит нарушения уникальных индексов в доменные ошибки.
func mapError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolation {
		return err
	}
	switch pgErr.ConstraintName {
	case currentSubscriptionIdx:
		return models.ErrActiveSubscriptionExists
	case userEmailIdx:
		return models.ErrEmailTaken
	}
	return err
}

func checkCtx(ctx context.Context, op string) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
		return nil
	}
}
