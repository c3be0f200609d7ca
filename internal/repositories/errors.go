package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/food-truck-finder/backend/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

type scanner interface {
	Scan(dest ...any) error
}

// translate maps driver errors onto the model error kinds: a missing row is
// NotFound, a violated CHECK constraint is a validation failure, everything
// else is a storage failure.
func translate(op, entity string, id any, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return models.NewNotFoundError(entity, id)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23514" {
		return models.NewValidationError(pgErr.ConstraintName, "violates "+pgErr.ConstraintName)
	}
	return models.NewStorageError(op, err)
}

// versionMiss resolves a version-checked write that touched no rows: the
// row either vanished or someone else bumped its version first.
func versionMiss(ctx context.Context, pool *pgxpool.Pool, table, entity string, id any) error {
	var exists bool
	err := pool.QueryRow(ctx, fmt.Sprintf(`SELECT EXISTS(SELECT 1 FROM %s WHERE id = $1)`, table), id).Scan(&exists)
	if err != nil {
		return models.NewStorageError(entity+".exists", err)
	}
	if !exists {
		return models.NewNotFoundError(entity, id)
	}
	return models.NewConflictError(entity, id)
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > maxListLimit {
		return defaultListLimit
	}
	return limit
}

func joinWhere(where []string) string {
	if len(where) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(where, " AND ")
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
