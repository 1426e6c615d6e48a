package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound is returned when the requested row does not exist.
	ErrNotFound = errors.New("db: not found")

	// ErrDuplicateUsername is returned when creating a user with a taken username.
	ErrDuplicateUsername = errors.New("db: username already exists")

	// ErrDuplicateEmail is returned when creating a user with a taken email.
	ErrDuplicateEmail = errors.New("db: email already exists")

	// ErrReferenceViolation is returned when a message names a sender or receiver that does not exist.
	ErrReferenceViolation = errors.New("db: referenced user does not exist")

	// ErrNotReceiver is returned when someone other than the receiver marks a message read.
	ErrNotReceiver = errors.New("db: caller is not the message receiver")
)

// IsUniqueViolation checks if the error is a PostgreSQL unique constraint violation (code 23505).
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

// IsForeignKeyViolation checks if the error is a PostgreSQL foreign key violation (code 23503).
func IsForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503"
	}
	return false
}

// translateUserConflict maps a unique violation on users to the matching sentinel.
func translateUserConflict(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return err
	}
	if strings.Contains(pgErr.ConstraintName, "email") {
		return ErrDuplicateEmail
	}
	return ErrDuplicateUsername
}
