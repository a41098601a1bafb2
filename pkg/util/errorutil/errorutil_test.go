package errorutil

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestToDomainError(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"no rows", pgx.ErrNoRows, http.StatusNotFound, "NOT_FOUND"},
		{"wrapped no rows", fmt.Errorf("get ticket: %w", pgx.ErrNoRows), http.StatusNotFound, "NOT_FOUND"},
		{"unique", &pgconn.PgError{Code: "23505"}, http.StatusConflict, "CONFLICT"},
		{"foreign key", &pgconn.PgError{Code: "23503"}, http.StatusBadRequest, "VALIDATION_FAILED"},
		{"check", &pgconn.PgError{Code: "23514"}, http.StatusBadRequest, "VALIDATION_FAILED"},
		{"other pg", &pgconn.PgError{Code: "40001"}, http.StatusInternalServerError, "INTERNAL_ERROR"},
		{"fiber 400", fiber.NewError(http.StatusBadRequest, "bad"), http.StatusBadRequest, "VALIDATION_FAILED"},
		{"fiber 413", fiber.ErrRequestEntityTooLarge, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE"},
		{"domain", NewConflict("email taken", nil), http.StatusConflict, "CONFLICT"},
		{"plain", errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			de := ToDomainError(tc.err)
			if de.HTTPStatus != tc.status {
				t.Fatalf("expected status %d, got %d", tc.status, de.HTTPStatus)
			}
			if de.Code != tc.code {
				t.Fatalf("expected code %s, got %s", tc.code, de.Code)
			}
		})
	}
}

func TestInternalErrorHidesCause(t *testing.T) {
	de := ToDomainError(errors.New("password=hunter2"))
	if de.Message != "internal server error" {
		t.Fatalf("unexpected message %q", de.Message)
	}
	if !errors.Is(de, de.Err) {
		t.Fatalf("expected cause to stay reachable through Unwrap")
	}
}

func TestViolationHelpers(t *testing.T) {
	wrapped := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})
	if !IsUniqueViolation(wrapped) {
		t.Fatalf("expected unique violation")
	}
	if IsForeignKeyViolation(wrapped) {
		t.Fatalf("did not expect foreign key violation")
	}
	if IsUniqueViolation(nil) {
		t.Fatalf("nil is not a violation")
	}
}
