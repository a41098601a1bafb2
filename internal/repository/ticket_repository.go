package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chamados-app/chamados-api/internal/domain"
)

const ticketColumns = `"id", "Usuarios_id", "texto", "estado", "url_imagem", "data_criacao", "data_atualizacao"`

// TicketFilter narrows ticket listings. Nil fields are not applied.
type TicketFilter struct {
	UserID *int64
	Status *domain.TicketStatus
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id int64) (*domain.Ticket, error)
	List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	Update(ctx context.Context, ticket *domain.Ticket) error
	Delete(ctx context.Context, id int64) error
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO "Chamados" ("Usuarios_id", "texto", "estado", "url_imagem")
        VALUES ($1, $2, $3, $4)
        RETURNING "id", "data_criacao", "data_atualizacao"`
	return r.pool.QueryRow(ctx, query,
		ticket.UserID,
		ticket.Text,
		string(ticket.Status),
		ticket.ImageURL,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
}

func (r *ticketRepository) GetByID(ctx context.Context, id int64) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM "Chamados" WHERE "id" = $1`
	return scanTicket(r.pool.QueryRow(ctx, query, id))
}

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.UserID != nil {
		args = append(args, *filter.UserID)
		clauses = append(clauses, fmt.Sprintf(`"Usuarios_id" = $%d`, len(args)))
	}
	if filter.Status != nil {
		args = append(args, string(*filter.Status))
		clauses = append(clauses, fmt.Sprintf(`"estado" = $%d`, len(args)))
	}

	query := fmt.Sprintf(`SELECT %s FROM "Chamados" WHERE %s ORDER BY "id" DESC`,
		ticketColumns, strings.Join(clauses, " AND "))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.Ticket{}
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}

// Update overwrites text, status and image and bumps data_atualizacao.
// It returns pgx.ErrNoRows when the ticket vanished in between.
func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        UPDATE "Chamados"
        SET "texto"            = $1,
            "estado"           = $2,
            "url_imagem"       = $3,
            "data_atualizacao" = now()
        WHERE "id" = $4
        RETURNING "Usuarios_id", "data_criacao", "data_atualizacao"`
	return r.pool.QueryRow(ctx, query,
		ticket.Text,
		string(ticket.Status),
		ticket.ImageURL,
		ticket.ID,
	).Scan(&ticket.UserID, &ticket.CreatedAt, &ticket.UpdatedAt)
}

func (r *ticketRepository) Delete(ctx context.Context, id int64) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM "Chamados" WHERE "id" = $1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var (
		ticket domain.Ticket
		status string
	)
	if err := row.Scan(
		&ticket.ID,
		&ticket.UserID,
		&ticket.Text,
		&status,
		&ticket.ImageURL,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	); err != nil {
		return nil, err
	}
	ticket.Status = domain.TicketStatus(status)
	return &ticket, nil
}
