// Package repotest provides in-memory repositories for tests. They reproduce
// the error values the Postgres implementations surface (pgx.ErrNoRows and
// *pgconn.PgError for unique and foreign key violations).
package repotest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/chamados-app/chamados-api/internal/domain"
	"github.com/chamados-app/chamados-api/internal/repository"
)

// Store holds the shared tables so foreign keys can be checked across repositories.
type Store struct {
	mu      sync.Mutex
	now     func() time.Time
	nextID  map[string]int64
	users   map[int64]domain.User
	tickets map[int64]domain.Ticket
	posts   map[int64]domain.Post

	// FailNext, when set, is returned (once) by the next write.
	FailNext error
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		now:     time.Now,
		nextID:  map[string]int64{},
		users:   map[int64]domain.User{},
		tickets: map[int64]domain.Ticket{},
		posts:   map[int64]domain.Post{},
	}
}

// Users returns a UserRepository backed by the store.
func (s *Store) Users() repository.UserRepository { return userRepo{s} }

// Tickets returns a TicketRepository backed by the store.
func (s *Store) Tickets() repository.TicketRepository { return ticketRepo{s} }

// Posts returns a PostRepository backed by the store.
func (s *Store) Posts() repository.PostRepository { return postRepo{s} }

// Ticket returns a copy of the stored ticket.
func (s *Store) Ticket(id int64) (domain.Ticket, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[id]
	return t, ok
}

func (s *Store) id(table string) int64 {
	s.nextID[table]++
	return s.nextID[table]
}

func (s *Store) takeFailure() error {
	err := s.FailNext
	s.FailNext = nil
	return err
}

func uniqueViolation(constraint string) error {
	return &pgconn.PgError{Code: "23505", ConstraintName: constraint, Message: "duplicate key value violates unique constraint"}
}

func foreignKeyViolation(constraint string) error {
	return &pgconn.PgError{Code: "23503", ConstraintName: constraint, Message: "insert or update violates foreign key constraint"}
}

type userRepo struct{ s *Store }

func (r userRepo) Create(_ context.Context, user *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.takeFailure(); err != nil {
		return err
	}
	for _, u := range r.s.users {
		if u.Email == user.Email {
			return uniqueViolation("Usuarios_email_key")
		}
	}
	user.ID = r.s.id("users")
	r.s.users[user.ID] = *user
	return nil
}

func (r userRepo) GetByID(_ context.Context, id int64) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &u, nil
}

func (r userRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, pgx.ErrNoRows
}

type ticketRepo struct{ s *Store }

func (r ticketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.takeFailure(); err != nil {
		return err
	}
	if _, ok := r.s.users[ticket.UserID]; !ok {
		return foreignKeyViolation("Chamados_Usuarios_id_fkey")
	}
	ticket.ID = r.s.id("tickets")
	ticket.CreatedAt = r.s.now()
	ticket.UpdatedAt = ticket.CreatedAt
	r.s.tickets[ticket.ID] = cloneTicket(*ticket)
	return nil
}

func (r ticketRepo) GetByID(_ context.Context, id int64) (*domain.Ticket, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	t = cloneTicket(t)
	return &t, nil
}

func (r ticketRepo) List(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	result := []domain.Ticket{}
	for _, t := range r.s.tickets {
		if filter.UserID != nil && t.UserID != *filter.UserID {
			continue
		}
		if filter.Status != nil && t.Status != *filter.Status {
			continue
		}
		result = append(result, cloneTicket(t))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID > result[j].ID })
	return result, nil
}

func (r ticketRepo) Update(_ context.Context, ticket *domain.Ticket) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.takeFailure(); err != nil {
		return err
	}
	current, ok := r.s.tickets[ticket.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	current.Text = ticket.Text
	current.Status = ticket.Status
	current.ImageURL = ticket.ImageURL
	current.UpdatedAt = r.s.now()
	r.s.tickets[ticket.ID] = cloneTicket(current)

	ticket.UserID = current.UserID
	ticket.CreatedAt = current.CreatedAt
	ticket.UpdatedAt = current.UpdatedAt
	return nil
}

func (r ticketRepo) Delete(_ context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.takeFailure(); err != nil {
		return err
	}
	if _, ok := r.s.tickets[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.s.tickets, id)
	return nil
}

func cloneTicket(t domain.Ticket) domain.Ticket {
	if t.ImageURL != nil {
		url := *t.ImageURL
		t.ImageURL = &url
	}
	return t
}

type postRepo struct{ s *Store }

func (r postRepo) Create(_ context.Context, post *domain.Post) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.takeFailure(); err != nil {
		return err
	}
	if _, ok := r.s.users[post.UserID]; !ok {
		return foreignKeyViolation("post_usuario_id_fkey")
	}
	post.ID = r.s.id("posts")
	post.CreatedAt = r.s.now()
	r.s.posts[post.ID] = *post
	return nil
}

func (r postRepo) GetByID(_ context.Context, id int64) (*domain.Post, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.posts[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &p, nil
}

func (r postRepo) List(_ context.Context) ([]domain.Post, error) {
	return r.filter(func(domain.Post) bool { return true }), nil
}

func (r postRepo) ListByUser(_ context.Context, userID int64) ([]domain.Post, error) {
	return r.filter(func(p domain.Post) bool { return p.UserID == userID }), nil
}

func (r postRepo) Replace(_ context.Context, post *domain.Post) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.takeFailure(); err != nil {
		return err
	}
	current, ok := r.s.posts[post.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	if _, ok := r.s.users[post.UserID]; !ok {
		return foreignKeyViolation("post_usuario_id_fkey")
	}
	post.CreatedAt = current.CreatedAt
	r.s.posts[post.ID] = *post
	return nil
}

func (r postRepo) Patch(_ context.Context, id int64, patch repository.PostPatch) (*domain.Post, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.takeFailure(); err != nil {
		return nil, err
	}
	current, ok := r.s.posts[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	if patch.UserID != nil {
		if _, ok := r.s.users[*patch.UserID]; !ok {
			return nil, foreignKeyViolation("post_usuario_id_fkey")
		}
		current.UserID = *patch.UserID
	}
	if patch.Text != nil {
		current.Text = *patch.Text
	}
	r.s.posts[id] = current
	return &current, nil
}

func (r postRepo) Delete(_ context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.takeFailure(); err != nil {
		return err
	}
	if _, ok := r.s.posts[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.s.posts, id)
	return nil
}

func (r postRepo) filter(keep func(domain.Post) bool) []domain.Post {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	result := []domain.Post{}
	for _, p := range r.s.posts {
		if keep(p) {
			result = append(result, p)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID > result[j].ID })
	return result
}
