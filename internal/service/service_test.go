package service

import (
	"bytes"
	"context"
	"image/color"
	"mime/multipart"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"

	"github.com/chamados-app/chamados-api/internal/auth"
	"github.com/chamados-app/chamados-api/internal/config"
	"github.com/chamados-app/chamados-api/internal/domain"
	"github.com/chamados-app/chamados-api/internal/events"
	"github.com/chamados-app/chamados-api/internal/repository/repotest"
	"github.com/chamados-app/chamados-api/internal/storage"
	"github.com/chamados-app/chamados-api/internal/worker"
	apperrors "github.com/chamados-app/chamados-api/pkg/util/errorutil"
)

const testBaseURL = "http://localhost:3000"

type fixture struct {
	store   *repotest.Store
	images  *storage.ImageStore
	tickets *TicketService
	posts   *PostService
	owner   *auth.Principal
	other   *auth.Principal
	admin   *auth.Principal
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := repotest.NewStore()
	images, err := storage.NewImageStore(config.UploadConfig{Dir: t.TempDir(), MaxBytes: 1 << 20}, zap.NewNop())
	if err != nil {
		t.Fatalf("image store: %v", err)
	}
	dispatcher := events.NewInMemoryDispatcher()
	worker.StartImageCleanupWorker(dispatcher, images, zap.NewNop())

	f := &fixture{
		store:  store,
		images: images,
		tickets: NewTicketService(TicketDependencies{
			TicketRepo: store.Tickets(),
			Images:     images,
			Dispatcher: dispatcher,
		}),
		posts: NewPostService(store.Posts()),
	}
	f.owner = f.seedUser(t, "owner@example.com", domain.RoleUser)
	f.other = f.seedUser(t, "other@example.com", domain.RoleUser)
	f.admin = f.seedUser(t, "admin@example.com", domain.RoleAdmin)
	return f
}

func (f *fixture) seedUser(t *testing.T, email string, role domain.Role) *auth.Principal {
	t.Helper()
	u := &domain.User{Name: email, Email: email, PasswordHash: "x", Role: role}
	if err := f.store.Users().Create(context.Background(), u); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return &auth.Principal{UserID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role}
}

// upload builds a multipart file header holding a small PNG.
func upload(t *testing.T, name string) *ImageUpload {
	t.Helper()
	var png bytes.Buffer
	if err := imaging.Encode(&png, imaging.New(8, 8, color.NRGBA{G: 255, A: 255}), imaging.PNG); err != nil {
		t.Fatalf("encode: %v", err)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("imagem", name)
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	_, _ = part.Write(png.Bytes())
	_ = mw.Close()

	form, err := multipart.NewReader(&body, mw.Boundary()).ReadForm(1 << 20)
	if err != nil {
		t.Fatalf("read form: %v", err)
	}
	t.Cleanup(func() { _ = form.RemoveAll() })
	return &ImageUpload{File: form.File["imagem"][0], BaseURL: testBaseURL}
}

func (f *fixture) fileFor(url string) string {
	return filepath.Join(f.images.Dir(), filepath.Base(url))
}

func (f *fixture) uploadCount(t *testing.T) int {
	t.Helper()
	entries, err := os.ReadDir(f.images.Dir())
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	return len(entries)
}

func strPtr(s string) *string { return &s }

func int64Ptr(v int64) *int64 { return &v }

func assertStatus(t *testing.T, err error, status int) {
	t.Helper()
	de := apperrors.ToDomainError(err)
	if de == nil {
		t.Fatalf("expected error with status %d, got nil", status)
	}
	if de.HTTPStatus != status {
		t.Fatalf("expected status %d, got %d (%v)", status, de.HTTPStatus, err)
	}
}
