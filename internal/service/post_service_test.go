package service

import (
	"context"
	"net/http"
	"strings"
	"testing"
)

func TestPostLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	post, err := f.posts.Create(ctx, PostInput{UserID: int64Ptr(f.owner.UserID), Text: strPtr("  hi there ")})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if post.Text != "hi there" || post.ID == 0 {
		t.Fatalf("unexpected post %+v", post)
	}

	_, _ = f.posts.Create(ctx, PostInput{UserID: int64Ptr(f.other.UserID), Text: strPtr("second")})
	all, _ := f.posts.List(ctx)
	if len(all) != 2 || all[0].Text != "second" {
		t.Fatalf("expected newest first, got %+v", all)
	}
	mine, _ := f.posts.ListByUser(ctx, f.owner.UserID)
	if len(mine) != 1 || mine[0].ID != post.ID {
		t.Fatalf("unexpected posts by user %+v", mine)
	}

	patched, err := f.posts.Patch(ctx, post.ID, PostInput{Text: strPtr("edited")})
	if err != nil {
		t.Fatalf("patch: %v", err)
	}
	if patched.Text != "edited" || patched.UserID != f.owner.UserID {
		t.Fatalf("unexpected patched post %+v", patched)
	}

	replaced, err := f.posts.Replace(ctx, post.ID, PostInput{UserID: int64Ptr(f.other.UserID), Text: strPtr("moved")})
	if err != nil {
		t.Fatalf("replace: %v", err)
	}
	if replaced.UserID != f.other.UserID || replaced.CreatedAt.IsZero() {
		t.Fatalf("unexpected replaced post %+v", replaced)
	}

	if err := f.posts.Delete(ctx, post.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	_, err = f.posts.Get(ctx, post.ID)
	assertStatus(t, err, http.StatusNotFound)
	assertStatus(t, f.posts.Delete(ctx, post.ID), http.StatusNotFound)
}

func TestPostValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	uid := int64Ptr(f.owner.UserID)

	cases := []struct {
		name   string
		input  PostInput
		status int
	}{
		{"missing user", PostInput{Text: strPtr("x")}, http.StatusBadRequest},
		{"zero user", PostInput{UserID: int64Ptr(0), Text: strPtr("x")}, http.StatusBadRequest},
		{"missing text", PostInput{UserID: uid}, http.StatusBadRequest},
		{"blank text", PostInput{UserID: uid, Text: strPtr("  ")}, http.StatusBadRequest},
		{"long text", PostInput{UserID: uid, Text: strPtr(strings.Repeat("é", 281))}, http.StatusBadRequest},
		{"unknown user", PostInput{UserID: int64Ptr(404), Text: strPtr("x")}, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.posts.Create(ctx, tc.input)
			assertStatus(t, err, tc.status)
		})
	}

	if _, err := f.posts.Create(ctx, PostInput{UserID: uid, Text: strPtr(strings.Repeat("é", 280))}); err != nil {
		t.Fatalf("280 characters must be accepted: %v", err)
	}
	_, err := f.posts.Patch(ctx, 1, PostInput{})
	assertStatus(t, err, http.StatusBadRequest)
	_, err = f.posts.ListByUser(ctx, -1)
	assertStatus(t, err, http.StatusBadRequest)
}
