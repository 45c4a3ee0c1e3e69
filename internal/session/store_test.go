package session_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"submux/internal/session"
	"submux/internal/testsupport"
)

func TestGetMissingReturnsNil(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))

	sess, err := store.Get(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if sess != nil {
		t.Fatalf("expected nil session, got %#v", sess)
	}
}

func TestPutAssetsBuildsCompleteSession(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	if err := store.PutSubtitle(ctx, "42", session.Asset{StoredName: "b.srt"}); err != nil {
		t.Fatalf("PutSubtitle failed: %v", err)
	}
	sess, err := store.Get(ctx, "42")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if sess.Complete() {
		t.Fatal("session with one asset must be incomplete")
	}
	if got := strings.Join(sess.Missing(), ","); got != "video" {
		t.Fatalf("unexpected missing list %q", got)
	}

	if err := store.PutVideo(ctx, "42", session.Asset{StoredName: "a.mp4", OriginalName: "Movie.mp4"}, "Movie.mp4"); err != nil {
		t.Fatalf("PutVideo failed: %v", err)
	}
	sess, err = store.Get(ctx, "42")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !sess.Complete() {
		t.Fatalf("expected complete session, got %#v", sess)
	}
	if sess.Video.OriginalName != "Movie.mp4" || sess.Subtitle.StoredName != "b.srt" {
		t.Fatalf("unexpected assets: %#v %#v", sess.Video, sess.Subtitle)
	}
	if sess.OutputName != "Movie.mp4" {
		t.Fatalf("unexpected output name %q", sess.OutputName)
	}
	if sess.CreatedAt.IsZero() || sess.UpdatedAt.IsZero() {
		t.Fatal("expected timestamps to be populated")
	}
}

func TestPutVideoReplacesPreviousReference(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	if err := store.PutVideo(ctx, "u", session.Asset{StoredName: "one.mkv", OriginalName: "one.mkv"}, "one.mkv"); err != nil {
		t.Fatalf("PutVideo failed: %v", err)
	}
	if err := store.PutVideo(ctx, "u", session.Asset{StoredName: "two.mp4", OriginalName: "two.mp4"}, "custom"); err != nil {
		t.Fatalf("PutVideo failed: %v", err)
	}
	sess, err := store.Get(ctx, "u")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if sess.Video.StoredName != "two.mp4" || sess.OutputName != "custom" {
		t.Fatalf("expected second upload to win, got %#v", sess)
	}
}

func TestOutputNameLengthEnforced(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	long := strings.Repeat("x", session.MaxOutputNameLength+1)
	if err := store.SetOutputName(ctx, "u", long); !errors.Is(err, session.ErrNameTooLong) {
		t.Fatalf("expected ErrNameTooLong, got %v", err)
	}
	if err := store.PutVideo(ctx, "u", session.Asset{StoredName: "a.mp4"}, long); !errors.Is(err, session.ErrNameTooLong) {
		t.Fatalf("expected ErrNameTooLong from PutVideo, got %v", err)
	}
	exact := strings.Repeat("y", session.MaxOutputNameLength)
	if err := store.SetOutputName(ctx, "u", exact); err != nil {
		t.Fatalf("expected 60 character name to be accepted: %v", err)
	}
	sess, err := store.Get(ctx, "u")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if sess.OutputName != exact {
		t.Fatalf("unexpected output name %q", sess.OutputName)
	}
}

func TestPreferencesRoundTripAndResolve(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	var prefs session.Preferences
	if err := prefs.Set(session.FieldCRF, "18"); err != nil {
		t.Fatalf("Set crf: %v", err)
	}
	if err := prefs.Set(session.FieldResolution, "1920x1080"); err != nil {
		t.Fatalf("Set resolution: %v", err)
	}
	if err := store.SetPreferences(ctx, "u", prefs); err != nil {
		t.Fatalf("SetPreferences failed: %v", err)
	}

	sess, err := store.Get(ctx, "u")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	got := sess.Preferences.Resolve(session.DefaultSettings())
	want := session.DefaultSettings()
	want.CRF = 18
	want.Resolution = "1920x1080"
	if got != want {
		t.Fatalf("resolved settings = %+v, want %+v", got, want)
	}
	if sess.Complete() {
		t.Fatal("preferences alone must not complete a session")
	}
}

func TestEraseRemovesSession(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	if err := store.PutSubtitle(ctx, "u", session.Asset{StoredName: "s.ass"}); err != nil {
		t.Fatalf("PutSubtitle failed: %v", err)
	}
	if err := store.Erase(ctx, "u"); err != nil {
		t.Fatalf("Erase failed: %v", err)
	}
	if err := store.Erase(ctx, "u"); err != nil {
		t.Fatalf("second Erase should be a no-op: %v", err)
	}
	sess, err := store.Get(ctx, "u")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if sess != nil {
		t.Fatalf("expected session to be erased, got %#v", sess)
	}
}

func TestConcurrentUsersAreIndependent(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	const users = 8
	var wg sync.WaitGroup
	errs := make(chan error, users*2)
	for i := 0; i < users; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			user := fmt.Sprintf("user-%d", i)
			name := fmt.Sprintf("video-%d.mp4", i)
			if err := store.PutVideo(ctx, user, session.Asset{StoredName: name, OriginalName: name}, name); err != nil {
				errs <- err
				return
			}
			if err := store.PutSubtitle(ctx, user, session.Asset{StoredName: fmt.Sprintf("sub-%d.srt", i)}); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent write failed: %v", err)
	}

	for i := 0; i < users; i++ {
		sess, err := store.Get(ctx, fmt.Sprintf("user-%d", i))
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if !sess.Complete() || sess.Video.StoredName != fmt.Sprintf("video-%d.mp4", i) {
			t.Fatalf("user %d session corrupted: %#v", i, sess)
		}
	}
}

func TestListIdleSince(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	if err := store.PutSubtitle(ctx, "old", session.Asset{StoredName: "o.srt"}); err != nil {
		t.Fatalf("PutSubtitle failed: %v", err)
	}
	all, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected 1 session, got %d", len(all))
	}

	idle, err := store.ListIdleSince(ctx, time.Now().Add(time.Minute))
	if err != nil {
		t.Fatalf("ListIdleSince failed: %v", err)
	}
	if len(idle) != 1 || idle[0].UserID != "old" {
		t.Fatalf("expected old session to be idle, got %#v", idle)
	}
	idle, err = store.ListIdleSince(ctx, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("ListIdleSince failed: %v", err)
	}
	if len(idle) != 0 {
		t.Fatalf("expected no idle sessions, got %d", len(idle))
	}
}

func TestReopenKeepsData(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store, err := session.Open(cfg)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := store.PutSubtitle(context.Background(), "u", session.Asset{StoredName: "k.srt"}); err != nil {
		t.Fatalf("PutSubtitle failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened := testsupport.MustOpenStore(t, cfg)
	sess, err := reopened.Get(context.Background(), "u")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if sess == nil || sess.Subtitle.StoredName != "k.srt" {
		t.Fatalf("expected persisted subtitle, got %#v", sess)
	}
}

func TestOpenRefusesForeignLayout(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "sessions.db")
	db, err := sql.Open("sqlite", "file:"+dbPath)
	if err != nil {
		t.Fatalf("sql.Open failed: %v", err)
	}
	if _, err := db.Exec("PRAGMA user_version = 7"); err != nil {
		t.Fatalf("stamp user_version: %v", err)
	}
	_ = db.Close()

	store, err := session.OpenPath(dbPath)
	if err == nil {
		_ = store.Close()
		t.Fatal("expected layout mismatch error")
	}
	if !errors.Is(err, session.ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}
