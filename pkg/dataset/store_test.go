package dataset

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/tagwright/tagwright/pkg/tagtpl"
	_ "modernc.org/sqlite"
)

func setupTestStore(tb testing.TB) *Store {
	tb.Helper()

	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?mode=memory&cache=shared", tb.Name()))
	if err != nil {
		tb.Fatalf("failed to open in-memory db: %v", err)
	}
	tb.Cleanup(func() { _ = db.Close() })

	if err = SetupSchema(db); err != nil {
		tb.Fatalf("failed to setup dataset schema: %v", err)
	}

	store, err := NewStore(db)
	if err != nil {
		tb.Fatalf("NewStore failed: %v", err)
	}
	tb.Cleanup(store.Close)
	return store
}

func TestStore_PutGetRoundTrip(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	vars := map[string]any{
		"SiteName": "Example",
		"Visits":   float64(12),
		"Beta":     true,
		"PostList": []any{
			map[string]any{"PostItemName": "one"},
			map[string]any{"PostItemName": "two"},
		},
	}
	if err := store.Put(ctx, "home", vars); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := store.Get(ctx, "home")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if diff := cmp.Diff(vars, got); diff != "" {
		t.Errorf("round-tripped vars mismatch (-want +got):\n%s", diff)
	}
}

func TestStore_GetMissing(t *testing.T) {
	store := setupTestStore(t)
	if _, err := store.Get(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_PutReplaces(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	if err := store.Put(ctx, "page", map[string]any{"v": "old"}); err != nil {
		t.Fatalf("first Put failed: %v", err)
	}
	if err := store.Put(ctx, "page", map[string]any{"v": "new"}); err != nil {
		t.Fatalf("second Put failed: %v", err)
	}

	got, err := store.Get(ctx, "page")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got["v"] != "new" {
		t.Errorf("expected replaced value, got %v", got["v"])
	}

	infos, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(infos) != 1 || infos[0].Name != "page" {
		t.Errorf("expected a single dataset after replace, got %+v", infos)
	}
}

func TestStore_Delete(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	if err := store.Put(ctx, "gone", map[string]any{"v": 1}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := store.Delete(ctx, "gone"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := store.Delete(ctx, "gone"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete should report ErrNotFound, got %v", err)
	}
}

func TestBind_NormalizesListShapes(t *testing.T) {
	r := tagtpl.New(nil, nil, nil)
	Bind(r, map[string]any{
		"Title": "bound",
		"Items": []any{
			map[string]any{"n": "a"},
			map[string]any{"n": "b"},
		},
	})

	got := r.Render("[tag::Title]: [tag::Items--Block][tag::Items--Loop][tag::n][/tag::Items--Loop][/tag::Items--Block]")
	if got != "bound: ab" {
		t.Errorf("bound render = %q", got)
	}
}
