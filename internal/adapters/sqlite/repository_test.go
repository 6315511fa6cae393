package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/jobrunner/sweeper/internal/domain"
)

func openTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := Open(context.Background(), filepath.Join(t.TempDir(), "sweeper.db"))
	if err != nil {
		t.Fatalf("failed to open repository: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func newArea(t *testing.T, name string) *domain.WorkArea {
	t.Helper()
	wa, err := domain.NewWorkArea(domain.WorkAreaInput{
		Name:        name,
		Coordinates: "[[116.40,39.90],[116.42,39.90],[116.42,39.92],[116.40,39.92]]",
		Datum:       domain.DatumGCJ02,
		MapGrade:    17,
	})
	if err != nil {
		t.Fatalf("failed to build work area: %v", err)
	}
	return wa
}

func TestRepositoryCreateGet(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	wa := newArea(t, "north yard")
	if err := repo.Create(ctx, wa); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if wa.ID == 0 {
		t.Fatal("expected ID to be set")
	}
	if wa.CreatedAt.IsZero() || !wa.CreatedAt.Equal(wa.UpdatedAt) {
		t.Errorf("unexpected timestamps: %v / %v", wa.CreatedAt, wa.UpdatedAt)
	}

	got, err := repo.Get(ctx, wa.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Name != wa.Name || got.Datum != domain.DatumGCJ02 || got.MapGrade != 17 {
		t.Errorf("unexpected work area: %+v", got)
	}
	if got.Center != wa.Center {
		t.Errorf("Center = %v, want %v", got.Center, wa.Center)
	}
	if len(got.Vertices) != len(wa.Vertices) {
		t.Fatalf("got %d vertices, want %d", len(got.Vertices), len(wa.Vertices))
	}
	for i := range wa.Vertices {
		if got.Vertices[i] != wa.Vertices[i] {
			t.Errorf("vertex %d = %v, want %v", i, got.Vertices[i], wa.Vertices[i])
		}
	}
	if !got.CreatedAt.Equal(wa.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, wa.CreatedAt)
	}
}

func TestRepositoryCreateDuplicateName(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	if err := repo.Create(ctx, newArea(t, "dock")); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	err := repo.Create(ctx, newArea(t, "dock"))
	if !errors.Is(err, domain.ErrWorkAreaExists) {
		t.Errorf("expected ErrWorkAreaExists, got %v", err)
	}
}

func TestRepositoryGetNotFound(t *testing.T) {
	repo := openTestRepo(t)

	_, err := repo.Get(context.Background(), 42)
	if !errors.Is(err, domain.ErrWorkAreaNotFound) {
		t.Errorf("expected ErrWorkAreaNotFound, got %v", err)
	}
}

func TestRepositoryUpdate(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	wa := newArea(t, "plaza")
	if err := repo.Create(ctx, wa); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	other := newArea(t, "market")
	if err := repo.Create(ctx, other); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	wa.Name = "plaza east"
	wa.MapGrade = 18
	if err := repo.Update(ctx, wa); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	got, err := repo.Get(ctx, wa.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Name != "plaza east" || got.MapGrade != 18 {
		t.Errorf("update not persisted: %+v", got)
	}

	wa.Name = "market"
	if err := repo.Update(ctx, wa); !errors.Is(err, domain.ErrWorkAreaExists) {
		t.Errorf("expected ErrWorkAreaExists on rename collision, got %v", err)
	}

	missing := newArea(t, "ghost")
	missing.ID = 999
	if err := repo.Update(ctx, missing); !errors.Is(err, domain.ErrWorkAreaNotFound) {
		t.Errorf("expected ErrWorkAreaNotFound, got %v", err)
	}
}

func TestRepositoryListDelete(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	areas, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(areas) != 0 {
		t.Errorf("expected empty list, got %d", len(areas))
	}

	for _, name := range []string{"a", "b", "c"} {
		if err := repo.Create(ctx, newArea(t, name)); err != nil {
			t.Fatalf("Create %s failed: %v", name, err)
		}
	}

	areas, err = repo.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(areas) != 3 || areas[0].Name != "a" || areas[2].Name != "c" {
		t.Fatalf("unexpected list: %+v", areas)
	}

	if err := repo.Delete(ctx, areas[1].ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := repo.Delete(ctx, areas[1].ID); !errors.Is(err, domain.ErrWorkAreaNotFound) {
		t.Errorf("expected ErrWorkAreaNotFound on second delete, got %v", err)
	}

	areas, _ = repo.List(ctx)
	if len(areas) != 2 {
		t.Errorf("expected 2 areas after delete, got %d", len(areas))
	}
}

func TestRepositoryReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sweeper.db")
	ctx := context.Background()

	repo, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	wa := newArea(t, "persisted")
	if err := repo.Create(ctx, wa); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	_ = repo.Close()

	repo, err = Open(ctx, path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer func() { _ = repo.Close() }()

	if err := repo.Ping(ctx); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
	if _, err := repo.Get(ctx, wa.ID); err != nil {
		t.Errorf("Get after reopen failed: %v", err)
	}
}
