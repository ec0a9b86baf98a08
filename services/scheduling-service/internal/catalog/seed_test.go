package catalog

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/md-rashed-zaman/apptscheduler/services/scheduling-service/internal/storage"
)

const seedJSON = `{
  "services": [{"organization_id":"org","service_id":"svc","name":"Cut","duration_minutes":30,"price":"35.00"}],
  "collaborators": [{"organization_id":"org","collaborator_id":"c1","name":"Ana"}],
  "member_services": [{"organization_id":"org","collaborator_id":"c1","service_id":"svc","offered":true}]
}`

func TestLoadSeedFilePopulatesCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.json")
	if err := os.WriteFile(path, []byte(seedJSON), 0o600); err != nil {
		t.Fatalf("write seed: %v", err)
	}
	s := storage.NewMemoryStore()
	ctx := context.Background()

	n, err := NewSyncer(s).LoadSeedFile(ctx, path)
	if err != nil {
		t.Fatalf("load seed: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 entries, got %d", n)
	}
	svc, err := s.GetService(ctx, "org", "svc")
	if err != nil || svc.DurationMinutes != 30 || !svc.IsActive {
		t.Fatalf("unexpected service %+v (%v)", svc, err)
	}
	ids, err := s.ListServiceCollaborators(ctx, "org", "svc")
	if err != nil || len(ids) != 1 || ids[0] != "c1" {
		t.Fatalf("unexpected collaborators %v (%v)", ids, err)
	}
}

func TestLoadSeedRejectsInvalidEntries(t *testing.T) {
	s := storage.NewMemoryStore()
	bad := `{"services":[{"organization_id":"org","service_id":"svc","duration_minutes":0}]}`
	if _, err := NewSyncer(s).LoadSeed(context.Background(), strings.NewReader(bad)); err == nil {
		t.Fatal("expected error for zero duration")
	}
	if _, err := NewSyncer(s).LoadSeed(context.Background(), strings.NewReader(`{"rooms":[]}`)); err == nil {
		t.Fatal("expected error for unknown field")
	}
}
