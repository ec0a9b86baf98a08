package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// seedFile is a catalog snapshot in the same shape as the Kafka payloads.
type seedFile struct {
	Services       []servicePayload       `json:"services"`
	Collaborators  []collaboratorPayload  `json:"collaborators"`
	MemberServices []memberServicePayload `json:"member_services"`
}

// LoadSeedFile applies the JSON catalog at path.
func (s *Syncer) LoadSeedFile(ctx context.Context, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open catalog seed: %w", err)
	}
	defer f.Close()
	return s.LoadSeed(ctx, f)
}

// LoadSeed applies services, then collaborators, then member services, and returns how many
// entries were written. It stops at the first invalid entry.
func (s *Syncer) LoadSeed(ctx context.Context, r io.Reader) (int, error) {
	var seed seedFile
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&seed); err != nil {
		return 0, fmt.Errorf("decode catalog seed: %w", err)
	}

	n := 0
	for _, p := range seed.Services {
		if err := s.applyService(ctx, p); err != nil {
			return n, fmt.Errorf("seed service %q: %w", p.ServiceID, err)
		}
		n++
	}
	for _, p := range seed.Collaborators {
		if err := s.applyCollaborator(ctx, p); err != nil {
			return n, fmt.Errorf("seed collaborator %q: %w", p.CollaboratorID, err)
		}
		n++
	}
	for _, p := range seed.MemberServices {
		if err := s.applyMemberService(ctx, p); err != nil {
			return n, fmt.Errorf("seed member service %q/%q: %w", p.CollaboratorID, p.ServiceID, err)
		}
		n++
	}
	return n, nil
}
