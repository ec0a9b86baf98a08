// Package catalog keeps the local copies of services, collaborators and member services in
// step with the organization catalog published on Kafka.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/md-rashed-zaman/apptscheduler/services/scheduling-service/internal/model"
	"github.com/md-rashed-zaman/apptscheduler/services/scheduling-service/internal/storage"
	"github.com/segmentio/kafka-go"
)

const (
	TopicServiceUpserted      = "catalog.service.upserted.v1"
	TopicCollaboratorUpserted = "catalog.collaborator.upserted.v1"
	TopicMemberServiceChanged = "catalog.member_service.changed.v1"
)

var Topics = []string{TopicServiceUpserted, TopicCollaboratorUpserted, TopicMemberServiceChanged}

// Writer is the catalog side of the store.
type Writer interface {
	UpsertService(ctx context.Context, svc model.Service) error
	UpsertCollaborator(ctx context.Context, c model.Collaborator) error
	SetMemberService(ctx context.Context, ms model.MemberService, offered bool) error
}

var _ Writer = storage.Store(nil)

type Syncer struct {
	store Writer
}

func NewSyncer(store Writer) *Syncer {
	return &Syncer{store: store}
}

type servicePayload struct {
	OrganizationID  string `json:"organization_id"`
	ServiceID       string `json:"service_id"`
	Name            string `json:"name"`
	DurationMinutes int    `json:"duration_minutes"`
	Price           string `json:"price"`
	IsActive        *bool  `json:"is_active"`
}

type collaboratorPayload struct {
	OrganizationID string `json:"organization_id"`
	CollaboratorID string `json:"collaborator_id"`
	Name           string `json:"name"`
	Role           string `json:"role"`
	IsActive       *bool  `json:"is_active"`
}

type memberServicePayload struct {
	OrganizationID string `json:"organization_id"`
	CollaboratorID string `json:"collaborator_id"`
	ServiceID      string `json:"service_id"`
	Offered        bool   `json:"offered"`
}

// Handle applies one catalog message. It matches consumer.Handler.
func (s *Syncer) Handle(ctx context.Context, msg kafka.Message) error {
	switch msg.Topic {
	case TopicServiceUpserted:
		var p servicePayload
		if err := json.Unmarshal(msg.Value, &p); err != nil {
			return fmt.Errorf("decode service: %w", err)
		}
		return s.applyService(ctx, p)
	case TopicCollaboratorUpserted:
		var p collaboratorPayload
		if err := json.Unmarshal(msg.Value, &p); err != nil {
			return fmt.Errorf("decode collaborator: %w", err)
		}
		return s.applyCollaborator(ctx, p)
	case TopicMemberServiceChanged:
		var p memberServicePayload
		if err := json.Unmarshal(msg.Value, &p); err != nil {
			return fmt.Errorf("decode member service: %w", err)
		}
		return s.applyMemberService(ctx, p)
	default:
		return fmt.Errorf("unexpected topic %q", msg.Topic)
	}
}

func (s *Syncer) applyService(ctx context.Context, p servicePayload) error {
	if err := requireIDs(p.OrganizationID, p.ServiceID); err != nil {
		return err
	}
	if p.DurationMinutes <= 0 || p.DurationMinutes > 24*60 {
		return fmt.Errorf("service %s: invalid duration %d", p.ServiceID, p.DurationMinutes)
	}
	price := strings.TrimSpace(p.Price)
	if price == "" {
		price = "0"
	}
	return s.store.UpsertService(ctx, model.Service{
		ID:              p.ServiceID,
		OrganizationID:  p.OrganizationID,
		Name:            strings.TrimSpace(p.Name),
		DurationMinutes: p.DurationMinutes,
		Price:           price,
		IsActive:        active(p.IsActive),
	})
}

func (s *Syncer) applyCollaborator(ctx context.Context, p collaboratorPayload) error {
	if err := requireIDs(p.OrganizationID, p.CollaboratorID); err != nil {
		return err
	}
	return s.store.UpsertCollaborator(ctx, model.Collaborator{
		ID:             p.CollaboratorID,
		OrganizationID: p.OrganizationID,
		Name:           strings.TrimSpace(p.Name),
		Role:           strings.TrimSpace(p.Role),
		IsActive:       active(p.IsActive),
	})
}

func (s *Syncer) applyMemberService(ctx context.Context, p memberServicePayload) error {
	if err := requireIDs(p.OrganizationID, p.CollaboratorID, p.ServiceID); err != nil {
		return err
	}
	return s.store.SetMemberService(ctx, model.MemberService{
		OrganizationID: p.OrganizationID,
		CollaboratorID: p.CollaboratorID,
		ServiceID:      p.ServiceID,
	}, p.Offered)
}

func requireIDs(ids ...string) error {
	for _, id := range ids {
		if strings.TrimSpace(id) == "" {
			return fmt.Errorf("catalog event missing id")
		}
	}
	return nil
}

// active treats a missing flag as active.
func active(flag *bool) bool {
	return flag == nil || *flag
}
