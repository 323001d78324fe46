package auth

import (
	"fmt"

	"github.com/arnaud-morvan/v6-api/internal/doctype"
	"github.com/arnaud-morvan/v6-api/internal/domain"
	"github.com/arnaud-morvan/v6-api/internal/domain/models"
	docsys "github.com/arnaud-morvan/v6-api/internal/domain/models/docsystem"
)

// RoleBasedAuthorizer implements DocumentAuthorizer from the actor's
// moderator role and the document type configuration.
//
// Rules:
//   - anyone authenticated may create and edit regular documents
//   - moderator-only types (maps, areas) are created and edited by moderators
//   - protected documents are edited by moderators only
//   - user profiles are edited by their owner (profile id == user id) or a moderator
type RoleBasedAuthorizer struct {
	registry *doctype.Registry
}

// NewRoleBasedAuthorizer creates a new role-based authorizer
func NewRoleBasedAuthorizer(registry *doctype.Registry) *RoleBasedAuthorizer {
	return &RoleBasedAuthorizer{registry: registry}
}

// CanCreate checks type-level restrictions
func (a *RoleBasedAuthorizer) CanCreate(actor *models.Actor, docType docsys.DocumentType) error {
	if actor == nil {
		return &domain.UnauthorizedError{Message: "authentication required"}
	}
	cfg, err := a.registry.Get(docType)
	if err != nil {
		return domain.NewValidationError("type", err.Error())
	}
	if (cfg.ModeratorOnly || cfg.OwnerOnly) && !actor.Moderator {
		return &domain.ForbiddenError{Message: fmt.Sprintf("only moderators can create %s documents", docType)}
	}
	return nil
}

// CanUpdate checks protection, ownership and type-level restrictions
func (a *RoleBasedAuthorizer) CanUpdate(actor *models.Actor, doc *docsys.Document) error {
	if actor == nil {
		return &domain.UnauthorizedError{Message: "authentication required"}
	}
	if actor.Moderator {
		return nil
	}

	cfg, err := a.registry.Get(doc.Type)
	if err != nil {
		return domain.NewValidationError("type", err.Error())
	}
	switch {
	case doc.Protected:
		return &domain.ForbiddenError{Message: fmt.Sprintf("document %d is protected", doc.ID)}
	case cfg.ModeratorOnly:
		return &domain.ForbiddenError{Message: fmt.Sprintf("only moderators can edit %s documents", doc.Type)}
	case cfg.OwnerOnly && doc.ID != actor.UserID:
		return &domain.ForbiddenError{Message: fmt.Sprintf("document %d belongs to another user", doc.ID)}
	}
	return nil
}

// CanModerate checks the moderator role
func (a *RoleBasedAuthorizer) CanModerate(actor *models.Actor) error {
	if actor == nil {
		return &domain.UnauthorizedError{Message: "authentication required"}
	}
	if !actor.Moderator {
		return &domain.ForbiddenError{Message: "moderator role required"}
	}
	return nil
}
