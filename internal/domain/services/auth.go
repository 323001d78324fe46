package services

import (
	"github.com/arnaud-morvan/v6-api/internal/domain/models"
	"github.com/arnaud-morvan/v6-api/internal/domain/models/docsystem"
)

// DocumentAuthorizer decides who may write which document.
//
// Services call the authorizer before opening a write transaction; a nil
// actor always fails with domain.ErrUnauthorized.
type DocumentAuthorizer interface {
	// CanCreate checks type-level restrictions (moderator-only types)
	CanCreate(actor *models.Actor, docType docsystem.DocumentType) error

	// CanUpdate checks protection, ownership and type-level restrictions
	CanUpdate(actor *models.Actor, doc *docsystem.Document) error

	// CanModerate checks the moderator role
	CanModerate(actor *models.Actor) error
}
