/*
Package trips coordinates trips with their surrounding entities.

PURPOSE:
  The ledger package knows nothing beyond trips and their history. This
  package owns everything around them: projects grouping trips, documents
  (callsheets, invoices, expense receipts) attached to trips and projects,
  and the cross-entity cleanup that has to happen when a trip goes away.

EXTERNAL COLLABORATORS:
  File contents live in an external object store; AI extraction and route
  distance calculation are external inference/geocoding services. They all
  appear here as interfaces only - a Document row carries a storage key,
  never bytes.

SEE ALSO:
  - service.go: the orchestration service and its cascade delete
  - csv.go: CSV intake for bulk imports
*/
package trips

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/driveline/trip-ledger/ledger"
)

// =============================================================================
// PROJECTS AND DOCUMENTS
// =============================================================================

// Project groups trips and documents for one production or client.
type Project struct {
	ID        ledger.ProjectID `json:"id"`
	UserID    ledger.UserID    `json:"userId"`
	Name      string           `json:"name"`
	CreatedAt time.Time        `json:"createdAt"`
}

// DocumentKind classifies attached documents.
type DocumentKind string

const (
	// DocumentCallsheet is a source document trips were extracted from.
	DocumentCallsheet DocumentKind = "callsheet"
	// DocumentInvoice is a billing document attached to a trip or project.
	DocumentInvoice DocumentKind = "invoice"
	// DocumentExpense is a receipt attached to a trip.
	DocumentExpense DocumentKind = "expense"
)

// Document is metadata about a file held in the external object store.
// TripID is empty for project-level documents.
type Document struct {
	ID         string           `json:"id"`
	UserID     ledger.UserID    `json:"userId"`
	ProjectID  ledger.ProjectID `json:"projectId"`
	TripID     ledger.TripID    `json:"tripId,omitempty"`
	Kind       DocumentKind     `json:"kind"`
	Name       string           `json:"name"`
	StorageKey string           `json:"storageKey"`
	CreatedAt  time.Time        `json:"createdAt"`
}

// ProjectStore persists projects and document metadata. Implemented by
// store/sqlite alongside the ledger repository.
type ProjectStore interface {
	SaveProject(ctx context.Context, p Project) error
	GetProject(ctx context.Context, userID ledger.UserID, id ledger.ProjectID) (*Project, error)
	ListProjects(ctx context.Context, userID ledger.UserID) ([]Project, error)
	DeleteProject(ctx context.Context, userID ledger.UserID, id ledger.ProjectID) error

	SaveDocument(ctx context.Context, d Document) error
	GetDocument(ctx context.Context, userID ledger.UserID, id string) (*Document, error)
	ListDocumentsByTrip(ctx context.Context, userID ledger.UserID, tripID ledger.TripID) ([]Document, error)
	ListDocumentsByProject(ctx context.Context, userID ledger.UserID, projectID ledger.ProjectID) ([]Document, error)
	DeleteDocument(ctx context.Context, userID ledger.UserID, id string) error
}

// =============================================================================
// EXTERNAL SERVICE CONTRACTS
// =============================================================================

// Extractor turns a stored callsheet/email document into trip data. The
// actual inference runs in an external service; this is its contract.
type Extractor interface {
	ExtractTrips(ctx context.Context, doc Document) ([]ledger.TripData, error)
}

// DistanceCalculator resolves the driven distance of a route via an
// external geocoding/routing service.
type DistanceCalculator interface {
	RouteDistance(ctx context.Context, locations []string) (decimal.Decimal, error)
}
