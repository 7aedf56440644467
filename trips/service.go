/*
service.go - Trip/project orchestration

PURPOSE:
  Coordinates the ledger with the project/document store. The interesting
  part is trip deletion: removing a trip touches up to four entities, and
  the cleanup is deliberately a lenient, best-effort cascade rather than a
  transaction. "The trip is gone" matters more than "everything related is
  perfectly cleaned up"; whatever could not be cleaned is reported as a
  warning for the user to see.

CASCADE ORDER (DeleteTrip):
  1. Delete expense/invoice documents attached to the trip
  2. Void the trip in the ledger
  3. Delete the source callsheet, if the trip came from extraction
  4. Delete the owning project if now empty of trips and documents

  Each step runs in its own error boundary. A failed step is recorded and
  the cascade continues; step 4 naturally skips itself when step 2 failed,
  because the trip is then still live in the project.
*/
package trips

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/driveline/trip-ledger/ledger"
)

// Service orchestrates one user's trips, projects and documents.
// Extractor and Distance are optional; when nil the corresponding
// features are unavailable.
type Service struct {
	Ledger   *ledger.Service
	Projects ProjectStore

	Extractor Extractor
	Distance  DistanceCalculator

	userID ledger.UserID
	now    func() time.Time
}

// NewService wires an orchestration service for one user.
func NewService(userID ledger.UserID, l *ledger.Service, projects ProjectStore) *Service {
	return &Service{
		Ledger:   l,
		Projects: projects,
		userID:   userID,
		now:      time.Now,
	}
}

// =============================================================================
// TRIP OPERATIONS
// =============================================================================

// CreateTrip records a trip. When the caller left the distance unset and a
// distance calculator is configured, the route distance is resolved first.
func (s *Service) CreateTrip(ctx context.Context, data ledger.TripData, source ledger.Source) (*ledger.Entry, error) {
	if data.Distance.IsZero() && s.Distance != nil {
		dist, err := s.Distance.RouteDistance(ctx, data.Locations)
		if err != nil {
			return nil, fmt.Errorf("resolve route distance: %w", err)
		}
		data.Distance = dist
	}
	return s.Ledger.CreateTrip(ctx, data, source)
}

// CascadeResult reports what a DeleteTrip cascade managed to do. Warnings
// hold one message per step that failed; the zero-length case means the
// whole cascade succeeded.
type CascadeResult struct {
	TripVoided       bool     `json:"tripVoided"`
	DocumentsDeleted int      `json:"documentsDeleted"`
	CallsheetDeleted bool     `json:"callsheetDeleted"`
	ProjectDeleted   bool     `json:"projectDeleted"`
	Warnings         []string `json:"warnings,omitempty"`
}

// DeleteTrip runs the lenient cascade described in the file header. Only a
// trip missing from the projection aborts up front; any later failure is
// reported in the result and the remaining steps still run.
func (s *Service) DeleteTrip(ctx context.Context, tripID ledger.TripID, voidReason string) (*CascadeResult, error) {
	trips, err := s.Ledger.Trips(ctx)
	if err != nil {
		return nil, err
	}
	var target *ledger.Trip
	for i := range trips {
		if trips[i].ID == tripID {
			target = &trips[i]
			break
		}
	}
	if target == nil {
		return nil, &ledger.NotFoundError{TripID: tripID}
	}
	projectID := target.ProjectID

	result := &CascadeResult{}

	// Step 1: expense/invoice documents.
	docs, err := s.Projects.ListDocumentsByTrip(ctx, s.userID, tripID)
	if err != nil {
		result.Warnings = append(result.Warnings, fmt.Sprintf("could not list trip documents: %v", err))
	}
	var callsheets []Document
	for _, d := range docs {
		if d.Kind == DocumentCallsheet {
			callsheets = append(callsheets, d)
			continue
		}
		if err := s.Projects.DeleteDocument(ctx, s.userID, d.ID); err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("could not delete document %s: %v", d.ID, err))
			continue
		}
		result.DocumentsDeleted++
	}

	// Step 2: void the trip.
	if _, err := s.Ledger.VoidTrip(ctx, tripID, voidReason, ledger.SourceManual); err != nil {
		result.Warnings = append(result.Warnings, fmt.Sprintf("could not void trip: %v", err))
	} else {
		result.TripVoided = true
	}

	// Step 3: source callsheets.
	for _, d := range callsheets {
		if err := s.Projects.DeleteDocument(ctx, s.userID, d.ID); err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("could not delete callsheet %s: %v", d.ID, err))
			continue
		}
		result.CallsheetDeleted = true
	}

	// Step 4: the owning project, if empty. Re-reads the projection, so a
	// failed void keeps the project alive on its own.
	if projectID != "" {
		deleted, err := s.deleteProjectIfEmpty(ctx, projectID)
		if err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("could not clean up project %s: %v", projectID, err))
		}
		result.ProjectDeleted = deleted
	}

	return result, nil
}

func (s *Service) deleteProjectIfEmpty(ctx context.Context, projectID ledger.ProjectID) (bool, error) {
	trips, err := s.Ledger.Trips(ctx)
	if err != nil {
		return false, err
	}
	for _, t := range trips {
		if t.ProjectID == projectID {
			return false, nil
		}
	}

	docs, err := s.Projects.ListDocumentsByProject(ctx, s.userID, projectID)
	if err != nil {
		return false, err
	}
	if len(docs) > 0 {
		return false, nil
	}

	if err := s.Projects.DeleteProject(ctx, s.userID, projectID); err != nil {
		return false, err
	}
	return true, nil
}

// =============================================================================
// PROJECTS
// =============================================================================

// CreateProject registers a new project for the user.
func (s *Service) CreateProject(ctx context.Context, name string) (*Project, error) {
	if name == "" {
		return nil, &ledger.ValidationError{Field: "name", Message: "project name is required"}
	}
	p := Project{
		ID:        ledger.ProjectID(uuid.NewString()),
		UserID:    s.userID,
		Name:      name,
		CreatedAt: s.now().UTC(),
	}
	if err := s.Projects.SaveProject(ctx, p); err != nil {
		return nil, err
	}
	return &p, nil
}

// RegisterDocument stores metadata for a file already uploaded to the
// external object store.
func (s *Service) RegisterDocument(ctx context.Context, d Document) (*Document, error) {
	if d.StorageKey == "" {
		return nil, &ledger.ValidationError{Field: "storageKey", Message: "storage key is required"}
	}
	switch d.Kind {
	case DocumentCallsheet, DocumentInvoice, DocumentExpense:
	default:
		return nil, &ledger.ValidationError{Field: "kind", Message: "unknown document kind"}
	}
	d.ID = uuid.NewString()
	d.UserID = s.userID
	d.CreatedAt = s.now().UTC()
	if err := s.Projects.SaveDocument(ctx, d); err != nil {
		return nil, err
	}
	return &d, nil
}

// =============================================================================
// DOCUMENT EXTRACTION INTAKE
// =============================================================================

// ImportFromCallsheet feeds a stored callsheet through the external
// extractor and records the resulting trips as one AI_AGENT batch that
// references the source document.
func (s *Service) ImportFromCallsheet(ctx context.Context, doc Document) (*ledger.ImportResult, error) {
	if s.Extractor == nil {
		return nil, fmt.Errorf("no extractor configured")
	}
	if doc.Kind != DocumentCallsheet {
		return nil, &ledger.ValidationError{Field: "kind", Message: "extraction requires a callsheet document"}
	}

	data, err := s.Extractor.ExtractTrips(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("extract trips from %s: %w", doc.ID, err)
	}
	return s.Ledger.ImportTripsBatch(ctx, data, ledger.SourceAIAgent, []string{doc.ID})
}
