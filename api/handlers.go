/*
handlers.go - HTTP API handlers for the trip ledger

PURPOSE:
  Exposes the trip ledger and its orchestration layer via REST API.
  Handles HTTP request/response, JSON serialization, and delegates to
  domain logic.

ENDPOINTS:
  Trips:
    GET    /api/trips                  Live trips (projection)
    POST   /api/trips                  Create a trip
    PATCH  /api/trips/{id}             Amend a trip
    DELETE /api/trips/{id}             Void a trip + cascade cleanup
    POST   /api/trips/import           Batch import (JSON)
    POST   /api/trips/import/csv       Batch import (CSV body)

  Ledger:
    GET    /api/ledger/entries         Full entry history
    GET    /api/ledger/verify          Chain integrity report
    GET    /api/ledger/batches         Batch summaries
    GET    /api/ledger/batches/{id}    Entries of one batch
    POST   /api/ledger/migrate         One-shot legacy migration

  Projects and documents:
    GET    /api/projects               List projects
    POST   /api/projects               Create project
    GET    /api/projects/{id}/documents Documents of a project
    POST   /api/documents              Register document metadata
    POST   /api/documents/{id}/extract Extract trips from a callsheet

TENANCY:
  Every request is scoped to one user via the X-User-ID header. Ledger
  and orchestration services are cheap per-request constructions around
  the shared store; the chain itself is the durable state.

ERROR HANDLING:
  Domain errors map onto HTTP status by category:
  - 400: validation errors
  - 404: trip/project/document not found
  - 500: repository and unexpected errors
  - 503: feature whose external collaborator is not configured
  A broken chain is NOT an error: GET /api/ledger/verify returns 200
  with isValid=false.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/driveline/trip-ledger/ledger"
	"github.com/driveline/trip-ledger/store/sqlite"
	"github.com/driveline/trip-ledger/trips"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds the shared dependencies for HTTP handlers. Extractor,
// Distance and Legacy are optional; endpoints needing an absent one
// answer 503.
type Handler struct {
	Store *sqlite.Store

	Extractor trips.Extractor
	Distance  trips.DistanceCalculator
	Legacy    ledger.LegacySource
}

// NewHandler creates a handler around the given store.
func NewHandler(store *sqlite.Store) *Handler {
	return &Handler{Store: store}
}

// scope binds the per-request services to the calling user. Returns false
// (after writing the error) when the user header is missing.
func (h *Handler) scope(w http.ResponseWriter, r *http.Request) (*trips.Service, bool) {
	userID := ledger.UserID(r.Header.Get("X-User-ID"))
	if userID == "" {
		writeError(w, http.StatusBadRequest, "Missing X-User-ID header", nil)
		return nil, false
	}
	l := ledger.NewService(h.Store, userID)
	svc := trips.NewService(userID, l, h.Store)
	svc.Extractor = h.Extractor
	svc.Distance = h.Distance
	return svc, true
}

// =============================================================================
// TRIP HANDLERS
// =============================================================================

// ListTrips returns the live trip set (voided trips excluded).
func (h *Handler) ListTrips(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.scope(w, r)
	if !ok {
		return
	}

	list, err := svc.Ledger.Trips(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTripDTOs(list))
}

// CreateTrip records a single trip.
func (h *Handler) CreateTrip(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.scope(w, r)
	if !ok {
		return
	}

	var req CreateTripRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	source, err := parseSource(req.Source, ledger.SourceManual)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	data, err := fromTripDataDTO(req.TripDataDTO)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	entry, err := svc.CreateTrip(r.Context(), data, source)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toEntryDTO(*entry))
}

// AmendTrip applies a partial correction to a trip. A request that
// changes nothing answers 200 with no entry.
func (h *Handler) AmendTrip(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.scope(w, r)
	if !ok {
		return
	}
	tripID := ledger.TripID(chi.URLParam(r, "id"))

	var req AmendTripRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	source, err := parseSource(req.Source, ledger.SourceManual)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	update, err := fromTripUpdateDTO(req.Updates)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	entry, err := svc.Ledger.AmendTrip(r.Context(), tripID, update, req.CorrectionReason, source)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if entry == nil {
		writeJSON(w, http.StatusOK, map[string]any{"amended": false})
		return
	}
	writeJSON(w, http.StatusOK, toEntryDTO(*entry))
}

// DeleteTrip voids a trip and runs the cascade cleanup. The result is
// 200 even when individual cascade steps failed; the warnings say what.
func (h *Handler) DeleteTrip(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.scope(w, r)
	if !ok {
		return
	}
	tripID := ledger.TripID(chi.URLParam(r, "id"))

	var req DeleteTripRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	result, err := svc.DeleteTrip(r.Context(), tripID, req.VoidReason)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// ImportTrips records multiple trips as one batch.
func (h *Handler) ImportTrips(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.scope(w, r)
	if !ok {
		return
	}

	var req ImportTripsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	source, err := parseSource(req.Source, ledger.SourceBulkUpload)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	data := make([]ledger.TripData, 0, len(req.Trips))
	for _, dto := range req.Trips {
		d, err := fromTripDataDTO(dto)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		data = append(data, d)
	}

	result, err := svc.Ledger.ImportTripsBatch(r.Context(), data, source, req.SourceDocuments)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ImportResultDTO{
		Entries: toEntryDTOs(result.Entries),
		Batch:   toBatchDTO(result.Batch),
	})
}

// ImportTripsCSV records trips from a CSV request body as one batch.
func (h *Handler) ImportTripsCSV(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.scope(w, r)
	if !ok {
		return
	}

	result, err := svc.ImportCSV(r.Context(), r.Body)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ImportResultDTO{
		Entries: toEntryDTOs(result.Entries),
		Batch:   toBatchDTO(result.Batch),
	})
}

// =============================================================================
// LEDGER HANDLERS
// =============================================================================

// ListEntries returns the full entry history in append order.
func (h *Handler) ListEntries(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.scope(w, r)
	if !ok {
		return
	}

	entries, err := svc.Ledger.Entries(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryDTOs(entries))
}

// VerifyLedger re-derives every hash and reports chain integrity.
func (h *Handler) VerifyLedger(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.scope(w, r)
	if !ok {
		return
	}

	verification, err := svc.Ledger.VerifyLedger(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toVerificationDTO(*verification))
}

// ListBatches returns all batch summaries.
func (h *Handler) ListBatches(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.scope(w, r)
	if !ok {
		return
	}

	batches, err := svc.Ledger.Batches(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dtos := make([]BatchDTO, len(batches))
	for i, b := range batches {
		dtos[i] = toBatchDTO(b)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetBatchEntries returns the entries of one batch in append order.
func (h *Handler) GetBatchEntries(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.scope(w, r)
	if !ok {
		return
	}
	batchID := ledger.BatchID(chi.URLParam(r, "id"))

	entries, err := svc.Ledger.BatchEntries(r.Context(), batchID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryDTOs(entries))
}

// Migrate runs the one-shot legacy import for the calling user.
func (h *Handler) Migrate(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.scope(w, r)
	if !ok {
		return
	}
	if h.Legacy == nil {
		writeError(w, http.StatusServiceUnavailable, "No legacy source configured", nil)
		return
	}

	result, err := svc.Ledger.Migrate(r.Context(), h.Legacy)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// =============================================================================
// PROJECT AND DOCUMENT HANDLERS
// =============================================================================

// ListProjects returns the user's projects.
func (h *Handler) ListProjects(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.scope(w, r)
	if !ok {
		return
	}

	projects, err := h.Store.ListProjects(r.Context(), svc.Ledger.UserID())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dtos := make([]ProjectDTO, len(projects))
	for i, p := range projects {
		dtos[i] = toProjectDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateProject registers a new project.
func (h *Handler) CreateProject(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.scope(w, r)
	if !ok {
		return
	}

	var req CreateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	project, err := svc.CreateProject(r.Context(), req.Name)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toProjectDTO(*project))
}

// ListProjectDocuments returns document metadata for one project.
func (h *Handler) ListProjectDocuments(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.scope(w, r)
	if !ok {
		return
	}
	projectID := ledger.ProjectID(chi.URLParam(r, "id"))

	docs, err := h.Store.ListDocumentsByProject(r.Context(), svc.Ledger.UserID(), projectID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dtos := make([]DocumentDTO, len(docs))
	for i, d := range docs {
		dtos[i] = toDocumentDTO(d)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// RegisterDocument stores metadata for an already-uploaded file.
func (h *Handler) RegisterDocument(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.scope(w, r)
	if !ok {
		return
	}

	var req RegisterDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	doc, err := svc.RegisterDocument(r.Context(), trips.Document{
		ProjectID:  ledger.ProjectID(req.ProjectID),
		TripID:     ledger.TripID(req.TripID),
		Kind:       trips.DocumentKind(req.Kind),
		Name:       req.Name,
		StorageKey: req.StorageKey,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toDocumentDTO(*doc))
}

// ExtractDocument feeds a stored callsheet through the extractor and
// records the resulting trips as one batch.
func (h *Handler) ExtractDocument(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.scope(w, r)
	if !ok {
		return
	}
	if h.Extractor == nil {
		writeError(w, http.StatusServiceUnavailable, "No extractor configured", nil)
		return
	}
	docID := chi.URLParam(r, "id")

	doc, err := h.Store.GetDocument(r.Context(), svc.Ledger.UserID(), docID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if doc == nil {
		writeError(w, http.StatusNotFound, "Document not found", nil)
		return
	}

	result, err := svc.ImportFromCallsheet(r.Context(), *doc)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ImportResultDTO{
		Entries: toEntryDTOs(result.Entries),
		Batch:   toBatchDTO(result.Batch),
	})
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeDomainError maps domain error categories onto HTTP status codes.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case ledger.IsValidation(err):
		writeError(w, http.StatusBadRequest, err.Error(), nil)
	case ledger.IsNotFound(err):
		writeError(w, http.StatusNotFound, err.Error(), nil)
	default:
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
