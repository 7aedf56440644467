/*
dto.go - Request/response data structures for the HTTP API

PURPOSE:
  Keeps wire shapes separate from domain types. The one real translation
  is distances: decimal.Decimal internally, plain JSON number on the wire.
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/driveline/trip-ledger/ledger"
	"github.com/driveline/trip-ledger/trips"
)

// =============================================================================
// TRIPS
// =============================================================================

// TripDTO is the wire shape of a trip.
type TripDTO struct {
	ID            string   `json:"id"`
	Date          string   `json:"date"`
	Locations     []string `json:"locations"`
	Distance      float64  `json:"distance"`
	ProjectID     string   `json:"projectId"`
	Reason        string   `json:"reason"`
	SpecialOrigin string   `json:"specialOrigin"`
	Passengers    *int     `json:"passengers,omitempty"`
	Warnings      []string `json:"warnings,omitempty"`
	Hash          string   `json:"hash"`
	PreviousHash  string   `json:"previousHash"`
}

// TripDataDTO is the caller-authored portion of a trip.
type TripDataDTO struct {
	Date          string   `json:"date"`
	Locations     []string `json:"locations"`
	Distance      float64  `json:"distance"`
	ProjectID     string   `json:"projectId"`
	Reason        string   `json:"reason"`
	SpecialOrigin string   `json:"specialOrigin"`
	Passengers    *int     `json:"passengers,omitempty"`
	Warnings      []string `json:"warnings,omitempty"`
}

// CreateTripRequest creates a single trip.
type CreateTripRequest struct {
	TripDataDTO
	Source string `json:"source,omitempty"`
}

// TripUpdateDTO mirrors ledger.TripUpdate: nil means "leave unchanged".
type TripUpdateDTO struct {
	Date          *string  `json:"date,omitempty"`
	Locations     []string `json:"locations,omitempty"`
	Distance      *float64 `json:"distance,omitempty"`
	ProjectID     *string  `json:"projectId,omitempty"`
	Reason        *string  `json:"reason,omitempty"`
	SpecialOrigin *string  `json:"specialOrigin,omitempty"`
	Passengers    *int     `json:"passengers,omitempty"`
	Warnings      []string `json:"warnings,omitempty"`
}

// AmendTripRequest corrects an existing trip.
type AmendTripRequest struct {
	Updates          TripUpdateDTO `json:"updates"`
	CorrectionReason string        `json:"correctionReason"`
	Source           string        `json:"source,omitempty"`
}

// DeleteTripRequest voids a trip and runs the cascade cleanup.
type DeleteTripRequest struct {
	VoidReason string `json:"voidReason"`
}

// ImportTripsRequest records multiple trips as one batch.
type ImportTripsRequest struct {
	Trips           []TripDataDTO `json:"trips"`
	Source          string        `json:"source,omitempty"`
	SourceDocuments []string      `json:"sourceDocuments,omitempty"`
}

// =============================================================================
// LEDGER
// =============================================================================

// EntryDTO is the wire shape of one ledger entry.
type EntryDTO struct {
	ID               string   `json:"id"`
	Hash             string   `json:"hash"`
	PreviousHash     string   `json:"previousHash"`
	Timestamp        string   `json:"timestamp"`
	Operation        string   `json:"operation"`
	Source           string   `json:"source"`
	UserID           string   `json:"userId"`
	TripID           string   `json:"tripId"`
	TripSnapshot     TripDTO  `json:"tripSnapshot"`
	BatchID          string   `json:"batchId,omitempty"`
	CorrectionReason string   `json:"correctionReason,omitempty"`
	ChangedFields    []string `json:"changedFields,omitempty"`
	VoidReason       string   `json:"voidReason,omitempty"`
	PreviousSnapshot *TripDTO `json:"previousSnapshot,omitempty"`
}

// BatchDTO is the wire shape of a batch summary.
type BatchDTO struct {
	ID              string   `json:"id"`
	Timestamp       string   `json:"timestamp"`
	Source          string   `json:"source"`
	UserID          string   `json:"userId"`
	EntryCount      int      `json:"entryCount"`
	FirstEntryHash  string   `json:"firstEntryHash"`
	LastEntryHash   string   `json:"lastEntryHash"`
	SourceDocuments []string `json:"sourceDocuments,omitempty"`
}

// ImportResultDTO is the outcome of a batch import.
type ImportResultDTO struct {
	Entries []EntryDTO `json:"entries"`
	Batch   BatchDTO   `json:"batch"`
}

// VerificationDTO is the chain integrity report.
type VerificationDTO struct {
	IsValid       bool      `json:"isValid"`
	TotalEntries  int       `json:"totalEntries"`
	RootHash      string    `json:"rootHash"`
	FirstEntry    *EntryDTO `json:"firstEntry,omitempty"`
	LastEntry     *EntryDTO `json:"lastEntry,omitempty"`
	BrokenChainAt string    `json:"brokenChainAt,omitempty"`
	VerifiedAt    string    `json:"verificationTimestamp"`
}

// =============================================================================
// PROJECTS AND DOCUMENTS
// =============================================================================

// CreateProjectRequest registers a project.
type CreateProjectRequest struct {
	Name string `json:"name"`
}

// ProjectDTO is the wire shape of a project.
type ProjectDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"createdAt"`
}

// RegisterDocumentRequest stores metadata for an already-uploaded file.
type RegisterDocumentRequest struct {
	ProjectID  string `json:"projectId"`
	TripID     string `json:"tripId,omitempty"`
	Kind       string `json:"kind"`
	Name       string `json:"name"`
	StorageKey string `json:"storageKey"`
}

// DocumentDTO is the wire shape of document metadata.
type DocumentDTO struct {
	ID         string `json:"id"`
	ProjectID  string `json:"projectId"`
	TripID     string `json:"tripId,omitempty"`
	Kind       string `json:"kind"`
	Name       string `json:"name"`
	StorageKey string `json:"storageKey"`
	CreatedAt  string `json:"createdAt"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toTripDTO(t ledger.Trip) TripDTO {
	return TripDTO{
		ID:            string(t.ID),
		Date:          t.Date.String(),
		Locations:     t.Locations,
		Distance:      t.Distance.InexactFloat64(),
		ProjectID:     string(t.ProjectID),
		Reason:        t.Reason,
		SpecialOrigin: string(t.SpecialOrigin),
		Passengers:    t.Passengers,
		Warnings:      t.Warnings,
		Hash:          t.Hash,
		PreviousHash:  t.PreviousHash,
	}
}

func toTripDTOs(ts []ledger.Trip) []TripDTO {
	dtos := make([]TripDTO, len(ts))
	for i, t := range ts {
		dtos[i] = toTripDTO(t)
	}
	return dtos
}

func toEntryDTO(e ledger.Entry) EntryDTO {
	dto := EntryDTO{
		ID:               string(e.ID),
		Hash:             e.Hash,
		PreviousHash:     e.PreviousHash,
		Timestamp:        e.Timestamp.UTC().Format(time.RFC3339Nano),
		Operation:        string(e.Operation),
		Source:           string(e.Source),
		UserID:           string(e.UserID),
		TripID:           string(e.TripID),
		TripSnapshot:     toTripDTO(e.TripSnapshot),
		BatchID:          string(e.BatchID),
		CorrectionReason: e.CorrectionReason,
		ChangedFields:    e.ChangedFields,
		VoidReason:       e.VoidReason,
	}
	if e.PreviousSnapshot != nil {
		prev := toTripDTO(*e.PreviousSnapshot)
		dto.PreviousSnapshot = &prev
	}
	return dto
}

func toEntryDTOs(es []ledger.Entry) []EntryDTO {
	dtos := make([]EntryDTO, len(es))
	for i, e := range es {
		dtos[i] = toEntryDTO(e)
	}
	return dtos
}

func toBatchDTO(b ledger.Batch) BatchDTO {
	return BatchDTO{
		ID:              string(b.ID),
		Timestamp:       b.Timestamp.UTC().Format(time.RFC3339Nano),
		Source:          string(b.Source),
		UserID:          string(b.UserID),
		EntryCount:      b.EntryCount,
		FirstEntryHash:  b.FirstEntryHash,
		LastEntryHash:   b.LastEntryHash,
		SourceDocuments: b.SourceDocuments,
	}
}

func toVerificationDTO(v ledger.Verification) VerificationDTO {
	dto := VerificationDTO{
		IsValid:       v.IsValid,
		TotalEntries:  v.TotalEntries,
		RootHash:      v.RootHash,
		BrokenChainAt: v.BrokenChainAt,
		VerifiedAt:    v.VerifiedAt.UTC().Format(time.RFC3339Nano),
	}
	if v.FirstEntry != nil {
		first := toEntryDTO(*v.FirstEntry)
		dto.FirstEntry = &first
	}
	if v.LastEntry != nil {
		last := toEntryDTO(*v.LastEntry)
		dto.LastEntry = &last
	}
	return dto
}

func toProjectDTO(p trips.Project) ProjectDTO {
	return ProjectDTO{
		ID:        string(p.ID),
		Name:      p.Name,
		CreatedAt: p.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func toDocumentDTO(d trips.Document) DocumentDTO {
	return DocumentDTO{
		ID:         d.ID,
		ProjectID:  string(d.ProjectID),
		TripID:     string(d.TripID),
		Kind:       string(d.Kind),
		Name:       d.Name,
		StorageKey: d.StorageKey,
		CreatedAt:  d.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func fromTripDataDTO(dto TripDataDTO) (ledger.TripData, error) {
	date, err := ledger.ParseDate(dto.Date)
	if err != nil {
		return ledger.TripData{}, &ledger.ValidationError{Field: "date", Message: err.Error()}
	}
	return ledger.TripData{
		Date:          date,
		Locations:     dto.Locations,
		Distance:      decimal.NewFromFloat(dto.Distance),
		ProjectID:     ledger.ProjectID(dto.ProjectID),
		Reason:        dto.Reason,
		SpecialOrigin: ledger.SpecialOrigin(dto.SpecialOrigin),
		Passengers:    dto.Passengers,
		Warnings:      dto.Warnings,
	}, nil
}

func fromTripUpdateDTO(dto TripUpdateDTO) (ledger.TripUpdate, error) {
	var update ledger.TripUpdate
	if dto.Date != nil {
		date, err := ledger.ParseDate(*dto.Date)
		if err != nil {
			return update, &ledger.ValidationError{Field: "date", Message: err.Error()}
		}
		update.Date = &date
	}
	update.Locations = dto.Locations
	if dto.Distance != nil {
		d := decimal.NewFromFloat(*dto.Distance)
		update.Distance = &d
	}
	if dto.ProjectID != nil {
		p := ledger.ProjectID(*dto.ProjectID)
		update.ProjectID = &p
	}
	update.Reason = dto.Reason
	if dto.SpecialOrigin != nil {
		o := ledger.SpecialOrigin(*dto.SpecialOrigin)
		update.SpecialOrigin = &o
	}
	update.Passengers = dto.Passengers
	update.Warnings = dto.Warnings
	return update, nil
}

// parseSource maps a wire source tag to the domain value, defaulting when absent.
func parseSource(s string, fallback ledger.Source) (ledger.Source, error) {
	if s == "" {
		return fallback, nil
	}
	switch src := ledger.Source(s); src {
	case ledger.SourceManual, ledger.SourceAIAgent, ledger.SourceCSVImport, ledger.SourceBulkUpload:
		return src, nil
	default:
		return "", &ledger.ValidationError{Field: "source", Message: "unknown source tag"}
	}
}
