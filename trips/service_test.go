package trips_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driveline/trip-ledger/ledger"
	"github.com/driveline/trip-ledger/ledger/store"
	"github.com/driveline/trip-ledger/trips"
)

// =============================================================================
// TEST FAKES
// =============================================================================

// fakeProjectStore is an in-memory ProjectStore with per-method failure
// switches for exercising the lenient cascade.
type fakeProjectStore struct {
	projects map[ledger.ProjectID]trips.Project
	docs     map[string]trips.Document

	failDeleteDocument bool
	failDeleteProject  bool
	failListByTrip     bool
}

func newFakeProjectStore() *fakeProjectStore {
	return &fakeProjectStore{
		projects: make(map[ledger.ProjectID]trips.Project),
		docs:     make(map[string]trips.Document),
	}
}

func (f *fakeProjectStore) SaveProject(_ context.Context, p trips.Project) error {
	f.projects[p.ID] = p
	return nil
}

func (f *fakeProjectStore) GetProject(_ context.Context, _ ledger.UserID, id ledger.ProjectID) (*trips.Project, error) {
	p, ok := f.projects[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (f *fakeProjectStore) ListProjects(_ context.Context, _ ledger.UserID) ([]trips.Project, error) {
	var out []trips.Project
	for _, p := range f.projects {
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeProjectStore) DeleteProject(_ context.Context, _ ledger.UserID, id ledger.ProjectID) error {
	if f.failDeleteProject {
		return errors.New("project store down")
	}
	delete(f.projects, id)
	return nil
}

func (f *fakeProjectStore) SaveDocument(_ context.Context, d trips.Document) error {
	f.docs[d.ID] = d
	return nil
}

func (f *fakeProjectStore) GetDocument(_ context.Context, _ ledger.UserID, id string) (*trips.Document, error) {
	d, ok := f.docs[id]
	if !ok {
		return nil, nil
	}
	return &d, nil
}

func (f *fakeProjectStore) ListDocumentsByTrip(_ context.Context, _ ledger.UserID, tripID ledger.TripID) ([]trips.Document, error) {
	if f.failListByTrip {
		return nil, errors.New("document listing down")
	}
	var out []trips.Document
	for _, d := range f.docs {
		if d.TripID == tripID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeProjectStore) ListDocumentsByProject(_ context.Context, _ ledger.UserID, projectID ledger.ProjectID) ([]trips.Document, error) {
	var out []trips.Document
	for _, d := range f.docs {
		if d.ProjectID == projectID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeProjectStore) DeleteDocument(_ context.Context, _ ledger.UserID, id string) error {
	if f.failDeleteDocument {
		return errors.New("document store down")
	}
	delete(f.docs, id)
	return nil
}

// failingRepo wraps the memory repository and fails appends on demand,
// which is the only way to make a void fail mid-cascade.
type failingRepo struct {
	*store.Memory
	failAppend bool
}

func (r *failingRepo) AppendEntry(ctx context.Context, userID ledger.UserID, e ledger.Entry) error {
	if r.failAppend {
		return errors.New("disk full")
	}
	return r.Memory.AppendEntry(ctx, userID, e)
}

type stubExtractor struct {
	data []ledger.TripData
	err  error
}

func (s stubExtractor) ExtractTrips(context.Context, trips.Document) ([]ledger.TripData, error) {
	return s.data, s.err
}

type stubDistance struct {
	km decimal.Decimal
}

func (s stubDistance) RouteDistance(context.Context, []string) (decimal.Decimal, error) {
	return s.km, nil
}

// =============================================================================
// TEST SETUP
// =============================================================================

const testUser = ledger.UserID("user-1")

func newTestSetup(t *testing.T) (*trips.Service, *fakeProjectStore, *failingRepo) {
	t.Helper()
	repo := &failingRepo{Memory: store.NewMemory()}
	projects := newFakeProjectStore()
	l := ledger.NewService(repo, testUser)
	return trips.NewService(testUser, l, projects), projects, repo
}

func tripInput(projectID ledger.ProjectID) ledger.TripData {
	return ledger.TripData{
		Date:      ledger.NewDate(2026, time.March, 10),
		Locations: []string{"Hamburg, Hauptbahnhof", "Berlin, Studio B"},
		Distance:  decimal.NewFromFloat(289.5),
		ProjectID: projectID,
		Reason:    "shoot day",
	}
}

func seedProject(t *testing.T, projects *fakeProjectStore, id ledger.ProjectID) {
	t.Helper()
	require.NoError(t, projects.SaveProject(context.Background(), trips.Project{
		ID: id, UserID: testUser, Name: "Production X", CreatedAt: time.Now().UTC(),
	}))
}

func seedDocument(t *testing.T, projects *fakeProjectStore, id string, kind trips.DocumentKind, projectID ledger.ProjectID, tripID ledger.TripID) {
	t.Helper()
	require.NoError(t, projects.SaveDocument(context.Background(), trips.Document{
		ID: id, UserID: testUser, ProjectID: projectID, TripID: tripID,
		Kind: kind, Name: id + ".pdf", StorageKey: "docs/" + id, CreatedAt: time.Now().UTC(),
	}))
}

// =============================================================================
// CASCADE DELETE TESTS
// =============================================================================

func TestDeleteTrip_FullCascade(t *testing.T) {
	// GIVEN: A project with one trip, one expense receipt, and the source callsheet
	// WHEN: The trip is deleted
	// THEN: Documents, trip, callsheet and the now-empty project are all gone

	svc, projects, _ := newTestSetup(t)
	ctx := context.Background()

	seedProject(t, projects, "proj-1")
	created, err := svc.CreateTrip(ctx, tripInput("proj-1"), ledger.SourceManual)
	require.NoError(t, err)
	seedDocument(t, projects, "receipt-1", trips.DocumentExpense, "proj-1", created.TripID)
	seedDocument(t, projects, "callsheet-1", trips.DocumentCallsheet, "proj-1", created.TripID)

	result, err := svc.DeleteTrip(ctx, created.TripID, "recorded twice")
	require.NoError(t, err)

	assert.True(t, result.TripVoided)
	assert.Equal(t, 1, result.DocumentsDeleted)
	assert.True(t, result.CallsheetDeleted)
	assert.True(t, result.ProjectDeleted)
	assert.Empty(t, result.Warnings)

	assert.Empty(t, projects.docs)
	assert.Empty(t, projects.projects)
	live, err := svc.Ledger.Trips(ctx)
	require.NoError(t, err)
	assert.Empty(t, live)
}

func TestDeleteTrip_FailedVoidKeepsProject(t *testing.T) {
	// GIVEN: A trip whose void will fail at the repository
	// WHEN: The cascade runs
	// THEN: The failure is a warning, documents are still cleaned up, and the
	//       project survives because the trip is still live

	svc, projects, repo := newTestSetup(t)
	ctx := context.Background()

	seedProject(t, projects, "proj-1")
	created, err := svc.CreateTrip(ctx, tripInput("proj-1"), ledger.SourceManual)
	require.NoError(t, err)
	seedDocument(t, projects, "receipt-1", trips.DocumentExpense, "proj-1", created.TripID)

	repo.failAppend = true
	result, err := svc.DeleteTrip(ctx, created.TripID, "attempt")
	require.NoError(t, err)

	assert.False(t, result.TripVoided)
	assert.Equal(t, 1, result.DocumentsDeleted)
	assert.False(t, result.ProjectDeleted)
	assert.NotEmpty(t, result.Warnings)

	_, stillThere := projects.projects["proj-1"]
	assert.True(t, stillThere, "live trip keeps the project alive")
	live, err := svc.Ledger.Trips(ctx)
	require.NoError(t, err)
	assert.Len(t, live, 1)
}

func TestDeleteTrip_DocumentFailureDoesNotBlockVoid(t *testing.T) {
	// GIVEN: A document store that cannot delete
	// WHEN: The cascade runs
	// THEN: The trip is still voided and each failed deletion shows up
	//       as a warning

	svc, projects, _ := newTestSetup(t)
	ctx := context.Background()

	seedProject(t, projects, "proj-1")
	created, err := svc.CreateTrip(ctx, tripInput("proj-1"), ledger.SourceManual)
	require.NoError(t, err)
	seedDocument(t, projects, "receipt-1", trips.DocumentExpense, "proj-1", created.TripID)

	projects.failDeleteDocument = true
	result, err := svc.DeleteTrip(ctx, created.TripID, "recorded twice")
	require.NoError(t, err)

	assert.True(t, result.TripVoided)
	assert.Equal(t, 0, result.DocumentsDeleted)
	assert.NotEmpty(t, result.Warnings)

	live, err := svc.Ledger.Trips(ctx)
	require.NoError(t, err)
	assert.Empty(t, live, "void succeeded despite document failures")
}

func TestDeleteTrip_ListingFailureStillVoids(t *testing.T) {
	svc, projects, _ := newTestSetup(t)
	ctx := context.Background()

	created, err := svc.CreateTrip(ctx, tripInput(""), ledger.SourceManual)
	require.NoError(t, err)

	projects.failListByTrip = true
	result, err := svc.DeleteTrip(ctx, created.TripID, "cleanup")
	require.NoError(t, err)

	assert.True(t, result.TripVoided)
	assert.NotEmpty(t, result.Warnings)
}

func TestDeleteTrip_ProjectKeptWhileSiblingsLive(t *testing.T) {
	// GIVEN: Two trips in the same project
	// WHEN: One is deleted
	// THEN: The project stays

	svc, projects, _ := newTestSetup(t)
	ctx := context.Background()

	seedProject(t, projects, "proj-1")
	first, err := svc.CreateTrip(ctx, tripInput("proj-1"), ledger.SourceManual)
	require.NoError(t, err)
	_, err = svc.CreateTrip(ctx, tripInput("proj-1"), ledger.SourceManual)
	require.NoError(t, err)

	result, err := svc.DeleteTrip(ctx, first.TripID, "duplicate")
	require.NoError(t, err)

	assert.True(t, result.TripVoided)
	assert.False(t, result.ProjectDeleted)
	_, stillThere := projects.projects["proj-1"]
	assert.True(t, stillThere)
}

func TestDeleteTrip_ProjectKeptWhileDocumentsRemain(t *testing.T) {
	// GIVEN: A project-level invoice not attached to the trip
	// WHEN: The project's only trip is deleted
	// THEN: The project stays because documents remain

	svc, projects, _ := newTestSetup(t)
	ctx := context.Background()

	seedProject(t, projects, "proj-1")
	created, err := svc.CreateTrip(ctx, tripInput("proj-1"), ledger.SourceManual)
	require.NoError(t, err)
	seedDocument(t, projects, "invoice-1", trips.DocumentInvoice, "proj-1", "")

	result, err := svc.DeleteTrip(ctx, created.TripID, "wrap")
	require.NoError(t, err)

	assert.True(t, result.TripVoided)
	assert.False(t, result.ProjectDeleted)
	_, stillThere := projects.projects["proj-1"]
	assert.True(t, stillThere)
}

func TestDeleteTrip_UnknownTrip(t *testing.T) {
	svc, _, _ := newTestSetup(t)
	_, err := svc.DeleteTrip(context.Background(), "missing", "whatever")
	assert.True(t, ledger.IsNotFound(err))
}

// =============================================================================
// PROJECT AND DOCUMENT TESTS
// =============================================================================

func TestCreateProject_AssignsIdentity(t *testing.T) {
	svc, projects, _ := newTestSetup(t)

	p, err := svc.CreateProject(context.Background(), "Production X")
	require.NoError(t, err)
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, testUser, p.UserID)
	_, saved := projects.projects[p.ID]
	assert.True(t, saved)

	_, err = svc.CreateProject(context.Background(), "")
	assert.True(t, ledger.IsValidation(err))
}

func TestRegisterDocument_Validation(t *testing.T) {
	svc, _, _ := newTestSetup(t)
	ctx := context.Background()

	_, err := svc.RegisterDocument(ctx, trips.Document{Kind: trips.DocumentInvoice})
	assert.True(t, ledger.IsValidation(err), "storage key required")

	_, err = svc.RegisterDocument(ctx, trips.Document{StorageKey: "docs/x", Kind: "napkin"})
	assert.True(t, ledger.IsValidation(err), "unknown kind rejected")

	doc, err := svc.RegisterDocument(ctx, trips.Document{StorageKey: "docs/x", Kind: trips.DocumentCallsheet, Name: "day3.pdf"})
	require.NoError(t, err)
	assert.NotEmpty(t, doc.ID)
	assert.Equal(t, testUser, doc.UserID)
}

// =============================================================================
// EXTRACTION AND DISTANCE TESTS
// =============================================================================

func TestImportFromCallsheet_RecordsAIAgentBatch(t *testing.T) {
	// GIVEN: A stored callsheet and an extractor producing two trips
	// WHEN: The callsheet is imported
	// THEN: One AI_AGENT batch referencing the document lands in the ledger

	svc, projects, _ := newTestSetup(t)
	ctx := context.Background()

	svc.Extractor = stubExtractor{data: []ledger.TripData{tripInput("proj-1"), tripInput("proj-1")}}
	seedDocument(t, projects, "callsheet-1", trips.DocumentCallsheet, "proj-1", "")
	doc, err := projects.GetDocument(ctx, testUser, "callsheet-1")
	require.NoError(t, err)

	result, err := svc.ImportFromCallsheet(ctx, *doc)
	require.NoError(t, err)

	assert.Len(t, result.Entries, 2)
	assert.Equal(t, ledger.SourceAIAgent, result.Batch.Source)
	assert.Equal(t, []string{"callsheet-1"}, result.Batch.SourceDocuments)
}

func TestImportFromCallsheet_RejectsNonCallsheet(t *testing.T) {
	svc, _, _ := newTestSetup(t)
	svc.Extractor = stubExtractor{}

	_, err := svc.ImportFromCallsheet(context.Background(), trips.Document{ID: "x", Kind: trips.DocumentInvoice})
	assert.True(t, ledger.IsValidation(err))
}

func TestImportFromCallsheet_NoExtractorConfigured(t *testing.T) {
	svc, _, _ := newTestSetup(t)
	_, err := svc.ImportFromCallsheet(context.Background(), trips.Document{ID: "x", Kind: trips.DocumentCallsheet})
	assert.Error(t, err)
}

func TestCreateTrip_ResolvesMissingDistance(t *testing.T) {
	// GIVEN: A distance calculator and trip data with no distance
	// WHEN: The trip is created
	// THEN: The resolved route distance lands in the snapshot

	svc, _, _ := newTestSetup(t)
	svc.Distance = stubDistance{km: decimal.NewFromFloat(123.4)}

	data := tripInput("")
	data.Distance = decimal.Zero
	entry, err := svc.CreateTrip(context.Background(), data, ledger.SourceManual)
	require.NoError(t, err)

	assert.True(t, entry.TripSnapshot.Distance.Equal(decimal.NewFromFloat(123.4)))
}

func TestCreateTrip_KeepsCallerDistance(t *testing.T) {
	svc, _, _ := newTestSetup(t)
	svc.Distance = stubDistance{km: decimal.NewFromFloat(999)}

	entry, err := svc.CreateTrip(context.Background(), tripInput(""), ledger.SourceManual)
	require.NoError(t, err)

	assert.True(t, entry.TripSnapshot.Distance.Equal(decimal.NewFromFloat(289.5)), "explicit distance wins")
}
