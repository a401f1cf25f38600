package workflow

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aldoetobex/caseflow/internal/events"
	"github.com/aldoetobex/caseflow/internal/projection"
	"github.com/aldoetobex/caseflow/internal/repository"
	"github.com/aldoetobex/caseflow/internal/storage"
	"github.com/aldoetobex/caseflow/pkg/database"
	"github.com/aldoetobex/caseflow/pkg/models"
)

/* ============================================================================
   Helpers
   ============================================================================ */

type fixture struct {
	svc      *Service
	store    *repository.CaseStore
	recorder *events.Recorder
	deps     Dependencies
}

// stepClock advances one minute on every call so timeline entries written
// by consecutive operations are strictly ordered.
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Minute)
	return c.now
}

type policyFunc func(string) bool

func (f policyFunc) DocumentsRequired(pt string) bool { return f(pt) }

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := database.Open(fmt.Sprintf("sqlite://file:%s?mode=memory&cache=shared", uuid.NewString()))
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	store := repository.NewCaseStore(db)
	rec := &events.Recorder{}
	clock := &stepClock{now: time.Date(2025, 4, 2, 8, 0, 0, 0, time.UTC)}
	deps := Dependencies{
		Config:    Config{LockTimeout: time.Second},
		Store:     store,
		Publisher: rec,
		// "consultation" cases can start without documents
		Policy: policyFunc(func(pt string) bool { return pt != "consultation" }),
		Now:    clock.Now,
	}
	return &fixture{svc: NewService(deps), store: store, recorder: rec, deps: deps}
}

func newClient() models.ActorContext {
	return models.ActorContext{Role: models.ActorClient, ID: uuid.New()}
}

func newLawyer() models.ActorContext {
	return models.ActorContext{Role: models.ActorLawyer, ID: uuid.New()}
}

var system = models.SystemActor()

func statusOf(t *testing.T, v projection.View) models.CaseStatus {
	t.Helper()
	switch x := v.(type) {
	case projection.ClientView:
		return x.Status
	case projection.LawyerView:
		return x.Status
	}
	t.Fatalf("unexpected view %T", v)
	return ""
}

func versionOf(t *testing.T, v projection.View) int {
	t.Helper()
	switch x := v.(type) {
	case projection.ClientView:
		return x.Version
	case projection.LawyerView:
		return x.Version
	}
	t.Fatalf("unexpected view %T", v)
	return 0
}

func (f *fixture) createPending(t *testing.T, client models.ActorContext, processType string) uuid.UUID {
	t.Helper()
	v, err := f.svc.CreateCase(context.Background(), client, CreateCaseInput{
		Title:       "Unpaid invoices",
		Description: "Supplier refuses to pay three invoices",
		ProcessType: processType,
		Submit:      true,
	})
	require.NoError(t, err)
	require.Equal(t, models.StatusPending, statusOf(t, v))
	return v.CaseID()
}

func (f *fixture) move(t *testing.T, actor models.ActorContext, in TransitionInput) projection.View {
	t.Helper()
	v, err := f.svc.RequestTransition(context.Background(), actor, in)
	require.NoError(t, err, "-> %s", in.To)
	require.Equal(t, in.To, statusOf(t, v))
	return v
}

// acceptedCase walks a new case to ACCEPTED with lawyer assigned.
func (f *fixture) acceptedCase(t *testing.T, client, lawyer models.ActorContext, processType string) uuid.UUID {
	t.Helper()
	id := f.createPending(t, client, processType)
	_, err := f.svc.ClaimCase(context.Background(), lawyer, id)
	require.NoError(t, err)
	f.move(t, lawyer, TransitionInput{CaseID: id, To: models.StatusAccepted})
	return id
}

func doc(caseID uuid.UUID, name string) DocumentInput {
	id := uuid.New()
	return DocumentInput{
		ID:        id,
		Name:      name,
		MimeType:  "application/pdf",
		SizeBytes: 2048,
		Content:   storage.MakeObjectKey(caseID, id, name),
	}
}

/* ============================================================================
   Lifecycle
   ============================================================================ */

func Test_Workflow_FullDocumentCycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	client, lawyer := newClient(), newLawyer()

	created, err := f.svc.CreateCase(ctx, client, CreateCaseInput{
		Title:       "Wrongful termination",
		Description: "Dismissed without notice after eight years",
		ProcessType: "labor",
	})
	require.NoError(t, err)
	require.Equal(t, models.StatusDraft, statusOf(t, created))
	id := created.CaseID()

	f.move(t, client, TransitionInput{CaseID: id, To: models.StatusPending})
	f.move(t, system, TransitionInput{CaseID: id, To: models.StatusInReview, ClaimFor: &lawyer.ID})
	f.move(t, lawyer, TransitionInput{CaseID: id, To: models.StatusAccepted})
	f.move(t, lawyer, TransitionInput{CaseID: id, To: models.StatusAwaitingDocuments})

	d := doc(id, "contract.pdf")
	_, added, err := f.svc.SubmitDocuments(ctx, client, SubmitDocumentsInput{CaseID: id, Documents: []DocumentInput{d}})
	require.NoError(t, err)
	require.Len(t, added, 1)
	assert.Equal(t, models.ReviewPending, added[0].Review)

	f.move(t, client, TransitionInput{CaseID: id, To: models.StatusAwaitingDocumentReview})

	// documents are frozen for the client while the lawyer reviews them
	v, _, err := f.svc.RemoveDocument(ctx, client, d.ID, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrDocumentLocked))
	assert.Equal(t, "DOCUMENT_LOCKED", models.CodeOf(err))
	require.NotNil(t, v)
	assert.Equal(t, models.StatusAwaitingDocumentReview, statusOf(t, v))

	final := f.move(t, lawyer, TransitionInput{CaseID: id, To: models.StatusInProgress})
	lv, ok := final.(projection.LawyerView)
	require.True(t, ok)
	assert.Len(t, lv.Timeline, 6)
	require.Len(t, lv.Documents, 1)
	assert.Equal(t, models.ReviewApproved, lv.Documents[0].Review)
	require.NotNil(t, lv.LawyerID)
	assert.Equal(t, lawyer.ID, *lv.LawyerID)

	stored, err := f.store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, stored.Status)
	assert.Len(t, stored.Timeline, 6)

	evs := f.recorder.Events()
	require.Len(t, evs, 6)
	assert.Equal(t, models.StatusPending, evs[0].NewStatus)
	assert.Equal(t, models.StatusInProgress, evs[5].NewStatus)
}

func Test_Workflow_InvalidTransitionFromPending(t *testing.T) {
	f := newFixture(t)
	client := newClient()
	id := f.createPending(t, client, "civil")

	for _, actor := range []models.ActorContext{client, system} {
		v, err := f.svc.RequestTransition(context.Background(), actor, TransitionInput{CaseID: id, To: models.StatusAccepted})
		require.Error(t, err)
		assert.True(t, errors.Is(err, models.ErrInvalidTransition), "actor %s", actor.Role)
		assert.Equal(t, models.StatusPending, statusOf(t, v))
	}
}

func Test_Workflow_SubmitWithoutNewDocuments(t *testing.T) {
	f := newFixture(t)
	client, lawyer := newClient(), newLawyer()
	id := f.acceptedCase(t, client, lawyer, "civil")
	f.move(t, lawyer, TransitionInput{CaseID: id, To: models.StatusAwaitingDocuments})

	v, err := f.svc.RequestTransition(context.Background(), client, TransitionInput{CaseID: id, To: models.StatusAwaitingDocumentReview})
	require.Error(t, err)
	reason, ok := models.ReasonOf(err)
	require.True(t, ok)
	assert.Equal(t, models.ReasonNoNewDocuments, reason)

	cv, ok := v.(projection.ClientView)
	require.True(t, ok)
	assert.Equal(t, models.StatusAwaitingDocuments, cv.Status)
	assert.Len(t, cv.Timeline, 4)
}

func Test_Workflow_SubmitForReviewIsAtomic(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	client, lawyer := newClient(), newLawyer()
	id := f.acceptedCase(t, client, lawyer, "civil")
	f.move(t, lawyer, TransitionInput{CaseID: id, To: models.StatusAwaitingDocuments})

	v, added, err := f.svc.SubmitDocuments(ctx, client, SubmitDocumentsInput{
		CaseID:          id,
		Documents:       []DocumentInput{doc(id, "a.pdf"), doc(id, "b.pdf")},
		SubmitForReview: true,
	})
	require.NoError(t, err)
	assert.Len(t, added, 2)
	assert.Equal(t, models.StatusAwaitingDocumentReview, statusOf(t, v))

	// a bad document rolls back the whole batch
	bad := doc(id, "c.pdf")
	bad.MimeType = ""
	_, _, err = f.svc.SubmitDocuments(ctx, lawyer, SubmitDocumentsInput{CaseID: id, Documents: []DocumentInput{doc(id, "memo.pdf"), bad}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrValidation))

	stored, err := f.store.Get(ctx, id)
	require.NoError(t, err)
	assert.Len(t, stored.Documents, 2)
}

func Test_Workflow_RejectDocumentsRequiresNotes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	client, lawyer := newClient(), newLawyer()
	id := f.acceptedCase(t, client, lawyer, "civil")
	f.move(t, lawyer, TransitionInput{CaseID: id, To: models.StatusAwaitingDocuments})
	_, _, err := f.svc.SubmitDocuments(ctx, client, SubmitDocumentsInput{CaseID: id, Documents: []DocumentInput{doc(id, "id.pdf")}, SubmitForReview: true})
	require.NoError(t, err)

	_, err = f.svc.RequestTransition(ctx, lawyer, TransitionInput{CaseID: id, To: models.StatusAwaitingDocuments})
	reason, _ := models.ReasonOf(err)
	assert.Equal(t, models.ReasonReasonRequired, reason)

	v := f.move(t, lawyer, TransitionInput{CaseID: id, To: models.StatusAwaitingDocuments, Notes: "scan is unreadable"})
	lv := v.(projection.LawyerView)
	require.Len(t, lv.Documents, 1)
	assert.Equal(t, models.ReviewRejected, lv.Documents[0].Review)
	assert.Equal(t, 1, lv.DocumentsBaseline)

	// the client may replace the rejected document and resubmit
	_, removed, err := f.svc.RemoveDocument(ctx, client, lv.Documents[0].ID, nil)
	require.NoError(t, err)
	assert.Equal(t, "id.pdf", removed.Name)
	stored, err := f.store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.DocumentsBaseline)

	v, _, err = f.svc.SubmitDocuments(ctx, client, SubmitDocumentsInput{CaseID: id, Documents: []DocumentInput{doc(id, "id-rescan.pdf")}, SubmitForReview: true})
	require.NoError(t, err)
	assert.Equal(t, models.StatusAwaitingDocumentReview, statusOf(t, v))
}

func Test_Workflow_NoDocumentsRequired(t *testing.T) {
	f := newFixture(t)
	client, lawyer := newClient(), newLawyer()

	id := f.acceptedCase(t, client, lawyer, "consultation")
	f.move(t, lawyer, TransitionInput{CaseID: id, To: models.StatusInProgress})

	other := f.acceptedCase(t, client, lawyer, "civil")
	_, err := f.svc.RequestTransition(context.Background(), lawyer, TransitionInput{CaseID: other, To: models.StatusInProgress})
	reason, _ := models.ReasonOf(err)
	assert.Equal(t, models.ReasonDocumentsRequired, reason)
}

func Test_Workflow_LawyerRejectsCase(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	client, lawyer := newClient(), newLawyer()
	id := f.createPending(t, client, "civil")
	_, err := f.svc.ClaimCase(ctx, lawyer, id)
	require.NoError(t, err)

	v := f.move(t, lawyer, TransitionInput{CaseID: id, To: models.StatusRejected, Notes: "outside my practice area"})
	lv := v.(projection.LawyerView)
	assert.Nil(t, lv.ClaimedBy)
	assert.Empty(t, lv.Actions)

	// the claim is gone, so the lawyer no longer sees the case
	_, err = f.svc.GetCaseView(ctx, lawyer, id)
	assert.True(t, errors.Is(err, models.ErrForbidden))

	cv, err := f.svc.GetCaseView(ctx, client, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, statusOf(t, cv))
}

/* ============================================================================
   Creation and editing
   ============================================================================ */

func Test_Workflow_CreateAndSubmitIsAtomic(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	client := newClient()

	_, err := f.svc.CreateCase(ctx, client, CreateCaseInput{Title: "No details yet", ProcessType: "civil", Submit: true})
	require.Error(t, err)
	reason, _ := models.ReasonOf(err)
	assert.Equal(t, models.ReasonMissingRequiredFields, reason)

	page, err := f.svc.ListCases(ctx, client, ListInput{})
	require.NoError(t, err)
	assert.Zero(t, page.Total)
	assert.Empty(t, f.recorder.Events())

	_, err = f.svc.CreateCase(ctx, client, CreateCaseInput{Title: "   "})
	assert.True(t, errors.Is(err, models.ErrValidation))

	_, err = f.svc.CreateCase(ctx, newLawyer(), CreateCaseInput{Title: "x"})
	assert.True(t, errors.Is(err, models.ErrForbidden))
}

func Test_Workflow_UpdateDetails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	client := newClient()

	v, err := f.svc.CreateCase(ctx, client, CreateCaseInput{Title: "Lease", ProcessType: "civil"})
	require.NoError(t, err)
	id := v.CaseID()

	desc := "  Landlord keeps the deposit  "
	pt := "Consultation"
	v, err = f.svc.UpdateDetails(ctx, client, UpdateDetailsInput{CaseID: id, Description: &desc, ProcessType: &pt})
	require.NoError(t, err)
	cv := v.(projection.ClientView)
	assert.Equal(t, "Landlord keeps the deposit", cv.Description)
	assert.Equal(t, "consultation", cv.ProcessType)
	assert.Empty(t, cv.Timeline)

	stored, err := f.store.Get(ctx, id)
	require.NoError(t, err)
	assert.False(t, stored.DocumentsRequired)

	// someone else's draft is off limits
	_, err = f.svc.UpdateDetails(ctx, newClient(), UpdateDetailsInput{CaseID: id, Description: &desc})
	assert.True(t, errors.Is(err, models.ErrForbidden))

	f.move(t, client, TransitionInput{CaseID: id, To: models.StatusPending})
	_, err = f.svc.UpdateDetails(ctx, client, UpdateDetailsInput{CaseID: id, Description: &desc})
	reason, _ := models.ReasonOf(err)
	assert.Equal(t, models.ReasonCaseNotEditable, reason)
}

/* ============================================================================
   Tenancy and claims
   ============================================================================ */

func Test_Workflow_CrossTenantAccessIsForbidden(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	client, lawyer := newClient(), newLawyer()
	id := f.acceptedCase(t, client, lawyer, "civil")

	for _, stranger := range []models.ActorContext{newClient(), newLawyer()} {
		_, err := f.svc.GetCaseView(ctx, stranger, id)
		assert.True(t, errors.Is(err, models.ErrForbidden), "%s read", stranger.Role)

		v, err := f.svc.RequestTransition(ctx, stranger, TransitionInput{CaseID: id, To: models.StatusArchived})
		assert.True(t, errors.Is(err, models.ErrForbidden), "%s transition", stranger.Role)
		assert.Nil(t, v)

		_, err = f.svc.Timeline(ctx, stranger, id)
		assert.True(t, errors.Is(err, models.ErrForbidden))
	}

	_, err := f.svc.GetCaseView(ctx, system, id)
	assert.NoError(t, err)

	_, err = f.svc.GetCaseView(ctx, client, uuid.New())
	assert.True(t, errors.Is(err, models.ErrNotFound))
}

func Test_Workflow_ClaimCase(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	client, first, second := newClient(), newLawyer(), newLawyer()
	id := f.createPending(t, client, "civil")

	v, err := f.svc.ClaimCase(ctx, first, id)
	require.NoError(t, err)
	lv := v.(projection.LawyerView)
	assert.Equal(t, models.StatusInReview, lv.Status)
	require.NotNil(t, lv.ClaimedBy)
	assert.Equal(t, first.ID, *lv.ClaimedBy)

	v, err = f.svc.ClaimCase(ctx, second, id)
	require.Error(t, err)
	reason, _ := models.ReasonOf(err)
	assert.Equal(t, models.ReasonAlreadyClaimed, reason)
	assert.Nil(t, v)

	_, err = f.svc.ClaimCase(ctx, client, id)
	assert.True(t, errors.Is(err, models.ErrForbidden))

	// claiming through the SYSTEM path is only for SYSTEM callers
	_, err = f.svc.RequestTransition(ctx, first, TransitionInput{CaseID: id, To: models.StatusInReview, ClaimFor: &first.ID})
	assert.True(t, errors.Is(err, models.ErrForbidden))

	cv, err := f.svc.GetCaseView(ctx, client, id)
	require.NoError(t, err)
	tl := cv.(projection.ClientView).Timeline
	require.Len(t, tl, 2)
	assert.Empty(t, tl[0].Notes, "SYSTEM notes are hidden from the client")
}

func Test_Workflow_SystemCannotOpenUnclaimedCase(t *testing.T) {
	f := newFixture(t)
	id := f.createPending(t, newClient(), "civil")

	_, err := f.svc.RequestTransition(context.Background(), system, TransitionInput{CaseID: id, To: models.StatusInReview})
	reason, _ := models.ReasonOf(err)
	assert.Equal(t, models.ReasonNotClaimed, reason)
}

func Test_Workflow_ClaimForOnlyOpensReview(t *testing.T) {
	f := newFixture(t)
	lawyer := newLawyer()
	id := f.createPending(t, newClient(), "civil")

	v, err := f.svc.RequestTransition(context.Background(), system, TransitionInput{CaseID: id, To: models.StatusAccepted, ClaimFor: &lawyer.ID})
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrValidation))
	assert.Nil(t, v)

	stored, err := f.store.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Nil(t, stored.ClaimedBy)
	assert.Equal(t, models.StatusPending, stored.Status)
}

func Test_Workflow_DocumentsStayWithTheirCase(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ownerClient, ownerLawyer := newClient(), newLawyer()
	otherClient, otherLawyer := newClient(), newLawyer()
	owned := f.acceptedCase(t, ownerClient, ownerLawyer, "civil")
	other := f.acceptedCase(t, otherClient, otherLawyer, "civil")

	secret := doc(owned, "secret.pdf")
	_, _, err := f.svc.SubmitDocuments(ctx, ownerClient, SubmitDocumentsInput{CaseID: owned, Documents: []DocumentInput{secret}})
	require.NoError(t, err)

	// another case cannot point at the same object
	stolen := doc(other, "secret.pdf")
	stolen.Content = secret.Content
	_, _, err = f.svc.SubmitDocuments(ctx, otherLawyer, SubmitDocumentsInput{CaseID: other, Documents: []DocumentInput{stolen}})
	assert.True(t, errors.Is(err, models.ErrValidation))

	for _, bad := range []string{"", "case/" + other.String() + "/", "case/" + other.String() + "/../" + owned.String() + "/x.pdf"} {
		in := doc(other, "x.pdf")
		in.Content = bad
		_, _, err = f.svc.SubmitDocuments(ctx, otherClient, SubmitDocumentsInput{CaseID: other, Documents: []DocumentInput{in}})
		assert.True(t, errors.Is(err, models.ErrValidation), "content %q", bad)
	}

	// nor reuse its document id
	reused := doc(other, "reused.pdf")
	reused.ID = secret.ID
	_, _, err = f.svc.SubmitDocuments(ctx, otherClient, SubmitDocumentsInput{CaseID: other, Documents: []DocumentInput{reused}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrConflict))
	assert.True(t, errors.Is(err, models.ErrDocumentTaken))

	stored, err := f.store.Get(ctx, owned)
	require.NoError(t, err)
	require.Len(t, stored.Documents, 1)
	assert.Equal(t, models.ReviewPending, stored.Documents[0].Review)
	stored, err = f.store.Get(ctx, other)
	require.NoError(t, err)
	assert.Empty(t, stored.Documents)

	// outsiders cannot tell the document exists
	for _, stranger := range []models.ActorContext{otherClient, otherLawyer} {
		_, err = f.svc.DocumentForDownload(ctx, stranger, secret.ID)
		assert.True(t, errors.Is(err, models.ErrNotFound), "%s download", stranger.Role)
		assert.False(t, errors.Is(err, models.ErrForbidden))

		_, _, err = f.svc.RemoveDocument(ctx, stranger, secret.ID, nil)
		assert.True(t, errors.Is(err, models.ErrNotFound), "%s remove", stranger.Role)
		assert.False(t, errors.Is(err, models.ErrForbidden))
	}

	got, err := f.svc.DocumentForDownload(ctx, ownerLawyer, secret.ID)
	require.NoError(t, err)
	assert.Equal(t, secret.Content, got.Content)
}

/* ============================================================================
   Concurrency
   ============================================================================ */

// barrierStore holds the first two reads until both have happened, so two
// requests are guaranteed to observe the same version.
type barrierStore struct {
	*repository.CaseStore
	arrivals atomic.Int32
	wg       sync.WaitGroup
}

func newBarrierStore(inner *repository.CaseStore) *barrierStore {
	b := &barrierStore{CaseStore: inner}
	b.wg.Add(2)
	return b
}

func (b *barrierStore) Get(ctx context.Context, id uuid.UUID) (*models.Case, error) {
	cs, err := b.CaseStore.Get(ctx, id)
	if b.arrivals.Add(1) <= 2 {
		b.wg.Done()
		b.wg.Wait()
	}
	return cs, err
}

// race runs both requests concurrently and returns their errors.
func race(svc *Service, actor models.ActorContext, a, b TransitionInput) [2]error {
	var errs [2]error
	var wg sync.WaitGroup
	for i, in := range []TransitionInput{a, b} {
		wg.Add(1)
		go func(i int, in TransitionInput) {
			defer wg.Done()
			_, errs[i] = svc.RequestTransition(context.Background(), actor, in)
		}(i, in)
	}
	wg.Wait()
	return errs
}

func assertOneWinner(t *testing.T, errs [2]error) {
	t.Helper()
	var ok, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, models.ErrConflict):
			conflicts++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, conflicts)
}

func Test_Workflow_ConcurrentTransitions_SameObservedVersion(t *testing.T) {
	f := newFixture(t)
	client, lawyer := newClient(), newLawyer()
	id := f.acceptedCase(t, client, lawyer, "consultation")

	deps := f.deps
	deps.Store = newBarrierStore(f.store)
	svc := NewService(deps)

	errs := race(svc, lawyer,
		TransitionInput{CaseID: id, To: models.StatusAwaitingDocuments},
		TransitionInput{CaseID: id, To: models.StatusInProgress},
	)
	assertOneWinner(t, errs)

	stored, err := f.store.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Len(t, stored.Timeline, 4)
	assert.Contains(t, []models.CaseStatus{models.StatusAwaitingDocuments, models.StatusInProgress}, stored.Status)
}

func Test_Workflow_ConcurrentTransitions_ExpectedVersion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	client, lawyer := newClient(), newLawyer()
	id := f.acceptedCase(t, client, lawyer, "consultation")

	v, err := f.svc.GetCaseView(ctx, lawyer, id)
	require.NoError(t, err)
	version := versionOf(t, v)

	errs := race(f.svc, lawyer,
		TransitionInput{CaseID: id, To: models.StatusAwaitingDocuments, ExpectedVersion: &version},
		TransitionInput{CaseID: id, To: models.StatusInProgress, ExpectedVersion: &version},
	)
	assertOneWinner(t, errs)

	// a stale version is refused and the current view comes back with it
	v, err = f.svc.RequestTransition(ctx, lawyer, TransitionInput{CaseID: id, To: models.StatusArchived, ExpectedVersion: &version})
	require.Error(t, err)
	assert.Equal(t, "CONFLICT", models.CodeOf(err))
	assert.Equal(t, version+1, versionOf(t, v))
}

type busyLocker struct{}

func (busyLocker) Lock(ctx context.Context, _ string) (func(), error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func Test_Workflow_LockTimeoutIsConflict(t *testing.T) {
	f := newFixture(t)
	client, lawyer := newClient(), newLawyer()
	id := f.acceptedCase(t, client, lawyer, "consultation")

	deps := f.deps
	deps.Locker = busyLocker{}
	deps.Config.LockTimeout = 20 * time.Millisecond
	svc := NewService(deps)

	v, err := svc.RequestTransition(context.Background(), lawyer, TransitionInput{CaseID: id, To: models.StatusInProgress})
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrConflict))
	assert.Equal(t, models.StatusAccepted, statusOf(t, v))
}

/* ============================================================================
   Queries
   ============================================================================ */

func Test_Workflow_MarketplaceRedactsAndHidesClaimed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	client, lawyer := newClient(), newLawyer()

	v, err := f.svc.CreateCase(ctx, client, CreateCaseInput{
		Title:       "Call me at maria@example.com",
		Description: "Neighbour built over my fence. Phone +55 11 98765-4321 after 6pm.",
		ProcessType: "civil",
		Submit:      true,
	})
	require.NoError(t, err)
	open := v.CaseID()
	claimed := f.createPending(t, client, "civil")
	_, err = f.svc.ClaimCase(ctx, lawyer, claimed)
	require.NoError(t, err)
	_, err = f.svc.CreateCase(ctx, client, CreateCaseInput{Title: "Still a draft", ProcessType: "civil"})
	require.NoError(t, err)

	page, err := f.svc.Marketplace(ctx, newLawyer(), MarketplaceInput{})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	item := page.Items[0]
	assert.Equal(t, open, item.ID)
	assert.NotContains(t, item.Title, "maria@example.com")
	assert.NotContains(t, item.Preview, "98765-4321")

	_, err = f.svc.Marketplace(ctx, client, MarketplaceInput{})
	assert.True(t, errors.Is(err, models.ErrForbidden))
}

func Test_Workflow_ListCases(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	client, lawyer := newClient(), newLawyer()

	f.acceptedCase(t, client, lawyer, "civil")
	f.createPending(t, client, "civil")
	f.createPending(t, newClient(), "civil")

	mine, err := f.svc.ListCases(ctx, client, ListInput{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, mine.Total)

	assigned, err := f.svc.ListCases(ctx, lawyer, ListInput{})
	require.NoError(t, err)
	require.EqualValues(t, 1, assigned.Total)
	assert.Equal(t, models.StatusAccepted, assigned.Items[0].Status)

	pending, err := f.svc.ListCases(ctx, system, ListInput{Statuses: []models.CaseStatus{models.StatusPending}})
	require.NoError(t, err)
	assert.EqualValues(t, 2, pending.Total)
}

func Test_Workflow_StatusAt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	client, lawyer := newClient(), newLawyer()

	v, err := f.svc.CreateCase(ctx, client, CreateCaseInput{Title: "Lease", Description: "Deposit kept", ProcessType: "civil"})
	require.NoError(t, err)
	id := v.CaseID()
	f.move(t, client, TransitionInput{CaseID: id, To: models.StatusPending})
	_, err = f.svc.ClaimCase(ctx, lawyer, id)
	require.NoError(t, err)
	f.move(t, lawyer, TransitionInput{CaseID: id, To: models.StatusAccepted})

	stored, err := f.store.Get(ctx, id)
	require.NoError(t, err)
	require.Len(t, stored.Timeline, 3)

	at := func(ts time.Time) models.CaseStatus {
		s, err := f.svc.StatusAt(ctx, client, id, ts)
		require.NoError(t, err)
		return s
	}
	assert.Equal(t, models.StatusDraft, at(stored.CreatedAt))
	assert.Equal(t, models.StatusPending, at(stored.Timeline[0].Timestamp))
	assert.Equal(t, models.StatusInReview, at(stored.Timeline[1].Timestamp.Add(time.Second)))
	assert.Equal(t, models.StatusAccepted, at(stored.Timeline[2].Timestamp.Add(time.Hour)))

	_, err = f.svc.StatusAt(ctx, client, id, stored.CreatedAt.Add(-time.Hour))
	assert.True(t, errors.Is(err, models.ErrValidation))
}
