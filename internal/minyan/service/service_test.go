package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/minjen/minjen-counter/backend/go-services/internal/minyan"
	"github.com/minjen/minjen-counter/backend/go-services/internal/minyan/repository"
	"github.com/minjen/minjen-counter/backend/go-services/internal/notify"
	"github.com/minjen/minjen-counter/backend/go-services/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []notify.Event
}

func (r *recordingNotifier) Notify(ev notify.Event) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return true
}

func (r *recordingNotifier) texts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Text())
	}
	return out
}

type failingRepo struct {
	loadErr error
	saveErr error
}

func (f failingRepo) Load(ctx context.Context) (*minyan.State, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return minyan.NewState(), nil
}

func (f failingRepo) Save(ctx context.Context, s *minyan.State) error { return f.saveErr }

func newTestService(t *testing.T) (*Service, *repository.MemoryRepo, *recordingNotifier) {
	t.Helper()
	repo := repository.NewMemoryRepo()
	n := &recordingNotifier{}
	return New(repo, n), repo, n
}

func kindOf(t *testing.T, err error, kind error) {
	t.Helper()
	require.Error(t, err)
	require.True(t, errors.Is(err, kind), "expected %v, got %v", kind, err)
}

func TestCreatePage(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	p, err := svc.CreatePage(ctx, "Beth Israel Shul")
	require.NoError(t, err)
	assert.Equal(t, "beth-israel-shul", p.ID)
	assert.Equal(t, "Beth Israel Shul", p.Name)
	assert.Empty(t, p.Minyanim)

	_, err = svc.CreatePage(ctx, "beth israel shul!")
	kindOf(t, err, ErrConflict)
	assert.Equal(t, "Page exists", Message(err))

	_, err = svc.CreatePage(ctx, "   ")
	kindOf(t, err, ErrInvalidInput)
	assert.Equal(t, "Missing name", Message(err))

	_, err = svc.CreatePage(ctx, "!!!")
	kindOf(t, err, ErrInvalidInput)

	pages, err := svc.ListPages(ctx)
	require.NoError(t, err)
	require.Len(t, pages, 1)
}

func TestCreatePageKeepsNameAsGiven(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	p, err := svc.CreatePage(ctx, "  Spaced  ")
	require.NoError(t, err)
	assert.Equal(t, "spaced", p.ID)
	assert.Equal(t, "  Spaced  ", p.Name)

	got, err := svc.GetPage(ctx, "spaced")
	require.NoError(t, err)
	assert.Equal(t, "  Spaced  ", got.Name)
}

func TestRenamePageKeepsID(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)
	_, err := svc.CreatePage(ctx, "Main Shul")
	require.NoError(t, err)

	p, err := svc.RenamePage(ctx, "main-shul", "The Big Shul")
	require.NoError(t, err)
	assert.Equal(t, "main-shul", p.ID)
	assert.Equal(t, "The Big Shul", p.Name)

	got, err := svc.GetPage(ctx, "main-shul")
	require.NoError(t, err)
	assert.Equal(t, "The Big Shul", got.Name)

	_, err = svc.RenamePage(ctx, "nope", "x")
	kindOf(t, err, ErrNotFound)
	_, err = svc.RenamePage(ctx, "main-shul", "")
	kindOf(t, err, ErrInvalidInput)
}

func TestDeletePageKeepsRosters(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)
	_, err := svc.CreatePage(ctx, "Main")
	require.NoError(t, err)
	_, err = svc.AddMinyan(ctx, "main", "m1", "Shacharit")
	require.NoError(t, err)
	_, err = svc.Register(ctx, "m1", minyan.Participant{UID: "u1", Email: "u1@x.com"})
	require.NoError(t, err)

	require.NoError(t, svc.DeletePage(ctx, "main"))
	require.NoError(t, svc.DeletePage(ctx, "main"))

	_, err = svc.GetPage(ctx, "main")
	kindOf(t, err, ErrNotFound)
	parts, err := svc.ListParticipants(ctx)
	require.NoError(t, err)
	assert.Len(t, parts["m1"], 1)
}

func TestMinyanLifecycle(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)
	_, err := svc.CreatePage(ctx, "Main")
	require.NoError(t, err)

	_, err = svc.AddMinyan(ctx, "missing", "m1", "x")
	kindOf(t, err, ErrNotFound)
	_, err = svc.AddMinyan(ctx, "main", "", "x")
	kindOf(t, err, ErrInvalidInput)
	assert.Equal(t, "Missing minyanId", Message(err))

	list, err := svc.AddMinyan(ctx, "main", "m1", "Shacharit")
	require.NoError(t, err)
	require.Len(t, list, 1)
	list, err = svc.AddMinyan(ctx, "main", "m2", "Mincha")
	require.NoError(t, err)
	assert.Equal(t, []minyan.Minyan{{ID: "m1", Label: "Shacharit"}, {ID: "m2", Label: "Mincha"}}, list)

	_, err = svc.AddMinyan(ctx, "main", "m1", "again")
	kindOf(t, err, ErrConflict)
	assert.Equal(t, "Minyan exists", Message(err))

	m, err := svc.RelabelMinyan(ctx, "main", "m2", "Mincha 1:45")
	require.NoError(t, err)
	assert.Equal(t, "Mincha 1:45", m.Label)
	_, err = svc.RelabelMinyan(ctx, "main", "m9", "x")
	kindOf(t, err, ErrNotFound)
	assert.Equal(t, "Minyan not found", Message(err))
	_, err = svc.RelabelMinyan(ctx, "main", "m2", " ")
	kindOf(t, err, ErrInvalidInput)

	list, err = svc.RemoveMinyan(ctx, "main", "m1")
	require.NoError(t, err)
	assert.Equal(t, []minyan.Minyan{{ID: "m2", Label: "Mincha 1:45"}}, list)
	list, err = svc.RemoveMinyan(ctx, "main", "m1")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestMinyanIDIsStoredAsSupplied(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)
	_, err := svc.CreatePage(ctx, "Main")
	require.NoError(t, err)

	list, err := svc.AddMinyan(ctx, "main", " mon-am ", "Monday")
	require.NoError(t, err)
	assert.Equal(t, []minyan.Minyan{{ID: " mon-am ", Label: "Monday"}}, list)

	m, err := svc.RelabelMinyan(ctx, "main", " mon-am ", "Monday 6:30")
	require.NoError(t, err)
	assert.Equal(t, " mon-am ", m.ID)
	assert.Equal(t, "Monday 6:30", m.Label)

	_, err = svc.RelabelMinyan(ctx, "main", "mon-am", "x")
	kindOf(t, err, ErrNotFound)

	list, err = svc.RemoveMinyan(ctx, "main", " mon-am ")
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = svc.AddMinyan(ctx, "main", "   ", "blank")
	require.NoError(t, err)
}

func TestRegisterIsIdempotent(t *testing.T) {
	ctx := context.Background()
	svc, _, n := newTestService(t)
	_, err := svc.CreatePage(ctx, "Main")
	require.NoError(t, err)
	_, err = svc.AddMinyan(ctx, "main", "m1", "Shacharit")
	require.NoError(t, err)

	before := testutil.ToFloat64(metrics.Registrations.WithLabelValues("join"))
	u := minyan.Participant{UID: "u1", Email: "u1@x.com"}
	roster, err := svc.Register(ctx, "m1", u)
	require.NoError(t, err)
	require.Len(t, roster, 1)
	roster, err = svc.Register(ctx, "m1", u)
	require.NoError(t, err)
	require.Len(t, roster, 1)

	assert.Equal(t, []string{"✅ u1@x.com joined Main – Shacharit (1 registered)"}, n.texts())
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.Registrations.WithLabelValues("join")))
}

func TestRegisterUsesProfileName(t *testing.T) {
	ctx := context.Background()
	svc, _, n := newTestService(t)
	_, err := svc.CreatePage(ctx, "Main")
	require.NoError(t, err)
	_, err = svc.AddMinyan(ctx, "main", "m1", "Shacharit")
	require.NoError(t, err)
	require.NoError(t, svc.SetDisplayName(ctx, "u1", "Moshe"))

	roster, err := svc.Register(ctx, "m1", minyan.Participant{UID: "u1", Email: "u1@x.com", DisplayName: "ignored"})
	require.NoError(t, err)
	assert.Equal(t, []minyan.Participant{{UID: "u1", Email: "u1@x.com", DisplayName: "Moshe"}}, roster)
	assert.Equal(t, []string{"✅ Moshe joined Main – Shacharit (1 registered)"}, n.texts())
}

func TestRegisterUnknownMinyanSkipsNotification(t *testing.T) {
	ctx := context.Background()
	svc, _, n := newTestService(t)
	roster, err := svc.Register(ctx, "ghost", minyan.Participant{UID: "u1", Email: "e"})
	require.NoError(t, err)
	assert.Len(t, roster, 1)
	assert.Empty(t, n.texts())

	_, err = svc.Register(ctx, "", minyan.Participant{UID: "u1"})
	kindOf(t, err, ErrInvalidInput)
	_, err = svc.Register(ctx, "m1", minyan.Participant{})
	kindOf(t, err, ErrInvalidInput)
}

func TestUnregister(t *testing.T) {
	ctx := context.Background()
	svc, _, n := newTestService(t)
	_, err := svc.CreatePage(ctx, "Main")
	require.NoError(t, err)
	_, err = svc.AddMinyan(ctx, "main", "m1", "Shacharit")
	require.NoError(t, err)
	_, err = svc.Register(ctx, "m1", minyan.Participant{UID: "u1", Email: "u1@x.com"})
	require.NoError(t, err)
	_, err = svc.Register(ctx, "m1", minyan.Participant{UID: "u2", Email: "u2@x.com"})
	require.NoError(t, err)

	roster, err := svc.Unregister(ctx, "m1", "u1")
	require.NoError(t, err)
	assert.Equal(t, []minyan.Participant{{UID: "u2", Email: "u2@x.com", DisplayName: "u2@x.com"}}, roster)

	// not registered: roster unchanged, no notification
	again, err := svc.Unregister(ctx, "m1", "u1")
	require.NoError(t, err)
	assert.Equal(t, roster, again)

	texts := n.texts()
	require.Len(t, texts, 3)
	assert.Equal(t, "❌ u1@x.com left Main – Shacharit (1 registered)", texts[2])

	_, err = svc.Unregister(ctx, "m1", "")
	kindOf(t, err, ErrInvalidInput)
}

func TestUnregisterKeepsOrderOfRemaining(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)
	for _, uid := range []string{"u1", "u2", "u3", "u4"} {
		_, err := svc.Register(ctx, "m1", minyan.Participant{UID: uid, Email: uid + "@x.com"})
		require.NoError(t, err)
	}

	roster, err := svc.Unregister(ctx, "m1", "u2")
	require.NoError(t, err)
	assert.Equal(t, []minyan.Participant{
		{UID: "u1", Email: "u1@x.com", DisplayName: "u1@x.com"},
		{UID: "u3", Email: "u3@x.com", DisplayName: "u3@x.com"},
		{UID: "u4", Email: "u4@x.com", DisplayName: "u4@x.com"},
	}, roster)

	parts, err := svc.ListParticipants(ctx)
	require.NoError(t, err)
	assert.Equal(t, roster, parts["m1"])
}

func TestNotificationFallsBackToUID(t *testing.T) {
	ctx := context.Background()
	svc, _, n := newTestService(t)
	_, err := svc.CreatePage(ctx, "Main")
	require.NoError(t, err)
	_, err = svc.AddMinyan(ctx, "main", "m1", "Shacharit")
	require.NoError(t, err)

	roster, err := svc.Register(ctx, "m1", minyan.Participant{UID: "u9"})
	require.NoError(t, err)
	assert.Equal(t, []minyan.Participant{{UID: "u9"}}, roster)
	_, err = svc.Unregister(ctx, "m1", "u9")
	require.NoError(t, err)

	assert.Equal(t, []string{
		"✅ u9 joined Main – Shacharit (1 registered)",
		"❌ u9 left Main – Shacharit (0 registered)",
	}, n.texts())
}

func TestUnregisterUnknownMinyanPersistsEmptyRoster(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)
	roster, err := svc.Unregister(ctx, "ghost", "u1")
	require.NoError(t, err)
	assert.NotNil(t, roster)
	assert.Empty(t, roster)

	parts, err := svc.ListParticipants(ctx)
	require.NoError(t, err)
	v, ok := parts["ghost"]
	require.True(t, ok)
	assert.Empty(t, v)
}

func TestProfiles(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	name, err := svc.GetDisplayName(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "", name)

	require.NoError(t, svc.SetDisplayName(ctx, "u1", "Dovid"))
	require.NoError(t, svc.SetDisplayName(ctx, "u1", "Dovid K"))
	name, err = svc.GetDisplayName(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Dovid K", name)

	err = svc.SetDisplayName(ctx, "u1", "")
	kindOf(t, err, ErrInvalidInput)
	assert.Equal(t, "Missing fields", Message(err))
	kindOf(t, svc.SetDisplayName(ctx, "", "x"), ErrInvalidInput)

	profiles, err := svc.ListProfiles(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"u1": "Dovid K"}, profiles)
}

func TestListUsersOrdering(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	_, err := svc.Register(ctx, "m2", minyan.Participant{UID: "u3", Email: "u3@x.com"})
	require.NoError(t, err)
	_, err = svc.Register(ctx, "m1", minyan.Participant{UID: "u2", Email: "u2@x.com"})
	require.NoError(t, err)
	_, err = svc.Register(ctx, "m2", minyan.Participant{UID: "u2", Email: "other@x.com"})
	require.NoError(t, err)
	require.NoError(t, svc.SetDisplayName(ctx, "u2", "Dovid"))
	require.NoError(t, svc.SetDisplayName(ctx, "zz", "Zev"))
	require.NoError(t, svc.SetDisplayName(ctx, "aa", "Avi"))

	users, err := svc.ListUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []minyan.User{
		{UID: "u2", Email: "u2@x.com", DisplayName: "Dovid"},
		{UID: "u3", Email: "u3@x.com", DisplayName: ""},
		{UID: "aa", Email: "", DisplayName: "Avi"},
		{UID: "zz", Email: "", DisplayName: "Zev"},
	}, users)
}

func TestListUsersEmpty(t *testing.T) {
	svc, _, _ := newTestService(t)
	users, err := svc.ListUsers(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, users)
	assert.Empty(t, users)
}

func TestStoreErrorsPropagate(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("disk on fire")

	svc := New(failingRepo{loadErr: boom}, nil)
	_, err := svc.ListPages(ctx)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, "", Message(err))
	_, err = svc.CreatePage(ctx, "Main")
	require.ErrorIs(t, err, boom)

	n := &recordingNotifier{}
	svc = New(failingRepo{saveErr: boom}, n)
	_, err = svc.Register(ctx, "m1", minyan.Participant{UID: "u1", Email: "e"})
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "save state")
	assert.Empty(t, n.texts())
}

func TestPersistedDocumentShape(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := newTestService(t)
	_, err := svc.CreatePage(ctx, "Main")
	require.NoError(t, err)
	_, err = svc.AddMinyan(ctx, "main", "m1", "Shacharit")
	require.NoError(t, err)

	doc := string(repo.Bytes())
	assert.Contains(t, doc, `"id": "main"`)
	assert.Contains(t, doc, `"minyanim": [`)
	assert.Contains(t, doc, `"participants": {}`)
	assert.Contains(t, doc, `"userProfiles": {}`)
}

func TestConcurrentRegistrationsAreSerialized(t *testing.T) {
	ctx := context.Background()
	svc, _, n := newTestService(t)
	_, err := svc.CreatePage(ctx, "Main")
	require.NoError(t, err)
	_, err = svc.AddMinyan(ctx, "main", "m1", "Shacharit")
	require.NoError(t, err)

	uids := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	var wg sync.WaitGroup
	for _, uid := range uids {
		wg.Add(1)
		go func(uid string) {
			defer wg.Done()
			_, err := svc.Register(ctx, "m1", minyan.Participant{UID: uid, Email: uid + "@x.com"})
			assert.NoError(t, err)
		}(uid)
	}
	wg.Wait()

	parts, err := svc.ListParticipants(ctx)
	require.NoError(t, err)
	assert.Len(t, parts["m1"], len(uids))
	assert.Len(t, n.texts(), len(uids))
}

// TestEndToEndScenario walks one shul through setup, sign-ups and departures.
func TestEndToEndScenario(t *testing.T) {
	ctx := context.Background()
	svc, _, n := newTestService(t)

	page, err := svc.CreatePage(ctx, "Young Israel")
	require.NoError(t, err)
	_, err = svc.AddMinyan(ctx, page.ID, "yi-shacharit", "Shacharit 7:00")
	require.NoError(t, err)
	require.NoError(t, svc.SetDisplayName(ctx, "alice", "Alice"))

	_, err = svc.Register(ctx, "yi-shacharit", minyan.Participant{UID: "alice", Email: "alice@x.com"})
	require.NoError(t, err)
	roster, err := svc.Register(ctx, "yi-shacharit", minyan.Participant{UID: "bob", Email: "bob@x.com"})
	require.NoError(t, err)
	require.Len(t, roster, 2)

	roster, err = svc.Unregister(ctx, "yi-shacharit", "alice")
	require.NoError(t, err)
	require.Len(t, roster, 1)

	assert.Equal(t, []string{
		"✅ Alice joined Young Israel – Shacharit 7:00 (1 registered)",
		"✅ bob@x.com joined Young Israel – Shacharit 7:00 (2 registered)",
		"❌ Alice left Young Israel – Shacharit 7:00 (1 registered)",
	}, n.texts())

	users, err := svc.ListUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []minyan.User{
		{UID: "bob", Email: "bob@x.com", DisplayName: ""},
		{UID: "alice", Email: "", DisplayName: "Alice"},
	}, users)
}
