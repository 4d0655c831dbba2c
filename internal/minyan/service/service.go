package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/minjen/minjen-counter/backend/go-services/internal/minyan"
	"github.com/minjen/minjen-counter/backend/go-services/internal/minyan/repository"
	"github.com/minjen/minjen-counter/backend/go-services/internal/notify"
	"github.com/minjen/minjen-counter/backend/go-services/pkg/metrics"
)

// Notifier receives roster events after they have been persisted. It must not block.
type Notifier interface {
	Notify(ev notify.Event) bool
}

// Service implements the page, minyan, participation and profile operations.
// Each mutation loads the whole document, changes it and saves it back; the
// mutex makes this process the only writer while that happens.
type Service struct {
	repo     repository.Repository
	notifier Notifier
	mu       sync.Mutex
}

// New returns a Service. notifier may be nil to disable notifications.
func New(repo repository.Repository, notifier Notifier) *Service {
	return &Service{repo: repo, notifier: notifier}
}

func (s *Service) load(ctx context.Context) (*minyan.State, error) {
	st, err := s.repo.Load(ctx)
	metrics.ObserveStore("load", err)
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}
	return st, nil
}

// mutate runs fn on a freshly loaded document and saves it when fn asks to.
func (s *Service) mutate(ctx context.Context, fn func(st *minyan.State) (persist bool, err error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := s.load(ctx)
	if err != nil {
		return err
	}
	persist, err := fn(st)
	if err != nil {
		return err
	}
	if !persist {
		return nil
	}
	err = s.repo.Save(ctx, st)
	metrics.ObserveStore("save", err)
	if err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}

// ---- pages ----

// CreatePage stores name as given; the id is the slug of its trimmed form.
func (s *Service) CreatePage(ctx context.Context, name string) (*minyan.Page, error) {
	if strings.TrimSpace(name) == "" {
		return nil, invalid("Missing name")
	}
	id := minyan.Slugify(strings.TrimSpace(name))
	if id == "" {
		return nil, invalid("Name must contain letters or digits")
	}
	page := &minyan.Page{ID: id, Name: name, Minyanim: []minyan.Minyan{}}
	err := s.mutate(ctx, func(st *minyan.State) (bool, error) {
		if _, ok := st.FindPage(id); ok {
			return false, conflict("Page exists")
		}
		st.Pages = append(st.Pages, page)
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return page, nil
}

// RenamePage changes the display name only; the id keeps the slug it was created with.
func (s *Service) RenamePage(ctx context.Context, id, name string) (*minyan.Page, error) {
	var out *minyan.Page
	err := s.mutate(ctx, func(st *minyan.State) (bool, error) {
		p, ok := st.FindPage(id)
		if !ok {
			return false, notFound("Page not found")
		}
		if strings.TrimSpace(name) == "" {
			return false, invalid("Missing name")
		}
		p.Name = name
		out = p
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeletePage removes the page if present. Rosters of its minyanim are kept.
func (s *Service) DeletePage(ctx context.Context, id string) error {
	return s.mutate(ctx, func(st *minyan.State) (bool, error) {
		kept := st.Pages[:0]
		for _, p := range st.Pages {
			if p.ID != id {
				kept = append(kept, p)
			}
		}
		st.Pages = kept
		return true, nil
	})
}

func (s *Service) ListPages(ctx context.Context) ([]*minyan.Page, error) {
	st, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	return st.Pages, nil
}

func (s *Service) GetPage(ctx context.Context, id string) (*minyan.Page, error) {
	st, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	p, ok := st.FindPage(id)
	if !ok {
		return nil, notFound("Page not found")
	}
	return p, nil
}

// ---- minyanim ----

// AddMinyan keeps minyanID exactly as supplied, so later calls must use the same id.
func (s *Service) AddMinyan(ctx context.Context, pageID, minyanID, label string) ([]minyan.Minyan, error) {
	var out []minyan.Minyan
	err := s.mutate(ctx, func(st *minyan.State) (bool, error) {
		p, ok := st.FindPage(pageID)
		if !ok {
			return false, notFound("Page not found")
		}
		if minyanID == "" {
			return false, invalid("Missing minyanId")
		}
		if _, exists := p.FindMinyan(minyanID); exists {
			return false, conflict("Minyan exists")
		}
		p.Minyanim = append(p.Minyanim, minyan.Minyan{ID: minyanID, Label: label})
		out = p.Minyanim
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) RemoveMinyan(ctx context.Context, pageID, minyanID string) ([]minyan.Minyan, error) {
	var out []minyan.Minyan
	err := s.mutate(ctx, func(st *minyan.State) (bool, error) {
		p, ok := st.FindPage(pageID)
		if !ok {
			return false, notFound("Page not found")
		}
		kept := make([]minyan.Minyan, 0, len(p.Minyanim))
		for _, m := range p.Minyanim {
			if m.ID != minyanID {
				kept = append(kept, m)
			}
		}
		p.Minyanim = kept
		out = kept
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) RelabelMinyan(ctx context.Context, pageID, minyanID, label string) (*minyan.Minyan, error) {
	label = strings.TrimSpace(label)
	var out minyan.Minyan
	err := s.mutate(ctx, func(st *minyan.State) (bool, error) {
		p, ok := st.FindPage(pageID)
		if !ok {
			return false, notFound("Page not found")
		}
		m, ok := p.FindMinyan(minyanID)
		if !ok {
			return false, notFound("Minyan not found")
		}
		if label == "" {
			return false, invalid("Missing label")
		}
		m.Label = label
		out = *m
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ---- participation ----

// Register adds user to the minyan roster. Registering twice is a silent no-op.
// The stored display name is the user's profile name, falling back to the e-mail.
func (s *Service) Register(ctx context.Context, minyanID string, user minyan.Participant) ([]minyan.Participant, error) {
	if minyanID == "" || user.UID == "" {
		return nil, invalid("Missing data")
	}
	var (
		roster []minyan.Participant
		event  *notify.Event
		joined bool
	)
	err := s.mutate(ctx, func(st *minyan.State) (bool, error) {
		roster = st.Participants[minyanID]
		if minyan.HasParticipant(roster, user.UID) {
			return false, nil
		}
		joined = true
		display := resolveDisplayName(st, user.UID, user.Email)
		roster = append(roster, minyan.Participant{UID: user.UID, Email: user.Email, DisplayName: display})
		st.Participants[minyanID] = roster
		event = rosterEvent(st, notify.Joined, minyanID, orUID(display, user.UID), len(roster))
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	if joined {
		s.emit(event, "join")
	}
	return nonNil(roster), nil
}

// Unregister removes uid from the roster. The roster is always saved, so an
// unknown minyan ends up with an empty roster entry.
func (s *Service) Unregister(ctx context.Context, minyanID, uid string) ([]minyan.Participant, error) {
	if minyanID == "" || uid == "" {
		return nil, invalid("Missing data")
	}
	var (
		roster []minyan.Participant
		event  *notify.Event
		left   bool
	)
	err := s.mutate(ctx, func(st *minyan.State) (bool, error) {
		before := st.Participants[minyanID]
		roster = make([]minyan.Participant, 0, len(before))
		var removed *minyan.Participant
		for i := range before {
			if before[i].UID == uid {
				removed = &before[i]
				continue
			}
			roster = append(roster, before[i])
		}
		st.Participants[minyanID] = roster
		if removed != nil {
			left = true
			display := st.UserProfiles[uid]
			if display == "" {
				display = removed.DisplayName
			}
			if display == "" {
				display = removed.Email
			}
			event = rosterEvent(st, notify.Left, minyanID, orUID(display, uid), len(roster))
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	if left {
		s.emit(event, "leave")
	}
	return roster, nil
}

func (s *Service) ListParticipants(ctx context.Context) (map[string][]minyan.Participant, error) {
	st, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	return st.Participants, nil
}

// orUID names a user with no profile and no e-mail by uid in notifications.
func orUID(display, uid string) string {
	if display == "" {
		return uid
	}
	return display
}

func resolveDisplayName(st *minyan.State, uid, email string) string {
	if name := st.UserProfiles[uid]; name != "" {
		return name
	}
	return email
}

// rosterEvent builds a notification for minyanID, or nil when no page owns it.
func rosterEvent(st *minyan.State, kind notify.Kind, minyanID, display string, count int) *notify.Event {
	page, m, ok := st.FindMinyan(minyanID)
	if !ok {
		return nil
	}
	ev := notify.NewEvent(kind, page.Name, m.Label, display, count)
	return &ev
}

// emit counts a roster change and hands its event, if any, to the notifier.
func (s *Service) emit(ev *notify.Event, action string) {
	metrics.Registrations.WithLabelValues(action).Inc()
	if ev != nil && s.notifier != nil {
		s.notifier.Notify(*ev)
	}
}

func nonNil(r []minyan.Participant) []minyan.Participant {
	if r == nil {
		return []minyan.Participant{}
	}
	return r
}

// ---- profiles ----

func (s *Service) SetDisplayName(ctx context.Context, uid, displayName string) error {
	displayName = strings.TrimSpace(displayName)
	if uid == "" || displayName == "" {
		return invalid("Missing fields")
	}
	return s.mutate(ctx, func(st *minyan.State) (bool, error) {
		st.UserProfiles[uid] = displayName
		return true, nil
	})
}

// GetDisplayName returns the stored profile name, or "" when none is set.
func (s *Service) GetDisplayName(ctx context.Context, uid string) (string, error) {
	st, err := s.load(ctx)
	if err != nil {
		return "", err
	}
	return st.UserProfiles[uid], nil
}

func (s *Service) ListProfiles(ctx context.Context) (map[string]string, error) {
	st, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	return st.UserProfiles, nil
}

// ListUsers merges every uid seen on a roster with the stored profiles.
// Roster users come first, in the order they are met scanning minyan ids
// ascending; users known only from a profile follow, sorted by uid.
func (s *Service) ListUsers(ctx context.Context) ([]minyan.User, error) {
	st, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(st.Participants))
	for id := range st.Participants {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	users := []minyan.User{}
	index := map[string]int{}
	for _, id := range ids {
		for _, p := range st.Participants[id] {
			if p.UID == "" {
				continue
			}
			if i, ok := index[p.UID]; ok {
				if users[i].Email == "" {
					users[i].Email = p.Email
				}
				continue
			}
			index[p.UID] = len(users)
			users = append(users, minyan.User{UID: p.UID, Email: p.Email})
		}
	}

	var profileOnly []string
	for uid := range st.UserProfiles {
		if _, ok := index[uid]; !ok {
			profileOnly = append(profileOnly, uid)
		}
	}
	sort.Strings(profileOnly)
	for _, uid := range profileOnly {
		index[uid] = len(users)
		users = append(users, minyan.User{UID: uid})
	}

	for i := range users {
		users[i].DisplayName = st.UserProfiles[users[i].UID]
	}
	return users, nil
}
