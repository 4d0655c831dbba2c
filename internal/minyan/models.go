package minyan

// State is the whole persisted document. It is loaded in full before every
// operation and written back in full after every mutation.
type State struct {
	Pages        []*Page                  `json:"pages" bson:"pages"`
	Participants map[string][]Participant `json:"participants" bson:"participants"`
	UserProfiles map[string]string        `json:"userProfiles" bson:"userProfiles"`
}

// Page is an organization or location that owns a list of minyanim.
type Page struct {
	ID       string   `json:"id" bson:"id"`
	Name     string   `json:"name" bson:"name"`
	Minyanim []Minyan `json:"minyanim" bson:"minyanim"`
}

// Minyan is a named time-slot owned by exactly one page.
type Minyan struct {
	ID    string `json:"id" bson:"id"`
	Label string `json:"label" bson:"label"`
}

// Participant is one roster entry. DisplayName is resolved when the user registers.
type Participant struct {
	UID         string `json:"uid" bson:"uid"`
	Email       string `json:"email" bson:"email"`
	DisplayName string `json:"displayName,omitempty" bson:"displayName,omitempty"`
}

// User is the merged identity returned by the users listing.
type User struct {
	UID         string `json:"uid"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
}

// NewState returns an empty document.
func NewState() *State {
	return &State{
		Pages:        []*Page{},
		Participants: map[string][]Participant{},
		UserProfiles: map[string]string{},
	}
}

// Normalize replaces nil collections so the document never serializes null.
// Documents written before profiles existed have no userProfiles key.
func (s *State) Normalize() *State {
	if s.Pages == nil {
		s.Pages = []*Page{}
	}
	if s.Participants == nil {
		s.Participants = map[string][]Participant{}
	}
	if s.UserProfiles == nil {
		s.UserProfiles = map[string]string{}
	}
	for _, p := range s.Pages {
		if p.Minyanim == nil {
			p.Minyanim = []Minyan{}
		}
	}
	for id, roster := range s.Participants {
		if roster == nil {
			s.Participants[id] = []Participant{}
		}
	}
	return s
}

// FindPage returns the page with the given id.
func (s *State) FindPage(id string) (*Page, bool) {
	for _, p := range s.Pages {
		if p.ID == id {
			return p, true
		}
	}
	return nil, false
}

// FindMinyan scans every page for the minyan id and returns its owner.
func (s *State) FindMinyan(minyanID string) (*Page, *Minyan, bool) {
	for _, p := range s.Pages {
		for i := range p.Minyanim {
			if p.Minyanim[i].ID == minyanID {
				return p, &p.Minyanim[i], true
			}
		}
	}
	return nil, nil, false
}

// FindMinyan returns the minyan with the given id on this page.
func (p *Page) FindMinyan(id string) (*Minyan, bool) {
	for i := range p.Minyanim {
		if p.Minyanim[i].ID == id {
			return &p.Minyanim[i], true
		}
	}
	return nil, false
}

// HasParticipant reports whether uid is already on the roster.
func HasParticipant(roster []Participant, uid string) bool {
	for _, p := range roster {
		if p.UID == uid {
			return true
		}
	}
	return false
}
