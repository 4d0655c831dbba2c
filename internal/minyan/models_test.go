package minyan

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeFillsMissingCollections(t *testing.T) {
	var s State
	require.NoError(t, json.Unmarshal([]byte(`{"pages":[{"id":"a","name":"A"}],"participants":{"m1":null}}`), &s))
	s.Normalize()

	b, err := json.Marshal(&s)
	require.NoError(t, err)
	require.JSONEq(t, `{"pages":[{"id":"a","name":"A","minyanim":[]}],"participants":{"m1":[]},"userProfiles":{}}`, string(b))
}

func TestFindMinyanAcrossPages(t *testing.T) {
	s := NewState()
	s.Pages = append(s.Pages,
		&Page{ID: "a", Name: "A", Minyanim: []Minyan{{ID: "a1", Label: "Shacharit"}}},
		&Page{ID: "b", Name: "B", Minyanim: []Minyan{{ID: "b1", Label: "Mincha"}, {ID: "b2", Label: "Maariv"}}},
	)

	page, m, ok := s.FindMinyan("b2")
	require.True(t, ok)
	require.Equal(t, "B", page.Name)
	require.Equal(t, "Maariv", m.Label)

	_, _, ok = s.FindMinyan("zz")
	require.False(t, ok)

	// returned pointer aliases the stored minyan
	m.Label = "Arvit"
	got, _ := s.Pages[1].FindMinyan("b2")
	require.Equal(t, "Arvit", got.Label)
}

func TestParticipantOmitsEmptyDisplayName(t *testing.T) {
	b, err := json.Marshal(Participant{UID: "u1", Email: "u1@x.com"})
	require.NoError(t, err)
	require.JSONEq(t, `{"uid":"u1","email":"u1@x.com"}`, string(b))
	require.True(t, HasParticipant([]Participant{{UID: "u1"}}, "u1"))
	require.False(t, HasParticipant(nil, "u1"))
}
