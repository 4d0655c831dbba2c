package repository

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/minjen/minjen-counter/backend/go-services/internal/minyan"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// stateDocID is the _id of the one document that holds all state.
const stateDocID = "state"

// MongoRepo stores the whole state as a single Mongo document. Minyan ids
// and uids are user-supplied and may contain '.' or '$', so the two maps
// are stored as arrays of key/value records instead of as sub-documents.
type MongoRepo struct {
	col *mongo.Collection
}

type mongoRoster struct {
	MinyanID     string               `bson:"minyanId"`
	Participants []minyan.Participant `bson:"participants"`
}

type mongoProfile struct {
	UID         string `bson:"uid"`
	DisplayName string `bson:"displayName"`
}

type mongoState struct {
	ID           string         `bson:"_id"`
	Pages        []*minyan.Page `bson:"pages"`
	Participants []mongoRoster  `bson:"participants"`
	UserProfiles []mongoProfile `bson:"userProfiles"`
	UpdatedAt    time.Time      `bson:"updatedAt"`
}

func NewMongoRepo(col *mongo.Collection) *MongoRepo {
	return &MongoRepo{col: col}
}

func (m *MongoRepo) Load(ctx context.Context) (*minyan.State, error) {
	var doc mongoState
	err := m.col.FindOne(ctx, bson.M{"_id": stateDocID}).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return minyan.NewState(), nil
		}
		return nil, fmt.Errorf("mongo load state: %w", err)
	}
	return fromMongo(&doc), nil
}

func (m *MongoRepo) Save(ctx context.Context, s *minyan.State) error {
	doc := toMongo(s)
	opts := options.Replace().SetUpsert(true)
	if _, err := m.col.ReplaceOne(ctx, bson.M{"_id": stateDocID}, doc, opts); err != nil {
		return fmt.Errorf("mongo save state: %w", err)
	}
	return nil
}

func toMongo(s *minyan.State) *mongoState {
	if s == nil {
		s = minyan.NewState()
	}
	s.Normalize()
	doc := &mongoState{
		ID:           stateDocID,
		Pages:        s.Pages,
		Participants: make([]mongoRoster, 0, len(s.Participants)),
		UserProfiles: make([]mongoProfile, 0, len(s.UserProfiles)),
		UpdatedAt:    time.Now().UTC(),
	}
	for id, roster := range s.Participants {
		doc.Participants = append(doc.Participants, mongoRoster{MinyanID: id, Participants: roster})
	}
	sort.Slice(doc.Participants, func(i, j int) bool { return doc.Participants[i].MinyanID < doc.Participants[j].MinyanID })
	for uid, name := range s.UserProfiles {
		doc.UserProfiles = append(doc.UserProfiles, mongoProfile{UID: uid, DisplayName: name})
	}
	sort.Slice(doc.UserProfiles, func(i, j int) bool { return doc.UserProfiles[i].UID < doc.UserProfiles[j].UID })
	return doc
}

func fromMongo(doc *mongoState) *minyan.State {
	s := minyan.NewState()
	if doc.Pages != nil {
		s.Pages = doc.Pages
	}
	for _, r := range doc.Participants {
		s.Participants[r.MinyanID] = r.Participants
	}
	for _, p := range doc.UserProfiles {
		s.UserProfiles[p.UID] = p.DisplayName
	}
	return s.Normalize()
}
