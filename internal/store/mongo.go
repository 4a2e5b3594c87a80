package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/svarvel/meethub/internal/domain"
)

const meetingsCollection = "meetings"

// Mongo is the production MeetingStore backed by a MongoDB collection.
type Mongo struct {
	client *mongo.Client
	coll   *mongo.Collection
}

func NewMongo(ctx context.Context, uri, db string) (*Mongo, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	log.Info().Str("module", "store.mongo").Str("db", db).Msg("connected")
	return &Mongo{
		client: client,
		coll:   client.Database(db).Collection(meetingsCollection),
	}, nil
}

func (s *Mongo) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *Mongo) Create(ctx context.Context, name string) (*domain.Meeting, error) {
	m := domain.NewMeeting(name)
	for {
		_, err := s.coll.InsertOne(ctx, m)
		if err == nil {
			return m, nil
		}
		if !mongo.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("insert meeting: %w", err)
		}
		// Code collision; retry with a fresh one.
		m.Code = domain.GenerateRoomCode()
	}
}

func (s *Mongo) Get(ctx context.Context, code string) (*domain.Meeting, error) {
	var m domain.Meeting
	err := s.coll.FindOne(ctx, bson.M{"_id": code, "active": true}).Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrMeetingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find meeting: %w", err)
	}
	return &m, nil
}

func (s *Mongo) List(ctx context.Context) ([]domain.Meeting, error) {
	cur, err := s.coll.Find(ctx, bson.M{"active": true},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("list meetings: %w", err)
	}
	defer cur.Close(ctx)
	var out []domain.Meeting
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode meetings: %w", err)
	}
	return out, nil
}

func (s *Mongo) End(ctx context.Context, code string) error {
	res, err := s.coll.UpdateOne(ctx, bson.M{"_id": code},
		bson.M{"$set": bson.M{"active": false, "endedAt": time.Now().UTC()}})
	if err != nil {
		return fmt.Errorf("end meeting: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrMeetingNotFound
	}
	return nil
}

func (s *Mongo) Exists(ctx context.Context, code string) (bool, error) {
	n, err := s.coll.CountDocuments(ctx, bson.M{"_id": code, "active": true})
	if err != nil {
		return false, fmt.Errorf("count meetings: %w", err)
	}
	return n > 0, nil
}
