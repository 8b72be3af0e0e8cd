package repository

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const (
	usersCollection          = "users"
	sessionsCollection       = "sessions"
	passwordResetsCollection = "password_resets"
)

type mongoStore struct {
	client         *mongo.Client
	db             *mongo.Database
	users          UserRepository
	sessions       SessionRepository
	passwordResets PasswordResetRepository
}

// NewMongoStore builds a Store over the named MongoDB database.
func NewMongoStore(client *mongo.Client, database string) Store {
	db := client.Database(database)
	return &mongoStore{
		client:         client,
		db:             db,
		users:          &mongoUserRepository{coll: db.Collection(usersCollection)},
		sessions:       &mongoSessionRepository{coll: db.Collection(sessionsCollection)},
		passwordResets: &mongoPasswordResetRepository{coll: db.Collection(passwordResetsCollection)},
	}
}

// EnsureMongoIndexes creates the unique and TTL indexes. Expired sessions
// and reset tokens are removed by the server's TTL monitor.
func EnsureMongoIndexes(ctx context.Context, client *mongo.Client, database string) error {
	db := client.Database(database)
	specs := map[string][]mongo.IndexModel{
		usersCollection: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		sessionsCollection: {
			{Keys: bson.D{{Key: "token", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "type", Value: 1}}},
			{Keys: bson.D{{Key: "expiresAt", Value: 1}}, Options: options.Index().SetExpireAfterSeconds(0)},
		},
		passwordResetsCollection: {
			{Keys: bson.D{{Key: "token", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "userId", Value: 1}}},
			{Keys: bson.D{{Key: "expiresAt", Value: 1}}, Options: options.Index().SetExpireAfterSeconds(0)},
		},
	}
	for name, models := range specs {
		if _, err := db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create %s indexes: %w", name, err)
		}
	}
	return nil
}

func (s *mongoStore) Users() UserRepository                   { return s.users }
func (s *mongoStore) Sessions() SessionRepository             { return s.sessions }
func (s *mongoStore) PasswordResets() PasswordResetRepository { return s.passwordResets }

func (s *mongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *mongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func translateMongoError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	}
	return err
}
