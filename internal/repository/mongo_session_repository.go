package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"lexpertease/internal/model"
)

type mongoSessionRepository struct {
	coll *mongo.Collection
}

func (r *mongoSessionRepository) Create(ctx context.Context, session *model.Session) error {
	session.Prepare(time.Now().UTC())
	_, err := r.coll.InsertOne(ctx, session)
	return translateMongoError(err)
}

func (r *mongoSessionRepository) Consume(ctx context.Context, token string, typ model.SessionType, now time.Time) (*model.Session, error) {
	filter := bson.M{
		"token":     token,
		"type":      typ,
		"isRevoked": false,
		"expiresAt": bson.M{"$gt": now},
	}
	update := bson.M{"$set": bson.M{"isRevoked": true, "updatedAt": now}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var session model.Session
	if err := r.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&session); err != nil {
		return nil, translateMongoError(err)
	}
	return &session, nil
}

func (r *mongoSessionRepository) Revoke(ctx context.Context, userID, token string, typ model.SessionType) error {
	_, err := r.coll.UpdateOne(ctx,
		bson.M{"userId": userID, "token": token, "type": typ},
		bson.M{"$set": bson.M{"isRevoked": true, "updatedAt": time.Now().UTC()}},
	)
	return err
}

func (r *mongoSessionRepository) RevokeAll(ctx context.Context, userID string, typ model.SessionType) error {
	_, err := r.coll.UpdateMany(ctx,
		bson.M{"userId": userID, "type": typ, "isRevoked": false},
		bson.M{"$set": bson.M{"isRevoked": true, "updatedAt": time.Now().UTC()}},
	)
	return err
}

func (r *mongoSessionRepository) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.coll.DeleteMany(ctx, bson.M{"expiresAt": bson.M{"$lte": now}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
