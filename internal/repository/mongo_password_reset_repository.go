package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"lexpertease/internal/model"
)

type mongoPasswordResetRepository struct {
	coll *mongo.Collection
}

func (r *mongoPasswordResetRepository) Create(ctx context.Context, reset *model.PasswordReset) error {
	reset.Prepare(time.Now().UTC())
	_, err := r.coll.InsertOne(ctx, reset)
	return translateMongoError(err)
}

func (r *mongoPasswordResetRepository) InvalidateForUser(ctx context.Context, userID string) error {
	_, err := r.coll.UpdateMany(ctx,
		bson.M{"userId": userID, "isUsed": false},
		bson.M{"$set": bson.M{"isUsed": true, "updatedAt": time.Now().UTC()}},
	)
	return err
}

func (r *mongoPasswordResetRepository) Consume(ctx context.Context, token string, now time.Time) (*model.PasswordReset, error) {
	filter := bson.M{
		"token":     token,
		"isUsed":    false,
		"expiresAt": bson.M{"$gt": now},
	}
	update := bson.M{"$set": bson.M{"isUsed": true, "updatedAt": now}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var reset model.PasswordReset
	if err := r.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&reset); err != nil {
		return nil, translateMongoError(err)
	}
	return &reset, nil
}

func (r *mongoPasswordResetRepository) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.coll.DeleteMany(ctx, bson.M{"$or": bson.A{
		bson.M{"expiresAt": bson.M{"$lte": now}},
		bson.M{"isUsed": true},
	}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
