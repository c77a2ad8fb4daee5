// Package data provides DB models and stores.
package data

import (
	"context"
	"time"

	"github.com/kelechukwu/pingme/internal/normalize"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// UsersStore performs user DB operations.
type UsersStore struct {
	coll *mongo.Collection
}

// NewUsersStore returns a UsersStore using the provided collection.
func NewUsersStore(coll *mongo.Collection) *UsersStore {
	return &UsersStore{coll: coll}
}

// CreateUser inserts a new user document with an already-hashed password.
// The phone number carries a unique index; a duplicate insert is reported
// as ErrPhoneRegistered.
func (u *UsersStore) CreateUser(ctx context.Context, phoneNumber, username, passwordHash string) (*User, error) {
	user := &User{
		Username:     username,
		Handle:       normalize.Handle(username),
		PhoneNumber:  normalize.Phone(phoneNumber),
		PasswordHash: passwordHash,
		CreatedAt:    time.Now(),
	}

	result, err := u.coll.InsertOne(ctx, user)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrPhoneRegistered
		}
		return nil, err
	}

	user.ID = result.InsertedID.(bson.ObjectID)
	return user, nil
}

// GetByPhone finds a user by normalized phone number.
func (u *UsersStore) GetByPhone(ctx context.Context, phoneNumber string) (*User, error) {
	var user User
	err := u.coll.FindOne(ctx, bson.M{"phone_number": normalize.Phone(phoneNumber)}).Decode(&user)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// GetByID finds a user by the hex form of its ObjectID.
func (u *UsersStore) GetByID(ctx context.Context, id string) (*User, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrUserNotFound
	}

	var user User
	if err := u.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&user); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// List returns every user except the caller, newest first.
func (u *UsersStore) List(ctx context.Context, excludeID string) ([]*User, error) {
	filter := bson.M{}
	if oid, err := bson.ObjectIDFromHex(excludeID); err == nil {
		filter["_id"] = bson.M{"$ne": oid}
	}

	cursor, err := u.coll.Find(ctx, filter, options.Find().SetSort(bson.M{"created_at": -1}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var users []*User
	if err := cursor.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// Search matches users whose phone number or username contains q,
// case-insensitively, excluding the caller.
func (u *UsersStore) Search(ctx context.Context, q, excludeID string) ([]*User, error) {
	regex := bson.M{"$regex": q, "$options": "i"}
	filter := bson.M{
		"$or": bson.A{
			bson.M{"phone_number": regex},
			bson.M{"username": regex},
		},
	}
	if oid, err := bson.ObjectIDFromHex(excludeID); err == nil {
		filter["_id"] = bson.M{"$ne": oid}
	}

	cursor, err := u.coll.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var users []*User
	if err := cursor.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// FindByHandles resolves a set of candidate handles to users. Handles with no
// matching user are simply absent from the result; resolution never errors on
// unknown names.
func (u *UsersStore) FindByHandles(ctx context.Context, handles []string) ([]*User, error) {
	if len(handles) == 0 {
		return nil, nil
	}

	normalized := make([]string, 0, len(handles))
	for _, h := range handles {
		normalized = append(normalized, normalize.Handle(h))
	}

	cursor, err := u.coll.Find(ctx, bson.M{"handle": bson.M{"$in": normalized}})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var users []*User
	if err := cursor.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}
