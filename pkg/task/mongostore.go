package task

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoCollection is the collection name used by MongoStore.
const MongoCollection = "tasks"

// Server error codes.
const (
	namespaceExists           = 48
	documentValidationFailure = 121 // rejected by the $jsonSchema validator
)

// MongoStore is a MongoDB-backed task store.
type MongoStore struct {
	coll *mongo.Collection
}

// NewMongoStore creates a MongoStore on the tasks collection of db.
func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{coll: db.Collection(MongoCollection)}
}

type mongoTask struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	Title       string             `bson:"title"`
	Description string             `bson:"description"`
	Status      string             `bson:"status"`
	CreatedAt   time.Time          `bson:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt"`
}

func (d *mongoTask) toTask() *Task {
	return &Task{
		ID:          d.ID.Hex(),
		Title:       d.Title,
		Description: d.Description,
		Status:      Status(d.Status),
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

// EnsureTable installs the document validator and creates the indexes used
// by list and stats queries.
func (s *MongoStore) EnsureTable(ctx context.Context) error {
	db := s.coll.Database()
	err := db.CreateCollection(ctx, MongoCollection,
		options.CreateCollection().
			SetValidator(taskSchema()).
			SetValidationLevel("strict").
			SetValidationAction("error"))
	var se mongo.ServerError
	if errors.As(err, &se) && se.HasErrorCode(namespaceExists) {
		err = db.RunCommand(ctx, bson.D{
			{Key: "collMod", Value: MongoCollection},
			{Key: "validator", Value: taskSchema()},
			{Key: "validationLevel", Value: "strict"},
			{Key: "validationAction", Value: "error"},
		}).Err()
	}
	if err != nil {
		return fmt.Errorf("ensure task validator: %w", err)
	}

	_, err = s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("ensure task indexes: %w", err)
	}
	return nil
}

// Create inserts a new task document.
func (s *MongoStore) Create(ctx context.Context, t *Task) (*Task, error) {
	now := time.Now().Truncate(time.Millisecond)
	if t.Status == "" {
		t.Status = StatusPending
	}
	doc := mongoTask{
		ID:          primitive.NewObjectID(),
		Title:       t.Title,
		Description: t.Description,
		Status:      string(t.Status),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		return nil, fmt.Errorf("create task: %w", mongoValidation(err))
	}
	return doc.toTask(), nil
}

// Get retrieves a single task by its hex ObjectID.
func (s *MongoStore) Get(ctx context.Context, id string) (*Task, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	var doc mongoTask
	err = s.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get task %s: %w", id, err)
	}
	return doc.toTask(), nil
}

// Update sets the fields present in u and refreshes updatedAt.
func (s *MongoStore) Update(ctx context.Context, id string, u Update) (*Task, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}

	set := bson.M{"updatedAt": time.Now().Truncate(time.Millisecond)}
	if u.Title != nil {
		set["title"] = *u.Title
	}
	if u.Description != nil {
		set["description"] = *u.Description
	}
	if u.Status != nil {
		set["status"] = string(*u.Status)
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc mongoTask
	err = s.coll.FindOneAndUpdate(ctx, bson.M{"_id": oid}, bson.M{"$set": set}, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update task %s: %w", id, mongoValidation(err))
	}
	return doc.toTask(), nil
}

// Delete removes a task document permanently.
func (s *MongoStore) Delete(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}
	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("delete task %s: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Find returns matching tasks ordered by createdAt desc.
func (s *MongoStore) Find(ctx context.Context, f Filter, skip, limit int) ([]Task, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(int64(skip)).
		SetLimit(int64(limit))

	cur, err := s.coll.Find(ctx, filterDoc(f), opts)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	var docs []mongoTask
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode tasks: %w", err)
	}

	tasks := make([]Task, 0, len(docs))
	for i := range docs {
		tasks = append(tasks, *docs[i].toTask())
	}
	return tasks, nil
}

// Count returns the number of matching tasks.
func (s *MongoStore) Count(ctx context.Context, f Filter) (int, error) {
	n, err := s.coll.CountDocuments(ctx, filterDoc(f))
	if err != nil {
		return 0, fmt.Errorf("count tasks: %w", err)
	}
	return int(n), nil
}

// CountByStatus groups documents by status.
func (s *MongoStore) CountByStatus(ctx context.Context) (map[Status]int, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$status"},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	}
	cur, err := s.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("count by status: %w", err)
	}
	var groups []struct {
		Status string `bson:"_id"`
		Count  int    `bson:"count"`
	}
	if err := cur.All(ctx, &groups); err != nil {
		return nil, fmt.Errorf("decode status groups: %w", err)
	}

	counts := make(map[Status]int, len(groups))
	for _, g := range groups {
		counts[Status(g.Status)] = g.Count
	}
	return counts, nil
}

// filterDoc builds the query document for f. Search text is matched
// literally, not as a regular expression.
func filterDoc(f Filter) bson.M {
	doc := bson.M{}
	if f.Search != "" {
		pattern := primitive.Regex{Pattern: regexp.QuoteMeta(f.Search), Options: "i"}
		doc["$or"] = bson.A{
			bson.M{"title": pattern},
			bson.M{"description": pattern},
		}
	}
	if f.Status != "" {
		doc["status"] = string(f.Status)
	}
	return doc
}

// taskSchema is the collection validator. It mirrors the CHECK constraints
// of the Postgres table.
func taskSchema() bson.M {
	statuses := bson.A{}
	for _, st := range Statuses() {
		statuses = append(statuses, string(st))
	}
	nonEmpty := bson.M{"bsonType": "string", "minLength": 1}
	return bson.M{"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": bson.A{"title", "description", "status", "createdAt", "updatedAt"},
		"properties": bson.M{
			"title":       nonEmpty,
			"description": nonEmpty,
			"status":      bson.M{"bsonType": "string", "enum": statuses},
			"createdAt":   bson.M{"bsonType": "date"},
			"updatedAt":   bson.M{"bsonType": "date"},
		},
	}}
}

func mongoValidation(err error) error {
	var se mongo.ServerError
	if errors.As(err, &se) && se.HasErrorCode(documentValidationFailure) {
		return &ValidationError{Message: "Validation error", Fields: map[string]string{"task": "document failed validation"}}
	}
	return err
}
