// internal/app/store/groups/groupstore.go
package groupstore

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	userstore "github.com/dalemusser/studygroups/internal/app/store/users"
	"github.com/dalemusser/studygroups/internal/app/system/htmlsanitize"
	"github.com/dalemusser/studygroups/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c     *mongo.Collection
	users *userstore.Store
}

var (
	ErrNotFound           = errors.New("group not found")
	ErrDuplicateGroupName = errors.New("a group with this name already exists for the subject")
	// ErrNotAppended is returned by AppendMember when the guarded update
	// matched nothing: the group is gone, already holds the user, or is full.
	ErrNotAppended = errors.New("member not appended")
	// ErrNotRemoved is returned by RemoveMember when the group is gone or
	// does not hold the user.
	ErrNotRemoved = errors.New("member not removed")

	errBadSubject  = errors.New("subject is required")
	errBadName     = errors.New("name is required")
	errBadCapacity = errors.New("capacity must be positive")
)

func New(db *mongo.Database) *Store {
	return &Store{
		c:     db.Collection("groups"),
		users: userstore.New(db),
	}
}

// GetByID loads a group. Returns ErrNotFound if no group has that id.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Group, error) {
	var g models.Group
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&g); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Group{}, ErrNotFound
		}
		return models.Group{}, err
	}
	return g, nil
}

// Create inserts a new group. Capacity defaults to models.DefaultGroupCapacity
// and the member list always starts empty. Tags are stored as plain text.
func (s *Store) Create(ctx context.Context, g models.Group) (models.Group, error) {
	g.Subject = strings.TrimSpace(g.Subject)
	g.Name = strings.TrimSpace(g.Name)
	if g.Subject == "" {
		return models.Group{}, errBadSubject
	}
	if g.Name == "" {
		return models.Group{}, errBadName
	}
	if g.Capacity == 0 {
		g.Capacity = models.DefaultGroupCapacity
	}
	if g.Capacity < 0 {
		return models.Group{}, errBadCapacity
	}

	now := time.Now().UTC()
	g.ID = primitive.NewObjectID()
	g.SubjectCI = text.Fold(g.Subject)
	g.NameCI = text.Fold(g.Name)
	g.Tags = htmlsanitize.PlainTexts(g.Tags)
	g.Members = []string{}
	g.CreatedAt = now
	g.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, g); err != nil {
		if wafflemongo.IsDup(err) {
			return models.Group{}, ErrDuplicateGroupName
		}
		return models.Group{}, err
	}
	return g, nil
}

// AppendMember pushes userID onto the group's member list and returns the
// updated group.
//
// Callers must hold the group's exclusion (see membership.Coordinator). The
// update is still guarded on the document itself: it only applies when the
// user is not yet a member and the member count is below capacity, so the
// stored document can never exceed its cap.
func (s *Store) AppendMember(ctx context.Context, id primitive.ObjectID, userID string) (models.Group, error) {
	filter := bson.M{
		"_id":     id,
		"members": bson.M{"$ne": userID},
		"$expr": bson.M{"$lt": bson.A{
			bson.M{"$size": bson.M{"$ifNull": bson.A{"$members", bson.A{}}}},
			"$capacity",
		}},
	}
	update := bson.M{
		"$push": bson.M{"members": userID},
		"$set":  bson.M{"updated_at": time.Now().UTC()},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var g models.Group
	if err := s.c.FindOneAndUpdate(ctx, filter, update, opts).Decode(&g); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Group{}, ErrNotAppended
		}
		return models.Group{}, err
	}
	return g, nil
}

// RemoveMember pulls userID from the group's member list and returns the
// updated group.
func (s *Store) RemoveMember(ctx context.Context, id primitive.ObjectID, userID string) (models.Group, error) {
	filter := bson.M{"_id": id, "members": userID}
	update := bson.M{
		"$pull": bson.M{"members": userID},
		"$set":  bson.M{"updated_at": time.Now().UTC()},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var g models.Group
	if err := s.c.FindOneAndUpdate(ctx, filter, update, opts).Decode(&g); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Group{}, ErrNotRemoved
		}
		return models.Group{}, err
	}
	return g, nil
}

// ListMembers returns a summary for each member, in join order. Members whose
// account cannot be found keep their id with empty display fields.
func (s *Store) ListMembers(ctx context.Context, id primitive.ObjectID) ([]models.MemberSummary, error) {
	g, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	users, err := s.users.GetByHexIDs(ctx, g.Members)
	if err != nil {
		return nil, err
	}

	out := make([]models.MemberSummary, 0, len(g.Members))
	for _, uid := range g.Members {
		sum := models.MemberSummary{UserID: uid}
		if u, ok := users[uid]; ok {
			sum.DisplayName = u.FullName
			sum.Email = u.Email
			sum.Major = u.Major
		}
		out = append(out, sum)
	}
	return out, nil
}

// ListBySubject returns groups whose subject contains the query
// (case- and diacritic-insensitive), ordered by name. limit <= 0 means no cap.
func (s *Store) ListBySubject(ctx context.Context, query string, limit int64) ([]models.Group, error) {
	filter := bson.M{
		"subject_ci": primitive.Regex{Pattern: regexp.QuoteMeta(text.Fold(strings.TrimSpace(query)))},
	}
	opts := options.Find().SetSort(bson.D{{Key: "name_ci", Value: 1}, {Key: "_id", Value: 1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	return s.find(ctx, filter, opts)
}

// ListByMember returns every group that userID belongs to, ordered by subject.
func (s *Store) ListByMember(ctx context.Context, userID string) ([]models.Group, error) {
	opts := options.Find().SetSort(bson.D{{Key: "subject_ci", Value: 1}, {Key: "name_ci", Value: 1}})
	return s.find(ctx, bson.M{"members": userID}, opts)
}

// CountBySubject returns the number of groups whose subject equals subject
// (case-insensitive).
func (s *Store) CountBySubject(ctx context.Context, subject string) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{"subject_ci": text.Fold(strings.TrimSpace(subject))})
}

// HasSubjectMembership reports whether userID belongs to any group other than
// except whose subject equals subject (case-insensitive).
func (s *Store) HasSubjectMembership(ctx context.Context, userID, subject string, except primitive.ObjectID) (bool, error) {
	err := s.c.FindOne(ctx, bson.M{
		"members":    userID,
		"subject_ci": text.Fold(strings.TrimSpace(subject)),
		"_id":        bson.M{"$ne": except},
	}).Err()
	if err == mongo.ErrNoDocuments {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.Group, error) {
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	groups := []models.Group{}
	if err := cur.All(ctx, &groups); err != nil {
		return nil, err
	}
	return groups, nil
}
