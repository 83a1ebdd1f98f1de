// internal/domain/models/group.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DefaultGroupCapacity is the member cap applied when a group is created
// without an explicit capacity.
const DefaultGroupCapacity = 6

// Group is a subject-based study group.
//
// NOTE:
//   - Members are embedded on the group document (ordered by join time) so
//     that the capacity check and the append happen on a single document.
//   - Members holds opaque user identifiers owned by the identity service.
type Group struct {
	ID          primitive.ObjectID `bson:"_id" json:"id"`
	Subject     string             `bson:"subject" json:"subject"`
	SubjectCI   string             `bson:"subject_ci" json:"-"`
	Name        string             `bson:"name" json:"name"`
	NameCI      string             `bson:"name_ci" json:"-"`
	Description string             `bson:"description,omitempty" json:"description,omitempty"`
	Tags        []string           `bson:"tags" json:"tags"`
	Capacity    int                `bson:"capacity" json:"capacity"`
	Members     []string           `bson:"members" json:"members"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// MemberCount returns the number of members currently in the group.
func (g Group) MemberCount() int {
	return len(g.Members)
}

// IsFull reports whether the group has reached its capacity.
func (g Group) IsFull() bool {
	return len(g.Members) >= g.Capacity
}

// HasMember reports whether userID is already in the group.
func (g Group) HasMember(userID string) bool {
	for _, m := range g.Members {
		if m == userID {
			return true
		}
	}
	return false
}
