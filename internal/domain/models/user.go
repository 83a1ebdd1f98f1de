// internal/domain/models/user.go
package models

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User is the read-side view of a student account.
//
// NOTE:
//   - Accounts are created and edited by the identity service; this app only
//     reads them to build member summaries and to match shared interests.
type User struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	FullName  string             `bson:"full_name" json:"full_name"`
	Email     string             `bson:"email" json:"email"`
	Major     string             `bson:"major,omitempty" json:"major,omitempty"`
	Interests []string           `bson:"interests,omitempty" json:"interests,omitempty"`
}

// MemberSummary is what callers see when listing a group's members.
type MemberSummary struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	Major       string `json:"major,omitempty"`
}
