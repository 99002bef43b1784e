package models

import "time"

// User represents an author account. Credentials never leave the server.
type User struct {
	Base                 `bson:",inline"`
	FirstName            string     `bson:"firstName" json:"firstName" validate:"required,min=2,max=20"`
	LastName             string     `bson:"lastName" json:"lastName" validate:"required,min=2,max=20"`
	Email                string     `bson:"email" json:"email" validate:"required,email"`
	Password             string     `bson:"password,omitempty" json:"-"`
	PasswordChangedAt    *time.Time `bson:"passwordChangedAt,omitempty" json:"passwordChangedAt,omitempty"`
	PasswordResetToken   string     `bson:"passwordResetToken,omitempty" json:"-"`
	PasswordResetExpires *time.Time `bson:"passwordResetExpires,omitempty" json:"-"`
}

// ChangedPasswordAfter reports whether the password changed after a token
// issued at iat (unix seconds) was minted.
func (u *User) ChangedPasswordAfter(iat int64) bool {
	if u.PasswordChangedAt == nil {
		return false
	}
	return iat < u.PasswordChangedAt.Unix()
}
