package model

import "fmt"

// User is an identity with a login name, unique within its partition.
type User struct {
	common
	login string
}

// NewUser creates a user with the given login name.
func NewUser(login string) *User {
	return &User{common: newCommon(), login: login}
}

func (u *User) Login() string { return u.login }

func (u *User) Key() string { return UserKeyPrefix + "/" + u.login }

func (u *User) Kind() Kind { return KindUser }

func (u *User) Validate() error {
	if u.login == "" {
		return fmt.Errorf("%w: user login must not be empty", ErrInvalidIdentity)
	}
	return nil
}

func (u *User) Clone() IdentityType {
	return &User{common: u.cloneCommon(), login: u.login}
}
