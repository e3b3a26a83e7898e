package domain

// Profile carries the extended profile sub-record attached to a user.
type Profile struct {
	UserType string `json:"userType,omitempty"`
}

// User is the platform identity attached to an authenticated session.
type User struct {
	ID        int64    `json:"id"`
	Username  string   `json:"username"`
	Email     string   `json:"email"`
	FirstName string   `json:"firstName"`
	LastName  string   `json:"lastName"`
	Role      string   `json:"role"`
	Profile   *Profile `json:"profile,omitempty"`
}

// FullName returns the user's display name, falling back to the username
// when no name fields are set.
func (u *User) FullName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	case u.LastName != "":
		return u.LastName
	default:
		return u.Username
	}
}

// Equal reports structural equality of two user records. Session
// reconciliation uses it to decide whether a fresh profile fetch actually
// changed anything.
func (u *User) Equal(other *User) bool {
	if u == nil || other == nil {
		return u == other
	}
	if u.ID != other.ID ||
		u.Username != other.Username ||
		u.Email != other.Email ||
		u.FirstName != other.FirstName ||
		u.LastName != other.LastName ||
		u.Role != other.Role {
		return false
	}
	if u.Profile == nil || other.Profile == nil {
		return u.Profile == other.Profile
	}
	return *u.Profile == *other.Profile
}

// UserPatch holds optional field updates for a user. Nil fields are left
// untouched when applied.
type UserPatch struct {
	Username  *string
	Email     *string
	FirstName *string
	LastName  *string
	Role      *string
	Profile   *Profile
}

// Apply shallow-merges the patch into a copy of the given user and returns
// the merged record. The original is not modified.
func (p UserPatch) Apply(u User) User {
	if p.Username != nil {
		u.Username = *p.Username
	}
	if p.Email != nil {
		u.Email = *p.Email
	}
	if p.FirstName != nil {
		u.FirstName = *p.FirstName
	}
	if p.LastName != nil {
		u.LastName = *p.LastName
	}
	if p.Role != nil {
		u.Role = *p.Role
	}
	if p.Profile != nil {
		u.Profile = p.Profile
	}
	return u
}
