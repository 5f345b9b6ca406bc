package domain

import (
	"slices"
	"strings"
	"time"
)

// Permission is a role name granted to a user.
type Permission string

const (
	PermSiteUser       Permission = "SITE_USER"
	PermTeacher        Permission = "TEACHER"
	PermContentCurator Permission = "CONTENT_CURATOR"
	PermSystemAdmin    Permission = "SYSTEM_ADMIN"
)

// AllPermissions lists every permission.
var AllPermissions = []Permission{PermSiteUser, PermTeacher, PermContentCurator, PermSystemAdmin}

// ParsePermission parses a permission name, case-insensitively.
func ParsePermission(s string) (Permission, bool) {
	p := Permission(strings.ToUpper(strings.TrimSpace(s)))
	return p, slices.Contains(AllPermissions, p)
}

// User is an account on the platform.
type User struct {
	Lifecycle
	Username        string       `json:"username"`
	Email           string       `json:"email"`
	PasswordHash    string       `json:"-"`
	FirstName       string       `json:"first_name"`
	LastName        string       `json:"last_name"`
	PhoneNumber     string       `json:"phone_number,omitempty"`
	DefaultLanguage string       `json:"default_language,omitempty"`
	PhotoPath       string       `json:"photo_path,omitempty"`
	Enabled         bool         `json:"enabled"`
	CreatorID       int64        `json:"creator_id,omitempty"`
	Permissions     []Permission `json:"permissions"`
	ResetToken      string       `json:"-"`
	LastLoginAt     *time.Time   `json:"last_login_at,omitempty"`
}

// HasPermission reports whether the user holds p.
func (u *User) HasPermission(p Permission) bool {
	return slices.Contains(u.Permissions, p)
}

// IsAdmin returns true for system administrators.
func (u *User) IsAdmin() bool {
	return u.HasPermission(PermSystemAdmin)
}

// CanCurate returns true if the user may create and edit content.
func (u *User) CanCurate() bool {
	return u.IsAdmin() || u.HasPermission(PermContentCurator)
}

// CanSignIn reports whether the account may authenticate.
func (u *User) CanSignIn() bool {
	return u.Enabled && !u.IsDeleted()
}

// SetPermissions replaces the permission set, dropping duplicates.
func (u *User) SetPermissions(perms []Permission) {
	out := make([]Permission, 0, len(perms))
	for _, p := range perms {
		if !slices.Contains(out, p) {
			out = append(out, p)
		}
	}
	slices.Sort(out)
	u.Permissions = out
}

// FullName returns the user's full name, composed from first and last names.
func (u *User) FullName() string {
	switch {
	case u.FirstName == "" && u.LastName == "":
		return u.Username
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// ProfileUpdate carries the fields of an "update user information" request.
// Blank strings leave the stored value unchanged; Enabled and Permissions
// always overwrite.
type ProfileUpdate struct {
	FirstName       string
	LastName        string
	PhoneNumber     string
	DefaultLanguage string
	PhotoPath       string
	Enabled         bool
	Permissions     []Permission
}

// ApplyProfile merges a profile update into the user.
func (u *User) ApplyProfile(p ProfileUpdate) {
	set := func(dst *string, v string) {
		if strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	set(&u.FirstName, p.FirstName)
	set(&u.LastName, p.LastName)
	set(&u.PhoneNumber, p.PhoneNumber)
	set(&u.DefaultLanguage, NormalizeCode(p.DefaultLanguage))
	set(&u.PhotoPath, p.PhotoPath)
	u.Enabled = p.Enabled
	u.SetPermissions(p.Permissions)
	u.Touch()
}
