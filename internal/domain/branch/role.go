// Package branch provides domain types for GitFlow branch roles.
package branch

import (
	"fmt"
	"regexp"
	"strings"
)

// Role represents the GitFlow role of a branch.
type Role string

const (
	// RoleMain is the permanent production branch.
	RoleMain Role = "main"
	// RoleDevelop is the permanent integration branch.
	RoleDevelop Role = "develop"
	// RoleFeature is an ephemeral feature branch.
	RoleFeature Role = "feature"
	// RoleRelease is an ephemeral release stabilization branch.
	RoleRelease Role = "release"
	// RoleHotfix is an ephemeral hotfix branch cut from main.
	RoleHotfix Role = "hotfix"
	// RoleSupport is a long-lived support branch bounded by a support window.
	RoleSupport Role = "support"
)

// AllRoles returns all branch roles.
func AllRoles() []Role {
	return []Role{RoleMain, RoleDevelop, RoleFeature, RoleRelease, RoleHotfix, RoleSupport}
}

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// IsValid returns true if the role is a recognized branch role.
func (r Role) IsValid() bool {
	switch r {
	case RoleMain, RoleDevelop, RoleFeature, RoleRelease, RoleHotfix, RoleSupport:
		return true
	default:
		return false
	}
}

// IsPermanent returns true for long-lived roles that are never deleted by
// the lifecycle manager.
func (r Role) IsPermanent() bool {
	return r == RoleMain || r == RoleDevelop || r == RoleSupport
}

// IsEphemeral returns true for roles that exist only for the duration of a
// single change cycle.
func (r Role) IsEphemeral() bool {
	return r == RoleFeature || r == RoleRelease || r == RoleHotfix
}

// ParseRole parses a string into a Role.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.IsValid() {
		return "", fmt.Errorf("invalid branch role: %q", s)
	}
	return r, nil
}

// unsafeNameChars matches every character that may not appear in a
// version identifier derived from a branch name.
var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9.-]`)

// SanitizeName turns a branch name into an identifier safe for embedding
// in a prerelease version component. Every character outside
// [A-Za-z0-9.-] becomes a hyphen.
func SanitizeName(name string) string {
	return unsafeNameChars.ReplaceAllString(name, "-")
}
