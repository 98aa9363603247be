// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package roles defines the role codes issued by the school backend.
package roles

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// Role is a backend role code such as SCHOOL_ADMIN.
type Role string

// Known role codes.
const (
	SuperAdmin   Role = "SUPER_ADMIN"
	SchoolAdmin  Role = "SCHOOL_ADMIN"
	Teacher      Role = "TEACHER"
	Parent       Role = "PARENT"
	Student      Role = "STUDENT"
	Accountant   Role = "ACCOUNTANT"
	Librarian    Role = "LIBRARIAN"
	Receptionist Role = "RECEPTIONIST"
)

// All lists the known roles, most privileged first.
var All = []Role{
	SuperAdmin,
	SchoolAdmin,
	Teacher,
	Accountant,
	Librarian,
	Receptionist,
	Parent,
	Student,
}

var known = func() map[Role]bool {
	m := make(map[Role]bool, len(All))
	for _, r := range All {
		m[r] = true
	}
	return m
}()

var titleCaser = cases.Title(language.English)

// Normalize canonicalises a role code: Unicode NFKC, trimmed, upper case,
// with spaces and hyphens turned into underscores.
func Normalize(code string) string {
	s := norm.NFKC.String(strings.TrimSpace(code))
	s = strings.ToUpper(s)
	return strings.Map(func(r rune) rune {
		if r == ' ' || r == '-' {
			return '_'
		}
		return r
	}, s)
}

// Parse normalises code and reports whether it is a known role.
func Parse(code string) (Role, bool) {
	r := Role(Normalize(code))
	return r, known[r]
}

// Known reports whether r is one of the predefined roles.
func (r Role) Known() bool {
	return known[r]
}

// String returns the role code.
func (r Role) String() string {
	return string(r)
}

// DisplayName renders a role code for people: SCHOOL_ADMIN → "School Admin".
// Unknown codes are rendered the same way.
func DisplayName(code string) string {
	if code == "" {
		return "Guest"
	}
	words := strings.ReplaceAll(strings.ToLower(Normalize(code)), "_", " ")
	return titleCaser.String(words)
}

// IsAdmin reports whether the role administers a school or the platform.
func IsAdmin(code string) bool {
	r := Role(Normalize(code))
	return r == SuperAdmin || r == SchoolAdmin
}
