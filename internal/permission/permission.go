// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wardstone Contributors

// Package permission provides the permission checker installed on every
// player during login, plus the provider hook extensions use to supply
// their own checker.
package permission

// TriState is the result of a permission lookup.
type TriState int8

const (
	// Undefined means no explicit grant or denial exists.
	Undefined TriState = iota
	// False is an explicit denial.
	False
	// True is an explicit grant.
	True
)

// Bool collapses the tri-state: Undefined is treated as denied.
func (t TriState) Bool() bool { return t == True }

func (t TriState) String() string {
	switch t {
	case True:
		return "true"
	case False:
		return "false"
	default:
		return "undefined"
	}
}

// Func answers permission lookups for one subject.
type Func func(permission string) TriState

// Subject is something that can hold permissions.
type Subject interface {
	HasPermission(permission string) bool
	PermissionValue(permission string) TriState
}

// Provider constructs a permission Func for a subject. Extensions
// register providers during permissions setup; a provider returning a
// nil Func is a configuration error in the extension and the caller
// falls back to the default provider.
type Provider interface {
	// Name identifies the provider in diagnostics.
	Name() string
	// CreateFunc builds the checker for the subject. May return nil.
	CreateFunc(subject Subject) Func
}

// defaultProvider answers Undefined for everything.
type defaultProvider struct{}

func (defaultProvider) Name() string { return "default" }

func (defaultProvider) CreateFunc(Subject) Func {
	return func(string) TriState { return Undefined }
}

// Default is the proxy-wide fallback provider.
var Default Provider = defaultProvider{}
