// SPDX-License-Identifier: Apache-2.0
//
// The OpenSearch Contributors require contributions made to
// this file be licensed under the Apache-2.0 license or a
// compatible open source license.

package rest

import (
	"context"
	"fmt"
	"strings"

	"github.com/vchrombie/opensearch-hadoop/settings"
)

// AuthenticationMethod identifies how requests authenticate to the
// cluster.
type AuthenticationMethod string

const (
	// AuthSimple performs no authentication.
	AuthSimple AuthenticationMethod = "simple"
	// AuthBasic sends HTTP basic credentials.
	AuthBasic AuthenticationMethod = "basic"
	// AuthPKI relies on client certificates configured on the transport.
	AuthPKI AuthenticationMethod = "pki"
)

// ResolveAuthenticationMethod determines the effective authentication
// method from configuration. An explicit setting wins; otherwise a
// configured basic-auth user implies basic, and anything else is simple.
func ResolveAuthenticationMethod(s *settings.Settings) (AuthenticationMethod, error) {
	if v := s.Get(settings.OpenSearchSecurityAuthentication); v != "" {
		switch m := AuthenticationMethod(strings.ToLower(v)); m {
		case AuthSimple, AuthBasic, AuthPKI:
			return m, nil
		default:
			return "", &ConfigurationError{
				Setting: settings.OpenSearchSecurityAuthentication,
				Reason:  fmt.Sprintf("unknown authentication mode %q (expected simple, basic or pki)", v),
			}
		}
	}
	if s.NetworkHTTPAuthUser() != "" {
		return AuthBasic, nil
	}
	return AuthSimple, nil
}

// User holds resolved credentials.
type User struct {
	Name     string
	Password string
}

// UserProvider resolves the effective identity used for store requests.
// Implementations may consult ambient host identity in addition to
// configuration.
type UserProvider interface {
	User(ctx context.Context) (*User, error)
}

// SettingsUserProvider reads credentials straight from configuration.
type SettingsUserProvider struct {
	settings *settings.Settings
}

// NewUserProvider returns the provider configured for s. Only the
// settings-backed provider exists today; custom providers satisfy the
// UserProvider interface directly.
func NewUserProvider(s *settings.Settings) UserProvider {
	return &SettingsUserProvider{settings: s}
}

func (p *SettingsUserProvider) User(context.Context) (*User, error) {
	name := p.settings.NetworkHTTPAuthUser()
	if name == "" {
		return nil, nil
	}
	return &User{Name: name, Password: p.settings.NetworkHTTPAuthPass()}, nil
}
