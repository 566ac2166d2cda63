// SPDX-License-Identifier: Apache-2.0
//
// The OpenSearch Contributors require contributions made to
// this file be licensed under the Apache-2.0 license or a
// compatible open source license.

package rest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vchrombie/opensearch-hadoop/settings"
)

func TestResolveAuthenticationMethod(t *testing.T) {
	tests := []struct {
		name  string
		props map[string]string
		want  AuthenticationMethod
	}{
		{name: "default is simple", want: AuthSimple},
		{
			name:  "user implies basic",
			props: map[string]string{settings.OpenSearchNetHTTPAuthUser: "reader"},
			want:  AuthBasic,
		},
		{
			name: "explicit setting wins",
			props: map[string]string{
				settings.OpenSearchSecurityAuthentication: "pki",
				settings.OpenSearchNetHTTPAuthUser:        "reader",
			},
			want: AuthPKI,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveAuthenticationMethod(settings.FromMap(tt.props))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveAuthenticationMethodUnknown(t *testing.T) {
	_, err := ResolveAuthenticationMethod(settings.FromMap(map[string]string{
		settings.OpenSearchSecurityAuthentication: "kerberos",
	}))
	var confErr *ConfigurationError
	require.ErrorAs(t, err, &confErr)
}

func TestSettingsUserProvider(t *testing.T) {
	user, err := NewUserProvider(settings.FromMap(map[string]string{
		settings.OpenSearchNetHTTPAuthUser: "reader",
		settings.OpenSearchNetHTTPAuthPass: "secret",
	})).User(context.Background())
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "reader", user.Name)
	assert.Equal(t, "secret", user.Password)

	none, err := NewUserProvider(settings.New()).User(context.Background())
	require.NoError(t, err)
	assert.Nil(t, none)
}
