// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package tls

import (
	"context"
	"crypto/tls"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewManager_Disabled(t *testing.T) {
	_, err := NewManager(Config{Enabled: false})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not enabled")
}

func TestNewManager_UnknownMode(t *testing.T) {
	_, err := NewManager(Config{Enabled: true, Mode: "self-signed"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown TLS mode")
}

func TestNewManager_Manual(t *testing.T) {
	certPath, keyPath := createTestCertificate(t, t.TempDir())

	m, err := NewManager(Config{
		Enabled: true,
		Mode:    "manual",
		Manual:  ManualConfig{CertFile: certPath, KeyFile: keyPath},
	})
	require.NoError(t, err)

	cfg := m.TLSConfig()
	require.NotNil(t, cfg)
	assert.EqualValues(t, tls.VersionTLS12, cfg.MinVersion)
	assert.NotNil(t, cfg.GetCertificate)

	cert, err := cfg.GetCertificate(&tls.ClientHelloInfo{})
	require.NoError(t, err)
	assert.NotNil(t, cert)

	st, err := m.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "manual", st.Mode)
}

func TestNewManager_LetsEncryptValidation(t *testing.T) {
	tests := []struct {
		name string
		cfg  LetsEncryptConfig
		want string
	}{
		{name: "no domains", cfg: LetsEncryptConfig{Email: "x@y.z", AcceptTOS: true}, want: "at least one domain"},
		{name: "no email", cfg: LetsEncryptConfig{Domains: []string{"example.test"}, AcceptTOS: true}, want: "email is required"},
		{name: "tos not accepted", cfg: LetsEncryptConfig{Domains: []string{"example.test"}, Email: "x@y.z"}, want: "Terms of Service"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewManager(Config{Enabled: true, Mode: "letsencrypt", LetsEncrypt: tt.cfg})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestNewLetsEncryptProvider_Defaults(t *testing.T) {
	dir := t.TempDir()
	p, err := NewLetsEncryptProvider(LetsEncryptConfig{
		Domains:   []string{"example.test"},
		Email:     "ops@example.test",
		AcceptTOS: true,
		CacheDir:  dir,
	})
	require.NoError(t, err)

	assert.Equal(t, DefaultLetsEncryptProduction, p.config.ACMEDirectoryURL)
	assert.Equal(t, 80, p.config.HTTPChallengePort)
	assert.Equal(t, 30, p.config.RenewBeforeDays)

	// No cached certificate: the handshake callback must refuse, not panic.
	_, err = p.GetCertificate(&tls.ClientHelloInfo{})
	assert.Error(t, err)

	st, err := p.Status(context.Background())
	require.NoError(t, err)
	assert.False(t, st.Enabled)
}
