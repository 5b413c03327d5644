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

// Package tls manages the server certificate: static files or ACME-issued
// with automatic renewal.
package tls

import (
	"context"
	"crypto/tls"
	"fmt"
)

// Config selects and configures a certificate source.
type Config struct {
	Enabled bool
	// Mode is "manual" or "letsencrypt".
	Mode        string
	Manual      ManualConfig
	LetsEncrypt LetsEncryptConfig
}

// ManualConfig points at PEM files on disk.
type ManualConfig struct {
	CertFile string
	KeyFile  string
}

// LetsEncryptConfig configures ACME issuance.
type LetsEncryptConfig struct {
	Domains           []string
	Email             string
	AcceptTOS         bool
	ACMEDirectoryURL  string
	HTTPChallengePort int
	CacheDir          string
	RenewBeforeDays   int
	AutoRenew         bool
}

// CertificateInfo describes the served certificate.
type CertificateInfo struct {
	Domains         []string `json:"domains"`
	Issuer          string   `json:"issuer"`
	ExpiresAt       int64    `json:"expires_at"`
	DaysUntilExpiry int      `json:"days_until_expiry"`
	Valid           bool     `json:"valid"`
}

// Status is the admin view of the TLS layer.
type Status struct {
	Enabled     bool             `json:"enabled"`
	Mode        string           `json:"mode"`
	Certificate *CertificateInfo `json:"certificate,omitempty"`
	AutoRenew   bool             `json:"auto_renew"`
}

// Provider is a certificate source.
type Provider interface {
	// GetCertificate is called on every TLS handshake.
	GetCertificate(hello *tls.ClientHelloInfo) (*tls.Certificate, error)

	// Start initializes the provider and any background renewal.
	Start(ctx context.Context) error

	// Stop shuts the provider down.
	Stop(ctx context.Context) error

	Status(ctx context.Context) (*Status, error)

	// Renew triggers renewal; force skips the expiry-threshold check.
	Renew(ctx context.Context, force bool) error
}

// Manager selects a provider from configuration and exposes a tls.Config.
type Manager struct {
	config   Config
	provider Provider
}

// NewManager creates a manager. Config.Enabled must be true; callers skip
// the TLS layer entirely when it is not.
func NewManager(config Config) (*Manager, error) {
	if !config.Enabled {
		return nil, fmt.Errorf("TLS not enabled")
	}

	var (
		provider Provider
		err      error
	)
	switch config.Mode {
	case "manual":
		provider, err = NewManualProvider(config.Manual)
	case "letsencrypt":
		provider, err = NewLetsEncryptProvider(config.LetsEncrypt)
	default:
		return nil, fmt.Errorf("unknown TLS mode: %s (must be manual or letsencrypt)", config.Mode)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create TLS provider: %w", err)
	}

	return &Manager{config: config, provider: provider}, nil
}

// Start initializes the provider and starts background renewal.
func (m *Manager) Start(ctx context.Context) error {
	return m.provider.Start(ctx)
}

// Stop shuts down the provider.
func (m *Manager) Stop(ctx context.Context) error {
	return m.provider.Stop(ctx)
}

// TLSConfig returns the server-side tls.Config.
func (m *Manager) TLSConfig() *tls.Config {
	return &tls.Config{
		GetCertificate: m.provider.GetCertificate,
		MinVersion:     tls.VersionTLS12,
		CipherSuites: []uint16{
			tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
		},
	}
}

// Status reports the current certificate state.
func (m *Manager) Status(ctx context.Context) (*Status, error) {
	return m.provider.Status(ctx)
}

// Renew manually triggers certificate renewal.
func (m *Manager) Renew(ctx context.Context, force bool) error {
	return m.provider.Renew(ctx, force)
}
