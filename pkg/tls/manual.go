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
	"crypto/x509"
	"fmt"
	"time"
)

// ManualProvider serves a certificate loaded once from PEM files.
type ManualProvider struct {
	cert     *tls.Certificate
	x509Cert *x509.Certificate
}

// NewManualProvider loads the key pair from disk.
func NewManualProvider(config ManualConfig) (*ManualProvider, error) {
	if config.CertFile == "" || config.KeyFile == "" {
		return nil, fmt.Errorf("cert_file and key_file are required for manual TLS")
	}

	cert, err := tls.LoadX509KeyPair(config.CertFile, config.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load certificate: %w", err)
	}

	var x509Cert *x509.Certificate
	if len(cert.Certificate) > 0 {
		x509Cert, err = x509.ParseCertificate(cert.Certificate[0])
		if err != nil {
			return nil, fmt.Errorf("failed to parse certificate: %w", err)
		}
	}

	return &ManualProvider{cert: &cert, x509Cert: x509Cert}, nil
}

// GetCertificate returns the loaded certificate.
func (p *ManualProvider) GetCertificate(hello *tls.ClientHelloInfo) (*tls.Certificate, error) {
	if p.cert == nil {
		return nil, fmt.Errorf("no certificate loaded")
	}
	return p.cert, nil
}

// Start is a no-op; the certificate is already loaded.
func (p *ManualProvider) Start(ctx context.Context) error { return nil }

// Stop is a no-op.
func (p *ManualProvider) Stop(ctx context.Context) error { return nil }

// Status reports the loaded certificate's validity window.
func (p *ManualProvider) Status(ctx context.Context) (*Status, error) {
	if p.x509Cert == nil {
		return &Status{Enabled: false, Mode: "manual"}, nil
	}

	return &Status{
		Enabled: true,
		Mode:    "manual",
		Certificate: &CertificateInfo{
			Domains:         p.x509Cert.DNSNames,
			Issuer:          p.x509Cert.Issuer.CommonName,
			ExpiresAt:       p.x509Cert.NotAfter.Unix(),
			DaysUntilExpiry: int(time.Until(p.x509Cert.NotAfter).Hours() / 24),
			Valid:           time.Now().Before(p.x509Cert.NotAfter),
		},
	}, nil
}

// Renew fails: static files are replaced out of band.
func (p *ManualProvider) Renew(ctx context.Context, force bool) error {
	return fmt.Errorf("manual certificates cannot be renewed automatically - replace the certificate files and restart")
}
