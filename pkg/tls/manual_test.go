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
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createTestCertificate writes a throwaway cert/key pair under dir.
func createTestCertificate(t *testing.T, dir string) (certPath, keyPath string) {
	t.Helper()

	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	serialNumber, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	require.NoError(t, err)

	template := x509.Certificate{
		SerialNumber: serialNumber,
		Subject: pkix.Name{
			Organization: []string{"Test Org"},
			CommonName:   "localhost",
		},
		NotBefore:             time.Now(),
		NotAfter:              time.Now().Add(365 * 24 * time.Hour),
		KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		DNSNames:              []string{"localhost", "test.local"},
	}

	certDER, err := x509.CreateCertificate(rand.Reader, &template, &template, &privateKey.PublicKey, privateKey)
	require.NoError(t, err)

	certPath = filepath.Join(dir, "cert.pem")
	keyPath = filepath.Join(dir, "key.pem")

	certOut, err := os.Create(certPath)
	require.NoError(t, err)
	require.NoError(t, pem.Encode(certOut, &pem.Block{Type: "CERTIFICATE", Bytes: certDER}))
	require.NoError(t, certOut.Close())

	keyDER, err := x509.MarshalECPrivateKey(privateKey)
	require.NoError(t, err)
	keyOut, err := os.Create(keyPath)
	require.NoError(t, err)
	require.NoError(t, pem.Encode(keyOut, &pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}))
	require.NoError(t, keyOut.Close())

	return certPath, keyPath
}

func TestNewManualProvider(t *testing.T) {
	certPath, keyPath := createTestCertificate(t, t.TempDir())

	p, err := NewManualProvider(ManualConfig{CertFile: certPath, KeyFile: keyPath})
	require.NoError(t, err)

	cert, err := p.GetCertificate(nil)
	require.NoError(t, err)
	assert.NotNil(t, cert)

	require.NoError(t, p.Start(context.Background()))
	require.NoError(t, p.Stop(context.Background()))
}

func TestNewManualProvider_MissingFiles(t *testing.T) {
	_, err := NewManualProvider(ManualConfig{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cert_file and key_file are required")

	_, err = NewManualProvider(ManualConfig{CertFile: "/nonexistent/cert.pem", KeyFile: "/nonexistent/key.pem"})
	require.Error(t, err)
}

func TestManualProvider_Status(t *testing.T) {
	certPath, keyPath := createTestCertificate(t, t.TempDir())
	p, err := NewManualProvider(ManualConfig{CertFile: certPath, KeyFile: keyPath})
	require.NoError(t, err)

	st, err := p.Status(context.Background())
	require.NoError(t, err)
	assert.True(t, st.Enabled)
	assert.Equal(t, "manual", st.Mode)
	require.NotNil(t, st.Certificate)
	assert.Contains(t, st.Certificate.Domains, "localhost")
	assert.True(t, st.Certificate.Valid)
	assert.Greater(t, st.Certificate.DaysUntilExpiry, 300)
}

func TestManualProvider_RenewFails(t *testing.T) {
	certPath, keyPath := createTestCertificate(t, t.TempDir())
	p, err := NewManualProvider(ManualConfig{CertFile: certPath, KeyFile: keyPath})
	require.NoError(t, err)

	assert.Error(t, p.Renew(context.Background(), true))
}
