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
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/go-acme/lego/v4/certcrypto"
	"github.com/go-acme/lego/v4/certificate"
	"github.com/go-acme/lego/v4/challenge/http01"
	"github.com/go-acme/lego/v4/lego"
	"github.com/go-acme/lego/v4/registration"
	"go.uber.org/zap"

	"github.com/teradata-labs/prism/internal/log"
)

// Default ACME directory URLs. Overridable via PRISM_ACME_PRODUCTION_URL
// and PRISM_ACME_STAGING_URL.
const (
	DefaultLetsEncryptProduction = "https://acme-v02.api.letsencrypt.org/directory"
	DefaultLetsEncryptStaging    = "https://acme-staging-v02.api.letsencrypt.org/directory"
)

// LetsEncryptProduction returns the production ACME directory URL.
func LetsEncryptProduction() string {
	if url := os.Getenv("PRISM_ACME_PRODUCTION_URL"); url != "" {
		return url
	}
	return DefaultLetsEncryptProduction
}

// LetsEncryptStaging returns the staging ACME directory URL.
func LetsEncryptStaging() string {
	if url := os.Getenv("PRISM_ACME_STAGING_URL"); url != "" {
		return url
	}
	return DefaultLetsEncryptStaging
}

// LetsEncryptProvider obtains and renews certificates over ACME.
type LetsEncryptProvider struct {
	config        LetsEncryptConfig
	client        *lego.Client
	cert          *tls.Certificate
	x509Cert      *x509.Certificate
	certResource  *certificate.Resource
	renewalTicker *time.Ticker
	stopChan      chan struct{}
	mu            sync.RWMutex
	logger        *zap.Logger
}

// ACMEUser implements the registration.User interface.
type ACMEUser struct {
	Email        string
	Registration *registration.Resource
	key          crypto.PrivateKey
}

func (u *ACMEUser) GetEmail() string                        { return u.Email }
func (u *ACMEUser) GetRegistration() *registration.Resource { return u.Registration }
func (u *ACMEUser) GetPrivateKey() crypto.PrivateKey        { return u.key }

// NewLetsEncryptProvider creates an ACME provider. A cached certificate
// under CacheDir is picked up without contacting the ACME server.
func NewLetsEncryptProvider(config LetsEncryptConfig) (*LetsEncryptProvider, error) {
	if len(config.Domains) == 0 {
		return nil, fmt.Errorf("at least one domain is required for Let's Encrypt")
	}
	if config.Email == "" {
		return nil, fmt.Errorf("email is required for Let's Encrypt")
	}
	if !config.AcceptTOS {
		return nil, fmt.Errorf("must accept Let's Encrypt Terms of Service (set accept_tos: true)")
	}

	if config.ACMEDirectoryURL == "" {
		config.ACMEDirectoryURL = LetsEncryptProduction()
	}
	if config.HTTPChallengePort == 0 {
		config.HTTPChallengePort = 80
	}
	if config.CacheDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		config.CacheDir = filepath.Join(homeDir, ".prism", "certs")
	}
	if config.RenewBeforeDays == 0 {
		config.RenewBeforeDays = 30
	}

	provider := &LetsEncryptProvider{
		config:   config,
		stopChan: make(chan struct{}),
		logger:   log.Logger(),
	}

	if err := os.MkdirAll(config.CacheDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	if err := provider.loadCachedCertificate(); err == nil {
		provider.logger.Info("loaded cached certificate", zap.Strings("domains", config.Domains))
	} else {
		provider.logger.Info("no cached certificate found, will obtain a new one", zap.Error(err))
	}

	return provider, nil
}

// Start obtains the initial certificate if needed and begins the daily
// renewal check.
func (p *LetsEncryptProvider) Start(ctx context.Context) error {
	if p.cert == nil {
		if err := p.obtainCertificate(); err != nil {
			return fmt.Errorf("failed to obtain initial certificate: %w", err)
		}
	}

	if p.config.AutoRenew {
		p.renewalTicker = time.NewTicker(24 * time.Hour)
		go p.renewalLoop()
	}
	return nil
}

// Stop halts the renewal loop.
func (p *LetsEncryptProvider) Stop(ctx context.Context) error {
	close(p.stopChan)
	if p.renewalTicker != nil {
		p.renewalTicker.Stop()
	}
	return nil
}

// GetCertificate returns the current certificate.
func (p *LetsEncryptProvider) GetCertificate(hello *tls.ClientHelloInfo) (*tls.Certificate, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.cert == nil {
		return nil, fmt.Errorf("no certificate available")
	}
	return p.cert, nil
}

// Status reports certificate and renewal state.
func (p *LetsEncryptProvider) Status(ctx context.Context) (*Status, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.x509Cert == nil {
		return &Status{Enabled: false, Mode: "letsencrypt", AutoRenew: p.config.AutoRenew}, nil
	}

	return &Status{
		Enabled:   true,
		Mode:      "letsencrypt",
		AutoRenew: p.config.AutoRenew,
		Certificate: &CertificateInfo{
			Domains:         p.x509Cert.DNSNames,
			Issuer:          p.x509Cert.Issuer.CommonName,
			ExpiresAt:       p.x509Cert.NotAfter.Unix(),
			DaysUntilExpiry: int(time.Until(p.x509Cert.NotAfter).Hours() / 24),
			Valid:           time.Now().Before(p.x509Cert.NotAfter),
		},
	}, nil
}

// Renew triggers renewal; without force, a certificate not yet inside the
// renewal window is left alone.
func (p *LetsEncryptProvider) Renew(ctx context.Context, force bool) error {
	p.mu.RLock()
	if p.x509Cert == nil {
		p.mu.RUnlock()
		return fmt.Errorf("no certificate to renew")
	}
	daysUntilExpiry := int(time.Until(p.x509Cert.NotAfter).Hours() / 24)
	p.mu.RUnlock()

	if !force && daysUntilExpiry > p.config.RenewBeforeDays {
		return fmt.Errorf("certificate not due for renewal (expires in %d days, renew threshold is %d days)",
			daysUntilExpiry, p.config.RenewBeforeDays)
	}
	return p.renewCertificate()
}

func (p *LetsEncryptProvider) obtainCertificate() error {
	if err := p.initACMEClient(); err != nil {
		return fmt.Errorf("failed to initialize ACME client: %w", err)
	}

	request := certificate.ObtainRequest{
		Domains: p.config.Domains,
		Bundle:  true,
	}

	p.logger.Info("obtaining certificate",
		zap.Strings("domains", p.config.Domains),
		zap.String("directory", p.config.ACMEDirectoryURL))

	certResource, err := p.client.Certificate.Obtain(request)
	if err != nil {
		return fmt.Errorf("failed to obtain certificate: %w", err)
	}

	if err := p.loadCertificateResource(certResource); err != nil {
		return fmt.Errorf("failed to load certificate: %w", err)
	}
	if err := p.cacheCertificate(certResource); err != nil {
		p.logger.Warn("failed to cache certificate", zap.Error(err))
	}

	p.logger.Info("certificate obtained", zap.Strings("domains", p.config.Domains))
	return nil
}

func (p *LetsEncryptProvider) renewCertificate() error {
	p.mu.RLock()
	certResource := p.certResource
	p.mu.RUnlock()

	if certResource == nil {
		return fmt.Errorf("no certificate to renew")
	}
	if p.client == nil {
		if err := p.initACMEClient(); err != nil {
			return fmt.Errorf("failed to initialize ACME client: %w", err)
		}
	}

	p.logger.Info("renewing certificate", zap.Strings("domains", p.config.Domains))

	newCertResource, err := p.client.Certificate.RenewWithOptions(*certResource, &certificate.RenewOptions{
		Bundle: true,
	})
	if err != nil {
		return fmt.Errorf("failed to renew certificate: %w", err)
	}

	if err := p.loadCertificateResource(newCertResource); err != nil {
		return fmt.Errorf("failed to load renewed certificate: %w", err)
	}
	if err := p.cacheCertificate(newCertResource); err != nil {
		p.logger.Warn("failed to cache renewed certificate", zap.Error(err))
	}

	p.logger.Info("certificate renewed", zap.Strings("domains", p.config.Domains))
	return nil
}

func (p *LetsEncryptProvider) initACMEClient() error {
	user, err := p.loadOrCreateUser()
	if err != nil {
		return fmt.Errorf("failed to load/create ACME user: %w", err)
	}

	config := lego.NewConfig(user)
	config.CADirURL = p.config.ACMEDirectoryURL
	config.Certificate.KeyType = certcrypto.RSA2048

	client, err := lego.NewClient(config)
	if err != nil {
		return fmt.Errorf("failed to create ACME client: %w", err)
	}

	provider := http01.NewProviderServer("", strconv.Itoa(p.config.HTTPChallengePort))
	if err := client.Challenge.SetHTTP01Provider(provider); err != nil {
		return fmt.Errorf("failed to set HTTP-01 provider: %w", err)
	}

	p.client = client
	return nil
}

func (p *LetsEncryptProvider) loadOrCreateUser() (*ACMEUser, error) {
	userPath := filepath.Join(p.config.CacheDir, "user.json")

	if data, err := os.ReadFile(userPath); err == nil {
		var savedUser struct {
			Email        string
			Registration *registration.Resource
			PrivateKey   string
		}
		if err := json.Unmarshal(data, &savedUser); err == nil {
			block, _ := pem.Decode([]byte(savedUser.PrivateKey))
			if block != nil {
				key, err := x509.ParseECPrivateKey(block.Bytes)
				if err == nil {
					return &ACMEUser{
						Email:        savedUser.Email,
						Registration: savedUser.Registration,
						key:          key,
					}, nil
				}
			}
		}
	}

	privateKey, err := ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate private key: %w", err)
	}

	user := &ACMEUser{Email: p.config.Email, key: privateKey}

	config := lego.NewConfig(user)
	config.CADirURL = p.config.ACMEDirectoryURL
	client, err := lego.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create client for registration: %w", err)
	}

	reg, err := client.Registration.Register(registration.RegisterOptions{TermsOfServiceAgreed: true})
	if err != nil {
		return nil, fmt.Errorf("failed to register: %w", err)
	}
	user.Registration = reg

	keyDER, _ := x509.MarshalECPrivateKey(privateKey)
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})

	savedUser := struct {
		Email        string
		Registration *registration.Resource
		PrivateKey   string
	}{
		Email:        user.Email,
		Registration: user.Registration,
		PrivateKey:   string(keyPEM),
	}

	data, _ := json.MarshalIndent(savedUser, "", "  ")
	if err := os.WriteFile(userPath, data, 0o600); err != nil {
		p.logger.Warn("failed to save ACME user", zap.Error(err))
	}

	return user, nil
}

func (p *LetsEncryptProvider) loadCertificateResource(certResource *certificate.Resource) error {
	tlsCert, err := tls.X509KeyPair(certResource.Certificate, certResource.PrivateKey)
	if err != nil {
		return fmt.Errorf("failed to parse certificate: %w", err)
	}

	var x509Cert *x509.Certificate
	if len(tlsCert.Certificate) > 0 {
		x509Cert, err = x509.ParseCertificate(tlsCert.Certificate[0])
		if err != nil {
			return fmt.Errorf("failed to parse x509 certificate: %w", err)
		}
	}

	p.mu.Lock()
	p.cert = &tlsCert
	p.x509Cert = x509Cert
	p.certResource = certResource
	p.mu.Unlock()
	return nil
}

func (p *LetsEncryptProvider) cacheCertificate(certResource *certificate.Resource) error {
	certPath := filepath.Join(p.config.CacheDir, "certificate.pem")
	keyPath := filepath.Join(p.config.CacheDir, "key.pem")

	if err := os.WriteFile(certPath, certResource.Certificate, 0o600); err != nil {
		return fmt.Errorf("failed to write certificate: %w", err)
	}
	if err := os.WriteFile(keyPath, certResource.PrivateKey, 0o600); err != nil {
		return fmt.Errorf("failed to write key: %w", err)
	}

	resourcePath := filepath.Join(p.config.CacheDir, "resource.json")
	data, _ := json.MarshalIndent(certResource, "", "  ")
	_ = os.WriteFile(resourcePath, data, 0o600)
	return nil
}

func (p *LetsEncryptProvider) loadCachedCertificate() error {
	resourcePath := filepath.Join(p.config.CacheDir, "resource.json")

	data, err := os.ReadFile(resourcePath)
	if err != nil {
		return fmt.Errorf("failed to read cached certificate: %w", err)
	}

	var certResource certificate.Resource
	if err := json.Unmarshal(data, &certResource); err != nil {
		return fmt.Errorf("failed to parse cached certificate: %w", err)
	}
	return p.loadCertificateResource(&certResource)
}

func (p *LetsEncryptProvider) renewalLoop() {
	for {
		select {
		case <-p.renewalTicker.C:
			p.mu.RLock()
			daysUntilExpiry := int(time.Until(p.x509Cert.NotAfter).Hours() / 24)
			p.mu.RUnlock()

			if daysUntilExpiry <= p.config.RenewBeforeDays {
				p.logger.Info("certificate due for renewal",
					zap.Int("days_until_expiry", daysUntilExpiry),
					zap.Int("threshold", p.config.RenewBeforeDays))

				if err := p.renewCertificate(); err != nil {
					p.logger.Error("automatic renewal failed", zap.Error(err))
				}
			}

		case <-p.stopChan:
			return
		}
	}
}
