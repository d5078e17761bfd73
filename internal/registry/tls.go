package registry

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"

	"github.com/tryfix/errors"
	"golang.org/x/crypto/pkcs12"
)

// TLSConfig carries the registry connector's credential material as opaque
// blobs; reading credential files is the caller's responsibility. The two
// validation toggles are independent so self-signed or wrongly-named staging
// registries can still be reached.
type TLSConfig struct {
	Enabled bool

	// CA is an optional PEM bundle to verify the registry certificate against.
	// The system pool is used when empty.
	CA []byte

	// Keystore is an optional PKCS#12 archive holding the client certificate
	// and key, unlocked with KeystorePassword.
	Keystore         []byte
	KeystorePassword string

	SkipCertValidation bool
	SkipHostValidation bool
}

// build assembles the tls.Config for the registry transport. host is the
// registry hostname, needed when certificate validation is skipped but
// hostname validation is kept.
func (c TLSConfig) build(host string) (*tls.Config, error) {
	cfg := &tls.Config{MinVersion: tls.VersionTLS12}

	roots, err := c.rootPool()
	if err != nil {
		return nil, err
	}
	cfg.RootCAs = roots

	if len(c.Keystore) > 0 {
		cert, err := decodeKeystore(c.Keystore, c.KeystorePassword)
		if err != nil {
			return nil, err
		}
		cfg.Certificates = []tls.Certificate{cert}
	}

	switch {
	case c.SkipCertValidation && c.SkipHostValidation:
		cfg.InsecureSkipVerify = true
	case c.SkipHostValidation:
		// keep chain validation, drop the hostname check
		cfg.InsecureSkipVerify = true
		cfg.VerifyPeerCertificate = verifyChain(roots)
	case c.SkipCertValidation:
		// trust any chain but still require the certificate to name the host
		cfg.InsecureSkipVerify = true
		cfg.VerifyPeerCertificate = verifyHostname(host)
	}

	return cfg, nil
}

func (c TLSConfig) rootPool() (*x509.CertPool, error) {
	if len(c.CA) == 0 {
		return x509.SystemCertPool()
	}

	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(c.CA) {
		return nil, errors.New(`no certificates found in CA bundle`)
	}

	return pool, nil
}

func decodeKeystore(keystore []byte, password string) (tls.Certificate, error) {
	key, cert, err := pkcs12.Decode(keystore, password)
	if err != nil {
		return tls.Certificate{}, errors.WithPrevious(err, `cannot decode PKCS#12 keystore`)
	}

	return tls.Certificate{
		Certificate: [][]byte{cert.Raw},
		PrivateKey:  key,
		Leaf:        cert,
	}, nil
}

func verifyChain(roots *x509.CertPool) func([][]byte, [][]*x509.Certificate) error {
	return func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
		certs, err := parseCerts(rawCerts)
		if err != nil {
			return err
		}

		intermediates := x509.NewCertPool()
		for _, cert := range certs[1:] {
			intermediates.AddCert(cert)
		}

		_, err = certs[0].Verify(x509.VerifyOptions{
			Roots:         roots,
			Intermediates: intermediates,
			KeyUsages:     []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		})
		return err
	}
}

func verifyHostname(host string) func([][]byte, [][]*x509.Certificate) error {
	return func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
		certs, err := parseCerts(rawCerts)
		if err != nil {
			return err
		}

		return certs[0].VerifyHostname(host)
	}
}

func parseCerts(rawCerts [][]byte) ([]*x509.Certificate, error) {
	if len(rawCerts) == 0 {
		return nil, errors.New(`peer presented no certificates`)
	}

	certs := make([]*x509.Certificate, len(rawCerts))
	for i, raw := range rawCerts {
		cert, err := x509.ParseCertificate(raw)
		if err != nil {
			return nil, errors.WithPrevious(err, fmt.Sprintf(`cannot parse peer certificate %d`, i))
		}
		certs[i] = cert
	}

	return certs, nil
}
