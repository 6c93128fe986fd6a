package xprotect

import (
	"bytes"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"io"

	"golang.org/x/crypto/pkcs12"
)

// TrustStoreError means the trust material could not be loaded: malformed
// stream, wrong passphrase or no usable certificates.
type TrustStoreError struct {
	Err error
}

func (e *TrustStoreError) Error() string {
	return "xprotect: trust store: " + e.Err.Error()
}

func (e *TrustStoreError) Unwrap() error {
	return e.Err
}

var errNoCerts = errors.New("no certificates found")

// NewTrustPool consumes a PEM bundle or a PKCS#12 archive and returns a pool
// holding only the supplied certificates, no system roots. The stream is
// closed exactly once on every path. The passphrase applies to PKCS#12 only.
func NewTrustPool(rc io.ReadCloser, passphrase string) (*x509.CertPool, error) {
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, &TrustStoreError{Err: err}
	}

	pool := x509.NewCertPool()

	if bytes.Contains(data, []byte("-----BEGIN")) {
		if !pool.AppendCertsFromPEM(data) {
			return nil, &TrustStoreError{Err: errNoCerts}
		}
		return pool, nil
	}

	blocks, err := pkcs12.ToPEM(data, passphrase)
	if err != nil {
		return nil, &TrustStoreError{Err: err}
	}

	var n int
	for _, block := range blocks {
		if block.Type != "CERTIFICATE" {
			continue
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			continue
		}
		pool.AddCert(cert)
		n++
	}

	if n == 0 {
		return nil, &TrustStoreError{Err: errNoCerts}
	}

	return pool, nil
}

// SecureConfig trusts only the pool certificates. InsecureSkipVerify drops
// the default verifier, VerifyPeerCertificate checks the peer chain against
// the pool without a hostname check.
func SecureConfig(pool *x509.CertPool) *tls.Config {
	return &tls.Config{
		InsecureSkipVerify:    true,
		VerifyPeerCertificate: verifyAgainst(pool),
	}
}

// InsecureConfig accepts any certificate from any host. Lab connectivity
// only, callers have to pick it explicitly.
func InsecureConfig() *tls.Config {
	return &tls.Config{InsecureSkipVerify: true}
}

func verifyAgainst(pool *x509.CertPool) func([][]byte, [][]*x509.Certificate) error {
	return func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
		if len(rawCerts) == 0 {
			return errors.New("xprotect: empty peer chain")
		}

		certs := make([]*x509.Certificate, len(rawCerts))
		for i, raw := range rawCerts {
			cert, err := x509.ParseCertificate(raw)
			if err != nil {
				return err
			}
			certs[i] = cert
		}

		opts := x509.VerifyOptions{Roots: pool}
		if len(certs) > 1 {
			opts.Intermediates = x509.NewCertPool()
			for _, cert := range certs[1:] {
				opts.Intermediates.AddCert(cert)
			}
		}

		_, err := certs[0].Verify(opts)
		return err
	}
}
