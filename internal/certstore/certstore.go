// Package certstore binds the cert-manager collaborator named in spec
// §6: PEM files on disk, keyed by a destination's cert_set name, with
// the host's system root bundle serving the implicit "default" set.
// Manager offers CA(name) and ClientCert(name); the client key is
// loaded together with the client certificate, not separately.
package certstore

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Manager resolves named certificate sets to tls.Config material.
type Manager interface {
	CA(name string) (*x509.CertPool, error)
	ClientCert(name string) (tls.Certificate, bool, error)
}

// DirManager loads PEM files from a directory laid out as:
//
//	<dir>/<name>/ca.pem
//	<dir>/<name>/client.pem
//	<dir>/<name>/client-key.pem
//
// The "default" set falls back to the host's system root pool and
// carries no client certificate when its directory is absent.
type DirManager struct {
	dir string

	mu    sync.Mutex
	pools map[string]*x509.CertPool
	certs map[string]*tls.Certificate
}

// NewDirManager creates a DirManager rooted at dir.
func NewDirManager(dir string) *DirManager {
	return &DirManager{
		dir:   dir,
		pools: make(map[string]*x509.CertPool),
		certs: make(map[string]*tls.Certificate),
	}
}

func (m *DirManager) CA(name string) (*x509.CertPool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if pool, ok := m.pools[name]; ok {
		return pool, nil
	}

	path := filepath.Join(m.dir, name, "ca.pem")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && name == "default" {
			pool, sysErr := x509.SystemCertPool()
			if sysErr != nil {
				pool = x509.NewCertPool()
			}
			m.pools[name] = pool
			return pool, nil
		}
		return nil, fmt.Errorf("certstore: read CA for %q: %w", name, err)
	}

	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(data) {
		return nil, fmt.Errorf("certstore: no PEM certificates found in %s", path)
	}
	m.pools[name] = pool
	return pool, nil
}

func (m *DirManager) ClientCert(name string) (tls.Certificate, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if cert, ok := m.certs[name]; ok {
		return *cert, true, nil
	}

	certPath := filepath.Join(m.dir, name, "client.pem")
	keyPath := filepath.Join(m.dir, name, "client-key.pem")
	if _, err := os.Stat(certPath); os.IsNotExist(err) {
		return tls.Certificate{}, false, nil
	}

	cert, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return tls.Certificate{}, false, fmt.Errorf("certstore: load client cert for %q: %w", name, err)
	}
	m.certs[name] = &cert
	return cert, true, nil
}
