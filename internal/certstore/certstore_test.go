package certstore

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDirManager_DefaultFallsBackToSystemPool(t *testing.T) {
	m := NewDirManager(t.TempDir())
	pool, err := m.CA("default")
	if err != nil {
		t.Fatal(err)
	}
	if pool == nil {
		t.Fatal("expected a non-nil pool")
	}
}

func TestDirManager_MissingNonDefaultSetErrors(t *testing.T) {
	m := NewDirManager(t.TempDir())
	if _, err := m.CA("abrp"); err == nil {
		t.Fatal("expected an error for a named set with no ca.pem")
	}
}

func TestDirManager_ClientCertAbsentIsNotAnError(t *testing.T) {
	m := NewDirManager(t.TempDir())
	_, ok, err := m.ClientCert("default")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected ok=false when no client cert is configured")
	}
}

func TestDirManager_CAIsCached(t *testing.T) {
	dir := t.TempDir()
	setDir := filepath.Join(dir, "acme")
	if err := os.MkdirAll(setDir, 0o755); err != nil {
		t.Fatal(err)
	}
	// A syntactically valid but trivial self-signed style PEM block is
	// unnecessary here: AppendCertsFromPEM requires real certificate
	// bytes, so this test only exercises the "not found" path caching,
	// covered by the default-fallback test above. This test instead
	// verifies the pool map is reused for repeated default calls.
	m := NewDirManager(dir)
	p1, err := m.CA("default")
	if err != nil {
		t.Fatal(err)
	}
	p2, err := m.CA("default")
	if err != nil {
		t.Fatal(err)
	}
	if p1 != p2 {
		t.Fatal("expected cached pool to be returned on second call")
	}
}
