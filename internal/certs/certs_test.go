package certs

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"
)

func TestEnsure_GeneratesUsablePair(t *testing.T) {
	dir := t.TempDir()
	certFile := filepath.Join(dir, "server.crt")
	keyFile := filepath.Join(dir, "server.key")

	generated, err := Ensure(certFile, keyFile, "192.168.1.10")
	if err != nil {
		t.Fatalf("Ensure failed: %v", err)
	}
	if !generated {
		t.Fatal("Expected a fresh certificate to be generated")
	}

	if _, err := tls.LoadX509KeyPair(certFile, keyFile); err != nil {
		t.Fatalf("Generated pair does not load: %v", err)
	}

	data, err := os.ReadFile(certFile)
	if err != nil {
		t.Fatalf("Failed to read certificate: %v", err)
	}
	block, _ := pem.Decode(data)
	if block == nil {
		t.Fatal("Certificate is not PEM")
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		t.Fatalf("Failed to parse certificate: %v", err)
	}

	if cert.Subject.CommonName != "PrinterProxy" {
		t.Errorf("Expected CN PrinterProxy, got %q", cert.Subject.CommonName)
	}

	hasLoopback := false
	for _, ip := range cert.IPAddresses {
		if ip.String() == "127.0.0.1" {
			hasLoopback = true
		}
	}
	if !hasLoopback {
		t.Error("Expected 127.0.0.1 in subject alternative names")
	}

	hasListenHost := false
	for _, ip := range cert.IPAddresses {
		if ip.String() == "192.168.1.10" {
			hasListenHost = true
		}
	}
	if !hasListenHost {
		t.Error("Expected configured host in subject alternative names")
	}
}

func TestEnsure_ReusesExistingPair(t *testing.T) {
	dir := t.TempDir()
	certFile := filepath.Join(dir, "server.crt")
	keyFile := filepath.Join(dir, "server.key")

	if _, err := Ensure(certFile, keyFile, ""); err != nil {
		t.Fatalf("First Ensure failed: %v", err)
	}
	before, err := os.ReadFile(certFile)
	if err != nil {
		t.Fatalf("Failed to read certificate: %v", err)
	}

	generated, err := Ensure(certFile, keyFile, "")
	if err != nil {
		t.Fatalf("Second Ensure failed: %v", err)
	}
	if generated {
		t.Error("Expected existing pair to be reused")
	}

	after, err := os.ReadFile(certFile)
	if err != nil {
		t.Fatalf("Failed to read certificate: %v", err)
	}
	if string(before) != string(after) {
		t.Error("Expected certificate to be left untouched")
	}
}
