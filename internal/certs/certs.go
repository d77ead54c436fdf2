// Package certs provides the self-signed TLS material the proxy serves
// HTTPS with when no real certificate is supplied. ePOS terminals only
// require a certificate to exist, not to chain to a public CA.
package certs

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"net"
	"os"
	"time"
)

const commonName = "PrinterProxy"

// Ensure makes certFile and keyFile usable for HTTPS. Existing files are
// kept as-is; otherwise a self-signed RSA certificate valid for one year
// is generated with subject alternative names covering localhost, the
// machine's addresses, and the configured listen host.
func Ensure(certFile, keyFile, host string) (generated bool, err error) {
	if fileExists(certFile) && fileExists(keyFile) {
		return false, nil
	}

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return false, fmt.Errorf("failed to generate key: %w", err)
	}

	ips, dnsNames := altNames(host)
	now := time.Now()
	template := &x509.Certificate{
		SerialNumber: big.NewInt(now.UnixNano()),
		Subject:      pkix.Name{CommonName: commonName},
		NotBefore:    now.Add(-time.Hour),
		NotAfter:     now.Add(365 * 24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		DNSNames:     dnsNames,
		IPAddresses:  ips,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return false, fmt.Errorf("failed to create certificate: %w", err)
	}

	if err := writePEM(certFile, "CERTIFICATE", der, 0o644); err != nil {
		return false, fmt.Errorf("failed to write certificate: %w", err)
	}
	keyDER := x509.MarshalPKCS1PrivateKey(key)
	if err := writePEM(keyFile, "RSA PRIVATE KEY", keyDER, 0o600); err != nil {
		return false, fmt.Errorf("failed to write key: %w", err)
	}
	return true, nil
}

// altNames collects the addresses terminals might reach this proxy on.
// The listen host joins the set unless it is the wildcard address.
func altNames(host string) ([]net.IP, []string) {
	ips := []net.IP{net.ParseIP("127.0.0.1")}
	dnsNames := []string{"localhost"}

	if hostname, err := os.Hostname(); err == nil {
		dnsNames = append(dnsNames, hostname)
		if addrs, err := net.LookupIP(hostname); err == nil {
			for _, ip := range addrs {
				if v4 := ip.To4(); v4 != nil {
					ips = appendIP(ips, v4)
				}
			}
		}
	}

	if host != "" && host != "0.0.0.0" {
		if ip := net.ParseIP(host); ip != nil {
			ips = appendIP(ips, ip)
		} else {
			dnsNames = append(dnsNames, host)
		}
	}
	return ips, dnsNames
}

func appendIP(ips []net.IP, ip net.IP) []net.IP {
	for _, have := range ips {
		if have.Equal(ip) {
			return ips
		}
	}
	return append(ips, ip)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func writePEM(path string, blockType string, der []byte, perm os.FileMode) error {
	data := pem.EncodeToMemory(&pem.Block{Type: blockType, Bytes: der})
	return os.WriteFile(path, data, perm)
}
