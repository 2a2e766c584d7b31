package domain

import (
	"crypto/x509"
	"encoding/pem"
	"fmt"
)

// CommonNameFromCertificate extracts the subject common name from a stored
// certificate, accepting either PEM or raw DER encoding. The store and
// retrieve paths do not call it: there a Resource is an opaque
// (ID, []byte) pair and its bytes are never parsed.
func CommonNameFromCertificate(raw []byte) (string, error) {
	der := raw
	if block, _ := pem.Decode(raw); block != nil {
		der = block.Bytes
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return "", fmt.Errorf("domain: parse certificate: %w", err)
	}
	if cert.Subject.CommonName == "" {
		return "", fmt.Errorf("domain: certificate has no common name")
	}
	return cert.Subject.CommonName, nil
}
