package portal

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"
)

// ParsePublicKey decodes the portal's base64 DER public key.
// Both SubjectPublicKeyInfo and PKCS#1 encodings are accepted.
func ParsePublicKey(encoded string) (*rsa.PublicKey, error) {
	der, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPublicKey, err)
	}

	if key, err := x509.ParsePKIXPublicKey(der); err == nil {
		rsaKey, ok := key.(*rsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("%w: not an RSA key (%T)", ErrPublicKey, key)
		}
		return rsaKey, nil
	}

	rsaKey, err := x509.ParsePKCS1PublicKey(der)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPublicKey, err)
	}
	return rsaKey, nil
}

// EncryptPassword encrypts password with RSA PKCS#1 v1.5 and returns it
// base64-encoded and percent-escaped, ready for the login body.
func EncryptPassword(pub *rsa.PublicKey, password string) (string, error) {
	if pub == nil {
		return "", fmt.Errorf("%w: no public key", ErrEncryptPassword)
	}

	cipher, err := rsa.EncryptPKCS1v15(rand.Reader, pub, []byte(password))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEncryptPassword, err)
	}

	return url.QueryEscape(base64.StdEncoding.EncodeToString(cipher)), nil
}
