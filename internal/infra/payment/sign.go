package payment

import (
	"crypto"
	"crypto/hmac"
	"crypto/md5"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"sort"
	"strings"
)

// Per-provider signature construction. Every function here is pure over
// (parameters, secret): no network, no clock reads beyond what callers pass
// in. Failures can only come from malformed secret material.

// WeChatSign builds the keyed-MD5 signature over the sorted key=value pairs:
// join by '&', append '&key=<secret>', MD5, uppercase hex.
func WeChatSign(params map[string]string, apiKey string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+params[k])
	}
	raw := strings.Join(pairs, "&") + "&key=" + apiKey

	sum := md5.Sum([]byte(raw))
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

// AlipaySign signs the sorted key=value pair string (excluding the "sign"
// field itself) with RSA-SHA256 and base64-encodes the result.
func AlipaySign(params map[string]string, key *rsa.PrivateKey) (string, error) {
	keys := make([]string, 0, len(params))
	for k := range params {
		if k == "sign" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+params[k])
	}
	digest := sha256.Sum256([]byte(strings.Join(pairs, "&")))

	sig, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA256, digest[:])
	if err != nil {
		return "", fmt.Errorf("alipay sign: %w", err)
	}
	return base64.StdEncoding.EncodeToString(sig), nil
}

// ParseRSAPrivateKey accepts PKCS#1 or PKCS#8 PEM-encoded key material.
func ParseRSAPrivateKey(pemData string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(pemData))
	if block == nil {
		return nil, fmt.Errorf("no PEM block in private key material")
	}
	if k, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return k, nil
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	k, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("private key is not RSA")
	}
	return k, nil
}

// PayPaySign computes HMAC-SHA256 over the newline-joined canonical string
// {path}\n{method}\n{nonce}\n{timestamp}\n{contentType}\n{body}\n and
// base64-encodes it. contentType and body are empty for GET. Signatures are
// single-use: callers mint a fresh nonce and timestamp per call.
func PayPaySign(resourcePath, method, nonce string, timestamp int64, contentType, body, apiSecret string) string {
	raw := fmt.Sprintf("%s\n%s\n%s\n%d\n%s\n%s\n", resourcePath, method, nonce, timestamp, contentType, body)
	h := hmac.New(sha256.New, []byte(apiSecret))
	h.Write([]byte(raw))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// NewNonce returns n hex characters of cryptographic randomness.
func NewNonce(n int) string {
	b := make([]byte, (n+1)/2)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)[:n]
}
