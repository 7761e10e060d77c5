package main

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

const signatureHeader = "X-Hub-Signature-256"

var errSignatureMismatch = errors.New("signature mismatch")

// verifySignature checks the Cloud API "sha256=<hex>" HMAC of body against
// the app secret. An empty secret disables the check.
func verifySignature(r *http.Request, body []byte, secret string) error {
	if secret == "" {
		return nil
	}

	header := r.Header.Get(signatureHeader)
	if header == "" {
		return fmt.Errorf("missing signature header: %s", signatureHeader)
	}

	parts := strings.SplitN(header, "=", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "sha256" {
		return fmt.Errorf("invalid signature format in header %s", signatureHeader)
	}

	if !hmac.Equal([]byte(sign(body, secret)), []byte(strings.ToLower(parts[1]))) {
		return errSignatureMismatch
	}
	return nil
}

func sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
