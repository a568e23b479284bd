// Package totp verifies RFC 6238 codes (SHA1, 30s step, 6 digits) and produces
// provisioning material for authenticator apps.
package totp

import (
	"bytes"
	"encoding/base32"
	"encoding/base64"
	"image/png"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	// Period is the time step in seconds.
	Period = 30
	// Digits is the code length.
	Digits = 6
	// DefaultSkew accepts codes up to two steps (60s) either side of now.
	DefaultSkew = 2

	qrSize = 256
)

// Setup is the advisory output of Generate. The server never persists it.
type Setup struct {
	Secret      string `json:"secret"`
	URL         string `json:"otpauthUrl"`
	QRCodeImage string `json:"qrCodeImage"`
}

func opts(skew uint) totp.ValidateOpts {
	return totp.ValidateOpts{
		Period:    Period,
		Skew:      skew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	}
}

// Verify reports whether code is valid for secret at time at, tolerating skew
// steps of clock drift either way.
func Verify(secret, code string, at time.Time, skew uint) bool {
	code = strings.TrimSpace(code)
	if !WellFormed(code) || secret == "" {
		return false
	}
	ok, err := totp.ValidateCustom(code, secret, at.UTC(), opts(skew))
	return err == nil && ok
}

// WellFormed reports whether code has the shape of a TOTP code: exactly
// Digits decimal digits.
func WellFormed(code string) bool {
	return len(code) == Digits && isDigits(code)
}

// Code returns the code for secret at time at.
func Code(secret string, at time.Time) (string, error) {
	return totp.GenerateCodeCustom(secret, at.UTC(), opts(0))
}

// ValidSecret reports whether s decodes as base32.
func ValidSecret(s string) bool {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return false
	}
	_, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(strings.TrimRight(s, "="))
	return err == nil
}

// Generate creates a new random secret with its otpauth:// URI and a PNG QR
// code encoded as a data URL.
func Generate(issuer, account string) (*Setup, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: account,
		Period:      Period,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return nil, err
	}

	img, err := key.Image(qrSize, qrSize)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}

	return &Setup{
		Secret:      key.Secret(),
		URL:         key.URL(),
		QRCodeImage: "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()),
	}, nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
