package mercadopago

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	pkgerrors "github.com/varejolabs/loja-backend/pkg/errors"
)

// ValidateSignature checks the gateway's x-signature header against the
// shared webhook secret. The signed manifest combines the notified resource
// ID, the x-request-id header, and the timestamp embedded in the signature.
func ValidateSignature(secret, signatureHeader, requestID, dataID string) error {
	if strings.TrimSpace(secret) == "" {
		return pkgerrors.New(pkgerrors.CodeDependency, "webhook secret not configured")
	}

	ts, v1, err := parseSignatureHeader(signatureHeader)
	if err != nil {
		return err
	}

	manifest := fmt.Sprintf("id:%s;request-id:%s;ts:%s;", strings.ToLower(strings.TrimSpace(dataID)), requestID, ts)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(manifest))
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(v1)) {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "webhook signature mismatch")
	}
	return nil
}

func parseSignatureHeader(header string) (ts string, v1 string, err error) {
	if strings.TrimSpace(header) == "" {
		return "", "", pkgerrors.New(pkgerrors.CodeUnauthorized, "missing webhook signature")
	}

	for _, part := range strings.Split(header, ",") {
		keyValue := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(keyValue) != 2 {
			continue
		}
		switch keyValue[0] {
		case "ts":
			ts = keyValue[1]
		case "v1":
			v1 = keyValue[1]
		}
	}
	if ts == "" || v1 == "" {
		return "", "", pkgerrors.New(pkgerrors.CodeUnauthorized, "malformed webhook signature")
	}
	return ts, v1, nil
}
