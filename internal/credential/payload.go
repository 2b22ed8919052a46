package credential

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

// El payload de login es "<counter>.<nonce>": el contador viaja dentro de los
// bytes firmados, así que no se puede subir sin una firma nueva del device.
var errPayloadFormat = errors.New("signed payload must be <counter>.<nonce>")

const maxCounterDigits = 19

// SignedCounter devuelve el contador firmado dentro del payload.
func SignedCounter(payload string) (uint64, error) {
	head, nonce, ok := strings.Cut(payload, ".")
	if !ok || nonce == "" || head == "" || len(head) > maxCounterDigits {
		return 0, errPayloadFormat
	}
	for _, r := range head {
		if r < '0' || r > '9' {
			return 0, errPayloadFormat
		}
	}
	n, err := strconv.ParseUint(head, 10, 64)
	if err != nil {
		return 0, errPayloadFormat
	}
	if n > math.MaxInt64 {
		return 0, errors.New("signed counter overflows")
	}
	return n, nil
}

// LoginPayload arma el payload canónico que firma el device.
func LoginPayload(counter uint64, nonce string) string {
	return strconv.FormatUint(counter, 10) + "." + nonce
}
