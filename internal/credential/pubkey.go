package credential

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/go-webauthn/webauthn/protocol/webauthncose"
)

// Algorithm es el nombre JOSE del algoritmo de firma declarado por el device.
type Algorithm string

const (
	ES256 Algorithm = "ES256"
	ES384 Algorithm = "ES384"
	ES512 Algorithm = "ES512"
	RS256 Algorithm = "RS256"
	PS256 Algorithm = "PS256"
	EdDSA Algorithm = "EdDSA"
)

const minRSABits = 2048

var (
	errUnsupportedAlg = errors.New("unsupported algorithm")
	errKeyAlgMismatch = errors.New("key type does not match algorithm")
	errBadEncoding    = errors.New("public key is neither PEM, DER SPKI nor COSE_Key")
	errBadSignature   = errors.New("signature mismatch")
)

func ParseAlgorithm(s string) (Algorithm, error) {
	switch a := Algorithm(s); a {
	case ES256, ES384, ES512, RS256, PS256, EdDSA:
		return a, nil
	}
	return "", fmt.Errorf("%w: %q", errUnsupportedAlg, s)
}

func (a Algorithm) coseID() webauthncose.COSEAlgorithmIdentifier {
	switch a {
	case ES256:
		return webauthncose.AlgES256
	case ES384:
		return webauthncose.AlgES384
	case ES512:
		return webauthncose.AlgES512
	case RS256:
		return webauthncose.AlgRS256
	case PS256:
		return webauthncose.AlgPS256
	case EdDSA:
		return webauthncose.AlgEdDSA
	}
	return 0
}

func (a Algorithm) hash() crypto.Hash {
	switch a {
	case ES384:
		return crypto.SHA384
	case ES512:
		return crypto.SHA512
	}
	return crypto.SHA256
}

func (a Algorithm) curve() elliptic.Curve {
	switch a {
	case ES256:
		return elliptic.P256()
	case ES384:
		return elliptic.P384()
	case ES512:
		return elliptic.P521()
	}
	return nil
}

// PublicKey es una clave ya parseada y atada a su algoritmo.
// Exactamente uno de std/cose está presente.
type PublicKey struct {
	alg  Algorithm
	std  crypto.PublicKey
	cose any
}

func (k *PublicKey) Algorithm() Algorithm { return k.alg }

// ParsePublicKey acepta PEM, DER SubjectPublicKeyInfo en base64 (std o url,
// con o sin padding) o un COSE_Key en base64. El tipo de clave tiene que
// corresponder al algoritmo declarado.
func ParsePublicKey(encoded string, alg Algorithm) (*PublicKey, error) {
	if _, err := ParseAlgorithm(string(alg)); err != nil {
		return nil, err
	}
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return nil, errBadEncoding
	}

	if strings.HasPrefix(encoded, "-----BEGIN") {
		block, _ := pem.Decode([]byte(encoded))
		if block == nil {
			return nil, errBadEncoding
		}
		return fromSPKI(block.Bytes, alg)
	}

	raw, err := decodeB64(encoded)
	if err != nil {
		return nil, errBadEncoding
	}
	if k, err := fromSPKI(raw, alg); err == nil {
		return k, nil
	} else if errors.Is(err, errKeyAlgMismatch) {
		return nil, err
	}
	return fromCOSE(raw, alg)
}

func fromSPKI(der []byte, alg Algorithm) (*PublicKey, error) {
	pub, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, err
	}
	switch k := pub.(type) {
	case *ecdsa.PublicKey:
		if c := alg.curve(); c == nil || k.Curve != c {
			return nil, errKeyAlgMismatch
		}
	case *rsa.PublicKey:
		if alg != RS256 && alg != PS256 {
			return nil, errKeyAlgMismatch
		}
		if k.N.BitLen() < minRSABits {
			return nil, fmt.Errorf("rsa key too short: %d bits", k.N.BitLen())
		}
	case ed25519.PublicKey:
		if alg != EdDSA {
			return nil, errKeyAlgMismatch
		}
	default:
		return nil, fmt.Errorf("unsupported key type %T", pub)
	}
	return &PublicKey{alg: alg, std: pub}, nil
}

func fromCOSE(raw []byte, alg Algorithm) (*PublicKey, error) {
	parsed, err := webauthncose.ParsePublicKey(raw)
	if err != nil {
		return nil, fmt.Errorf("cose: %w", err)
	}
	var declared int64
	switch k := parsed.(type) {
	case webauthncose.EC2PublicKeyData:
		if alg.curve() == nil {
			return nil, errKeyAlgMismatch
		}
		declared = k.Algorithm
	case webauthncose.RSAPublicKeyData:
		if alg != RS256 && alg != PS256 {
			return nil, errKeyAlgMismatch
		}
		declared = k.Algorithm
	case webauthncose.OKPPublicKeyData:
		if alg != EdDSA {
			return nil, errKeyAlgMismatch
		}
		declared = k.Algorithm
	default:
		return nil, fmt.Errorf("cose: unsupported key type %T", parsed)
	}
	if declared != int64(alg.coseID()) {
		return nil, errKeyAlgMismatch
	}
	return &PublicKey{alg: alg, cose: parsed}, nil
}

// Verify chequea sig sobre msg. ECDSA acepta DER (ASN.1) o r||s de largo fijo.
func (k *PublicKey) Verify(msg, sig []byte) error {
	if len(sig) == 0 {
		return errBadSignature
	}
	if k.cose != nil {
		ok, err := webauthncose.VerifySignature(k.cose, msg, sig)
		if err != nil {
			return err
		}
		if !ok {
			return errBadSignature
		}
		return nil
	}

	switch pub := k.std.(type) {
	case ed25519.PublicKey:
		if !ed25519.Verify(pub, msg, sig) {
			return errBadSignature
		}
		return nil
	case *ecdsa.PublicKey:
		digest := sum(k.alg.hash(), msg)
		if ecdsa.VerifyASN1(pub, digest, sig) {
			return nil
		}
		size := (pub.Curve.Params().BitSize + 7) / 8
		if len(sig) == 2*size {
			r := new(big.Int).SetBytes(sig[:size])
			s := new(big.Int).SetBytes(sig[size:])
			if ecdsa.Verify(pub, digest, r, s) {
				return nil
			}
		}
		return errBadSignature
	case *rsa.PublicKey:
		digest := sum(k.alg.hash(), msg)
		if k.alg == PS256 {
			return rsa.VerifyPSS(pub, crypto.SHA256, digest, sig, &rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthAuto})
		}
		return rsa.VerifyPKCS1v15(pub, crypto.SHA256, digest, sig)
	}
	return fmt.Errorf("unsupported key type %T", k.std)
}

func sum(h crypto.Hash, msg []byte) []byte {
	switch h {
	case crypto.SHA384:
		d := sha512.Sum384(msg)
		return d[:]
	case crypto.SHA512:
		d := sha512.Sum512(msg)
		return d[:]
	}
	d := sha256.Sum256(msg)
	return d[:]
}

// decodeB64 prueba std/url con y sin padding.
func decodeB64(s string) ([]byte, error) {
	var lastErr error
	for _, enc := range []*base64.Encoding{
		base64.StdEncoding, base64.RawStdEncoding,
		base64.URLEncoding, base64.RawURLEncoding,
	} {
		b, err := enc.DecodeString(s)
		if err == nil {
			return b, nil
		}
		lastErr = err
	}
	return nil, lastErr
}
