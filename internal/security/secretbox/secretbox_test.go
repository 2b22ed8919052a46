package secretbox

import (
	"encoding/base64"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey() []byte {
	raw := make([]byte, 32)
	for i := range raw {
		raw[i] = byte(i + 1)
	}
	return raw
}

func TestSealOpen(t *testing.T) {
	b, err := New(base64.StdEncoding.EncodeToString(testKey()))
	require.NoError(t, err)

	ct, err := b.Seal("postgres://u:p@db/trust")
	require.NoError(t, err)
	pt, err := b.Open(ct)
	require.NoError(t, err)
	assert.Equal(t, "postgres://u:p@db/trust", pt)

	// con prefijo también abre
	pt, err = b.Open(Prefix + ct)
	require.NoError(t, err)
	assert.Equal(t, "postgres://u:p@db/trust", pt)
}

func TestKeyEncodings(t *testing.T) {
	k := testKey()
	for _, enc := range []string{
		base64.StdEncoding.EncodeToString(k),
		base64.RawStdEncoding.EncodeToString(k),
		hex.EncodeToString(k),
		string(k),
	} {
		_, err := New(enc)
		assert.NoError(t, err)
	}
	_, err := New("short")
	assert.Error(t, err)
}

func TestOpen_DetectsTamper(t *testing.T) {
	b, err := New(hex.EncodeToString(testKey()))
	require.NoError(t, err)
	ct, err := b.Seal("top secret")
	require.NoError(t, err)

	nonce, body, _ := strings.Cut(ct, "|")
	bs, err := base64.StdEncoding.DecodeString(body)
	require.NoError(t, err)
	bs[0] ^= 0x01

	_, err = b.Open(nonce + "|" + base64.StdEncoding.EncodeToString(bs))
	assert.Error(t, err)

	_, err = b.Open("no-separator")
	assert.Error(t, err)
}

func TestReveal(t *testing.T) {
	t.Setenv(EnvMasterKey, base64.StdEncoding.EncodeToString(testKey()))

	v, err := Reveal("plain")
	require.NoError(t, err)
	assert.Equal(t, "plain", v)

	b, err := FromEnv()
	require.NoError(t, err)
	ct, err := b.Seal("amqp://guest:guest@mq/")
	require.NoError(t, err)

	v, err = Reveal(Prefix + ct)
	require.NoError(t, err)
	assert.Equal(t, "amqp://guest:guest@mq/", v)

	t.Setenv(EnvMasterKey, "")
	_, err = Reveal(Prefix + ct)
	assert.ErrorIs(t, err, ErrNoKey)
}
