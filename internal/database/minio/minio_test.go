package minio

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDigest_Deterministic(t *testing.T) {
	raw := []byte(`{"temp":45.2,"rain":0.0}`)

	assert.Equal(t, Digest(raw), Digest(raw))
}

func TestDigest_Format(t *testing.T) {
	digest := Digest([]byte("observation"))

	assert.Regexp(t, `^sha256:[0-9a-f]{64}$`, digest)
}

func TestDigest_ContentSensitive(t *testing.T) {
	a := Digest([]byte(`{"temp":45.2}`))
	b := Digest([]byte(`{"temp":45.3}`))

	assert.NotEqual(t, a, b)
}

func TestObjectKey(t *testing.T) {
	raw := []byte("observation")
	digest := Digest(raw)

	key := objectKey(digest)

	assert.NotContains(t, key, "sha256:")
	assert.Contains(t, key, ".json.gz")
}
