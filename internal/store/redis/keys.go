package redis

import "fmt"

const (
	// KeyPrefixBlob is the prefix for blob keys
	KeyPrefixBlob = "gallery:blob:"

	// Hash fields of a blob key
	fieldData     = "data"
	fieldType     = "type"
	fieldRevision = "rev"
)

// BlobKey returns the Redis key for a blob by name
func BlobKey(name string) string {
	return KeyPrefixBlob + name
}

// ExtractBlobName extracts the blob name from a Redis key
func ExtractBlobName(key string) (string, error) {
	if len(key) <= len(KeyPrefixBlob) || key[:len(KeyPrefixBlob)] != KeyPrefixBlob {
		return "", fmt.Errorf("invalid blob key: %s", key)
	}
	return key[len(KeyPrefixBlob):], nil
}
