package kvstore

import (
	"encoding/base64"
	"errors"
	"hash/fnv"
	"strings"
)

var keyEncoding = base64.RawURLEncoding

// GranuleKey returns the bucket key of a granule. Both identifiers are
// encoded so that arbitrary characters survive the key alphabet, and the
// collection comes first so that "<collection>.*" selects a whole collection.
func GranuleKey(collectionID, granuleID string) (string, error) {
	if collectionID == "" || granuleID == "" {
		return "", errors.New("granule key requires collectionId and granuleId")
	}
	return encodeToken(collectionID) + "." + encodeToken(granuleID), nil
}

func encodeToken(s string) string {
	return keyEncoding.EncodeToString([]byte(s))
}

// parseKey splits a bucket key back into its collection and granule ids.
func parseKey(key string) (collectionID, granuleID string, ok bool) {
	c, g, found := strings.Cut(key, ".")
	if !found {
		return "", "", false
	}
	cb, err := keyEncoding.DecodeString(c)
	if err != nil {
		return "", "", false
	}
	gb, err := keyEncoding.DecodeString(g)
	if err != nil {
		return "", "", false
	}
	return string(cb), string(gb), true
}

// segmentOf assigns a key to one of total scan segments.
func segmentOf(key string, total int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(total)) //nolint:gosec // total is validated positive
}
