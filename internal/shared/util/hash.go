package util

import (
	"crypto/sha256"
	"encoding/hex"
	"path"

	"github.com/google/uuid"
)

// AccountKey returns a path-safe, non-reversible namespace for an account ID.
func AccountKey(accountID string) string {
	sum := sha256.Sum256([]byte(accountID))
	return hex.EncodeToString(sum[:])
}

// ObjectKey builds "<prefix>/<account key>/<uuid>_<file name>". prefix may be empty.
func ObjectKey(prefix, accountID, fileName string) (string, error) {
	name, err := SanitizeFileName(fileName)
	if err != nil {
		return "", err
	}
	return path.Join(prefix, AccountKey(accountID), uuid.NewString()+"_"+name), nil
}
