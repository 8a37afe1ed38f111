package config

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/zeebo/blake3"
)

// hashBytes returns the blake3 hex digest of data.
func hashBytes(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// HashFile returns the blake3 hex digest of the file at path, for comparing
// a running service's config against the file on disk.
func HashFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read config for hashing: %w", err)
	}
	return hashBytes(data), nil
}
