package identity

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// LoadFile reads a keypair file: a JSON array of the 64 private key bytes,
// the format written by solana-keygen.
func LoadFile(path string) (*Keypair, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read keypair file: %w", err)
	}

	var raw []int
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse keypair file %s: %w", path, err)
	}
	key := make([]byte, len(raw))
	for i, b := range raw {
		if b < 0 || b > 255 {
			return nil, fmt.Errorf("parse keypair file %s: byte %d out of range: %d", path, i, b)
		}
		key[i] = byte(b)
	}

	kp, err := FromPrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("keypair file %s: %w", path, err)
	}
	return kp, nil
}

// SaveFile writes k in the LoadFile format with owner-only permissions.
// Refuses to overwrite an existing file.
func SaveFile(path string, k *Keypair) error {
	raw := make([]int, 0, 64)
	for _, b := range k.Bytes() {
		raw = append(raw, int(b))
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("encode keypair: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create keypair directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("create keypair file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("write keypair file: %w", err)
	}
	return f.Close()
}
