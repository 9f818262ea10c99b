// Package keystore holds sealed private key material on disk, one file per
// account. The mobile clients gate access behind the platform's biometric
// prompt; this implementation gates it behind a passphrase, with the same
// surface: Save, Get, Delete, Has.
package keystore

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/clad-sovereign/clad-mobile/internal/log"
	"github.com/clad-sovereign/clad-mobile/pkg/types"
	"github.com/zeebo/blake3"
)

var (
	// ErrNotFound is returned when no key is stored for an account.
	ErrNotFound = errors.New("keystore: key not found")

	// ErrExists is returned by Save when a key is already stored.
	ErrExists = errors.New("keystore: key already exists")

	// ErrBadPassphrase is returned when unsealing fails; with an AEAD this
	// is indistinguishable from a corrupted file.
	ErrBadPassphrase = errors.New("keystore: wrong passphrase or corrupted key file")
)

// keyFile is the on-disk JSON envelope around the sealed material.
type keyFile struct {
	Version   int           `json:"version"`
	AccountID string        `json:"account_id"`
	KeyType   types.KeyType `json:"key_type"`
	PublicKey string        `json:"public_key"` // hex; public by definition
	Sealed    []byte        `json:"sealed"`
	CreatedAt time.Time     `json:"created_at"`
}

// Store manages sealed key files in a directory.
type Store struct {
	dir    string
	params SealParams
}

// NewStore creates a store rooted at dir, creating it if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create keystore dir: %w", err)
	}
	return &Store{dir: dir, params: DefaultSealParams()}, nil
}

// keyPath maps an account id to its file. Account ids are free-form (labels,
// addresses), so the file name is the blake3 hash of the id rather than the
// id itself.
func (s *Store) keyPath(accountID string) string {
	sum := blake3.Sum256([]byte(accountID))
	return filepath.Join(s.dir, hex.EncodeToString(sum[:16])+".key")
}

// Save seals a keypair's private key under the passphrase and writes it for
// the account. The caller still owns the keypair and is responsible for
// clearing it.
func (s *Store) Save(accountID string, kp *types.Keypair, passphrase []byte) error {
	path := s.keyPath(accountID)
	if _, err := os.Stat(path); err == nil {
		return ErrExists
	}

	sealed, err := seal(kp.PrivateKey(), passphrase, s.params)
	if err != nil {
		return fmt.Errorf("seal key: %w", err)
	}

	kf := keyFile{
		Version:   1,
		AccountID: accountID,
		KeyType:   kp.Type(),
		PublicKey: hex.EncodeToString(kp.PublicKey()),
		Sealed:    sealed,
		CreatedAt: time.Now().UTC(),
	}
	data, err := json.MarshalIndent(&kf, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal key file: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write key file: %w", err)
	}

	log.Keystore.Info().Str("account", accountID).Str("type", string(kp.Type())).Msg("key stored")
	return nil
}

// Get unseals and returns the keypair for an account. The caller must Clear
// the returned keypair as soon as it is done with it.
func (s *Store) Get(accountID string, passphrase []byte) (*types.Keypair, error) {
	kf, err := s.readFile(accountID)
	if err != nil {
		return nil, err
	}

	priv, err := open(kf.Sealed, passphrase)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadPassphrase, err)
	}
	pub, err := hex.DecodeString(kf.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("parse stored public key: %w", err)
	}
	return types.NewKeypair(pub, priv, kf.KeyType)
}

// Delete removes the stored key for an account.
func (s *Store) Delete(accountID string) error {
	path := s.keyPath(accountID)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return ErrNotFound
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("remove key file: %w", err)
	}
	log.Keystore.Info().Str("account", accountID).Msg("key deleted")
	return nil
}

// Has reports whether a key is stored for an account.
func (s *Store) Has(accountID string) bool {
	_, err := os.Stat(s.keyPath(accountID))
	return err == nil
}

func (s *Store) readFile(accountID string) (*keyFile, error) {
	data, err := os.ReadFile(s.keyPath(accountID))
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read key file: %w", err)
	}
	var kf keyFile
	if err := json.Unmarshal(data, &kf); err != nil {
		return nil, fmt.Errorf("parse key file: %w", err)
	}
	if kf.Version != 1 {
		return nil, fmt.Errorf("unsupported key file version %d", kf.Version)
	}
	return &kf, nil
}
