package session

import (
	"errors"
	"fmt"

	"github.com/affinityhq/affinity/internal/storage/local"
)

const (
	collectionSession = "session"
	credentialsID     = "credentials"
)

// ErrNoCredentials is returned when no credential pair is stored.
var ErrNoCredentials = errors.New("no stored credentials")

// CredentialStore persists the (token, user) pair. Save must replace the
// whole pair in one operation; implementations must never expose a state
// where only half of the pair was written.
type CredentialStore interface {
	Load() (*Credentials, error)
	Save(*Credentials) error
	Clear() error
}

// FileStore keeps credentials in a single JSON document on disk. The local
// store writes atomically, which is what makes the pair invariant hold
// across crashes.
type FileStore struct {
	store *local.Store
}

// NewFileStore creates a credential store rooted at basePath.
func NewFileStore(basePath string) (*FileStore, error) {
	store, err := local.NewStore(basePath)
	if err != nil {
		return nil, fmt.Errorf("create local store: %w", err)
	}
	return &FileStore{store: store}, nil
}

// Load reads the stored credential pair.
func (s *FileStore) Load() (*Credentials, error) {
	var creds Credentials
	if err := s.store.Load(collectionSession, credentialsID, &creds); err != nil {
		if errors.Is(err, local.ErrNotFound) {
			return nil, ErrNoCredentials
		}
		return nil, err
	}
	return &creds, nil
}

// Save replaces the stored credential pair.
func (s *FileStore) Save(creds *Credentials) error {
	return s.store.Save(collectionSession, credentialsID, creds)
}

// Clear removes the stored credential pair. Clearing an empty store is not
// an error.
func (s *FileStore) Clear() error {
	if err := s.store.Delete(collectionSession, credentialsID); err != nil {
		if errors.Is(err, local.ErrNotFound) {
			return nil
		}
		return err
	}
	return nil
}

var _ CredentialStore = (*FileStore)(nil)
