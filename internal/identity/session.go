package identity

import (
	"encoding/json"
	"errors"
	"fmt"

	"go.etcd.io/bbolt"
	"golang.org/x/oauth2"
)

// ErrNoSession is returned when no session is persisted.
var ErrNoSession = errors.New("identity: no session stored")

// Session file permissions: the database holds a bearer token.
const sessionFilePerms = 0o600

var (
	bucketSession = []byte("session")
	sessionKey    = []byte("current")
)

// Session is the persisted authenticated identity.
type Session struct {
	UID   string        `json:"uid"`
	Email string        `json:"email"`
	Token *oauth2.Token `json:"token"`
}

// SessionStore persists the current session in a bbolt database so the
// identity survives process restarts without re-login.
type SessionStore struct {
	db *bbolt.DB
}

// OpenSessionStore opens (or creates) the session database at dbPath.
func OpenSessionStore(dbPath string) (*SessionStore, error) {
	db, err := bbolt.Open(dbPath, sessionFilePerms, nil)
	if err != nil {
		return nil, fmt.Errorf("identity: open session db %s: %w", dbPath, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketSession)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("identity: init session bucket: %w", err)
	}

	return &SessionStore{db: db}, nil
}

// Close closes the session database.
func (s *SessionStore) Close() error {
	return s.db.Close()
}

// Save persists the session, replacing any previous one.
func (s *SessionStore) Save(session *Session) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(session)
		if err != nil {
			return fmt.Errorf("identity: marshal session: %w", err)
		}

		if err := tx.Bucket(bucketSession).Put(sessionKey, data); err != nil {
			return fmt.Errorf("identity: save session: %w", err)
		}

		return nil
	})
}

// Load returns the persisted session, or ErrNoSession.
func (s *SessionStore) Load() (*Session, error) {
	var session *Session

	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketSession).Get(sessionKey)
		if data == nil {
			return ErrNoSession
		}

		session = &Session{}
		if err := json.Unmarshal(data, session); err != nil {
			return fmt.Errorf("identity: decode session: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return session, nil
}

// Clear removes the persisted session. Clearing an absent session is not
// an error.
func (s *SessionStore) Clear() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketSession).Delete(sessionKey)
	})
}
