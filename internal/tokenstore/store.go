// Package tokenstore persists OAuth token pairs in a bbolt database.
// The refresh token is sealed with AES-GCM under a key derived from
// the client secret, so the database alone cannot mint new access
// tokens.
package tokenstore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
	"golang.org/x/crypto/scrypt"
	"golang.org/x/oauth2"
	"golang.org/x/text/unicode/norm"
)

const (
	// storeDirPerm is the permission mode for the token directory.
	storeDirPerm = fs.FileMode(0o700)

	// storeFilePerm is the permission mode for the database file.
	storeFilePerm = fs.FileMode(0o600)

	// storeOpenTimeout is the maximum time to wait for the bolt lock.
	storeOpenTimeout = 5 * time.Second

	// scrypt parameters for deriving the sealing key from the client
	// secret (N=2^15, r=8, p=1, 32-byte key).
	scryptN      = 32768
	scryptR      = 8
	scryptP      = 1
	scryptKeyLen = 32

	saltLen = 16
)

var tokensBucket = []byte("tokens")

// ErrNotFound is returned by Load when no token is cached for the
// client id.
var ErrNotFound = errors.New("tokenstore: no cached token")

// record is the persisted form of a token pair. AccessToken is stored
// in the clear (short-lived); the refresh token is sealed.
type record struct {
	AccessToken   string    `json:"access_token"`
	TokenType     string    `json:"token_type"`
	Expiry        time.Time `json:"expiry"`
	Salt          []byte    `json:"salt"`
	SealedRefresh []byte    `json:"sealed_refresh"`
}

// Store wraps a bbolt database holding cached tokens.
type Store struct {
	db *bolt.DB
}

// Open creates or opens the token database at path, creating parent
// directories as needed.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), storeDirPerm); err != nil {
		return nil, fmt.Errorf("creating token directory: %w", err)
	}

	db, err := bolt.Open(path, storeFilePerm, &bolt.Options{Timeout: storeOpenTimeout})
	if err != nil {
		return nil, fmt.Errorf("opening token db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(tokensBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating tokens bucket: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the database file.
func (s *Store) Close() error {
	return s.db.Close()
}

// deriveKey derives the 32-byte sealing key from the client secret and
// salt using scrypt. The secret is normalized to NFKC first so pasted
// variants of the same text derive the same key.
func deriveKey(clientSecret string, salt []byte) ([]byte, error) {
	secret := norm.NFKC.String(clientSecret)

	key, err := scrypt.Key([]byte(secret), salt, scryptN, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return nil, fmt.Errorf("deriving key: %w", err)
	}

	return key, nil
}

// seal encrypts the refresh token as [12-byte nonce][ciphertext+tag].
func seal(key, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating AES cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating GCM: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}

	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func unseal(key, sealed []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating AES cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating GCM: %w", err)
	}

	if len(sealed) < gcm.NonceSize() {
		return nil, errors.New("sealed refresh token too short")
	}

	plaintext, err := gcm.Open(nil, sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():], nil)
	if err != nil {
		return nil, fmt.Errorf("unsealing refresh token: %w", err)
	}

	return plaintext, nil
}

// Save persists the token pair for clientID.
func (s *Store) Save(clientID, clientSecret string, tok *oauth2.Token) error {
	salt := make([]byte, saltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return fmt.Errorf("generating salt: %w", err)
	}

	key, err := deriveKey(clientSecret, salt)
	if err != nil {
		return err
	}

	sealed, err := seal(key, []byte(tok.RefreshToken))
	if err != nil {
		return err
	}

	data, err := json.Marshal(record{
		AccessToken:   tok.AccessToken,
		TokenType:     tok.TokenType,
		Expiry:        tok.Expiry,
		Salt:          salt,
		SealedRefresh: sealed,
	})
	if err != nil {
		return fmt.Errorf("marshalling token record: %w", err)
	}

	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(tokensBucket).Put([]byte(clientID), data)
	})
	if err != nil {
		return fmt.Errorf("storing token: %w", err)
	}

	return nil
}

// Load retrieves the cached token pair for clientID. Returns
// ErrNotFound when nothing is cached; an unseal failure (wrong or
// rotated client secret) is an error so the caller falls back to a
// full authorization.
func (s *Store) Load(clientID, clientSecret string) (*oauth2.Token, error) {
	var data []byte

	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(tokensBucket).Get([]byte(clientID))
		if v != nil {
			data = append(data, v...)
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reading token: %w", err)
	}

	if data == nil {
		return nil, ErrNotFound
	}

	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("unmarshalling token record: %w", err)
	}

	key, err := deriveKey(clientSecret, rec.Salt)
	if err != nil {
		return nil, err
	}

	refresh, err := unseal(key, rec.SealedRefresh)
	if err != nil {
		return nil, err
	}

	return &oauth2.Token{
		AccessToken:  rec.AccessToken,
		TokenType:    rec.TokenType,
		Expiry:       rec.Expiry,
		RefreshToken: string(refresh),
	}, nil
}

// Delete removes the cached token for clientID, if any.
func (s *Store) Delete(clientID string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(tokensBucket).Delete([]byte(clientID))
	})
	if err != nil {
		return fmt.Errorf("deleting token: %w", err)
	}

	return nil
}
