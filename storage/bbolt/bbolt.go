// Package bbolt provides a BBolt-backed storage.Store with values
// encrypted at rest.
//
// Values are sealed with XChaCha20-Poly1305 under a key derived (Argon2id)
// from a per-install random keyfile and a salt stored alongside the data.
// The derived key lives in a memguard enclave and is only opened for the
// duration of a single seal or open.
package bbolt

import (
	"errors"
	"fmt"
	"os"

	"github.com/awnumar/memguard"
	"go.etcd.io/bbolt"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/lichtbild/fotoadmin/internal/util"
	"github.com/lichtbild/fotoadmin/storage"
)

const (
	slotBucket = "slots"
	metaBucket = "meta"
	saltKey    = "kdf_salt"

	keyFileBytes = 32
	saltBytes    = 16

	argonTime    uint32 = 3
	argonMemory  uint32 = 64 * 1024
	argonThreads uint8  = 1
)

// Store implements storage.Store backed by a BBolt database.
type Store struct {
	db  *bbolt.DB
	key *memguard.Enclave
}

var _ storage.Store = (*Store)(nil)

// Open opens (creating if necessary) the database at path and the keyfile
// at keyPath. A fresh keyfile is generated with mode 0600 on first use.
func Open(path, keyPath string) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("opening bbolt db: %w", err)
	}

	var salt []byte
	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(slotBucket)); err != nil {
			return err
		}
		meta, err := tx.CreateBucketIfNotExists([]byte(metaBucket))
		if err != nil {
			return err
		}
		if existing := meta.Get([]byte(saltKey)); existing != nil {
			salt = append([]byte(nil), existing...)
			return nil
		}
		fresh, err := util.RandomBytes(saltBytes)
		if err != nil {
			return err
		}
		salt = fresh
		return meta.Put([]byte(saltKey), fresh)
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing bbolt db: %w", err)
	}

	master, err := loadOrCreateKeyFile(keyPath)
	if err != nil {
		db.Close()
		return nil, err
	}
	sealing := argon2.IDKey(master, salt, argonTime, argonMemory, argonThreads, chacha20poly1305.KeySize)
	util.WipeBytes(master)

	// NewEnclave wipes the source buffer.
	return &Store{db: db, key: memguard.NewEnclave(sealing)}, nil
}

func loadOrCreateKeyFile(path string) ([]byte, error) {
	b, err := os.ReadFile(path)
	if err == nil {
		if len(b) != keyFileBytes {
			return nil, fmt.Errorf("keyfile %s: expected %d bytes, got %d", path, keyFileBytes, len(b))
		}
		return b, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("reading keyfile: %w", err)
	}
	fresh, err := util.RandomBytes(keyFileBytes)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, fresh, 0o600); err != nil {
		return nil, fmt.Errorf("writing keyfile: %w", err)
	}
	return fresh, nil
}

func (s *Store) Get(key string) (string, error) {
	var sealed []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket([]byte(slotBucket)).Get([]byte(key))
		if v == nil {
			return fmt.Errorf("%s: %w", key, storage.ErrNotFound)
		}
		sealed = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return "", err
	}
	plain, err := s.open(sealed, []byte(key))
	if err != nil {
		return "", fmt.Errorf("unsealing %s: %w", key, err)
	}
	defer util.WipeBytes(plain)
	return string(plain), nil
}

func (s *Store) Set(key, value string) error {
	sealed, err := s.seal([]byte(value), []byte(key))
	if err != nil {
		return fmt.Errorf("sealing %s: %w", key, err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(slotBucket)).Put([]byte(key), sealed)
	})
}

func (s *Store) Delete(key string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(slotBucket)).Delete([]byte(key))
	})
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) seal(plaintext, aad []byte) ([]byte, error) {
	buf, err := s.key.Open()
	if err != nil {
		return nil, err
	}
	defer buf.Destroy()
	aead, err := chacha20poly1305.NewX(buf.Bytes())
	if err != nil {
		return nil, err
	}
	nonce, err := util.RandomBytes(chacha20poly1305.NonceSizeX)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(nonce)+len(plaintext)+aead.Overhead())
	out = append(out, nonce...)
	return aead.Seal(out, nonce, plaintext, aad), nil
}

func (s *Store) open(sealed, aad []byte) ([]byte, error) {
	if len(sealed) < chacha20poly1305.NonceSizeX {
		return nil, errors.New("sealed value too short")
	}
	buf, err := s.key.Open()
	if err != nil {
		return nil, err
	}
	defer buf.Destroy()
	aead, err := chacha20poly1305.NewX(buf.Bytes())
	if err != nil {
		return nil, err
	}
	nonce := sealed[:chacha20poly1305.NonceSizeX]
	return aead.Open(nil, nonce, sealed[chacha20poly1305.NonceSizeX:], aad)
}
