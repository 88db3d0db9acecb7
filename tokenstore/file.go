package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// FileStore keeps the token in a single CBOR file readable only by the current user.
// The token itself is encrypted.
type FileStore struct {
	path   string
	sealer sealer
	Now    func() time.Time
}

func NewFileStore(path, secret string) *FileStore {
	return &FileStore{
		path:   path,
		sealer: newSealer(secret),
		Now:    time.Now,
	}
}

func (f *FileStore) Path() string {
	return f.path
}

func (f *FileStore) Get(ctx context.Context) (string, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", ErrNoToken
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", f.path, err)
	}
	var rec record
	if err = cbor.Unmarshal(data, &rec); err != nil {
		return "", fmt.Errorf("decode %s: %w", f.path, err)
	}
	if rec.expired(f.Now()) {
		logger.Debug().Str("path", f.path).Msg("persisted token expired, removing")
		if err = f.Clear(ctx); err != nil {
			logger.Warn().Err(err).Str("path", f.path).Msg("failed to remove expired token")
		}
		return "", ErrNoToken
	}
	token, err := f.sealer.decrypt(rec.Token)
	if err != nil {
		return "", fmt.Errorf("%s: %w", f.path, err)
	}
	return token, nil
}

func (f *FileStore) Set(ctx context.Context, token string, ttl time.Duration) error {
	enc, err := f.sealer.encrypt(token)
	if err != nil {
		return err
	}
	data, err := cbor.Marshal(newRecord(enc, f.Now(), ttl))
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	dir := filepath.Dir(f.path)
	if err = os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	// write then rename so a crash never leaves a truncated file behind
	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if err = tmp.Chmod(0600); err != nil {
		tmp.Close()
		return err
	}
	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", tmp.Name(), err)
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("rename to %s: %w", f.path, err)
	}
	return nil
}

func (f *FileStore) Clear(ctx context.Context) error {
	err := os.Remove(f.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (f *FileStore) Close() error {
	return nil
}
