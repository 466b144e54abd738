package store

import (
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"

	"github.com/pbanos/arboretum/pkg/forest"
	"github.com/pkg/errors"
)

// FileExt is the extension of bundle files.
const FileExt = ".arb"

type fileStore struct {
	dir    string
	encdec EncodeDecoder
	// create opens a new file, failing if it exists.
	create func(path string) (*os.File, error)
}

func createExclusive(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
}

/*
NewFileStore returns a BundleStore keeping each bundle in its own file
<id>.arb under dir, which is created if missing.
*/
func NewFileStore(dir string, encdec EncodeDecoder) (BundleStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrapf(err, "creating bundle directory %s", dir)
	}
	return &fileStore{dir: dir, encdec: encdec, create: createExclusive}, nil
}

func (fs *fileStore) Create(ctx context.Context, b *forest.Bundle) (string, error) {
	data, err := fs.encdec.Encode(b)
	if err != nil {
		return "", errors.Wrap(err, "creating bundle: encoding bundle")
	}
	for {
		if err = ctx.Err(); err != nil {
			return "", err
		}
		id := NewID()
		path := fs.path(id)
		f, err := fs.create(path)
		if os.IsExist(err) {
			continue
		}
		if err != nil {
			return "", errors.Wrap(err, "creating bundle file")
		}
		_, err = f.Write(data)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			os.Remove(path)
			return "", errors.Wrapf(err, "writing bundle %q", id)
		}
		return id, nil
	}
}

func (fs *fileStore) Get(ctx context.Context, id string) (*forest.Bundle, error) {
	if err := validID(id); err != nil {
		return nil, err
	}
	data, err := ioutil.ReadFile(fs.path(id))
	if os.IsNotExist(err) {
		return nil, errors.Wrapf(ErrNotFound, "bundle %q", id)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "retrieving bundle %q", id)
	}
	b, err := fs.encdec.Decode(data)
	if err != nil {
		return nil, errors.Wrapf(err, "retrieving bundle %q: decoding", id)
	}
	return b, nil
}

func (fs *fileStore) Store(ctx context.Context, id string, b *forest.Bundle) error {
	if err := validID(id); err != nil {
		return err
	}
	data, err := fs.encdec.Encode(b)
	if err != nil {
		return errors.Wrapf(err, "storing bundle %q: encoding bundle", id)
	}
	tmp := fs.path(id) + ".tmp"
	if err = ioutil.WriteFile(tmp, data, 0644); err != nil {
		os.Remove(tmp)
		return errors.Wrapf(err, "storing bundle %q", id)
	}
	if err = os.Rename(tmp, fs.path(id)); err != nil {
		os.Remove(tmp)
		return errors.Wrapf(err, "storing bundle %q", id)
	}
	return nil
}

func (fs *fileStore) Delete(ctx context.Context, id string) error {
	if err := validID(id); err != nil {
		return err
	}
	err := os.Remove(fs.path(id))
	if os.IsNotExist(err) {
		return errors.Wrapf(ErrNotFound, "bundle %q", id)
	}
	return errors.Wrapf(err, "deleting bundle %q", id)
}

func (fs *fileStore) Close(ctx context.Context) error {
	return nil
}

func (fs *fileStore) path(id string) string {
	return filepath.Join(fs.dir, id+FileExt)
}

func validID(id string) error {
	if id == "" || strings.ContainsAny(id, `/\`) || strings.HasPrefix(id, ".") {
		return errors.Errorf("invalid bundle id %q", id)
	}
	return nil
}
