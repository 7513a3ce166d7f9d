package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// LocalStorage keeps blobs on the local filesystem under a configured root.
// Each blob lives at root/fragment/name, where the fragment is a short
// per-file directory derived from the file id at upload time.
type LocalStorage struct {
	basePath string
}

func NewLocalStorage(basePath string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, os.ModePerm); err != nil {
		return nil, err
	}
	return &LocalStorage{basePath: basePath}, nil
}

// PathFragment derives the directory fragment for a file id. The two-char
// prefix fans directories out; the full id keeps each file's directory
// unique, so equal file names never collide.
func PathFragment(id string) string {
	if len(id) < 2 {
		return id
	}
	return filepath.Join(id[0:2], id)
}

func (ls *LocalStorage) blobPath(fragment, name string) string {
	return filepath.Join(ls.basePath, fragment, filepath.Base(name))
}

func (ls *LocalStorage) Save(fragment, name string, data io.Reader) error {
	filePath := ls.blobPath(fragment, name)

	if err := os.MkdirAll(filepath.Dir(filePath), os.ModePerm); err != nil {
		return err
	}

	file, err := os.Create(filePath)
	if err != nil {
		return err
	}
	defer file.Close()

	_, err = io.Copy(file, data)
	return err
}

// Open returns a streaming handle to the blob.
func (ls *LocalStorage) Open(fragment, name string) (io.ReadCloser, error) {
	file, err := os.Open(ls.blobPath(fragment, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("blob %s/%s not found: %w", fragment, name, err)
		}
		return nil, err
	}

	return file, nil
}

// ReadAll returns the blob fully buffered in memory.
func (ls *LocalStorage) ReadAll(fragment, name string) ([]byte, error) {
	file, err := ls.Open(fragment, name)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return io.ReadAll(file)
}

func (ls *LocalStorage) Delete(fragment, name string) error {
	err := os.Remove(ls.blobPath(fragment, name))
	if os.IsNotExist(err) {
		return nil
	}

	return err
}
