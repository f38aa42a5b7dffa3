package storage

import (
	"io"
	"path/filepath"

	"github.com/google/uuid"
)

// Storage is the document store boundary. Contracts and tender documents are
// opaque blobs addressed by key, the rest of the system only records keys.
type Storage interface {
	Read(path string) (io.ReadCloser, error)

	Write(path string, data io.Reader) error

	Delete(path string) error

	Exists(path string) (bool, error)

	List(path string) ([]string, error)

	Location() string
}

func ContractPath(assignmentId uuid.UUID, filename string) string {
	return filepath.Join("contracts", assignmentId.String(), filename)
}

func ContractDir(assignmentId uuid.UUID) string {
	return filepath.Join("contracts", assignmentId.String())
}

func TenderPath(uploadId uuid.UUID, filename string) string {
	return filepath.Join("tenders", uploadId.String(), filename)
}
