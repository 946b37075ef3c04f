package blob

import (
	"ritual/internal/infra/blob/fs"
)

// NewFilesystem returns a Store rooted at root, creating the directory.
func NewFilesystem(root string) (Store, error) {
	s, err := fs.New(root)
	if err != nil {
		return nil, err
	}
	return s, nil
}
