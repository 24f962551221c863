//go:build !unix

package localstorage

// FreeSpace reports zero on platforms without statfs; callers treat
// zero as unknown and skip the free-space check.
func (s *LocalStorage) FreeSpace() (int64, error) {
	return 0, nil
}
