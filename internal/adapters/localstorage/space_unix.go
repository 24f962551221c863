//go:build unix

package localstorage

import (
	"fmt"
	"syscall"
)

// FreeSpace reports the bytes available to unprivileged writers on the
// filesystem holding the output directory.
func (s *LocalStorage) FreeSpace() (int64, error) {
	var st syscall.Statfs_t
	if err := syscall.Statfs(s.outputDir, &st); err != nil {
		return 0, fmt.Errorf("failed to stat filesystem for %s: %w", s.outputDir, err)
	}
	return int64(st.Bavail) * int64(st.Bsize), nil
}
