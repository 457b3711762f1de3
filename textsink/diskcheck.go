package textsink

import (
	"path/filepath"

	"golang.org/x/sys/unix"
)

// diskFreeBytes reports free space on the filesystem containing path,
// grounded on the teacher's getDiskFreeSpace (storage.go), ported from
// syscall.Statfs to golang.org/x/sys/unix.Statfs since the teacher already
// carries x/sys as an indirect dependency and unix.Statfs_t is the portable
// ecosystem wrapper rather than reaching into syscall directly.
func diskFreeBytes(path string) (int64, error) {
	dir := filepath.Dir(path)
	var stat unix.Statfs_t
	if err := unix.Statfs(dir, &stat); err != nil {
		return 0, err
	}
	return int64(stat.Bavail) * stat.Bsize, nil
}
