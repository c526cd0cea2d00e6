//go:build unix

package compact

import (
	"os"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// lockFile takes an exclusive, non-blocking advisory lock on path for the
// duration of a rewrite, so two compaction runs against the same directory
// fail fast instead of racing on the same temp files. The lock is released
// by the returned func.
func lockFile(path string) (func(), error) {
	f, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return nil, errors.Wrapf(err, "compact: open %s for locking", path)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "compact: %s is already being compacted", path)
	}

	return func() {
		unix.Flock(int(f.Fd()), unix.LOCK_UN)
		f.Close()
	}, nil
}
