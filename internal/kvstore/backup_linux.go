package kvstore

import (
	"errors"

	"golang.org/x/sys/unix"
)

// xattrExcluder sets the freedesktop backup attribute honoured by
// Linux backup tools.
type xattrExcluder struct{}

func (xattrExcluder) ExcludeFromBackup(path string) error {
	err := unix.Setxattr(path, "user.xdg.robots.backup", []byte("false"), 0)
	if errors.Is(err, unix.ENOTSUP) {
		return nil
	}
	return err
}

func defaultBackupExcluder() BackupExcluder { return xattrExcluder{} }
