package kvstore

import (
	"errors"

	"golang.org/x/sys/unix"
)

// timeMachineExcludeValue is the binary plist string "com.apple.backupd",
// the value tmutil writes for a sticky exclusion.
var timeMachineExcludeValue = []byte(
	"bplist00" +
		"\x5f\x10\x11com.apple.backupd" +
		"\x08" +
		"\x00\x00\x00\x00\x00\x00\x01\x01" +
		"\x00\x00\x00\x00\x00\x00\x00\x01" +
		"\x00\x00\x00\x00\x00\x00\x00\x00" +
		"\x00\x00\x00\x00\x00\x00\x00\x1c",
)

// xattrExcluder sets the Time Machine exclusion attribute.
type xattrExcluder struct{}

func (xattrExcluder) ExcludeFromBackup(path string) error {
	err := unix.Setxattr(path, "com.apple.metadata:com_apple_backup_excludeItem", timeMachineExcludeValue, 0)
	if errors.Is(err, unix.ENOTSUP) {
		return nil
	}
	return err
}

func defaultBackupExcluder() BackupExcluder { return xattrExcluder{} }
