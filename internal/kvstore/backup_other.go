//go:build !linux && !darwin

package kvstore

type noopExcluder struct{}

func (noopExcluder) ExcludeFromBackup(string) error { return nil }

func defaultBackupExcluder() BackupExcluder { return noopExcluder{} }
