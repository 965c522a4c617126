package storage

// SetBeforeRename installs a hook that runs just before the temp file
// replaces the target.
func SetBeforeRename(s *LocalStore, fn func(tempPath string) error) {
	s.beforeRename = fn
}
