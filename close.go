package kvgo

// Close persists the header page and releases the underlying file.
// Calling Close more than once is safe; subsequent calls return nil.
//
// Header persistence is best-effort. When it fails the store file is
// still closed and the error is only logged: everything the last
// persisted header accounts for reopens intact, and pages written
// after it are leaked, not corrupted.
func (s *Store) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	if !s.readOnly {
		if err := s.pf.PersistHeader(); err != nil {
			s.logger.Warn("failed to persist store header",
				"path", s.path,
				"error", err,
			)
		}
	}

	err := s.pf.Close()
	if err != nil {
		err = translateError(err)
	}
	s.logger.LogClose(s.path, err)
	return err
}
