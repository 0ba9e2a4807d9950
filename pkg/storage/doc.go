// Package storage writes the CSV artifact of a scrape.
//
// Files are written to a temporary sibling and renamed into place, so a
// reader never observes a partially written CSV. Encoding uses standard CSV
// quoting with "\n" line endings and is byte-for-byte deterministic.
//
// Usage:
//
//	manager, err := storage.NewManager(cfg.Output.Directory)
//	path, err := manager.WriteCSV(storage.DefaultFileName(time.Now()), posts.Header(), posts.Records(rows))
package storage
