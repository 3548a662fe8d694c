//go:build !unix

package localrepo

import (
	"context"
	"os"
	"time"
)

const (
	lockPollInterval = 50 * time.Millisecond
	staleLockAge     = 10 * time.Minute
)

// lockFile creates path exclusively, polling until it succeeds or ctx is
// done. Lock files older than staleLockAge are considered abandoned.
func lockFile(ctx context.Context, path string) (func(), error) {
	for {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			f.Close()
			return func() { os.Remove(path) }, nil
		}
		if !os.IsExist(err) {
			return nil, err
		}
		if info, serr := os.Stat(path); serr == nil && time.Since(info.ModTime()) > staleLockAge {
			os.Remove(path)
			continue
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockPollInterval):
		}
	}
}
