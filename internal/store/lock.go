package store

import (
	"errors"
	"os"
	"sync"
	"time"
)

const (
	defaultLockTimeout = 2 * time.Second
	lockRetryInterval  = 20 * time.Millisecond
)

var ErrLockTimeout = errors.New("cache file is locked by another process")

// fileLock guards one cache document across dya processes through a sibling
// .lock file: shared while loading, exclusive while replacing it.
type fileLock struct {
	path    string
	timeout time.Duration

	mu   sync.Mutex
	file *os.File
}

func newFileLock(path string) *fileLock {
	return &fileLock{path: path + ".lock", timeout: defaultLockTimeout}
}

func (l *fileLock) Lock() error  { return l.acquire(true) }
func (l *fileLock) RLock() error { return l.acquire(false) }

// acquire polls until the lock is free or the timeout passes.
func (l *fileLock) acquire(exclusive bool) error {
	l.mu.Lock()

	file, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		l.mu.Unlock()
		return err
	}

	deadline := time.Now().Add(l.timeout)
	for {
		ok, err := tryLock(file, exclusive)
		if ok {
			l.file = file
			return nil
		}
		if err == nil && time.Now().After(deadline) {
			err = ErrLockTimeout
		}
		if err != nil {
			_ = file.Close()
			l.mu.Unlock()
			return err
		}
		time.Sleep(lockRetryInterval)
	}
}

func (l *fileLock) Unlock() error {
	if l.file == nil {
		return nil
	}

	err := unlock(l.file)
	_ = l.file.Close()
	l.file = nil
	l.mu.Unlock()

	return err
}
