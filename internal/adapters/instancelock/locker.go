// Package instancelock guards an instance root against concurrent hearth invocations.
package instancelock

import (
	"encoding/json"
	"errors"
	"os"
	"strconv"
	"sync"
	"time"

	"go.trai.ch/hearth/internal/core/domain"
	"go.trai.ch/hearth/internal/core/ports"
	"go.trai.ch/zerr"
)

// errLocked is returned by the platform layer when another process holds the lock.
var errLocked = zerr.New("lock held")

var _ ports.InstanceLocker = (*Locker)(nil)

// Holder is written into the lock file by the process holding it.
type Holder struct {
	PID        int       `json:"pid"`
	Host       string    `json:"host"`
	AcquiredAt time.Time `json:"acquiredAt"`
}

// Locker implements ports.InstanceLocker with an advisory lock file.
type Locker struct{}

// NewLocker creates a new Locker.
func NewLocker() *Locker {
	return &Locker{}
}

// Acquire takes the lock at path, failing fast with InstanceLocked when it is held.
func (l *Locker) Acquire(path string) (ports.InstanceLock, error) {
	f, err := lockFile(path)
	if err != nil {
		if errors.Is(err, errLocked) {
			holder := readHolder(path)
			msg := "instance is in use by another hearth process"
			if holder.PID != 0 {
				msg += " (pid " + strconv.Itoa(holder.PID) + ")"
			}
			return nil, domain.NewError(domain.KindInstanceLocked, msg, zerr.With(domain.ErrInstanceLockHeld, "path", path)).
				WithRemediation(domain.RemediationLocked)
		}
		return nil, zerr.With(zerr.Wrap(err, domain.ErrInstanceLockFailed.Error()), "path", path)
	}

	host, _ := os.Hostname()
	data, err := json.Marshal(Holder{PID: os.Getpid(), Host: host, AcquiredAt: time.Now().UTC()})
	if err == nil {
		if err = f.Truncate(0); err == nil {
			if _, err = f.WriteAt(data, 0); err == nil {
				err = f.Sync()
			}
		}
	}
	if err != nil {
		_ = unlockFile(f, path)
		return nil, zerr.With(zerr.Wrap(err, domain.ErrInstanceLockFailed.Error()), "path", path)
	}

	return &Lock{f: f, path: path}, nil
}

// Lock is a held instance lock.
type Lock struct {
	f    *os.File
	path string
	once sync.Once
	err  error
}

// Release drops the lock. Later calls return the first result.
func (l *Lock) Release() error {
	l.once.Do(func() {
		l.err = unlockFile(l.f, l.path)
	})
	return l.err
}

// readHolder reports who holds the lock; a zero Holder when unknown.
func readHolder(path string) Holder {
	var h Holder
	data, err := os.ReadFile(path) //nolint:gosec // Path is derived from the instance layout
	if err != nil {
		return h
	}
	_ = json.Unmarshal(data, &h)
	return h
}
