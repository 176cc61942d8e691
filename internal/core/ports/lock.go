package ports

// InstanceLocker guards an instance root against concurrent invocations.
//
//go:generate go run go.uber.org/mock/mockgen -source=lock.go -destination=mocks/mock_lock.go -package=mocks
type InstanceLocker interface {
	// Acquire takes the advisory lock at path without blocking.
	Acquire(path string) (InstanceLock, error)
}

// InstanceLock is a held advisory lock.
type InstanceLock interface {
	// Release drops the lock. It is safe to call more than once.
	Release() error
}
