package ports

import "quarry-packages/internal/types"

type LockPort interface {
	WriteLock(path string, lock types.LockFile) error
	ReadLock(path string) (types.LockFile, error)
}
