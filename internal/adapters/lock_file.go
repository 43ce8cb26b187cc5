package adapters

import (
	"fmt"
	"os"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"gopkg.in/yaml.v3"

	"quarry-packages/internal/ports"
	"quarry-packages/internal/types"
)

const lockFileHeader = "# Written by quarry-packages. Edits are overwritten on the next resolve.\n"

type LockFileAdapter struct{}

func NewLockFileAdapter() LockFileAdapter {
	return LockFileAdapter{}
}

func (a LockFileAdapter) WriteLock(path string, lock types.LockFile) error {
	data, err := yaml.Marshal(lock)
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to encode lock file").
			WithCause(err)
	}
	content := append([]byte(lockFileHeader), data...)
	if err := os.WriteFile(path, content, 0644); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("failed to write lock file %s", path)).
			WithCause(err)
	}
	return nil
}

func (a LockFileAdapter) ReadLock(path string) (types.LockFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.LockFile{}, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("lock file %s not found", path)).
			WithCause(err)
	}
	var lock types.LockFile
	if err := yaml.Unmarshal(data, &lock); err != nil {
		return types.LockFile{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("failed to parse lock file %s", path)).
			WithCause(err)
	}
	return lock, nil
}

var _ ports.LockPort = LockFileAdapter{}
