package workspace

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/bskracic/langs-executor/apperr"
	uuid "github.com/satori/go.uuid"
)

const (
	dirMode  = 0700
	fileMode = 0644
)

// Workspace is a per-request temporary directory on the host. It outlives
// all execution units of its request and is never shared.
type Workspace struct {
	dir string
}

// Create makes a fresh workspace under root, or the system temp dir when
// root is empty.
func Create(root string) (*Workspace, error) {
	if root != "" {
		if err := os.MkdirAll(root, dirMode); err != nil {
			return nil, apperr.Wrapf(err, apperr.StagingFailure, "create workspace root: %v", err)
		}
	}
	dir, err := os.MkdirTemp(root, "exec-"+uuid.NewV4().String()+"-")
	if err != nil {
		return nil, apperr.Wrapf(err, apperr.StagingFailure, "create workspace: %v", err)
	}
	if err := os.Chmod(dir, dirMode); err != nil {
		_ = os.RemoveAll(dir)
		return nil, apperr.Wrapf(err, apperr.StagingFailure, "chmod workspace: %v", err)
	}
	return &Workspace{dir: dir}, nil
}

func (w *Workspace) Dir() string {
	return w.dir
}

// WriteSource writes code under the registry's canonical file name.
func (w *Workspace) WriteSource(filename, code string) (string, error) {
	return w.write(filename, code)
}

// WriteInput writes the input for the index-th test case. The file is always
// created, even for empty input.
func (w *Workspace) WriteInput(index int, input string) (string, error) {
	return w.write(fmt.Sprintf("input-%d.txt", index), input)
}

func (w *Workspace) write(name, content string) (string, error) {
	path := filepath.Join(w.dir, name)
	if err := os.WriteFile(path, []byte(content), fileMode); err != nil {
		return "", apperr.Wrapf(err, apperr.StagingFailure, "write %s: %v", name, err)
	}
	return path, nil
}

func (w *Workspace) Remove() error {
	return os.RemoveAll(w.dir)
}
