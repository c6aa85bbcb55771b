package platform

import (
	stderrors "errors"
	"io/fs"
	"os"
	"path"
	"strings"

	"github.com/tetratelabs/wazero/sys"

	"github.com/wippyai/arm-runtime/errors"
)

// Filesystem is the read-only file view the guest sees.
type Filesystem interface {
	ReadFile(name string) ([]byte, error)
	Open(name string) (fs.File, error)
	Exists(name string) bool
}

// FSFilesystem serves guest paths from an fs.FS. Guest paths are absolute
// or relative with '/' separators and may not escape the root.
type FSFilesystem struct {
	fsys fs.FS
}

// NewFSFilesystem wraps fsys.
func NewFSFilesystem(fsys fs.FS) *FSFilesystem {
	return &FSFilesystem{fsys: fsys}
}

// NewDirFilesystem serves files under the host directory root.
func NewDirFilesystem(root string) (*FSFilesystem, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, errors.HostIO("open filesystem root "+root, err)
	}
	if !info.IsDir() {
		return nil, errors.InvalidInput(errors.PhaseHost, root+" is not a directory")
	}
	return NewFSFilesystem(os.DirFS(root)), nil
}

func clean(name string) (string, error) {
	name = strings.ReplaceAll(name, "\\", "/")
	p := path.Clean("/" + name)[1:]
	if p == "" {
		p = "."
	}
	if !fs.ValidPath(p) {
		return "", errors.InvalidInput(errors.PhaseHost, "invalid path "+name)
	}
	return p, nil
}

// ReadFile returns the contents of name.
func (f *FSFilesystem) ReadFile(name string) ([]byte, error) {
	p, err := clean(name)
	if err != nil {
		return nil, err
	}
	data, err := fs.ReadFile(f.fsys, p)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return nil, errors.NotFound(errors.PhaseHost, "file", name)
		}
		return nil, errors.HostIO("read "+name, err)
	}
	debugf("read %s (%d bytes)", p, len(data))
	return data, nil
}

// Open opens name for streaming reads. Files from os.DirFS and
// fstest.MapFS support random access.
func (f *FSFilesystem) Open(name string) (fs.File, error) {
	p, err := clean(name)
	if err != nil {
		return nil, err
	}
	file, err := f.fsys.Open(p)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return nil, errors.NotFound(errors.PhaseHost, "file", name)
		}
		return nil, errors.HostIO("open "+name, err)
	}
	return file, nil
}

// Exists reports whether name exists.
func (f *FSFilesystem) Exists(name string) bool {
	p, err := clean(name)
	if err != nil {
		return false
	}
	_, err = fs.Stat(f.fsys, p)
	return err == nil
}

// Stat returns the attributes of name in wazero's portable form.
func (f *FSFilesystem) Stat(name string) (sys.Stat_t, error) {
	p, err := clean(name)
	if err != nil {
		return sys.Stat_t{}, err
	}
	info, err := fs.Stat(f.fsys, p)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return sys.Stat_t{}, errors.NotFound(errors.PhaseHost, "file", name)
		}
		return sys.Stat_t{}, errors.HostIO("stat "+name, err)
	}
	return sys.NewStat_t(info), nil
}

// ReadDir lists the entry names of a directory.
func (f *FSFilesystem) ReadDir(name string) ([]string, error) {
	p, err := clean(name)
	if err != nil {
		return nil, err
	}
	entries, err := fs.ReadDir(f.fsys, p)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return nil, errors.NotFound(errors.PhaseHost, "directory", name)
		}
		return nil, errors.HostIO("readdir "+name, err)
	}
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name()
	}
	return names, nil
}
