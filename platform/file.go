package platform

import (
	stderrors "errors"
	"io"
	"io/fs"
	"sync"

	"github.com/wippyai/arm-runtime/errors"
)

// File is a guest file open for reading. Reads start at a position that
// Seek moves; the position may pass the end, where reads return nothing.
// A File may be read from an I/O goroutine while the scheduler runs other
// tasks, so its methods are safe for concurrent use.
type File struct {
	f    fs.File
	name string
	size int64
	pos  int64
	mu   sync.Mutex
}

// OpenFile opens name through the filesystem.
func OpenFile(fsys Filesystem, name string) (*File, error) {
	f, err := fsys.Open(name)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, errors.HostIO("stat "+name, err)
	}
	if info.IsDir() {
		_ = f.Close()
		return nil, errors.InvalidInput(errors.PhaseHost, name+" is a directory")
	}
	if _, ok := f.(io.ReaderAt); !ok {
		if _, ok := f.(io.Seeker); !ok {
			_ = f.Close()
			return nil, errors.Unsupported(errors.PhaseHost, "file "+name+" is not seekable")
		}
	}
	debugf("open %s (%d bytes)", name, info.Size())
	return &File{f: f, name: name, size: info.Size()}, nil
}

// Name returns the guest path the file was opened with.
func (f *File) Name() string { return f.name }

// Size returns the file size in bytes.
func (f *File) Size() int64 { return f.size }

// Pos returns the current read position.
func (f *File) Pos() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pos
}

// Seek sets the read position.
func (f *File) Seek(pos int64) error {
	if pos < 0 {
		return errors.InvalidInput(errors.PhaseHost, "negative file position")
	}
	f.mu.Lock()
	f.pos = pos
	f.mu.Unlock()
	return nil
}

// Read fills p from the current position and advances it by the number of
// bytes read. It returns fewer than len(p) bytes only at the end of the
// file.
func (f *File) Read(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pos >= f.size || len(p) == 0 {
		return 0, nil
	}

	var n int
	var err error
	if ra, ok := f.f.(io.ReaderAt); ok {
		n, err = ra.ReadAt(p, f.pos)
	} else {
		if _, err = f.f.(io.Seeker).Seek(f.pos, io.SeekStart); err == nil {
			n, err = io.ReadFull(f.f, p)
		}
	}
	f.pos += int64(n)
	if err != nil && !stderrors.Is(err, io.EOF) && !stderrors.Is(err, io.ErrUnexpectedEOF) {
		return n, errors.HostIO("read "+f.name, err)
	}
	return n, nil
}

// Drop closes the underlying file.
func (f *File) Drop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.f.Close(); err != nil {
		return errors.HostIO("close "+f.name, err)
	}
	return nil
}
