package syscalls

import (
	"errors"
	"io"
	"os"
	"sync"
	"time"
)

// FD table errors.
var (
	// ErrBadFD is returned for descriptors that are not open.
	ErrBadFD = errors.New("bad file descriptor")
	// ErrNotSeekable is returned when seeking a standard stream.
	ErrNotSeekable = errors.New("descriptor is not seekable")
)

// Standard stream descriptors.
const (
	Stdin  uint64 = 0
	Stdout uint64 = 1
	Stderr uint64 = 2
)

// Stdio holds the host streams behind guest descriptors 0, 1 and 2. A nil
// Stdin reads as end of file; nil writers discard output.
type Stdio struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// HostStdio returns the streams of the host process.
func HostStdio() Stdio {
	return Stdio{Stdin: os.Stdin, Stdout: os.Stdout, Stderr: os.Stderr}
}

// FileDescriptor represents an open file descriptor.
type FileDescriptor struct {
	HostFile *os.File // Host file handle (nil for standard streams)
	Path     string   // Host path, or the stream name
	Flags    int      // Host open flags
}

// FDTable manages guest file descriptors for syscall emulation.
type FDTable struct {
	mu    sync.Mutex
	fds   map[uint64]*FileDescriptor
	stdio Stdio
}

// NewFDTable creates a table with descriptors 0, 1 and 2 bound to stdio.
func NewFDTable(stdio Stdio) *FDTable {
	t := &FDTable{
		fds:   make(map[uint64]*FileDescriptor),
		stdio: stdio,
	}

	t.fds[Stdin] = &FileDescriptor{Path: "stdin", Flags: os.O_RDONLY}
	t.fds[Stdout] = &FileDescriptor{Path: "stdout", Flags: os.O_WRONLY}
	t.fds[Stderr] = &FileDescriptor{Path: "stderr", Flags: os.O_WRONLY}

	return t
}

// Open opens a host file on the lowest free descriptor.
func (t *FDTable) Open(path string, flags int, mode os.FileMode) (uint64, error) {
	hostFile, err := os.OpenFile(path, flags, mode)
	if err != nil {
		return 0, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	fd := uint64(0)
	for {
		if _, used := t.fds[fd]; !used {
			break
		}
		fd++
	}

	t.fds[fd] = &FileDescriptor{HostFile: hostFile, Path: path, Flags: flags}
	return fd, nil
}

// Close closes a descriptor. Closing a standard stream only unbinds it.
func (t *FDTable) Close(fd uint64) error {
	t.mu.Lock()
	entry, ok := t.fds[fd]
	if ok {
		delete(t.fds, fd)
	}
	t.mu.Unlock()

	if !ok {
		return ErrBadFD
	}
	if entry.HostFile != nil {
		return entry.HostFile.Close()
	}
	return nil
}

// CloseAll closes every host file.
func (t *FDTable) CloseAll() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for fd, entry := range t.fds {
		if entry.HostFile != nil {
			_ = entry.HostFile.Close()
		}
		delete(t.fds, fd)
	}
}

// Get returns the entry of an open descriptor.
func (t *FDTable) Get(fd uint64) (*FileDescriptor, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.fds[fd]
	return entry, ok
}

// IsOpen checks if a file descriptor is open.
func (t *FDTable) IsOpen(fd uint64) bool {
	_, ok := t.Get(fd)
	return ok
}

// Read reads from a descriptor into buf.
func (t *FDTable) Read(fd uint64, buf []byte) (int, error) {
	entry, ok := t.Get(fd)
	if !ok {
		return 0, ErrBadFD
	}

	if entry.HostFile == nil {
		if fd != Stdin {
			return 0, ErrBadFD
		}
		if t.stdio.Stdin == nil {
			return 0, io.EOF
		}
		return t.stdio.Stdin.Read(buf)
	}

	return entry.HostFile.Read(buf)
}

// Write writes buf to a descriptor.
func (t *FDTable) Write(fd uint64, buf []byte) (int, error) {
	entry, ok := t.Get(fd)
	if !ok {
		return 0, ErrBadFD
	}

	if entry.HostFile == nil {
		var w io.Writer
		switch fd {
		case Stdout:
			w = t.stdio.Stdout
		case Stderr:
			w = t.stdio.Stderr
		default:
			return 0, ErrBadFD
		}
		if w == nil {
			return len(buf), nil
		}
		return w.Write(buf)
	}

	return entry.HostFile.Write(buf)
}

// Stat returns file information for a descriptor.
func (t *FDTable) Stat(fd uint64) (os.FileInfo, error) {
	entry, ok := t.Get(fd)
	if !ok {
		return nil, ErrBadFD
	}

	if entry.HostFile == nil {
		return &stdioFileInfo{name: entry.Path}, nil
	}

	return entry.HostFile.Stat()
}

// Seek sets the file position of a descriptor.
func (t *FDTable) Seek(fd uint64, offset int64, whence int) (int64, error) {
	entry, ok := t.Get(fd)
	if !ok {
		return 0, ErrBadFD
	}

	if entry.HostFile == nil {
		return 0, ErrNotSeekable
	}

	return entry.HostFile.Seek(offset, whence)
}

// stdioFileInfo describes a standard stream as a character device.
type stdioFileInfo struct {
	name string
}

func (f *stdioFileInfo) Name() string       { return f.name }
func (f *stdioFileInfo) Size() int64        { return 0 }
func (f *stdioFileInfo) Mode() os.FileMode  { return os.ModeDevice | os.ModeCharDevice | 0o620 }
func (f *stdioFileInfo) ModTime() time.Time { return time.Time{} }
func (f *stdioFileInfo) IsDir() bool        { return false }
func (f *stdioFileInfo) Sys() any           { return nil }
