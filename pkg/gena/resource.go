package gena

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// OpenMode selects how a provider resource is opened.
type OpenMode int

const (
	OpenRead OpenMode = iota
	OpenWrite
)

// FileInfo describes a provider resource.
type FileInfo struct {
	Size     int64
	MimeType string
	ModTime  time.Time
}

// File is an open provider resource.
type File interface {
	io.Reader
	io.Writer
	io.Seeker
	io.Closer
}

// Provider resolves request paths to resources.
type Provider interface {
	Info(path string) (FileInfo, error)
	Open(path string, mode OpenMode) (File, error)
}

// virtualFile is a read-only in-memory resource.
type virtualFile struct {
	r *bytes.Reader
}

// NewVirtualFile exposes data as a read-only File.
func NewVirtualFile(data []byte) File {
	return &virtualFile{r: bytes.NewReader(data)}
}

func (v *virtualFile) Read(p []byte) (int, error) { return v.r.Read(p) }

func (v *virtualFile) Write([]byte) (int, error) { return 0, ErrReadOnly }

// Seek clamps the resulting offset to [0, size].
func (v *virtualFile) Seek(offset int64, whence int) (int64, error) {
	size := v.r.Size()
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = size - int64(v.r.Len()) + offset
	case io.SeekEnd:
		abs = size + offset
	default:
		return 0, fmt.Errorf("seek: invalid whence %d", whence)
	}
	abs = min(max(abs, 0), size)
	return v.r.Seek(abs, io.SeekStart)
}

func (v *virtualFile) Close() error { return nil }

// Resource is an open file plus the metadata the server sends with it.
type Resource struct {
	File
	Info   FileInfo
	offset int64
}

// SeekTo moves to off, clamped to the resource size.
func (r *Resource) SeekTo(off int64) (int64, error) {
	off = min(max(off, 0), r.Info.Size)
	n, err := r.File.Seek(off, io.SeekStart)
	if err != nil {
		return r.offset, err
	}
	r.offset = n
	return n, nil
}

// Offset is the current read position.
func (r *Resource) Offset() int64 { return r.offset }

// ByteRange is an inclusive byte range over a resource of Size bytes.
type ByteRange struct {
	Start   int64
	Stop    int64
	Size    int64
	Partial bool
}

// WholeRange covers the entire resource.
func WholeRange(size int64) ByteRange {
	return ByteRange{Start: 0, Stop: size - 1, Size: size}
}

// Length is the number of bytes in the range.
func (b ByteRange) Length() int64 {
	if b.Size == 0 {
		return 0
	}
	return b.Stop - b.Start + 1
}

// ContentRange formats the Content-Range header value.
func (b ByteRange) ContentRange() string {
	return fmt.Sprintf("bytes %d-%d/%d", b.Start, b.Stop, b.Size)
}

// ParseRange resolves a "bytes=start-[stop]" header against size. Absent,
// malformed, inverted and out-of-bounds ranges resolve to the whole resource.
func ParseRange(header string, size int64) ByteRange {
	whole := WholeRange(size)

	header = strings.TrimSpace(header)
	if header == "" || size <= 0 {
		return whole
	}
	set, ok := strings.CutPrefix(header, "bytes=")
	if !ok || strings.Contains(set, ",") {
		return whole
	}
	first, last, ok := strings.Cut(set, "-")
	if !ok {
		return whole
	}

	start, err := strconv.ParseInt(strings.TrimSpace(first), 10, 64)
	if err != nil || start < 0 {
		return whole
	}
	stop := size - 1
	if last = strings.TrimSpace(last); last != "" {
		stop, err = strconv.ParseInt(last, 10, 64)
		if err != nil {
			return whole
		}
	}
	if stop < start || stop >= size {
		return whole
	}

	return ByteRange{Start: start, Stop: stop, Size: size, Partial: true}
}
