package hostfunc

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"
)

// MountMode defines the permission level for a mount point.
type MountMode int

const (
	// MountReadOnly allows only read operations.
	MountReadOnly MountMode = iota
	// MountReadWrite allows read and write operations to existing files/dirs.
	MountReadWrite
	// MountReadWriteCreate allows read, write, and create operations.
	MountReadWriteCreate
)

func (m MountMode) String() string {
	switch m {
	case MountReadOnly:
		return "ro"
	case MountReadWrite:
		return "rw"
	case MountReadWriteCreate:
		return "rwc"
	default:
		return fmt.Sprintf("MountMode(%d)", int(m))
	}
}

// ParseMountMode accepts "ro", "rw" and "rwc".
func ParseMountMode(s string) (MountMode, error) {
	switch s {
	case "ro":
		return MountReadOnly, nil
	case "rw":
		return MountReadWrite, nil
	case "rwc":
		return MountReadWriteCreate, nil
	}
	return 0, fmt.Errorf("invalid mount mode %q (want ro, rw or rwc)", s)
}

// Mount represents a virtual path mapped to a host path with specific permissions.
type Mount struct {
	VirtualPath string    // Path as seen by sandboxed code (e.g., "/data")
	HostPath    string    // Actual path on host filesystem
	Mode        MountMode // Permission level
}

// ParseMount parses "virtual:host:mode", e.g. "/data:./input:ro".
func ParseMount(spec string) (Mount, error) {
	parts := strings.Split(spec, ":")
	if len(parts) != 3 {
		return Mount{}, fmt.Errorf("invalid mount %q (want virtual:host:mode)", spec)
	}
	mode, err := ParseMountMode(parts[2])
	if err != nil {
		return Mount{}, err
	}
	return Mount{VirtualPath: parts[0], HostPath: parts[1], Mode: mode}, nil
}

const (
	DefaultMaxFileSize   = 10 << 20 // 10MB
	DefaultMaxWriteSize  = 10 << 20
	DefaultMaxPathLength = 4096
)

type fsConfig struct {
	maxFileSize   int64
	maxWriteSize  int64
	maxPathLength int
}

// FSOption configures an FS.
type FSOption func(*fsConfig)

func WithMaxFileSize(n int64) FSOption {
	return func(c *fsConfig) { c.maxFileSize = n }
}

func WithMaxWriteSize(n int64) FSOption {
	return func(c *fsConfig) { c.maxWriteSize = n }
}

func WithMaxPathLength(n int) FSOption {
	return func(c *fsConfig) { c.maxPathLength = n }
}

// FS provides filesystem operations with explicit mount points.
type FS struct {
	cfg    fsConfig
	mounts []Mount
}

// NewFS creates a filesystem handler with the given mount points. Virtual
// paths are normalized and must be unique.
func NewFS(mounts []Mount, opts ...FSOption) (*FS, error) {
	cfg := fsConfig{
		maxFileSize:   DefaultMaxFileSize,
		maxWriteSize:  DefaultMaxWriteSize,
		maxPathLength: DefaultMaxPathLength,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	normalized := make([]Mount, 0, len(mounts))
	seen := make(map[string]bool, len(mounts))
	for _, m := range mounts {
		vp := "/" + strings.Trim(m.VirtualPath, "/")
		if vp == "/" {
			return nil, fmt.Errorf("mount %q: virtual path must not be the root", m.VirtualPath)
		}
		if seen[vp] {
			return nil, fmt.Errorf("mount %q: duplicate virtual path", vp)
		}
		seen[vp] = true

		hp, err := filepath.Abs(m.HostPath)
		if err != nil {
			return nil, fmt.Errorf("mount %q: %w", vp, err)
		}
		normalized = append(normalized, Mount{VirtualPath: vp, HostPath: hp, Mode: m.Mode})
	}
	return &FS{cfg: cfg, mounts: normalized}, nil
}

// Mounts returns the normalized mount table.
func (f *FS) Mounts() []Mount {
	return append([]Mount(nil), f.mounts...)
}

// resolve maps a virtual path to a host path inside its mount.
func (f *FS) resolve(virtualPath string) (string, *Mount, error) {
	if virtualPath == "" {
		return "", nil, errors.New("path required")
	}
	if f.cfg.maxPathLength > 0 && len(virtualPath) > f.cfg.maxPathLength {
		return "", nil, errors.New("path exceeds max length")
	}

	vp := filepath.Clean("/" + strings.TrimPrefix(virtualPath, "/"))

	for i := range f.mounts {
		m := &f.mounts[i]
		if vp != m.VirtualPath && !strings.HasPrefix(vp, m.VirtualPath+"/") {
			continue
		}

		hostPath := filepath.Join(m.HostPath, strings.TrimPrefix(vp, m.VirtualPath))
		rel, err := filepath.Rel(m.HostPath, hostPath)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return "", nil, errors.New("permission denied: path escape attempt")
		}

		// A symlink inside the mount must not lead out of it.
		if escapesRoot(m.HostPath, hostPath) {
			return "", nil, errors.New("permission denied: path escape attempt")
		}
		return hostPath, m, nil
	}

	return "", nil, errors.New("permission denied: path not in any mount")
}

// escapesRoot reports whether hostPath, with symlinks resolved, lies outside
// root.
func escapesRoot(root, hostPath string) bool {
	realRoot, ok := realPath(root)
	if !ok {
		return true
	}
	real, ok := realPath(hostPath)
	if !ok {
		return true
	}
	rel, err := filepath.Rel(realRoot, real)
	return err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// realPath resolves symlinks in p. A path that does not exist yet is
// resolved through its deepest existing ancestor. ok is false for a
// dangling symlink on the way or an unexpected lookup error.
func realPath(p string) (string, bool) {
	existing, rest := filepath.Clean(p), ""
	for {
		real, err := filepath.EvalSymlinks(existing)
		if err == nil {
			return filepath.Join(real, rest), true
		}
		if !os.IsNotExist(err) && !errors.Is(err, syscall.ENOTDIR) {
			return "", false
		}
		if _, err := os.Lstat(existing); err == nil {
			return "", false
		}
		parent := filepath.Dir(existing)
		if parent == existing {
			return filepath.Join(existing, rest), true
		}
		rest = filepath.Join(filepath.Base(existing), rest)
		existing = parent
	}
}

func (f *FS) resolveWrite(virtualPath string) (string, *Mount, error) {
	hostPath, m, err := f.resolve(virtualPath)
	if err != nil {
		return "", nil, err
	}
	if m.Mode == MountReadOnly {
		return "", nil, errors.New("permission denied: read-only mount")
	}
	return hostPath, m, nil
}

// Read returns the contents of a file.
func (f *FS) Read(ctx context.Context, req FSReadRequest) (any, error) {
	hostPath, _, err := f.resolve(req.Path)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(hostPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("file not found: " + req.Path)
		}
		return nil, errors.New("read error: " + err.Error())
	}
	if info.IsDir() {
		return nil, errors.New("is a directory: " + req.Path)
	}
	if f.cfg.maxFileSize > 0 && info.Size() > f.cfg.maxFileSize {
		return nil, fmt.Errorf("file exceeds max size of %d bytes", f.cfg.maxFileSize)
	}

	data, err := os.ReadFile(hostPath)
	if err != nil {
		return nil, errors.New("read error: " + err.Error())
	}
	return string(data), nil
}

// Write writes content to a file. New files require MountReadWriteCreate.
func (f *FS) Write(ctx context.Context, req FSWriteRequest) (any, error) {
	hostPath, m, err := f.resolveWrite(req.Path)
	if err != nil {
		return nil, err
	}
	if f.cfg.maxWriteSize > 0 && int64(len(req.Content)) > f.cfg.maxWriteSize {
		return nil, fmt.Errorf("content exceeds max write size of %d bytes", f.cfg.maxWriteSize)
	}

	if _, statErr := os.Stat(hostPath); os.IsNotExist(statErr) && m.Mode != MountReadWriteCreate {
		return nil, errors.New("permission denied: cannot create new files")
	}

	if err := os.WriteFile(hostPath, []byte(req.Content), 0o644); err != nil {
		return nil, errors.New("write error: " + err.Error())
	}
	return "ok", nil
}

// List returns the contents of a directory.
func (f *FS) List(ctx context.Context, req FSListRequest) (any, error) {
	hostPath, _, err := f.resolve(req.Path)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(hostPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("directory not found: " + req.Path)
		}
		return nil, errors.New("list error: " + err.Error())
	}

	result := make([]FSEntry, 0, len(entries))
	for _, entry := range entries {
		item := FSEntry{Name: entry.Name(), IsDir: entry.IsDir()}
		if info, err := entry.Info(); err == nil {
			item.Size = info.Size()
		}
		result = append(result, item)
	}
	return result, nil
}

// Exists reports whether a path exists. Paths outside every mount do not
// exist from the sandbox's point of view.
func (f *FS) Exists(ctx context.Context, req FSExistsRequest) (any, error) {
	hostPath, _, err := f.resolve(req.Path)
	if err != nil {
		return false, nil
	}
	_, err = os.Stat(hostPath)
	return err == nil, nil
}

// Mkdir creates a directory and any missing parents.
func (f *FS) Mkdir(ctx context.Context, req FSMkdirRequest) (any, error) {
	hostPath, m, err := f.resolveWrite(req.Path)
	if err != nil {
		return nil, err
	}
	if m.Mode != MountReadWriteCreate {
		return nil, errors.New("permission denied: cannot create directories")
	}

	if err := os.MkdirAll(hostPath, 0o755); err != nil {
		return nil, errors.New("mkdir error: " + err.Error())
	}
	return "ok", nil
}

// Remove deletes a file or empty directory. Mount roots cannot be removed.
func (f *FS) Remove(ctx context.Context, req FSRemoveRequest) (any, error) {
	hostPath, m, err := f.resolveWrite(req.Path)
	if err != nil {
		return nil, err
	}
	if hostPath == m.HostPath {
		return nil, errors.New("permission denied: cannot remove mount root")
	}

	if err := os.Remove(hostPath); err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("file not found: " + req.Path)
		}
		if errors.Is(err, syscall.ENOTEMPTY) || errors.Is(err, syscall.EEXIST) {
			return nil, errors.New("directory not empty: " + req.Path)
		}
		return nil, errors.New("remove error: " + err.Error())
	}
	return "ok", nil
}

// Stat returns information about a file or directory.
func (f *FS) Stat(ctx context.Context, req FSStatRequest) (any, error) {
	hostPath, _, err := f.resolve(req.Path)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(hostPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("file not found: " + req.Path)
		}
		return nil, errors.New("stat error: " + err.Error())
	}

	return &FSStatResponse{
		Name:    info.Name(),
		Size:    info.Size(),
		IsDir:   info.IsDir(),
		ModTime: info.ModTime().Unix(),
	}, nil
}
