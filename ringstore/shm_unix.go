//go:build unix

package ringstore

import (
	"errors"
	"fmt"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// CreateOrOpen maps the region file name under opts.Dir and returns the
// writer handle. An existing region is joined when its geometry matches and
// opts.Stale does not reject it; otherwise it is unlinked and recreated.
func CreateOrOpen(name string, opts Options) (*Ring, error) {
	if err := validName(name); err != nil {
		return nil, err
	}
	geo, err := opts.geometry()
	if err != nil {
		return nil, err
	}
	log := opts.logger().With("component", "ringstore-shm")
	path := filepath.Join(opts.dir(), name)

	for attempt := 0; attempt < 2; attempt++ {
		fd, err := unix.Open(path, unix.O_RDWR|unix.O_CREAT|unix.O_EXCL|unix.O_CLOEXEC, uint32(opts.perm().Perm()))
		if err == nil {
			mem, err := createMapping(fd, geo.size())
			if err != nil {
				_ = unix.Unlink(path)
				return nil, fmt.Errorf("ringstore: create %s: %w", path, err)
			}
			format(mem, geo, opts.Flags)
			log.Info("region created", "path", path, "items", geo.itemCount, "item_len", geo.itemLen)
			return newRing(name, mem, geo, true, false, opts.logger(), munmapper(mem)), nil
		}
		if !errors.Is(err, unix.EEXIST) {
			return nil, fmt.Errorf("ringstore: create %s: %w", path, err)
		}

		mem, existing, err := mapExisting(path)
		if err == nil {
			stale := opts.Stale != nil && opts.Stale(headerOf(mem, existing))
			if existing == geo && !stale {
				log.Info("region joined", "path", path)
				return newRing(name, mem, geo, false, false, opts.logger(), munmapper(mem)), nil
			}
			_ = unix.Munmap(mem)
			log.Info("recreating region", "path", path, "stale", stale)
		} else {
			log.Warn("discarding unreadable region", "path", path, "error", err)
		}
		if err := unix.Unlink(path); err != nil && !errors.Is(err, unix.ENOENT) {
			return nil, fmt.Errorf("ringstore: unlink %s: %w", path, err)
		}
	}
	return nil, fmt.Errorf("ringstore: create %s: lost creation race", path)
}

// Open maps an existing region as a reader. It returns ErrNotFound when the
// file does not exist and ErrNotInitialized while its creator is still
// formatting it.
func Open(name string, opts Options) (*Ring, error) {
	if err := validName(name); err != nil {
		return nil, err
	}
	path := filepath.Join(opts.dir(), name)
	mem, geo, err := mapExisting(path)
	if err != nil {
		return nil, err
	}
	return newRing(name, mem, geo, false, true, opts.logger(), munmapper(mem)), nil
}

// RemoveFromKernel unlinks the region file. Existing mappings stay valid
// until closed. A missing file is not an error.
func RemoveFromKernel(name string, dir string) error {
	if err := validName(name); err != nil {
		return err
	}
	path := filepath.Join(Options{Dir: dir}.dir(), name)
	if err := unix.Unlink(path); err != nil && !errors.Is(err, unix.ENOENT) {
		return fmt.Errorf("ringstore: unlink %s: %w", path, err)
	}
	return nil
}

func createMapping(fd, size int) ([]byte, error) {
	defer unix.Close(fd)
	if err := unix.Ftruncate(fd, int64(size)); err != nil {
		return nil, fmt.Errorf("ftruncate: %w", err)
	}
	mem, err := unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap: %w", err)
	}
	return mem, nil
}

func mapExisting(path string) ([]byte, geometry, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		if errors.Is(err, unix.ENOENT) {
			return nil, geometry{}, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, geometry{}, fmt.Errorf("ringstore: open %s: %w", path, err)
	}
	defer unix.Close(fd)

	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		return nil, geometry{}, fmt.Errorf("ringstore: stat %s: %w", path, err)
	}
	if st.Size < controlSize {
		return nil, geometry{}, fmt.Errorf("%w: %s is %d bytes", ErrNotInitialized, path, st.Size)
	}
	mem, err := unix.Mmap(fd, 0, int(st.Size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, geometry{}, fmt.Errorf("ringstore: mmap %s: %w", path, err)
	}
	geo, err := inspect(mem)
	if err != nil {
		_ = unix.Munmap(mem)
		return nil, geometry{}, fmt.Errorf("%w: %s", err, path)
	}
	return mem, geo, nil
}

func munmapper(mem []byte) func() error {
	return func() error { return unix.Munmap(mem) }
}
