package ringstore

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
	"unsafe"
)

// Registry holds named in-process regions. Regions outlive their handles
// until removed, like a mapped region outlives its mappings.
type Registry struct {
	log     *slog.Logger
	mu      sync.Mutex
	regions map[string]*memRegion
}

type memRegion struct {
	mem       []byte
	geo       geometry
	createdAt time.Time
}

// NewRegistry returns an empty registry. If log is nil, slog.Default() is
// used.
func NewRegistry(log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		log:     log.With("component", "ringstore-registry"),
		regions: make(map[string]*memRegion),
	}
}

// alloc returns n zeroed bytes on a 16-byte boundary, matching what a
// page-aligned mapping gives slot payloads.
func alloc(n int) []byte {
	words := make([]uint64, (n+align)/8+1)
	b := unsafe.Slice((*byte)(unsafe.Pointer(&words[0])), len(words)*8)
	off := int(-uintptr(unsafe.Pointer(&b[0])) & (align - 1))
	return b[off : off+n : off+n]
}

// CreateOrOpen returns the writer handle for name, creating the region if
// it does not exist, if its geometry differs, or if opts.Stale says the
// existing region is left over from a closed writer.
func (g *Registry) CreateOrOpen(name string, opts Options) (*Ring, error) {
	if err := validName(name); err != nil {
		return nil, err
	}
	geo, err := opts.geometry()
	if err != nil {
		return nil, err
	}
	log := opts.Logger
	if log == nil {
		log = g.log
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if reg, ok := g.regions[name]; ok {
		switch {
		case reg.geo != geo:
			g.log.Info("recreating region with new geometry", "name", name)
		case opts.Stale != nil && opts.Stale(headerOf(reg.mem, reg.geo)):
			g.log.Info("recreating stale region", "name", name)
		default:
			return newRing(name, reg.mem, reg.geo, false, false, log, nil), nil
		}
	}

	mem := alloc(geo.size())
	format(mem, geo, opts.Flags)
	g.regions[name] = &memRegion{mem: mem, geo: geo, createdAt: time.Now()}
	g.log.Info("region created", "name", name, "items", geo.itemCount, "item_len", geo.itemLen)
	return newRing(name, mem, geo, true, false, log, nil), nil
}

// Open returns a reader handle for an existing region.
func (g *Registry) Open(name string, log *slog.Logger) (*Ring, error) {
	if err := validName(name); err != nil {
		return nil, err
	}
	if log == nil {
		log = g.log
	}
	g.mu.Lock()
	reg, ok := g.regions[name]
	g.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return newRing(name, reg.mem, reg.geo, false, true, log, nil), nil
}

// Remove forgets name. Open handles keep their memory.
func (g *Registry) Remove(name string) bool {
	g.mu.Lock()
	_, ok := g.regions[name]
	delete(g.regions, name)
	g.mu.Unlock()

	if ok {
		g.log.Info("region removed", "name", name)
	}
	return ok
}

// List returns the names of all regions.
func (g *Registry) List() []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	names := make([]string, 0, len(g.regions))
	for name := range g.regions {
		names = append(names, name)
	}
	return names
}

func headerOf(mem []byte, geo geometry) []byte {
	end := controlSize + geo.headLen
	return mem[controlSize:end:end]
}
