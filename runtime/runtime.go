package runtime

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/wippyai/arm-runtime/engine"
	"github.com/wippyai/arm-runtime/errors"
	"github.com/wippyai/arm-runtime/ktf"
	"github.com/wippyai/arm-runtime/platform"
	"github.com/wippyai/arm-runtime/scheduler"
)

// pageSize is the mapping granularity for loaded images.
const pageSize = 0x1000

// Runtime bundles a guest core, its host collaborators and the host
// modules registered into it.
type Runtime struct {
	core   *engine.Core
	sys    *platform.System
	hosts  *HostRegistry
	images map[string]*Image
}

// Image is an executable placed in guest memory.
type Image struct {
	Name string
	Base uint32
	Size uint32
}

type options struct {
	tracer  trace.Tracer
	sysOpts []platform.Option
	config  engine.Config
}

// Option configures a Runtime.
type Option func(*options)

// WithConfig replaces the default core configuration.
func WithConfig(cfg engine.Config) Option { return func(o *options) { o.config = cfg } }

// WithClock sets the time source.
func WithClock(c *platform.Clock) Option {
	return func(o *options) { o.sysOpts = append(o.sysOpts, platform.WithClock(c)) }
}

// WithDatabase sets the record store database.
func WithDatabase(d *platform.Database) Option {
	return func(o *options) { o.sysOpts = append(o.sysOpts, platform.WithDatabase(d)) }
}

// WithFilesystem sets the filesystem images and resources are read from.
func WithFilesystem(f platform.Filesystem) Option {
	return func(o *options) { o.sysOpts = append(o.sysOpts, platform.WithFilesystem(f)) }
}

// WithScreen sets the display surface.
func WithScreen(s platform.Screen) Option {
	return func(o *options) { o.sysOpts = append(o.sysOpts, platform.WithScreen(s)) }
}

// WithTracer sets the tracer used for task spans.
func WithTracer(t trace.Tracer) Option { return func(o *options) { o.tracer = t } }

// New creates a runtime. The platform services module is registered
// before New returns.
func New(opts ...Option) (*Runtime, error) {
	o := options{config: engine.DefaultConfig()}
	for _, opt := range opts {
		opt(&o)
	}

	sys := platform.NewSystem(o.sysOpts...)
	var coreOpts []engine.Option
	if o.tracer != nil {
		coreOpts = append(coreOpts, engine.WithTracer(o.tracer))
	}
	core, err := engine.New(o.config, sys, coreOpts...)
	if err != nil {
		_ = sys.Close()
		return nil, errors.Load("create core", err)
	}

	r := &Runtime{
		core:   core,
		sys:    sys,
		hosts:  NewHostRegistry(core),
		images: make(map[string]*Image),
	}
	if err := r.RegisterHost(&Services{}); err != nil {
		_ = core.Close()
		return nil, err
	}
	return r, nil
}

// Close aborts unfinished tasks and releases host resources.
func (r *Runtime) Close() error {
	return r.core.Close()
}

// Core returns the guest execution core.
func (r *Runtime) Core() *engine.Core { return r.core }

// System returns the host collaborators.
func (r *Runtime) System() *platform.System { return r.sys }

// Hosts returns the host module registry.
func (r *Runtime) Hosts() *HostRegistry { return r.hosts }

// RegisterHost registers all exported methods of h as native functions.
// Method names are converted from PascalCase to kebab-case
// (CurrentTime -> current-time).
func (r *Runtime) RegisterHost(h Host) error {
	return r.hosts.RegisterHost(h)
}

// RegisterFunc registers a single native function and returns its address.
func (r *Runtime) RegisterFunc(namespace, name string, fn any) (uint32, error) {
	return r.hosts.RegisterFunc(namespace, name, fn)
}

// LoadImage maps an executable at base and copies it in. The mapping is
// rounded up to whole pages.
func (r *Runtime) LoadImage(name string, base uint32, data []byte) (*Image, error) {
	if len(data) == 0 {
		return nil, errors.InvalidInput(errors.PhaseLoad, "image "+name+" is empty")
	}
	if _, dup := r.images[name]; dup {
		return nil, errors.InvalidInput(errors.PhaseLoad, "image "+name+" already loaded")
	}
	size := (uint64(len(data)) + pageSize - 1) &^ (pageSize - 1)
	if size > uint64(r.core.Config().MemorySize) {
		return nil, errors.OutOfBounds(errors.PhaseLoad, base, uint32(len(data)), uint64(r.core.Config().MemorySize))
	}
	if err := r.core.MapNamed(name, base, uint32(size)); err != nil {
		return nil, errors.Load("map image "+name, err)
	}
	if err := r.core.Write(base, data); err != nil {
		return nil, errors.Load("write image "+name, err)
	}

	img := &Image{Name: name, Base: base, Size: uint32(size)}
	r.images[name] = img
	Logger().Debug("image loaded",
		zap.String("name", name),
		zap.Uint32("base", base),
		zap.Int("bytes", len(data)))
	return img, nil
}

// LoadFile reads an executable from the filesystem and loads it at base.
func (r *Runtime) LoadFile(path string, base uint32) (*Image, error) {
	data, err := r.sys.ReadFile(path)
	if err != nil {
		return nil, errors.Load("read image "+path, err)
	}
	return r.LoadImage(path, base, data)
}

// Image returns a loaded image by name.
func (r *Runtime) Image(name string) (*Image, bool) {
	img, ok := r.images[name]
	return img, ok
}

// Start spawns a task calling the guest function at entry.
func (r *Runtime) Start(name string, entry uint32, args ...uint32) (*scheduler.Task, error) {
	return r.core.SpawnFunction(name, entry, args...)
}

// Spawn starts a task running fn.
func (r *Runtime) Spawn(name string, fn engine.Callable) (*scheduler.Task, error) {
	return r.core.Spawn(name, fn)
}

// Boot is a KTF boot in progress. Info is valid once Task has finished
// without error.
type Boot struct {
	Task *scheduler.Task
	Info ktf.ModuleInfo
}

// BootKTF spawns a task running the vendor boot sequence on img.
func (r *Runtime) BootKTF(img *Image, bssSize uint32, env ktf.Env) (*Boot, error) {
	b := &Boot{}
	task, err := r.core.Spawn("boot "+img.Name, func(ctx context.Context, core *engine.Core) (uint32, error) {
		info, err := ktf.Init(ctx, core, ktf.Image{Base: img.Base, BSSSize: bssSize}, env)
		b.Info = info
		return 0, err
	})
	if err != nil {
		return nil, err
	}
	b.Task = task
	return b, nil
}

// Run drives all tasks until none remain.
func (r *Runtime) Run(ctx context.Context) error {
	return r.core.Run(ctx)
}
