package platform

import (
	"strconv"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/wippyai/arm-runtime/errors"
	"github.com/wippyai/arm-runtime/resource"
)

// System bundles the host collaborators reachable from native functions.
// Any of Database, Filesystem and Screen may be nil; the accessors then
// fail with a not-initialized error.
type System struct {
	Clock      *Clock
	Database   *Database
	Filesystem Filesystem
	Screen     Screen
	Resources  *resource.Table

	canvases *resource.Typed[*Canvas]
	stores   *resource.Typed[*RecordStore]
	files    *resource.Typed[*File]
	events   *eventLog
}

// eventLog logs resource lifecycle events at debug level.
type eventLog struct{}

func (*eventLog) OnResourceEvent(e resource.Event) {
	Logger().Debug("resource "+e.Type.String(),
		zap.String("type", resource.TypeName(e.TypeID)),
		zap.Uint32("handle", uint32(e.Handle)))
}

// Option configures a System.
type Option func(*System)

func WithClock(c *Clock) Option { return func(s *System) { s.Clock = c } }
func WithDatabase(d *Database) Option { return func(s *System) { s.Database = d } }
func WithFilesystem(f Filesystem) Option { return func(s *System) { s.Filesystem = f } }
func WithScreen(scr Screen) Option { return func(s *System) { s.Screen = scr } }
func WithResources(t *resource.Table) Option { return func(s *System) { s.Resources = t } }

// NewSystem builds a System. Without WithClock it uses the host clock.
func NewSystem(opts ...Option) *System {
	s := &System{}
	for _, opt := range opts {
		opt(s)
	}
	if s.Clock == nil {
		s.Clock = NewSystemClock()
	}
	if s.Resources == nil {
		s.Resources = resource.NewTable()
	}
	s.events = &eventLog{}
	s.Resources.Subscribe(s.events)
	s.canvases = resource.NewTyped[*Canvas](s.Resources, resource.TypeCanvas)
	s.stores = resource.NewTyped[*RecordStore](s.Resources, resource.TypeRecordStore)
	s.files = resource.NewTyped[*File](s.Resources, resource.TypeFile)
	return s
}

// CreateCanvas allocates a canvas and returns its handle.
func (s *System) CreateCanvas(width, height uint32) (resource.Handle, error) {
	return s.canvases.Insert(NewCanvas(width, height))
}

// LoadCanvas decodes an image file into a canvas and returns its handle.
func (s *System) LoadCanvas(name string) (resource.Handle, error) {
	data, err := s.ReadFile(name)
	if err != nil {
		return 0, err
	}
	c, err := DecodeCanvas(data)
	if err != nil {
		return 0, err
	}
	return s.canvases.Insert(c)
}

// Canvas resolves a canvas handle.
func (s *System) Canvas(h resource.Handle) (*Canvas, error) {
	c, ok := s.canvases.Get(h)
	if !ok {
		return nil, errors.NotFound(errors.PhaseHost, "canvas", handleName(h))
	}
	return c, nil
}

// DestroyCanvas releases a canvas handle.
func (s *System) DestroyCanvas(h resource.Handle) error {
	_, err := s.canvases.Remove(h)
	return err
}

// Repaint sends a canvas to the screen.
func (s *System) Repaint(h resource.Handle) error {
	if s.Screen == nil {
		return errors.NotInitialized(errors.PhaseHost, "screen")
	}
	c, err := s.Canvas(h)
	if err != nil {
		return err
	}
	if err := s.Screen.Repaint(c); err != nil {
		return errors.HostIO("repaint", err)
	}
	return nil
}

// OpenRecordStore opens a record store and returns its handle.
func (s *System) OpenRecordStore(name string) (resource.Handle, error) {
	if s.Database == nil {
		return 0, errors.NotInitialized(errors.PhaseHost, "database")
	}
	rs, err := s.Database.Open(name)
	if err != nil {
		return 0, err
	}
	return s.stores.Insert(rs)
}

// RecordStore resolves a record store handle.
func (s *System) RecordStore(h resource.Handle) (*RecordStore, error) {
	rs, ok := s.stores.Get(h)
	if !ok {
		return nil, errors.NotFound(errors.PhaseHost, "record store", handleName(h))
	}
	return rs, nil
}

// CloseRecordStore releases a record store handle.
func (s *System) CloseRecordStore(h resource.Handle) error {
	_, err := s.stores.Remove(h)
	return err
}

// ReadFile reads a file through the configured filesystem.
func (s *System) ReadFile(name string) ([]byte, error) {
	if s.Filesystem == nil {
		return nil, errors.NotInitialized(errors.PhaseHost, "filesystem")
	}
	return s.Filesystem.ReadFile(name)
}

// OpenFile opens a guest file for reading. It performs host I/O and does
// not touch the resource table, so it may run off the scheduler.
func (s *System) OpenFile(name string) (*File, error) {
	if s.Filesystem == nil {
		return nil, errors.NotInitialized(errors.PhaseHost, "filesystem")
	}
	return OpenFile(s.Filesystem, name)
}

// AddFile registers an open file and returns its handle.
func (s *System) AddFile(f *File) (resource.Handle, error) {
	return s.files.Insert(f)
}

// File resolves a file handle.
func (s *System) File(h resource.Handle) (*File, error) {
	f, ok := s.files.Get(h)
	if !ok {
		return nil, errors.NotFound(errors.PhaseHost, "file", handleName(h))
	}
	return f, nil
}

// CloseFile closes a file and releases its handle.
func (s *System) CloseFile(h resource.Handle) error {
	_, err := s.files.Remove(h)
	return err
}

// Close releases all handles and closes the database. A shared resource
// table stops reporting to this System.
func (s *System) Close() error {
	err := s.Resources.Close()
	s.Resources.Unsubscribe(s.events)
	if s.Database != nil {
		err = multierr.Append(err, s.Database.Close())
	}
	return err
}

func handleName(h resource.Handle) string {
	return "#" + strconv.FormatUint(uint64(h), 10)
}
