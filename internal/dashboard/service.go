package dashboard

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// DataKey is the local cache key holding the serialized document.
const DataKey = "freevibes-data"

//go:embed data.json
var bundledDefault []byte

// Remote is the remote document store the service syncs against.
// Implemented by gist.Client.
type Remote interface {
	// Login authenticates the token and resolves the remote document
	// container if one exists. It must not create one.
	Login(ctx context.Context, token string) error
	// Logout clears the stored credentials and session state.
	Logout() error
	// LoadData returns the raw remote document.
	LoadData(ctx context.Context) ([]byte, error)
	// SaveData replaces the remote document, creating the container on
	// first save.
	SaveData(ctx context.Context, data []byte) error
	// DocumentURL returns a human-viewable URL for the remote document, or
	// "" if none is resolved.
	DocumentURL() string
}

// Cache is the durable local key-value cache the service writes through to.
// Implemented by storage.Store.
type Cache interface {
	GetValue(key string) (value string, ok bool, err error)
	SetValue(key, value string) error
}

// Options tunes a Service beyond its two required collaborators.
type Options struct {
	Logger *slog.Logger
	// SystemDark reports the system dark-mode preference; used to resolve
	// darkModeType "system". Defaults to light.
	SystemDark func() bool
	// DefaultDoc overrides the embedded bundled default document.
	DefaultDoc []byte
}

// Service is the single owner of the live DashboardData document. It
// arbitrates between the remote store, the local cache, and the bundled
// default, and exposes the atomic update operations every caller goes
// through. All reads return deep copies; all mutations replace the document
// as a whole and write through to the local cache.
type Service struct {
	remote     Remote
	cache      Cache
	defaultDoc []byte
	logger     *slog.Logger
	systemDark func() bool

	mu         sync.Mutex
	current    *DashboardData
	remoteSync bool

	subMu  sync.Mutex
	nextID int
	subs   map[int]func(DashboardData)
}

// New creates a Service with default options.
func New(remote Remote, cache Cache) *Service {
	return NewWithOptions(remote, cache, Options{})
}

// NewWithOptions creates a Service with explicit options (used by tests).
func NewWithOptions(remote Remote, cache Cache, opts Options) *Service {
	s := &Service{
		remote:     remote,
		cache:      cache,
		defaultDoc: bundledDefault,
		logger:     slog.Default(),
		systemDark: func() bool { return false },
		subs:       make(map[int]func(DashboardData)),
	}
	if opts.Logger != nil {
		s.logger = opts.Logger
	}
	if opts.SystemDark != nil {
		s.systemDark = opts.SystemDark
	}
	if opts.DefaultDoc != nil {
		s.defaultDoc = opts.DefaultDoc
	}
	return s
}

// Subscribe registers a callback invoked with a copy of the document after
// every load or mutation. The returned function removes the subscription.
func (s *Service) Subscribe(fn func(DashboardData)) (cancel func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		delete(s.subs, id)
	}
}

func (s *Service) notify(doc DashboardData) {
	s.subMu.Lock()
	fns := make([]func(DashboardData), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()
	for _, fn := range fns {
		fn(doc.Clone())
	}
}

// LoginWithRemoteToken authenticates against the remote store and, on
// success, enables remote sync and reloads the document remote-first. An
// authentication failure is returned to the caller and leaves remote sync
// disabled.
func (s *Service) LoginWithRemoteToken(ctx context.Context, token string) error {
	if err := s.remote.Login(ctx, token); err != nil {
		return fmt.Errorf("remote login: %w", err)
	}
	s.mu.Lock()
	s.remoteSync = true
	s.mu.Unlock()
	s.LoadData(ctx)
	return nil
}

// Logout disables remote sync and clears the remote session. The current
// document and the local cache are kept; the user continues working against
// the local copy.
func (s *Service) Logout() {
	if err := s.remote.Logout(); err != nil {
		s.logger.Warn("remote logout", "error", err)
	}
	s.mu.Lock()
	s.remoteSync = false
	s.mu.Unlock()
}

// LoadData runs the canonical load chain: remote (when sync is enabled),
// local cache, bundled default, hard-coded default. Every tier's failure is
// logged and absorbed; the final tier cannot fail, so LoadData always
// returns a usable document.
func (s *Service) LoadData(ctx context.Context) DashboardData {
	s.mu.Lock()
	doc := s.loadLocked(ctx)
	s.current = &doc
	s.mu.Unlock()
	s.notify(doc)
	return doc.Clone()
}

func (s *Service) loadLocked(ctx context.Context) DashboardData {
	if s.remoteSync {
		raw, err := s.remote.LoadData(ctx)
		if err != nil {
			s.logger.Warn("remote load failed, falling back to local cache", "error", err)
		} else if doc, err := Migrate(raw); err != nil {
			s.logger.Warn("remote document unparsable, falling back to local cache", "error", err)
		} else {
			if err := s.writeLocal(doc); err != nil {
				s.logger.Warn("write-through after remote load failed", "error", err)
			}
			return doc
		}
	}

	if val, ok, err := s.cache.GetValue(DataKey); err != nil {
		s.logger.Warn("reading local cache failed, falling back to bundled default", "error", err)
	} else if ok {
		if doc, err := Migrate([]byte(val)); err != nil {
			s.logger.Warn("local cache unparsable, falling back to bundled default", "error", err)
		} else {
			return doc
		}
	}

	if len(s.defaultDoc) > 0 {
		if doc, err := Migrate(s.defaultDoc); err != nil {
			s.logger.Error("bundled default unparsable", "error", err)
		} else {
			return doc
		}
	}

	return DefaultDocument()
}

// SaveData replaces the current document and persists it: the local
// write-through must succeed (its failure is returned), the remote push is
// best-effort and only logged. This asymmetry is the write path's contract —
// the local cache stays authoritative for the next load.
func (s *Service) SaveData(ctx context.Context, doc DashboardData) error {
	s.mu.Lock()
	err := s.saveLocked(ctx, doc)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.notify(doc)
	return nil
}

func (s *Service) saveLocked(ctx context.Context, doc DashboardData) error {
	cp := doc.Clone()
	s.current = &cp

	if err := s.writeLocal(doc); err != nil {
		return fmt.Errorf("writing local cache: %w", err)
	}

	if s.remoteSync {
		data, err := json.Marshal(doc)
		if err != nil {
			s.logger.Warn("marshalling document for remote push", "error", err)
			return nil
		}
		if err := s.remote.SaveData(ctx, data); err != nil {
			s.logger.Warn("remote push failed, keeping local only", "error", err)
		}
	}
	return nil
}

func (s *Service) writeLocal(doc DashboardData) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return s.cache.SetValue(DataKey, string(data))
}

// Data returns a deep copy of the current document, or false if no load has
// completed yet.
func (s *Service) Data() (DashboardData, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return DashboardData{}, false
	}
	return s.current.Clone(), true
}

// IsRemoteSyncEnabled reports whether a remote login has succeeded.
func (s *Service) IsRemoteSyncEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remoteSync
}

// RemoteDocumentURL returns the human-viewable URL of the remote document,
// or "" if none is resolved.
func (s *Service) RemoteDocumentURL() string {
	return s.remote.DocumentURL()
}

// UpdateWidget replaces the widget with the same id and saves. An unknown id
// is a silent no-op: the widget may have been deleted by another caller
// before this update landed.
func (s *Service) UpdateWidget(ctx context.Context, widget Widget) error {
	s.mu.Lock()
	if s.current == nil {
		s.mu.Unlock()
		return nil
	}
	doc := s.current.Clone()
	found := false
	for i := range doc.Widgets {
		if doc.Widgets[i].ID == widget.ID {
			doc.Widgets[i] = widget
			found = true
			break
		}
	}
	if !found {
		s.mu.Unlock()
		return nil
	}
	err := s.saveLocked(ctx, doc)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.notify(doc)
	return nil
}

// SettingsPatch is a partial settings update; nil fields are left unchanged.
type SettingsPatch struct {
	Columns         *int          `json:"columns"`
	DarkMode        *bool         `json:"darkMode"`
	DarkModeType    *DarkModeType `json:"darkModeType"`
	MainColor       *string       `json:"mainColor"`
	BackgroundColor *string       `json:"backgroundColor"`
	FontSize        *int          `json:"fontSize"`
	CurrentTabID    *string       `json:"currentTabId"`
}

// UpdateSettings shallow-merges the patch into the current settings and
// saves. Changing darkModeType recomputes the derived darkMode flag.
func (s *Service) UpdateSettings(ctx context.Context, patch SettingsPatch) error {
	s.mu.Lock()
	if s.current == nil {
		s.mu.Unlock()
		return nil
	}
	doc := s.current.Clone()
	applyPatch(&doc.Settings, patch, s.systemDark)
	err := s.saveLocked(ctx, doc)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.notify(doc)
	return nil
}

func applyPatch(settings *Settings, patch SettingsPatch, systemDark func() bool) {
	if patch.Columns != nil {
		settings.Columns = *patch.Columns
	}
	if patch.DarkMode != nil {
		settings.DarkMode = *patch.DarkMode
	}
	if patch.DarkModeType != nil {
		settings.DarkModeType = *patch.DarkModeType
		switch *patch.DarkModeType {
		case DarkModeOn:
			settings.DarkMode = true
		case DarkModeOff:
			settings.DarkMode = false
		case DarkModeSystem:
			settings.DarkMode = systemDark()
		}
	}
	if patch.MainColor != nil {
		settings.MainColor = *patch.MainColor
	}
	if patch.BackgroundColor != nil {
		settings.BackgroundColor = *patch.BackgroundColor
	}
	if patch.FontSize != nil {
		settings.FontSize = *patch.FontSize
	}
	if patch.CurrentTabID != nil {
		settings.CurrentTabID = *patch.CurrentTabID
	}
}

// AddWidget appends a widget and saves. Missing fields are defaulted: a
// fresh id, the current tab, column 1, an order key past the end of the
// target column, height 6, and yellow for notes.
func (s *Service) AddWidget(ctx context.Context, widget Widget) (Widget, error) {
	s.mu.Lock()
	if s.current == nil {
		s.mu.Unlock()
		return Widget{}, fmt.Errorf("no document loaded")
	}
	doc := s.current.Clone()

	if widget.ID == "" {
		widget.ID = uuid.NewString()
	}
	if widget.TabID == "" {
		widget.TabID = doc.Settings.CurrentTabID
	}
	if _, ok := doc.FindTab(widget.TabID); !ok {
		s.mu.Unlock()
		return Widget{}, fmt.Errorf("%w: %s", ErrTabNotFound, widget.TabID)
	}
	if widget.Position.Column < 1 {
		widget.Position.Column = 1
	}
	if widget.Height <= 0 {
		widget.Height = DefaultWidgetHeight
	}
	if widget.Type == WidgetNote && widget.Color == "" {
		widget.Color = NoteYellow
	}
	if err := widget.Validate(); err != nil {
		s.mu.Unlock()
		return Widget{}, err
	}
	if widget.Position.Order == 0 {
		widget.Position.Order = nextOrder(doc, widget.TabID, widget.Position.Column)
	}

	doc.Widgets = append(doc.Widgets, widget)
	err := s.saveLocked(ctx, doc)
	s.mu.Unlock()
	if err != nil {
		return Widget{}, err
	}
	s.notify(doc)
	return widget, nil
}

func nextOrder(doc DashboardData, tabID string, column int) int {
	max := 0
	for _, w := range doc.Widgets {
		if w.TabID == tabID && w.Position.Column == column && w.Position.Order > max {
			max = w.Position.Order
		}
	}
	return max + OrderStep
}

// DeleteWidget removes the widget and saves. An unknown id is a silent
// no-op, mirroring UpdateWidget.
func (s *Service) DeleteWidget(ctx context.Context, id string) error {
	s.mu.Lock()
	if s.current == nil {
		s.mu.Unlock()
		return nil
	}
	doc := s.current.Clone()
	kept := doc.Widgets[:0]
	for _, w := range doc.Widgets {
		if w.ID != id {
			kept = append(kept, w)
		}
	}
	if len(kept) == len(doc.Widgets) {
		s.mu.Unlock()
		return nil
	}
	doc.Widgets = kept
	err := s.saveLocked(ctx, doc)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.notify(doc)
	return nil
}

// MoveWidget drops the widget into the given 1-based column at the given
// index among that column's widgets, then renumbers the column's order keys
// in multiples of 1000 so future inserts can slot between siblings. This is
// the single commit for a drag gesture; intermediate preview positions are
// the UI's transient state and never reach the service.
func (s *Service) MoveWidget(ctx context.Context, id string, column, index int) error {
	s.mu.Lock()
	if s.current == nil {
		s.mu.Unlock()
		return nil
	}
	doc := s.current.Clone()
	moved, ok := doc.FindWidget(id)
	if !ok {
		s.mu.Unlock()
		return nil
	}
	if column < 1 {
		column = 1
	}

	siblings := doc.WidgetsInColumn(moved.TabID, column)
	ordered := make([]string, 0, len(siblings)+1)
	for _, w := range siblings {
		if w.ID != id {
			ordered = append(ordered, w.ID)
		}
	}
	if index < 0 {
		index = 0
	}
	if index > len(ordered) {
		index = len(ordered)
	}
	ordered = append(ordered[:index], append([]string{id}, ordered[index:]...)...)

	orders := make(map[string]int, len(ordered))
	for i, wid := range ordered {
		orders[wid] = (i + 1) * OrderStep
	}
	for i := range doc.Widgets {
		w := &doc.Widgets[i]
		if o, ok := orders[w.ID]; ok {
			w.Position.Order = o
			if w.ID == id {
				w.Position.Column = column
			}
		}
	}

	err := s.saveLocked(ctx, doc)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.notify(doc)
	return nil
}

// AddTab appends a new tab after the existing ones and saves.
func (s *Service) AddTab(ctx context.Context, name string) (Tab, error) {
	s.mu.Lock()
	if s.current == nil {
		s.mu.Unlock()
		return Tab{}, fmt.Errorf("no document loaded")
	}
	doc := s.current.Clone()
	max := 0
	for _, t := range doc.Tabs {
		if t.Order > max {
			max = t.Order
		}
	}
	tab := Tab{ID: uuid.NewString(), Name: name, Order: max + OrderStep}
	doc.Tabs = append(doc.Tabs, tab)
	err := s.saveLocked(ctx, doc)
	s.mu.Unlock()
	if err != nil {
		return Tab{}, err
	}
	s.notify(doc)
	return tab, nil
}

// RenameTab changes a tab's name and saves.
func (s *Service) RenameTab(ctx context.Context, id, name string) error {
	s.mu.Lock()
	if s.current == nil {
		s.mu.Unlock()
		return fmt.Errorf("no document loaded")
	}
	doc := s.current.Clone()
	found := false
	for i := range doc.Tabs {
		if doc.Tabs[i].ID == id {
			doc.Tabs[i].Name = name
			found = true
			break
		}
	}
	if !found {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrTabNotFound, id)
	}
	err := s.saveLocked(ctx, doc)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.notify(doc)
	return nil
}

// DeleteTab removes a tab and cascades to every widget on it. Deleting the
// last remaining tab is refused and leaves the document unchanged. If the
// deleted tab was current, the first remaining tab becomes current.
func (s *Service) DeleteTab(ctx context.Context, id string) error {
	s.mu.Lock()
	if s.current == nil {
		s.mu.Unlock()
		return fmt.Errorf("no document loaded")
	}
	doc := s.current.Clone()
	if _, ok := doc.FindTab(id); !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrTabNotFound, id)
	}
	if len(doc.Tabs) == 1 {
		s.mu.Unlock()
		return ErrLastTab
	}

	tabs := doc.Tabs[:0]
	for _, t := range doc.Tabs {
		if t.ID != id {
			tabs = append(tabs, t)
		}
	}
	doc.Tabs = tabs

	widgets := doc.Widgets[:0]
	for _, w := range doc.Widgets {
		if w.TabID != id {
			widgets = append(widgets, w)
		}
	}
	doc.Widgets = widgets

	if doc.Settings.CurrentTabID == id {
		doc.Settings.CurrentTabID = doc.TabsInOrder()[0].ID
	}

	err := s.saveLocked(ctx, doc)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.notify(doc)
	return nil
}

// SelectTab makes the given tab current and saves.
func (s *Service) SelectTab(ctx context.Context, id string) error {
	s.mu.Lock()
	if s.current == nil {
		s.mu.Unlock()
		return fmt.Errorf("no document loaded")
	}
	doc := s.current.Clone()
	if _, ok := doc.FindTab(id); !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrTabNotFound, id)
	}
	doc.Settings.CurrentTabID = id
	err := s.saveLocked(ctx, doc)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.notify(doc)
	return nil
}

// MoveTab drops the tab at the given index in the tab bar and renumbers all
// tab order keys in multiples of 1000.
func (s *Service) MoveTab(ctx context.Context, id string, index int) error {
	s.mu.Lock()
	if s.current == nil {
		s.mu.Unlock()
		return fmt.Errorf("no document loaded")
	}
	doc := s.current.Clone()
	if _, ok := doc.FindTab(id); !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrTabNotFound, id)
	}

	ordered := doc.TabsInOrder()
	ids := make([]string, 0, len(ordered))
	for _, t := range ordered {
		if t.ID != id {
			ids = append(ids, t.ID)
		}
	}
	if index < 0 {
		index = 0
	}
	if index > len(ids) {
		index = len(ids)
	}
	ids = append(ids[:index], append([]string{id}, ids[index:]...)...)

	orders := make(map[string]int, len(ids))
	for i, tid := range ids {
		orders[tid] = (i + 1) * OrderStep
	}
	for i := range doc.Tabs {
		doc.Tabs[i].Order = orders[doc.Tabs[i].ID]
	}

	err := s.saveLocked(ctx, doc)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.notify(doc)
	return nil
}
