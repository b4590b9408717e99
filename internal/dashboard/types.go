package dashboard

import (
	"errors"
	"fmt"
	"sort"
)

// ErrLastTab is returned when an operation would leave the document with no tabs.
var ErrLastTab = errors.New("cannot delete the last remaining tab")

// ErrTabNotFound is returned when a tab id does not exist in the document.
var ErrTabNotFound = errors.New("tab not found")

// DarkModeType selects how the dark theme is resolved.
type DarkModeType string

const (
	DarkModeOn     DarkModeType = "on"
	DarkModeOff    DarkModeType = "off"
	DarkModeSystem DarkModeType = "system"
)

// WidgetType discriminates the widget union.
type WidgetType string

const (
	WidgetRSS  WidgetType = "rss"
	WidgetNote WidgetType = "note"
)

// NoteColor is the background color of a note widget.
type NoteColor string

const (
	NoteYellow NoteColor = "yellow"
	NoteGreen  NoteColor = "green"
	NoteBlue   NoteColor = "blue"
	NoteRed    NoteColor = "red"
)

// Settings holds the dashboard-wide presentation settings.
// DarkMode is a derived cache of DarkModeType resolved against the system
// preference; it is recomputed whenever DarkModeType changes.
type Settings struct {
	Columns         int          `json:"columns"`
	DarkMode        bool         `json:"darkMode"`
	DarkModeType    DarkModeType `json:"darkModeType"`
	MainColor       string       `json:"mainColor"`
	BackgroundColor string       `json:"backgroundColor"`
	FontSize        int          `json:"fontSize"`
	CurrentTabID    string       `json:"currentTabId,omitempty"`
}

// Tab is a named, ordered grouping of widgets.
// Order is a sparse sort key (multiples of 1000), not an array index.
type Tab struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Order int    `json:"order"`
}

// Position places a widget inside a tab: a 1-based column and a sparse order
// key within that column. Column is clamped to [1, settings.columns] at
// render time only; the stored value is left as written.
type Position struct {
	Column int `json:"column"`
	Order  int `json:"order"`
}

// Widget is one dashboard panel. Type discriminates the variant: rss widgets
// carry FeedURL, note widgets carry Content and Color. Height is the display
// height in lines.
type Widget struct {
	ID       string     `json:"id"`
	Type     WidgetType `json:"type"`
	Title    string     `json:"title"`
	TabID    string     `json:"tabId"`
	Position Position   `json:"position"`
	Height   int        `json:"height"`
	Folded   bool       `json:"folded,omitempty"`

	// rss variant
	FeedURL string `json:"feedUrl,omitempty"`

	// note variant
	Content string    `json:"content,omitempty"`
	Color   NoteColor `json:"color,omitempty"`
}

// Validate checks the variant payload for the widget's type.
func (w Widget) Validate() error {
	switch w.Type {
	case WidgetRSS:
		if w.FeedURL == "" {
			return fmt.Errorf("rss widget %s: feedUrl is required", w.ID)
		}
	case WidgetNote:
		switch w.Color {
		case NoteYellow, NoteGreen, NoteBlue, NoteRed:
		default:
			return fmt.Errorf("note widget %s: unknown color %q", w.ID, w.Color)
		}
	default:
		return fmt.Errorf("widget %s: unknown type %q", w.ID, w.Type)
	}
	return nil
}

// DashboardData is the root document: the whole dashboard state as one
// JSON-serializable value. It is always replaced as a whole on save.
type DashboardData struct {
	Settings Settings `json:"settings"`
	Tabs     []Tab    `json:"tabs"`
	Widgets  []Widget `json:"widgets"`
}

// Clone returns a deep copy of the document. Callers of the service always
// receive copies so in-place edits cannot bypass the write-through.
func (d DashboardData) Clone() DashboardData {
	cp := d
	cp.Tabs = make([]Tab, len(d.Tabs))
	copy(cp.Tabs, d.Tabs)
	cp.Widgets = make([]Widget, len(d.Widgets))
	copy(cp.Widgets, d.Widgets)
	return cp
}

// TabsInOrder returns the tabs sorted by their Order key. Ties keep
// insertion order.
func (d DashboardData) TabsInOrder() []Tab {
	tabs := make([]Tab, len(d.Tabs))
	copy(tabs, d.Tabs)
	sort.SliceStable(tabs, func(i, j int) bool { return tabs[i].Order < tabs[j].Order })
	return tabs
}

// WidgetsInColumn returns the widgets of one tab+column sorted by position
// order. The column argument is 1-based.
func (d DashboardData) WidgetsInColumn(tabID string, column int) []Widget {
	var out []Widget
	for _, w := range d.Widgets {
		if w.TabID == tabID && w.Position.Column == column {
			out = append(out, w)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Position.Order < out[j].Position.Order })
	return out
}

// FindTab returns the tab with the given id, or false.
func (d DashboardData) FindTab(id string) (Tab, bool) {
	for _, t := range d.Tabs {
		if t.ID == id {
			return t, true
		}
	}
	return Tab{}, false
}

// FindWidget returns the widget with the given id, or false.
func (d DashboardData) FindWidget(id string) (Widget, bool) {
	for _, w := range d.Widgets {
		if w.ID == id {
			return w, true
		}
	}
	return Widget{}, false
}
