package dashboard

import (
	"encoding/json"

	"github.com/google/uuid"
)

// Schema defaults applied by the migrator.
const (
	DefaultColumns         = 3
	DefaultMainColor       = "#007bff"
	DefaultBackgroundColor = "#f8f9fa"
	DefaultFontSize        = 16
	DefaultWidgetHeight    = 6

	// Sparse ordering step: siblings are renumbered in multiples of this so
	// later inserts can slot between existing keys without a full renumber.
	OrderStep = 1000
)

// Raw mirrors of the document shapes that have existed historically. Every
// field is optional; the migrator substitutes defaults for whatever is
// missing and never fails on partial input.

type rawDocument struct {
	Settings rawSettings `json:"settings"`
	Tabs     []rawTab    `json:"tabs"`
	Widgets  []rawWidget `json:"widgets"`
}

type rawSettings struct {
	Columns         *int    `json:"columns"`
	DarkMode        *bool   `json:"darkMode"`
	DarkModeType    *string `json:"darkModeType"`
	MainColor       *string `json:"mainColor"`
	BackgroundColor *string `json:"backgroundColor"`
	FontSize        *int    `json:"fontSize"`
	CurrentTabID    *string `json:"currentTabId"`
}

type rawTab struct {
	ID    *string  `json:"id"`
	Name  *string  `json:"name"`
	Order *float64 `json:"order"`
}

type rawWidget struct {
	ID       *string      `json:"id"`
	Type     *string      `json:"type"`
	Title    *string      `json:"title"`
	TabID    *string      `json:"tabId"`
	Position *rawPosition `json:"position"`
	Height   *int         `json:"height"`
	Folded   *bool        `json:"folded"`
	FeedURL  *string      `json:"feedUrl"`
	Content  *string      `json:"content"`
	Color    *string      `json:"color"`
}

// rawPosition carries both the current column/order shape and the legacy
// row/col shape. Legacy is detected by the presence of both row and col.
type rawPosition struct {
	Column *float64 `json:"column"`
	Order  *float64 `json:"order"`
	Row    *float64 `json:"row"`
	Col    *float64 `json:"col"`
}

// Migrate decodes a historically shaped document and normalizes it to the
// current schema. The only failure mode is syntactically invalid JSON; the
// caller decides which storage tier to fall back to in that case. Given any
// decodable input, migration is total and idempotent.
func Migrate(data []byte) (DashboardData, error) {
	var raw rawDocument
	if err := json.Unmarshal(data, &raw); err != nil {
		return DashboardData{}, err
	}

	settings := migrateSettings(raw.Settings)
	tabs := migrateTabs(raw.Tabs, &settings)
	widgets := migrateWidgets(raw.Widgets, tabs)

	doc := DashboardData{Settings: settings, Tabs: tabs, Widgets: widgets}

	// The current tab must always point at an existing tab.
	if _, ok := doc.FindTab(doc.Settings.CurrentTabID); !ok {
		doc.Settings.CurrentTabID = doc.TabsInOrder()[0].ID
	}
	return doc, nil
}

// DefaultDocument synthesizes the hard-coded empty default: one "Main" tab,
// zero widgets, settings at their defaults. This is the final load fallback
// and cannot fail.
func DefaultDocument() DashboardData {
	settings := migrateSettings(rawSettings{})
	tabs := migrateTabs(nil, &settings)
	return DashboardData{
		Settings: settings,
		Tabs:     tabs,
		Widgets:  []Widget{},
	}
}

func migrateSettings(raw rawSettings) Settings {
	s := Settings{
		Columns:         DefaultColumns,
		DarkModeType:    DarkModeOff,
		MainColor:       DefaultMainColor,
		BackgroundColor: DefaultBackgroundColor,
		FontSize:        DefaultFontSize,
	}
	if raw.Columns != nil && *raw.Columns >= 1 {
		s.Columns = *raw.Columns
	}
	if raw.DarkMode != nil {
		s.DarkMode = *raw.DarkMode
	}
	switch {
	case raw.DarkModeType != nil:
		s.DarkModeType = DarkModeType(*raw.DarkModeType)
	case raw.DarkMode != nil && *raw.DarkMode:
		// Legacy documents only had the boolean.
		s.DarkModeType = DarkModeOn
	}
	if raw.MainColor != nil && *raw.MainColor != "" {
		s.MainColor = *raw.MainColor
	}
	if raw.BackgroundColor != nil && *raw.BackgroundColor != "" {
		s.BackgroundColor = *raw.BackgroundColor
	}
	if raw.FontSize != nil && *raw.FontSize > 0 {
		s.FontSize = *raw.FontSize
	}
	if raw.CurrentTabID != nil {
		s.CurrentTabID = *raw.CurrentTabID
	}
	return s
}

// migrateTabs projects the raw tabs, or synthesizes the single "Main" tab
// for pre-tab documents. As a side effect it backfills settings.CurrentTabID
// when a tab had to be synthesized and no current tab was recorded. The
// result is never empty.
func migrateTabs(raw []rawTab, settings *Settings) []Tab {
	if len(raw) == 0 {
		tab := Tab{ID: uuid.NewString(), Name: "Main", Order: OrderStep}
		if settings.CurrentTabID == "" {
			settings.CurrentTabID = tab.ID
		}
		return []Tab{tab}
	}

	tabs := make([]Tab, 0, len(raw))
	for i, rt := range raw {
		t := Tab{Order: (i + 1) * OrderStep}
		if rt.ID != nil && *rt.ID != "" {
			t.ID = *rt.ID
		} else {
			t.ID = uuid.NewString()
		}
		if rt.Name != nil {
			t.Name = *rt.Name
		}
		if rt.Order != nil {
			t.Order = int(*rt.Order)
		}
		tabs = append(tabs, t)
	}
	return tabs
}

// migrateWidgets upgrades each widget to the current shape: legacy row/col
// positions become column/order (the array index breaks ties between widgets
// that shared a row, preserving the original visual order), tabId is
// backfilled to the first tab, and height defaults to 6 lines.
func migrateWidgets(raw []rawWidget, tabs []Tab) []Widget {
	widgets := make([]Widget, 0, len(raw))
	firstTab := tabs[0].ID

	for i, rw := range raw {
		w := Widget{Height: DefaultWidgetHeight}
		if rw.ID != nil && *rw.ID != "" {
			w.ID = *rw.ID
		} else {
			w.ID = uuid.NewString()
		}
		if rw.Type != nil {
			w.Type = WidgetType(*rw.Type)
		}
		if rw.Title != nil {
			w.Title = *rw.Title
		}
		if rw.Height != nil && *rw.Height > 0 {
			w.Height = *rw.Height
		}
		if rw.Folded != nil {
			w.Folded = *rw.Folded
		}
		if rw.FeedURL != nil {
			w.FeedURL = *rw.FeedURL
		}
		if rw.Content != nil {
			w.Content = *rw.Content
		}
		if rw.Color != nil {
			w.Color = NoteColor(*rw.Color)
		}

		w.TabID = firstTab
		if rw.TabID != nil && *rw.TabID != "" {
			if _, ok := findTab(tabs, *rw.TabID); ok {
				w.TabID = *rw.TabID
			}
		}

		w.Position = migratePosition(rw.Position, i)
		widgets = append(widgets, w)
	}
	return widgets
}

func migratePosition(raw *rawPosition, index int) Position {
	if raw == nil {
		return Position{Column: 1, Order: (index + 1) * OrderStep}
	}
	if raw.Row != nil && raw.Col != nil {
		// Legacy two-field row/column layout.
		return Position{
			Column: int(*raw.Col),
			Order:  int(*raw.Row)*OrderStep + index,
		}
	}
	p := Position{Column: 1, Order: (index + 1) * OrderStep}
	if raw.Column != nil {
		p.Column = int(*raw.Column)
	}
	if raw.Order != nil {
		p.Order = int(*raw.Order)
	}
	return p
}

func findTab(tabs []Tab, id string) (Tab, bool) {
	for _, t := range tabs {
		if t.ID == id {
			return t, true
		}
	}
	return Tab{}, false
}
