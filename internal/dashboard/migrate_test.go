package dashboard

import (
	"encoding/json"
	"testing"
)

func TestMigrate_InvalidJSON(t *testing.T) {
	_, err := Migrate([]byte(`{not json`))
	if err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestMigrate_EmptyDocument(t *testing.T) {
	doc, err := Migrate([]byte(`{}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if doc.Settings.Columns != DefaultColumns {
		t.Errorf("Columns = %d, want %d", doc.Settings.Columns, DefaultColumns)
	}
	if doc.Settings.DarkModeType != DarkModeOff {
		t.Errorf("DarkModeType = %q, want %q", doc.Settings.DarkModeType, DarkModeOff)
	}
	if doc.Settings.MainColor != DefaultMainColor {
		t.Errorf("MainColor = %q, want %q", doc.Settings.MainColor, DefaultMainColor)
	}
	if doc.Settings.BackgroundColor != DefaultBackgroundColor {
		t.Errorf("BackgroundColor = %q, want %q", doc.Settings.BackgroundColor, DefaultBackgroundColor)
	}
	if doc.Settings.FontSize != DefaultFontSize {
		t.Errorf("FontSize = %d, want %d", doc.Settings.FontSize, DefaultFontSize)
	}

	if len(doc.Tabs) != 1 {
		t.Fatalf("expected 1 synthesized tab, got %d", len(doc.Tabs))
	}
	if doc.Tabs[0].Name != "Main" {
		t.Errorf("tab name = %q, want Main", doc.Tabs[0].Name)
	}
	if doc.Tabs[0].Order != OrderStep {
		t.Errorf("tab order = %d, want %d", doc.Tabs[0].Order, OrderStep)
	}
	if doc.Settings.CurrentTabID != doc.Tabs[0].ID {
		t.Errorf("CurrentTabID = %q, want synthesized tab id %q", doc.Settings.CurrentTabID, doc.Tabs[0].ID)
	}
}

func TestMigrate_LegacyDarkModeBool(t *testing.T) {
	doc, err := Migrate([]byte(`{"settings":{"darkMode":true}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Settings.DarkModeType != DarkModeOn {
		t.Errorf("DarkModeType = %q, want %q", doc.Settings.DarkModeType, DarkModeOn)
	}
	if !doc.Settings.DarkMode {
		t.Error("DarkMode = false, want true")
	}

	// darkModeType wins over the legacy boolean when both are present.
	doc, err = Migrate([]byte(`{"settings":{"darkMode":true,"darkModeType":"system"}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Settings.DarkModeType != DarkModeSystem {
		t.Errorf("DarkModeType = %q, want %q", doc.Settings.DarkModeType, DarkModeSystem)
	}
}

func TestMigrate_LegacyRowColPosition(t *testing.T) {
	input := `{
		"widgets": [
			{"id":"w0","type":"note","content":"a","color":"yellow","position":{"row":0,"col":1}},
			{"id":"w1","type":"note","content":"b","color":"yellow","position":{"row":0,"col":1}},
			{"id":"w2","type":"note","content":"c","color":"yellow","position":{"row":1,"col":2}},
			{"id":"w3","type":"note","content":"d","color":"yellow","position":{"row":2,"col":1}}
		]
	}`
	doc, err := Migrate([]byte(input))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []Position{
		{Column: 1, Order: 0},    // row 0, index 0
		{Column: 1, Order: 1},    // row 0, index 1: index breaks the tie
		{Column: 2, Order: 1002}, // row 1, index 2
		{Column: 1, Order: 2003}, // row 2, index 3
	}
	for i, w := range doc.Widgets {
		if w.Position != want[i] {
			t.Errorf("widget %d position = %+v, want %+v", i, w.Position, want[i])
		}
	}
}

func TestMigrate_WidgetDefaults(t *testing.T) {
	input := `{
		"tabs": [{"id":"t1","name":"Main","order":1000}],
		"widgets": [{"type":"rss","feedUrl":"https://example.com/rss"}]
	}`
	doc, err := Migrate([]byte(input))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	w := doc.Widgets[0]
	if w.ID == "" {
		t.Error("expected generated widget id")
	}
	if w.TabID != "t1" {
		t.Errorf("TabID = %q, want backfill to first tab t1", w.TabID)
	}
	if w.Height != DefaultWidgetHeight {
		t.Errorf("Height = %d, want %d", w.Height, DefaultWidgetHeight)
	}
	if w.Position.Column != 1 || w.Position.Order != OrderStep {
		t.Errorf("Position = %+v, want column 1 order %d", w.Position, OrderStep)
	}
}

func TestMigrate_DanglingWidgetTab(t *testing.T) {
	input := `{
		"tabs": [{"id":"t1","name":"Main","order":1000}],
		"widgets": [{"id":"w1","type":"note","content":"x","color":"yellow","tabId":"gone"}]
	}`
	doc, err := Migrate([]byte(input))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Widgets[0].TabID != "t1" {
		t.Errorf("TabID = %q, want reassignment to t1", doc.Widgets[0].TabID)
	}
}

func TestMigrate_DanglingCurrentTab(t *testing.T) {
	input := `{
		"settings": {"currentTabId":"gone"},
		"tabs": [
			{"id":"t2","name":"Second","order":2000},
			{"id":"t1","name":"First","order":1000}
		]
	}`
	doc, err := Migrate([]byte(input))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Settings.CurrentTabID != "t1" {
		t.Errorf("CurrentTabID = %q, want first tab in display order t1", doc.Settings.CurrentTabID)
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	input := `{
		"settings": {"darkMode": true},
		"widgets": [
			{"id":"w1","type":"rss","title":"HN","feedUrl":"https://news.ycombinator.com/rss","position":{"row":1,"col":2}},
			{"id":"w2","type":"note","content":"hello","color":"green"}
		]
	}`
	first, err := Migrate([]byte(input))
	if err != nil {
		t.Fatalf("first migration: %v", err)
	}

	data, err := json.Marshal(first)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	second, err := Migrate(data)
	if err != nil {
		t.Fatalf("second migration: %v", err)
	}

	a, _ := json.Marshal(first)
	b, _ := json.Marshal(second)
	if string(a) != string(b) {
		t.Errorf("migration not idempotent:\nfirst:  %s\nsecond: %s", a, b)
	}
}

func TestDefaultDocument(t *testing.T) {
	doc := DefaultDocument()
	if len(doc.Tabs) != 1 {
		t.Fatalf("expected 1 tab, got %d", len(doc.Tabs))
	}
	if doc.Tabs[0].Name != "Main" {
		t.Errorf("tab name = %q, want Main", doc.Tabs[0].Name)
	}
	if len(doc.Widgets) != 0 {
		t.Errorf("expected 0 widgets, got %d", len(doc.Widgets))
	}
	if doc.Settings.CurrentTabID != doc.Tabs[0].ID {
		t.Errorf("CurrentTabID = %q, want %q", doc.Settings.CurrentTabID, doc.Tabs[0].ID)
	}
}

func TestMigrate_BundledDefault(t *testing.T) {
	doc, err := Migrate(bundledDefault)
	if err != nil {
		t.Fatalf("bundled default does not migrate: %v", err)
	}
	if len(doc.Tabs) != 1 {
		t.Errorf("expected 1 tab, got %d", len(doc.Tabs))
	}
	if len(doc.Widgets) != 2 {
		t.Errorf("expected 2 widgets, got %d", len(doc.Widgets))
	}
	for _, w := range doc.Widgets {
		if err := w.Validate(); err != nil {
			t.Errorf("bundled widget invalid: %v", err)
		}
		if w.TabID != doc.Tabs[0].ID {
			t.Errorf("widget %s tab = %q, want %q", w.ID, w.TabID, doc.Tabs[0].ID)
		}
	}
}

func TestWidgetValidate(t *testing.T) {
	tests := []struct {
		name    string
		widget  Widget
		wantErr bool
	}{
		{"valid rss", Widget{ID: "w", Type: WidgetRSS, FeedURL: "https://x/rss"}, false},
		{"rss without url", Widget{ID: "w", Type: WidgetRSS}, true},
		{"valid note", Widget{ID: "w", Type: WidgetNote, Color: NoteBlue}, false},
		{"note with bad color", Widget{ID: "w", Type: WidgetNote, Color: "purple"}, true},
		{"unknown type", Widget{ID: "w", Type: "clock"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.widget.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
