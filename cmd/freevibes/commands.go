package main

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kalambet/freevibes/internal/config"
)

// --- login / logout / remote ---

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Enable gist sync with a GitHub personal access token",
	RunE: func(cmd *cobra.Command, args []string) error {
		token, _ := cmd.Flags().GetString("token")
		if token == "" {
			return fmt.Errorf("--token is required")
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/login", map[string]string{"token": token})
		if err != nil {
			return err
		}

		var result struct {
			Enabled bool   `json:"enabled"`
			URL     string `json:"url"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		if result.URL != "" {
			printSuccess("Remote sync enabled: %s", result.URL)
		} else {
			printSuccess("Remote sync enabled (gist will be created on first save)")
		}
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Disable gist sync and forget the stored token",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/logout", nil)
		if err != nil {
			return err
		}
		if err := checkStatus(resp); err != nil {
			return err
		}

		printSuccess("Logged out; working with local data only")
		return nil
	},
}

var remoteCmd = &cobra.Command{
	Use:   "remote",
	Short: "Show remote sync status",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/remote")
		if err != nil {
			return err
		}

		var result struct {
			Enabled bool   `json:"enabled"`
			URL     string `json:"url"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		if result.Enabled {
			printStatus("Remote sync", "enabled")
			if result.URL != "" {
				printStatus("Document", "%s", result.URL)
			}
		} else {
			printStatus("Remote sync", "disabled")
		}
		return nil
	},
}

func init() {
	loginCmd.Flags().String("token", "", "GitHub personal access token with the gist scope")
}

// --- tab ---

var tabCmd = &cobra.Command{
	Use:   "tab",
	Short: "Manage dashboard tabs",
}

var tabListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tabs in display order",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		doc, err := fetchDocument(cmd, client)
		if err != nil {
			return err
		}

		counts := make(map[string]int)
		for _, w := range doc.Widgets {
			counts[w.TabID]++
		}

		for _, t := range doc.Tabs {
			marker := " "
			if t.ID == doc.Settings.CurrentTabID {
				marker = colorize(colorGreen, "*")
			}
			fmt.Printf("%s %s  %s  (%d widgets)\n", marker, colorize(colorCyan, t.ID), t.Name, counts[t.ID])
		}
		return nil
	},
}

var tabAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add a new tab",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/tabs", map[string]string{"name": args[0]})
		if err != nil {
			return err
		}

		var tab struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		}
		if err := decodeJSON(resp, &tab); err != nil {
			return err
		}

		printSuccess("Added tab %s (%s)", tab.Name, tab.ID)
		return nil
	},
}

var tabRenameCmd = &cobra.Command{
	Use:   "rename <id> <name>",
	Short: "Rename a tab",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.patch(cmd.Context(), "/tabs/"+args[0], map[string]string{"name": args[1]})
		if err != nil {
			return err
		}
		if err := checkStatus(resp); err != nil {
			return err
		}

		printSuccess("Renamed tab %s to %s", args[0], args[1])
		return nil
	},
}

var tabDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a tab and all widgets on it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.delete(cmd.Context(), "/tabs/"+args[0])
		if err != nil {
			return err
		}
		if err := checkStatus(resp); err != nil {
			return err
		}

		printSuccess("Deleted tab %s", args[0])
		return nil
	},
}

var tabSelectCmd = &cobra.Command{
	Use:   "select <id>",
	Short: "Make a tab current",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/tabs/"+args[0]+"/select", nil)
		if err != nil {
			return err
		}
		if err := checkStatus(resp); err != nil {
			return err
		}

		printSuccess("Selected tab %s", args[0])
		return nil
	},
}

var tabMoveCmd = &cobra.Command{
	Use:   "move <id> <index>",
	Short: "Move a tab to a position in the tab bar (0-based)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		index, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid index %q: %w", args[1], err)
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/tabs/"+args[0]+"/move", map[string]int{"index": index})
		if err != nil {
			return err
		}
		if err := checkStatus(resp); err != nil {
			return err
		}

		printSuccess("Moved tab %s to position %d", args[0], index)
		return nil
	},
}

func init() {
	tabCmd.AddCommand(tabListCmd)
	tabCmd.AddCommand(tabAddCmd)
	tabCmd.AddCommand(tabRenameCmd)
	tabCmd.AddCommand(tabDeleteCmd)
	tabCmd.AddCommand(tabSelectCmd)
	tabCmd.AddCommand(tabMoveCmd)
}

// --- widget ---

var widgetCmd = &cobra.Command{
	Use:   "widget",
	Short: "Manage dashboard widgets",
}

var widgetListCmd = &cobra.Command{
	Use:   "list",
	Short: "List widgets grouped by tab",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		doc, err := fetchDocument(cmd, client)
		if err != nil {
			return err
		}

		for _, t := range doc.Tabs {
			fmt.Printf("%s\n", colorize(colorBold, t.Name))
			for _, w := range doc.Widgets {
				if w.TabID != t.ID {
					continue
				}
				detail := w.FeedURL
				if w.Type == "note" {
					detail = w.Content
					if len(detail) > 60 {
						detail = detail[:60] + "..."
					}
				}
				fmt.Printf("  %s  [%s] col %d  %s  %s\n",
					colorize(colorCyan, w.ID), w.Type, w.Position.Column, w.Title, detail)
			}
		}
		return nil
	},
}

var widgetAddNoteCmd = &cobra.Command{
	Use:   "add-note <content>",
	Short: "Add a sticky note widget",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		title, _ := cmd.Flags().GetString("title")
		color, _ := cmd.Flags().GetString("color")
		tabID, _ := cmd.Flags().GetString("tab")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		body := map[string]any{
			"type":    "note",
			"title":   title,
			"content": strings.Join(args, " "),
		}
		if color != "" {
			body["color"] = color
		}
		if tabID != "" {
			body["tabId"] = tabID
		}

		resp, err := client.post(cmd.Context(), "/widgets", body)
		if err != nil {
			return err
		}

		var widget struct {
			ID string `json:"id"`
		}
		if err := decodeJSON(resp, &widget); err != nil {
			return err
		}

		printSuccess("Added note widget %s", widget.ID)
		return nil
	},
}

var widgetAddFeedCmd = &cobra.Command{
	Use:   "add-feed <url>",
	Short: "Add an RSS feed widget",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		title, _ := cmd.Flags().GetString("title")
		tabID, _ := cmd.Flags().GetString("tab")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		feedURL := args[0]
		if title == "" {
			title = feedURL
		}

		body := map[string]any{
			"type":    "rss",
			"title":   title,
			"feedUrl": feedURL,
		}
		if tabID != "" {
			body["tabId"] = tabID
		}

		resp, err := client.post(cmd.Context(), "/widgets", body)
		if err != nil {
			return err
		}

		var widget struct {
			ID string `json:"id"`
		}
		if err := decodeJSON(resp, &widget); err != nil {
			return err
		}

		printSuccess("Added feed widget %s", widget.ID)
		return nil
	},
}

var widgetDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a widget",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.delete(cmd.Context(), "/widgets/"+args[0])
		if err != nil {
			return err
		}
		if err := checkStatus(resp); err != nil {
			return err
		}

		printSuccess("Deleted widget %s", args[0])
		return nil
	},
}

var widgetMoveCmd = &cobra.Command{
	Use:   "move <id> <column> <index>",
	Short: "Move a widget to a column and position (column 1-based, index 0-based)",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		column, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid column %q: %w", args[1], err)
		}
		index, err := strconv.Atoi(args[2])
		if err != nil {
			return fmt.Errorf("invalid index %q: %w", args[2], err)
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/widgets/"+args[0]+"/move", map[string]int{
			"column": column,
			"index":  index,
		})
		if err != nil {
			return err
		}
		if err := checkStatus(resp); err != nil {
			return err
		}

		printSuccess("Moved widget %s to column %d position %d", args[0], column, index)
		return nil
	},
}

func init() {
	widgetAddNoteCmd.Flags().String("title", "", "widget title")
	widgetAddNoteCmd.Flags().String("color", "", "note color: yellow, green, blue, or red")
	widgetAddNoteCmd.Flags().String("tab", "", "target tab id (default: current tab)")
	widgetAddFeedCmd.Flags().String("title", "", "widget title (default: feed url)")
	widgetAddFeedCmd.Flags().String("tab", "", "target tab id (default: current tab)")

	widgetCmd.AddCommand(widgetListCmd)
	widgetCmd.AddCommand(widgetAddNoteCmd)
	widgetCmd.AddCommand(widgetAddFeedCmd)
	widgetCmd.AddCommand(widgetDeleteCmd)
	widgetCmd.AddCommand(widgetMoveCmd)
}

// --- settings ---

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or update dashboard settings",
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		doc, err := fetchDocument(cmd, client)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(doc.Settings)
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Update one setting (columns, darkModeType, mainColor, backgroundColor, fontSize)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		patch := map[string]any{}
		switch key {
		case "columns", "fontSize":
			i, err := strconv.Atoi(value)
			if err != nil {
				return fmt.Errorf("invalid integer value for %s: %w", key, err)
			}
			patch[key] = i
		case "darkModeType", "mainColor", "backgroundColor", "currentTabId":
			patch[key] = value
		default:
			return fmt.Errorf("unknown setting %q", key)
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.patch(cmd.Context(), "/settings", patch)
		if err != nil {
			return err
		}
		if err := checkStatus(resp); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsSetCmd)
}

// --- data ---

var dataCmd = &cobra.Command{
	Use:   "data",
	Short: "Inspect or reload the dashboard document",
}

var dataShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the full dashboard document as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/data")
		if err != nil {
			return err
		}

		var doc any
		if err := decodeJSON(resp, &doc); err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	},
}

var dataReloadCmd = &cobra.Command{
	Use:   "reload",
	Short: "Reload the document through the remote/cache/default chain",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/data/reload", nil)
		if err != nil {
			return err
		}

		var doc struct {
			Tabs    []any `json:"tabs"`
			Widgets []any `json:"widgets"`
		}
		if err := decodeJSON(resp, &doc); err != nil {
			return err
		}

		printSuccess("Reloaded: %d tabs, %d widgets", len(doc.Tabs), len(doc.Widgets))
		return nil
	},
}

var dataExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the dashboard document to a file or stdout",
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/data")
		if err != nil {
			return err
		}

		var doc any
		if err := decodeJSON(resp, &doc); err != nil {
			return err
		}

		writer := os.Stdout
		if output != "" {
			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("creating output file: %w", err)
			}
			defer f.Close()
			writer = f
		}

		enc := json.NewEncoder(writer)
		enc.SetIndent("", "  ")
		if err := enc.Encode(doc); err != nil {
			return err
		}

		if output != "" {
			printSuccess("Document exported to %s", output)
		}
		return nil
	},
}

func init() {
	dataExportCmd.Flags().String("output", "", "output file path (default: stdout)")
	dataCmd.AddCommand(dataShowCmd)
	dataCmd.AddCommand(dataReloadCmd)
	dataCmd.AddCommand(dataExportCmd)
}

// --- feed ---

var feedCmd = &cobra.Command{
	Use:   "feed",
	Short: "Preview and discover RSS feeds",
}

var feedPreviewCmd = &cobra.Command{
	Use:   "preview <url>",
	Short: "Fetch a feed and print its items",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/feed?url="+url.QueryEscape(args[0]))
		if err != nil {
			return err
		}

		var result struct {
			Feed struct {
				Title string `json:"title"`
			} `json:"feed"`
			Items []struct {
				Title   string `json:"title"`
				Link    string `json:"link"`
				PubDate string `json:"pubDate"`
			} `json:"items"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		if result.Feed.Title != "" {
			fmt.Printf("%s\n", colorize(colorBold, result.Feed.Title))
		}
		if len(result.Items) == 0 {
			fmt.Println("No items.")
			return nil
		}
		for _, it := range result.Items {
			fmt.Printf("  %s\n    %s\n", it.Title, colorize(colorCyan, it.Link))
		}
		return nil
	},
}

var feedDiscoverCmd = &cobra.Command{
	Use:   "discover <page-url>",
	Short: "Find the feed a web page advertises",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/feed/discover", map[string]string{"url": args[0]})
		if err != nil {
			return err
		}

		var result struct {
			FeedURL string `json:"feedUrl"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		fmt.Println(result.FeedURL)
		return nil
	},
}

func init() {
	feedCmd.AddCommand(feedPreviewCmd)
	feedCmd.AddCommand(feedDiscoverCmd)
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		keys := config.ShowAll(cfg)
		for _, k := range keys {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

// documentView is the subset of the dashboard document the CLI renders.
type documentView struct {
	Settings struct {
		CurrentTabID string `json:"currentTabId"`
	} `json:"settings"`
	Tabs []struct {
		ID    string `json:"id"`
		Name  string `json:"name"`
		Order int    `json:"order"`
	} `json:"tabs"`
	Widgets []struct {
		ID       string `json:"id"`
		Type     string `json:"type"`
		Title    string `json:"title"`
		TabID    string `json:"tabId"`
		Position struct {
			Column int `json:"column"`
			Order  int `json:"order"`
		} `json:"position"`
		FeedURL string `json:"feedUrl"`
		Content string `json:"content"`
	} `json:"widgets"`
}

func fetchDocument(cmd *cobra.Command, client *apiClient) (documentView, error) {
	var doc documentView
	resp, err := client.get(cmd.Context(), "/data")
	if err != nil {
		return doc, err
	}
	if err := decodeJSON(resp, &doc); err != nil {
		return doc, err
	}
	sort.SliceStable(doc.Tabs, func(i, j int) bool { return doc.Tabs[i].Order < doc.Tabs[j].Order })
	sort.SliceStable(doc.Widgets, func(i, j int) bool {
		if doc.Widgets[i].Position.Column != doc.Widgets[j].Position.Column {
			return doc.Widgets[i].Position.Column < doc.Widgets[j].Position.Column
		}
		return doc.Widgets[i].Position.Order < doc.Widgets[j].Position.Order
	})
	return doc, nil
}
