package tui

import (
	"strings"
	"unicode/utf8"

	"charm.land/bubbles/v2/key"
)

// KeyConfig overrides the default bindings; blank fields keep the default.
type KeyConfig struct {
	ToggleTask    string
	Stats         string
	Recenter      string
	Notifications string
}

// keyMap holds every binding the timeline and stats views understand.
type keyMap struct {
	quit          key.Binding
	toggleHelp    key.Binding
	moveUp        key.Binding
	moveDown      key.Binding
	prevActivity  key.Binding
	nextActivity  key.Binding
	toggleTask    key.Binding
	recenter      key.Binding
	stats         key.Binding
	notifications key.Binding
	faster        key.Binding
	slower        key.Binding
	realTime      key.Binding
	grouping      key.Binding
	weekends      key.Binding
	copyReport    key.Binding
	accept        key.Binding
	decline       key.Binding
	back          key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		quit:          key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		toggleHelp:    key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "toggle help")),
		moveUp:        key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k/↑", "task up")),
		moveDown:      key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j/↓", "task down")),
		prevActivity:  key.NewBinding(key.WithKeys("h", "left"), key.WithHelp("h/←", "prev activity")),
		nextActivity:  key.NewBinding(key.WithKeys("l", "right"), key.WithHelp("l/→", "next activity")),
		toggleTask:    key.NewBinding(key.WithKeys(" ", "space", "enter"), key.WithHelp("space", "toggle done")),
		recenter:      key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "re-center")),
		stats:         key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "statistics")),
		notifications: key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "notifications on/off")),
		faster:        key.NewBinding(key.WithKeys("]"), key.WithHelp("]", "timelapse faster")),
		slower:        key.NewBinding(key.WithKeys("["), key.WithHelp("[", "timelapse slower")),
		realTime:      key.NewBinding(key.WithKeys("0"), key.WithHelp("0", "real time")),
		grouping:      key.NewBinding(key.WithKeys("g"), key.WithHelp("g", "cycle grouping")),
		weekends:      key.NewBinding(key.WithKeys("w"), key.WithHelp("w", "toggle weekends")),
		copyReport:    key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "copy report")),
		accept:        key.NewBinding(key.WithKeys("y", "Y", "enter"), key.WithHelp("y", "load schedule")),
		decline:       key.NewBinding(key.WithKeys("n", "N", "esc"), key.WithHelp("n/esc", "keep current")),
		back:          key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
	}
}

// applyConfig rebinds the configurable keys.
func (k *keyMap) applyConfig(cfg KeyConfig) {
	configureBinding(&k.toggleTask, cfg.ToggleTask, "space", "toggle done")
	configureBinding(&k.stats, cfg.Stats, "s", "statistics")
	configureBinding(&k.recenter, cfg.Recenter, "c", "re-center")
	configureBinding(&k.notifications, cfg.Notifications, "n", "notifications on/off")
}

// configureBinding replaces b's keys with raw, or fallback when raw is blank.
func configureBinding(b *key.Binding, raw, fallback, desc string) {
	keys, helpKey := parseBindingKeys(raw, fallback)
	b.SetKeys(keys...)
	b.SetHelp(helpKey, desc)
}

// parseBindingKeys maps a configured key to matcher strings and its help label.
func parseBindingKeys(raw, fallback string) ([]string, string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		raw = fallback
	}
	switch strings.ToLower(raw) {
	case "space", " ":
		return []string{" ", "space"}, "space"
	}
	if utf8.RuneCountInString(raw) == 1 {
		lower := strings.ToLower(raw)
		if lower != raw {
			return []string{raw, "shift+" + lower}, raw
		}
		return []string{raw}, raw
	}
	return []string{strings.ToLower(raw)}, raw
}

// ShortHelp returns the footer bindings.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.toggleTask, k.recenter, k.stats, k.toggleHelp, k.quit}
}

// FullHelp returns every binding grouped by view.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.moveUp, k.moveDown, k.prevActivity, k.nextActivity, k.toggleTask, k.recenter},
		{k.stats, k.grouping, k.weekends, k.copyReport, k.back},
		{k.notifications, k.faster, k.slower, k.realTime, k.toggleHelp, k.quit},
	}
}

// statsHelp is the footer shown on the statistics view.
type statsHelp struct {
	keys keyMap
}

func (s statsHelp) ShortHelp() []key.Binding {
	return []key.Binding{s.keys.grouping, s.keys.weekends, s.keys.copyReport, s.keys.back, s.keys.quit}
}

func (s statsHelp) FullHelp() [][]key.Binding {
	return [][]key.Binding{s.ShortHelp()}
}
