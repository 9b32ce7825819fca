package rule

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Script is a generated body plus the interpreter family it targets.
type Script struct {
	Kind ScriptKind
	Body string
}

// ActionConfig is the typed, validated configuration of one action variant.
type ActionConfig interface {
	Kind() ActionKind
	// Script renders the primary body. The peer trigger may change the body
	// (move-files reads its source from a path-watch trigger).
	Script(peer TriggerConfig) Script
	Sentence() string
	Values() map[string]string
	isAction()
}

// Reverter is implemented by actions that may run under a time-range
// trigger. Revert renders the body that undoes Script at the end of the range.
type Reverter interface {
	Revert(peer TriggerConfig) Script
}

// NotificationTitle is the title shown on notification bodies.
const NotificationTitle = "Automata"

// DefaultDownloadsDir is where move-files reads from when no watched folder
// is available. It is expanded by the shell.
const DefaultDownloadsDir = "$HOME/Downloads"

// escape makes a value safe inside a double-quoted shell or AppleScript
// string literal.
func escape(s string) string { return strings.ReplaceAll(s, `"`, `\"`) }

func shell(lines ...string) Script {
	return Script{Kind: ScriptShell, Body: "#!/bin/bash\n" + strings.Join(lines, "\n") + "\n"}
}

func applescript(lines ...string) Script {
	return Script{Kind: ScriptAppleScript, Body: strings.Join(lines, "\n") + "\n"}
}

func joinAnd(items []string, fallback string) string {
	if len(items) == 0 {
		return fallback
	}
	return strings.Join(items, " and ")
}

// SplitList splits a comma-separated list and drops blank entries.
func SplitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// SplitLines splits a newline-separated list and drops blank entries.
func SplitLines(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, "\n") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

type OpenApps struct {
	Apps []string
}

func (OpenApps) Kind() ActionKind { return ActionOpenApps }
func (a OpenApps) Script(TriggerConfig) Script {
	lines := []string{`echo "open apps: $(date)"`}
	for _, app := range a.Apps {
		lines = append(lines, fmt.Sprintf(`open -a "%s"`, escape(app)))
	}
	return shell(lines...)
}
func (a OpenApps) Revert(TriggerConfig) Script { return quitScript(a.Apps) }
func (a OpenApps) Sentence() string            { return "open " + joinAnd(a.Apps, "apps") }
func (a OpenApps) Values() map[string]string {
	return map[string]string{"apps": strings.Join(a.Apps, ",")}
}
func (OpenApps) isAction() {}

type QuitApps struct {
	Apps []string
	All  bool
}

func (QuitApps) Kind() ActionKind { return ActionQuitApps }
func (a QuitApps) Script(TriggerConfig) Script {
	if a.All {
		return applescript(
			`tell application "System Events"`,
			`    set appNames to name of every application process whose background only is false`,
			`end tell`,
			`repeat with appName in appNames`,
			`    if appName as text is not "Finder" then`,
			`        tell application (appName as text) to quit`,
			`    end if`,
			`end repeat`,
		)
	}
	return quitScript(a.Apps)
}
func (a QuitApps) Revert(TriggerConfig) Script {
	lines := []string{`echo "reopen apps: $(date)"`}
	for _, app := range a.Apps {
		lines = append(lines, fmt.Sprintf(`open -a "%s"`, escape(app)))
	}
	return shell(lines...)
}
func (a QuitApps) Sentence() string {
	if a.All {
		return "quit all open apps"
	}
	return "quit " + joinAnd(a.Apps, "apps")
}
func (a QuitApps) Values() map[string]string {
	return map[string]string{"apps": strings.Join(a.Apps, ","), "quit_all": strconv.FormatBool(a.All)}
}
func (QuitApps) isAction() {}

func quitScript(apps []string) Script {
	lines := make([]string, 0, len(apps))
	for _, app := range apps {
		lines = append(lines, fmt.Sprintf(`tell application "%s" to quit`, escape(app)))
	}
	return applescript(lines...)
}

type OpenFile struct {
	Path string
}

func (OpenFile) Kind() ActionKind { return ActionOpenFile }
func (a OpenFile) Script(TriggerConfig) Script {
	return shell(fmt.Sprintf(`open "%s"`, escape(a.Path)))
}
func (a OpenFile) Sentence() string          { return "open " + baseOr(a.Path, "a file") }
func (a OpenFile) Values() map[string]string { return map[string]string{"file": a.Path} }
func (OpenFile) isAction()                   {}

type OpenURLs struct {
	URLs []string
}

func (OpenURLs) Kind() ActionKind { return ActionOpenURLs }
func (a OpenURLs) Script(TriggerConfig) Script {
	lines := []string{`echo "open urls: $(date)"`}
	for _, u := range a.URLs {
		lines = append(lines, fmt.Sprintf(`open "%s"`, escape(u)))
	}
	return shell(lines...)
}
func (a OpenURLs) Sentence() string {
	if len(a.URLs) == 1 {
		return "open 1 URL"
	}
	return fmt.Sprintf("open %d URLs", len(a.URLs))
}
func (a OpenURLs) Values() map[string]string {
	return map[string]string{"urls": strings.Join(a.URLs, "\n")}
}
func (OpenURLs) isAction() {}

type EmptyTrash struct{}

func (EmptyTrash) Kind() ActionKind { return ActionEmptyTrash }
func (EmptyTrash) Script(TriggerConfig) Script {
	return applescript(
		`tell application "Finder"`,
		`    empty the trash`,
		`end tell`,
	)
}
func (EmptyTrash) Sentence() string          { return "empty the Trash" }
func (EmptyTrash) Values() map[string]string { return map[string]string{} }
func (EmptyTrash) isAction()                 {}

type CleanDownloads struct {
	DaysOld int
}

func (CleanDownloads) Kind() ActionKind { return ActionCleanDownloads }
func (a CleanDownloads) Script(TriggerConfig) Script {
	return shell(
		`echo "--- clean: $(date) ---"`,
		fmt.Sprintf(`find "$HOME/Downloads" -maxdepth 1 -type f -mtime +%d -print0 | while IFS= read -r -d '' file; do`, a.DaysOld),
		`    echo "deleting: $file"`,
		`    rm "$file"`,
		`done`,
	)
}
func (a CleanDownloads) Sentence() string {
	return fmt.Sprintf("clean Downloads (files older than %d days)", a.DaysOld)
}
func (a CleanDownloads) Values() map[string]string {
	return map[string]string{"days_old": strconv.Itoa(a.DaysOld)}
}
func (CleanDownloads) isAction() {}

// Appearance modes.
const (
	ModeDark   = "dark"
	ModeLight  = "light"
	ModeToggle = "toggle"
)

type Appearance struct {
	Mode string
}

func (Appearance) Kind() ActionKind              { return ActionAppearance }
func (a Appearance) Script(TriggerConfig) Script { return appearanceScript(a.Mode) }

// Revert applies the opposite mode. Toggle is its own inverse.
func (a Appearance) Revert(TriggerConfig) Script { return appearanceScript(InverseMode(a.Mode)) }
func (a Appearance) Sentence() string {
	switch a.Mode {
	case ModeDark:
		return "switch to Dark Mode"
	case ModeLight:
		return "switch to Light Mode"
	default:
		return "toggle Dark Mode"
	}
}
func (a Appearance) Values() map[string]string { return map[string]string{"mode": a.Mode} }
func (Appearance) isAction()                   {}

// InverseMode maps dark to light and back. Toggle maps to itself.
func InverseMode(mode string) string {
	switch mode {
	case ModeDark:
		return ModeLight
	case ModeLight:
		return ModeDark
	default:
		return ModeToggle
	}
}

func appearanceScript(mode string) Script {
	value := "not dark mode"
	switch mode {
	case ModeDark:
		value = "true"
	case ModeLight:
		value = "false"
	}
	return applescript(
		`tell application "System Events"`,
		`    tell appearance preferences`,
		`        set dark mode to `+value,
		`    end tell`,
		`end tell`,
	)
}

type SetVolume struct {
	Level   int
	Restore int
}

func (SetVolume) Kind() ActionKind { return ActionVolume }
func (a SetVolume) Script(TriggerConfig) Script {
	return applescript(fmt.Sprintf("set volume output volume %d", a.Level))
}
func (a SetVolume) Revert(TriggerConfig) Script {
	return applescript(fmt.Sprintf("set volume output volume %d", a.Restore))
}
func (a SetVolume) Sentence() string { return fmt.Sprintf("set volume to %d%%", a.Level) }
func (a SetVolume) Values() map[string]string {
	return map[string]string{"volume": strconv.Itoa(a.Level), "restore_volume": strconv.Itoa(a.Restore)}
}
func (SetVolume) isAction() {}

type MoveFiles struct {
	Source      string
	Destination string
}

func (MoveFiles) Kind() ActionKind { return ActionMoveFiles }

// Script moves top-level, non-hidden files. A path-watch peer supplies the
// source folder.
func (a MoveFiles) Script(peer TriggerConfig) Script {
	src := a.Source
	if pw, ok := peer.(PathWatch); ok {
		src = pw.Path
	}
	if src == "" {
		src = DefaultDownloadsDir
	}
	return shell(
		fmt.Sprintf(`SOURCE="%s"`, escape(src)),
		fmt.Sprintf(`DEST="%s"`, escape(a.Destination)),
		`echo "--- move: $(date) ---"`,
		`mkdir -p "$DEST"`,
		`find "$SOURCE" -maxdepth 1 -type f -not -name '.*' -print0 | while IFS= read -r -d '' file; do`,
		`    echo "moving: $(basename "$file")"`,
		`    mv "$file" "$DEST/"`,
		`done`,
	)
}
func (a MoveFiles) Sentence() string { return "move files to " + baseOr(a.Destination, "a folder") }
func (a MoveFiles) Values() map[string]string {
	return map[string]string{"source": a.Source, "destination": a.Destination}
}
func (MoveFiles) isAction() {}

type Notify struct {
	Message string
}

func (Notify) Kind() ActionKind { return ActionNotify }
func (a Notify) Script(TriggerConfig) Script {
	return applescript(fmt.Sprintf(`display notification "%s" with title "%s"`, escape(a.Message), NotificationTitle))
}
func (a Notify) Sentence() string          { return fmt.Sprintf("remind: %q", a.Message) }
func (a Notify) Values() map[string]string { return map[string]string{"message": a.Message} }
func (Notify) isAction()                   {}

// KeepAwakeDurations lists the accepted duration options in display order.
var KeepAwakeDurations = []string{"30 min", "1 hour", "2 hours", "4 hours", "8 hours", "12 hours"}

// DefaultKeepAwake is the duration used when none is given.
const DefaultKeepAwake = "1 hour"

// ParseKeepAwake converts a duration option to a time.Duration.
func ParseKeepAwake(option string) (time.Duration, bool) {
	switch option {
	case "30 min":
		return 30 * time.Minute, true
	case "1 hour":
		return time.Hour, true
	case "2 hours":
		return 2 * time.Hour, true
	case "4 hours":
		return 4 * time.Hour, true
	case "8 hours":
		return 8 * time.Hour, true
	case "12 hours":
		return 12 * time.Hour, true
	}
	return 0, false
}

// KeepAwake prevents display and idle sleep. Under a time-range trigger the
// duration is the range span and the revert stops caffeinate.
type KeepAwake struct {
	Duration string
}

func (KeepAwake) Kind() ActionKind { return ActionKeepAwake }
func (a KeepAwake) Script(peer TriggerConfig) Script {
	d, ok := ParseKeepAwake(a.Duration)
	if !ok {
		d = time.Hour
	}
	if tr, isRange := peer.(TimeRange); isRange {
		d = tr.Span()
	}
	return shell(
		`echo "keep awake: $(date)"`,
		fmt.Sprintf("caffeinate -di -t %d", int(d.Seconds())),
	)
}
func (KeepAwake) Revert(TriggerConfig) Script {
	return shell(
		`echo "allow sleep: $(date)"`,
		`pkill -x caffeinate || true`,
	)
}
func (a KeepAwake) Sentence() string {
	if a.Duration == "" {
		return "keep the Mac awake"
	}
	return "keep the Mac awake for " + a.Duration
}
func (a KeepAwake) Values() map[string]string { return map[string]string{"duration": a.Duration} }
func (KeepAwake) isAction()                   {}
