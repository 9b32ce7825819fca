package rule

// TriggerKind tags a trigger variant. Values are persisted; never rename.
type TriggerKind string

const (
	TriggerSchedule   TriggerKind = "fixed-schedule"
	TriggerInterval   TriggerKind = "fixed-interval"
	TriggerLogin      TriggerKind = "on-login"
	TriggerPathWatch  TriggerKind = "path-watch"
	TriggerDriveMount TriggerKind = "drive-mount"
	TriggerTimeRange  TriggerKind = "time-range"
)

// ActionKind tags an action variant. Values are persisted; never rename.
type ActionKind string

const (
	ActionOpenApps       ActionKind = "open-apps"
	ActionQuitApps       ActionKind = "quit-apps"
	ActionOpenFile       ActionKind = "open-file"
	ActionOpenURLs       ActionKind = "open-urls"
	ActionEmptyTrash     ActionKind = "empty-trash"
	ActionCleanDownloads ActionKind = "clean-downloads"
	ActionAppearance     ActionKind = "toggle-appearance"
	ActionVolume         ActionKind = "set-volume"
	ActionMoveFiles      ActionKind = "move-files"
	ActionNotify         ActionKind = "show-notification"
	ActionKeepAwake      ActionKind = "keep-awake"
)

// ScriptKind is the interpreter family a generated body is written for.
type ScriptKind int

const (
	ScriptShell ScriptKind = iota
	ScriptAppleScript
)

func (k ScriptKind) String() string {
	switch k {
	case ScriptShell:
		return "shell"
	case ScriptAppleScript:
		return "applescript"
	default:
		return "unknown"
	}
}

// Ext is the file extension used for script artifacts of this kind.
func (k ScriptKind) Ext() string {
	if k == ScriptAppleScript {
		return "scpt"
	}
	return "sh"
}
