package rule

import "strconv"

var (
	defaultTime  = Clock{Hour: 9}
	defaultStart = Clock{Hour: 9}
	defaultEnd   = Clock{Hour: 17}
)

var daysField = Field{Key: "days", Label: "Days", Kind: FieldDays}

func builtinTriggers() []*TriggerSpec {
	return []*TriggerSpec{
		{
			Kind:        TriggerSchedule,
			Name:        "At a specific time",
			Description: "Pick a time and days of the week",
			Fields: []Field{
				{Key: "time", Label: "Time", Kind: FieldTime, Required: true, Default: defaultTime.String()},
				daysField,
			},
			decode: func(r *reader) TriggerConfig {
				return FixedSchedule{At: r.clock("time", true, defaultTime), Days: r.days("days")}
			},
		},
		{
			Kind:        TriggerInterval,
			Name:        "Every N minutes",
			Description: "Repeats on a fixed cadence",
			Fields: []Field{
				{Key: "minutes", Label: "Repeat every (minutes)", Kind: FieldNumber, Required: true, Default: "30"},
			},
			decode: func(r *reader) TriggerConfig {
				return FixedInterval{Minutes: r.integer("minutes", true, 30, 1, 7*24*60)}
			},
		},
		{
			Kind:        TriggerLogin,
			Name:        "On login",
			Description: "Runs once when you log in",
			decode:      func(*reader) TriggerConfig { return OnLogin{} },
		},
		{
			Kind:        TriggerPathWatch,
			Name:        "When a file appears in...",
			Description: "Fires when a folder's contents change",
			Fields: []Field{
				{Key: "path", Label: "Watch this folder", Kind: FieldFolder, Required: true},
			},
			decode: func(r *reader) TriggerConfig {
				return PathWatch{Path: r.str("path", true, "")}
			},
		},
		{
			Kind:        TriggerDriveMount,
			Name:        "When a drive is mounted",
			Description: "Fires when a USB drive or SD card is plugged in",
			decode:      func(*reader) TriggerConfig { return DriveMount{} },
		},
		{
			Kind:        TriggerTimeRange,
			Name:        "During a time range",
			Description: "Does something at the start and undoes it at the end",
			Fields: []Field{
				{Key: "start", Label: "From", Kind: FieldTime, Required: true, Default: defaultStart.String()},
				{Key: "end", Label: "Until", Kind: FieldTime, Required: true, Default: defaultEnd.String()},
				daysField,
			},
			decode: func(r *reader) TriggerConfig {
				t := TimeRange{
					Start: r.clock("start", true, defaultStart),
					End:   r.clock("end", true, defaultEnd),
					Days:  r.days("days"),
				}
				if r.err == nil && t.End.Minutes() <= t.Start.Minutes() {
					if r.lenient {
						t.Start, t.End = defaultStart, defaultEnd
					} else {
						r.fail("end", "must be after start (%s)", t.Start)
					}
				}
				return t
			},
		},
	}
}

var modeOptions = []string{ModeDark, ModeLight, ModeToggle}

func staticFields(fields ...Field) func(TriggerKind) []Field {
	return func(TriggerKind) []Field { return fields }
}

func builtinActions() []*ActionSpec {
	appsField := Field{Key: "apps", Label: "Apps", Kind: FieldApps, Required: true}
	return []*ActionSpec{
		{
			Kind:        ActionOpenApps,
			Name:        "Open app(s)",
			Description: "Launch one or more apps",
			Body:        ScriptShell,
			Reversible:  true,
			RevertBody:  ScriptAppleScript,
			Triggers:    []TriggerKind{TriggerSchedule, TriggerLogin, TriggerPathWatch, TriggerDriveMount, TriggerTimeRange},
			fields:      staticFields(appsField),
			decode: func(r *reader, _ TriggerKind) ActionConfig {
				return OpenApps{Apps: SplitList(r.str("apps", true, ""))}
			},
		},
		{
			Kind:        ActionQuitApps,
			Name:        "Quit app(s)",
			Description: "Quit specific apps, or every open app",
			Body:        ScriptAppleScript,
			Reversible:  true,
			RevertBody:  ScriptShell,
			Triggers:    []TriggerKind{TriggerSchedule, TriggerInterval, TriggerLogin, TriggerTimeRange},
			fields: func(peer TriggerKind) []Field {
				if peer == TriggerTimeRange {
					return []Field{appsField}
				}
				return []Field{appsField, {Key: "quit_all", Label: "Quit all open apps", Kind: FieldBoolean, Default: "false"}}
			},
			decode: func(r *reader, peer TriggerKind) ActionConfig {
				all := peer != TriggerTimeRange && r.boolean("quit_all")
				return QuitApps{Apps: SplitList(r.str("apps", !all, "")), All: all}
			},
			missing: func(values map[string]string, _ TriggerKind) []string {
				if b, _ := strconv.ParseBool(values["quit_all"]); b || SplitList(values["apps"]) != nil {
					return nil
				}
				return []string{"apps"}
			},
		},
		{
			Kind:        ActionOpenFile,
			Name:        "Open a file",
			Description: "Open a document with its default app",
			Body:        ScriptShell,
			Triggers:    []TriggerKind{TriggerSchedule, TriggerLogin, TriggerPathWatch, TriggerDriveMount},
			fields:      staticFields(Field{Key: "file", Label: "File to open", Kind: FieldFile, Required: true}),
			decode: func(r *reader, _ TriggerKind) ActionConfig {
				return OpenFile{Path: r.str("file", true, "")}
			},
		},
		{
			Kind:        ActionOpenURLs,
			Name:        "Open URL(s)",
			Description: "Open web pages in the default browser",
			Body:        ScriptShell,
			Triggers:    []TriggerKind{TriggerSchedule, TriggerInterval, TriggerLogin, TriggerDriveMount},
			fields:      staticFields(Field{Key: "urls", Label: "URLs (one per line)", Kind: FieldURLs, Required: true}),
			decode: func(r *reader, _ TriggerKind) ActionConfig {
				return OpenURLs{URLs: SplitLines(r.str("urls", true, ""))}
			},
		},
		{
			Kind:        ActionEmptyTrash,
			Name:        "Empty the Trash",
			Description: "Permanently delete everything in the Trash",
			Body:        ScriptAppleScript,
			Triggers:    []TriggerKind{TriggerSchedule, TriggerInterval, TriggerLogin},
			fields:      staticFields(),
			decode:      func(*reader, TriggerKind) ActionConfig { return EmptyTrash{} },
		},
		{
			Kind:        ActionCleanDownloads,
			Name:        "Clean old Downloads",
			Description: "Delete files in Downloads older than N days",
			Body:        ScriptShell,
			Triggers:    []TriggerKind{TriggerSchedule, TriggerInterval, TriggerLogin},
			fields:      staticFields(Field{Key: "days_old", Label: "Older than (days)", Kind: FieldNumber, Default: "30"}),
			decode: func(r *reader, _ TriggerKind) ActionConfig {
				return CleanDownloads{DaysOld: r.integer("days_old", false, 30, 1, 3650)}
			},
		},
		{
			Kind:        ActionAppearance,
			Name:        "Toggle Dark Mode",
			Description: "Switch between Dark and Light mode",
			Body:        ScriptAppleScript,
			Reversible:  true,
			RevertBody:  ScriptAppleScript,
			Triggers:    []TriggerKind{TriggerSchedule, TriggerLogin, TriggerTimeRange},
			fields:      staticFields(Field{Key: "mode", Label: "Mode", Kind: FieldChoice, Default: ModeDark, Options: modeOptions}),
			decode: func(r *reader, _ TriggerKind) ActionConfig {
				return Appearance{Mode: r.choice("mode", ModeDark, modeOptions)}
			},
		},
		{
			Kind:        ActionVolume,
			Name:        "Set volume",
			Description: "Change the output volume",
			Body:        ScriptAppleScript,
			Reversible:  true,
			RevertBody:  ScriptAppleScript,
			Triggers:    []TriggerKind{TriggerSchedule, TriggerLogin, TriggerTimeRange},
			fields: func(peer TriggerKind) []Field {
				vol := Field{Key: "volume", Label: "Volume (0-100)", Kind: FieldNumber, Required: true, Default: "50"}
				if peer == TriggerTimeRange {
					return []Field{vol, {Key: "restore_volume", Label: "Restore to (0-100)", Kind: FieldNumber, Default: "50"}}
				}
				return []Field{vol}
			},
			decode: func(r *reader, _ TriggerKind) ActionConfig {
				return SetVolume{
					Level:   r.integer("volume", true, 50, 0, 100),
					Restore: r.integer("restore_volume", false, 50, 0, 100),
				}
			},
		},
		{
			Kind:        ActionMoveFiles,
			Name:        "Move files to...",
			Description: "Move new files into another folder",
			Body:        ScriptShell,
			Triggers:    []TriggerKind{TriggerSchedule, TriggerInterval, TriggerPathWatch},
			fields: func(peer TriggerKind) []Field {
				dest := Field{Key: "destination", Label: "Move files to", Kind: FieldFolder, Required: true}
				if peer == TriggerPathWatch {
					return []Field{dest}
				}
				return []Field{dest, {Key: "source", Label: "Move files from", Kind: FieldFolder, Default: DefaultDownloadsDir}}
			},
			decode: func(r *reader, peer TriggerKind) ActionConfig {
				m := MoveFiles{Destination: r.str("destination", true, "")}
				if peer != TriggerPathWatch {
					m.Source = r.str("source", false, DefaultDownloadsDir)
				}
				return m
			},
		},
		{
			Kind:        ActionNotify,
			Name:        "Show a notification",
			Description: "Post a reminder notification",
			Body:        ScriptAppleScript,
			Triggers:    []TriggerKind{TriggerSchedule, TriggerInterval, TriggerLogin, TriggerPathWatch, TriggerDriveMount},
			fields:      staticFields(Field{Key: "message", Label: "Message", Kind: FieldText, Required: true}),
			decode: func(r *reader, _ TriggerKind) ActionConfig {
				return Notify{Message: r.str("message", true, "Reminder")}
			},
		},
		{
			Kind:        ActionKeepAwake,
			Name:        "Keep awake",
			Description: "Prevent the Mac from sleeping",
			Body:        ScriptShell,
			Reversible:  true,
			RevertBody:  ScriptShell,
			Triggers:    []TriggerKind{TriggerSchedule, TriggerLogin, TriggerTimeRange},
			fields: func(peer TriggerKind) []Field {
				if peer == TriggerTimeRange {
					return nil
				}
				return []Field{{Key: "duration", Label: "For", Kind: FieldChoice, Default: DefaultKeepAwake, Options: KeepAwakeDurations}}
			},
			decode: func(r *reader, peer TriggerKind) ActionConfig {
				if peer == TriggerTimeRange {
					return KeepAwake{}
				}
				return KeepAwake{Duration: r.choice("duration", DefaultKeepAwake, KeepAwakeDurations)}
			},
		},
	}
}
