package suggest

import "automata/internal/rule"

// group is a set of alternative phrases worth weight when any one matches.
type group struct {
	keywords []string
	weight   float64
}

// appGroupWeight is the weight of the installed-app-name group that
// open-apps and quit-apps receive.
const appGroupWeight = 0.25

var actionGroups = map[rule.ActionKind][]group{
	rule.ActionAppearance: {
		{[]string{"dark mode", "night mode", "light mode"}, 0.4},
		{[]string{"dark", "light", "appearance"}, 0.2},
		{[]string{"theme", "display mode"}, 0.1},
	},
	rule.ActionVolume: {
		{[]string{"set volume", "volume to", "mute", "unmute"}, 0.4},
		{[]string{"volume", "sound", "audio"}, 0.2},
		{[]string{"loud", "quiet", "silent"}, 0.1},
	},
	rule.ActionEmptyTrash: {
		{[]string{"empty trash", "empty the trash"}, 0.4},
		{[]string{"clear trash", "trash"}, 0.2},
		{[]string{"clean up", "delete trash"}, 0.1},
	},
	rule.ActionOpenApps: {
		{[]string{"open app", "launch app", "start app", "open apps"}, 0.4},
		{[]string{"open", "launch", "run"}, 0.15},
	},
	rule.ActionQuitApps: {
		{[]string{"quit app", "close app", "kill app", "quit apps", "close apps"}, 0.4},
		{[]string{"quit", "close", "stop"}, 0.15},
		{[]string{"shut down", "exit"}, 0.1},
	},
	rule.ActionNotify: {
		{[]string{"remind me", "notification", "alert me", "send notification"}, 0.4},
		{[]string{"remind", "alert", "notify"}, 0.2},
		{[]string{"tell me", "popup", "reminder"}, 0.1},
	},
	rule.ActionCleanDownloads: {
		{[]string{"clean downloads", "clear downloads", "clean up downloads"}, 0.4},
		{[]string{"old downloads", "old files"}, 0.2},
		{[]string{"cleanup"}, 0.1},
	},
	rule.ActionMoveFiles: {
		{[]string{"move files", "move to folder", "move file"}, 0.4},
		{[]string{"organize files", "sort files"}, 0.2},
		{[]string{"file to", "put files"}, 0.1},
	},
	rule.ActionOpenURLs: {
		{[]string{"open url", "open website", "open link", "open urls"}, 0.4},
		{[]string{"url", "website", "link"}, 0.15},
		{[]string{"browse", "go to"}, 0.1},
	},
	rule.ActionOpenFile: {
		{[]string{"open file", "open document", "open a file"}, 0.4},
		{[]string{"open the file"}, 0.2},
		{[]string{"file"}, 0.05},
	},
	rule.ActionKeepAwake: {
		{[]string{"keep awake", "stay awake", "don't sleep", "dont sleep"}, 0.4},
		{[]string{"awake", "caffeinate"}, 0.2},
		{[]string{"prevent sleep", "no sleep"}, 0.15},
	},
}

var triggerGroups = map[rule.TriggerKind][]group{
	rule.TriggerSchedule: {
		{[]string{"every day at", "every weekday at", "every monday", "every tuesday", "every wednesday",
			"every thursday", "every friday", "every saturday", "every sunday"}, 0.35},
		{[]string{"at", "when it's", "every night", "every morning"}, 0.1},
		{[]string{"daily", "nightly"}, 0.1},
	},
	rule.TriggerInterval: {
		{[]string{"every 5 minutes", "every 10 minutes", "every 15 minutes", "every 20 minutes",
			"every 30 minutes", "every 60 minutes", "every hour", "every 2 hours", "every half hour",
			"every 1 hour", "every 3 hours"}, 0.4},
		{[]string{"repeatedly", "on repeat", "hourly"}, 0.2},
		{[]string{"periodic", "periodically"}, 0.1},
	},
	rule.TriggerLogin: {
		{[]string{"on login", "at startup", "when i log in", "when i sign in", "on startup", "at login"}, 0.4},
		{[]string{"login", "startup", "boot"}, 0.15},
		{[]string{"start up", "sign in", "log in"}, 0.1},
	},
	rule.TriggerPathWatch: {
		{[]string{"when a file appears", "when files appear", "when a file is added", "when files are added"}, 0.4},
		{[]string{"file appears", "new file"}, 0.25},
		{[]string{"file drops", "file added"}, 0.15},
	},
	rule.TriggerDriveMount: {
		{[]string{"when a drive is mounted", "when usb", "when sd card", "when i plug in", "when drive is plugged"}, 0.4},
		{[]string{"drive mount", "external drive", "usb drive"}, 0.25},
		{[]string{"plug in", "connect drive"}, 0.15},
	},
	rule.TriggerTimeRange: {
		{[]string{"between", "from morning to", "from evening to"}, 0.2},
		{[]string{"during", "during the"}, 0.15},
		{[]string{"hours of"}, 0.1},
	},
}

// defaultTrigger is used when an action matched but no compatible trigger
// scored.
func defaultTrigger(a rule.ActionKind) rule.TriggerKind {
	switch a {
	case rule.ActionOpenApps, rule.ActionQuitApps:
		return rule.TriggerLogin
	case rule.ActionNotify:
		return rule.TriggerInterval
	case rule.ActionMoveFiles:
		return rule.TriggerPathWatch
	default:
		return rule.TriggerSchedule
	}
}
