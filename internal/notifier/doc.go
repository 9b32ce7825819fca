// Package notifier shows desktop notifications for lifecycle failures and
// pause state changes.
//
// # Pipeline
//
// Events arrive from the event bus and are turned into notifications, which
// go through a bounded queue, a token-bucket rate limit and a short dedup
// window before a Deliverer shows them. Delivery uses osascript on macOS and
// notify-send on Linux. A full queue drops the notification; nothing here
// ever blocks a lifecycle operation.
//
// # History
//
// The service keeps a small in-memory history of delivered notifications
// for the status output of watch mode.
package notifier
