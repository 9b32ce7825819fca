// Package logx configures automata's structured logging.
//
// A small wrapper (logx.Logger) on top of zerolog keeps:
//   - Console output readable (short timestamp + short caller)
//   - File output JSON-structured
//   - An activity log of plain "[time] [LEVEL] message" lines that users can tail
package logx
