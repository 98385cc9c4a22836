// Package logx is ghrelay's structured logging: a small Logger wrapper over
// zerolog with a reconfigurable Service behind it.
//
// Sinks:
//   - console (short timestamp + file:line caller)
//   - JSON file
//   - Telegram alerts: WARN+ lines forwarded to an ops chat, rate limited and
//     with secret-looking fields removed
package logx
