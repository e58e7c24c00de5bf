// Package logger wraps zap to offer:
//   - a global sugared logger with a console encoder on stderr,
//   - context helpers (ToContext/FromContext/WithName/WithKV),
//   - level parsing and adjustment,
//   - convenience functions (Infof, ErrorKV, etc.).
//
// Deployment steps receive a context and extract the logger from it, so every line
// carries the step and host it belongs to.
package logger
