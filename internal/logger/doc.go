// Package logger wraps zap for fleet-pack.
//
// A global sugared logger with a console encoder is created at init and can be
// replaced or re-levelled at runtime. Loggers travel inside a context
// (ToContext/FromContext/WithName/WithKV) so every packaging step logs with
// the scope of the run that started it.
package logger
