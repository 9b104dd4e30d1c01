// Package logging provides structured logging for the rules controller.
//
// It wraps log/slog with JSON or text output, default service and version
// attributes, and optional rotating file output through lumberjack:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "file"     # stdout, stderr, file
//	  file:
//	    path: "/var/log/graylogic/rules.log"
//	    max_size: 50     # megabytes
//	    max_backups: 5
//	    max_age: 30      # days
//	    compress: true
//
// Library packages do not import this package. They declare a small
// Logger interface that *Logger satisfies.
package logging
