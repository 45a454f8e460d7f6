// Package logging provides the structured slog logger shared by the area core.
//
// Records carry service and version attributes. JSON is the default format;
// text is for local development.
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr, discard
//
// Never log passwords, tokens or activation codes.
package logging
