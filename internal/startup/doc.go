// Package startup handles configuration loading, environment validation,
// and startup logging for the tagfiler service.
package startup
