package tagtpl

// Config holds all configuration options for the renderer.
type Config struct {
	// IncludeRoot is the base directory that [tag::include(...)] paths are
	// resolved against. An empty string leaves include paths untouched, so
	// templates may reference absolute or process-relative paths.
	IncludeRoot string `json:"include_root"`

	// MaxIncludeBytes sets a hard upper limit on the size of a file pulled
	// in by an include tag. Files larger than this are treated as not
	// readable. A value of 0 disables the check.
	MaxIncludeBytes int64 `json:"max_include_bytes"`
}

// DefaultConfig returns a Config with safe default values.
// IncludeRoot is empty by default, meaning include paths are taken as-is.
func DefaultConfig() *Config {
	return &Config{
		IncludeRoot:     "",
		MaxIncludeBytes: 4 << 20, // 4MB
	}
}
