// Package config provides generic configuration loading for skan.
//
// It wraps YAML decoding and JSON schema validation behind a single
// [Loader] API shared by all configuration kinds.
package config
