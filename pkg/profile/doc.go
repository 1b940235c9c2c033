// Package profile defines how to execute commands against sets of files.
//
// It provides support for hooks (pre/post execution commands), and source
// filtering to determine which files should be observed by file watchers.
package profile
