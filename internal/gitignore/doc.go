// Package gitignore is used by the scanner (internal/scanner) to decide which
// files under a knowledge base directory are eligible for indexing.
//
// Supported syntax:
//   - Basic pattern matching (*.log, temp/)
//   - Wildcard patterns (*, ?, **)
//   - Rooted patterns (/build)
//   - Negation patterns (!important.log)
//   - Directory-only patterns (build/)
//   - Nested gitignore file support
//   - Thread-safe matching
//
// Usage:
//
//	m := gitignore.New()
//	m.AddPattern("*.log")
//	m.AddPattern("!important.log")
//	m.AddPattern("/build/")
//
//	if m.Match("draft.log", false) {
//	    // File is excluded from the index
//	}
//
// For nested gitignore files, each one is added with the directory it was
// found in as its base, so patterns only apply under that subtree:
//
//	m.AddFromFile("/path/to/vault/.gitignore", "")
//	m.AddFromFile("/path/to/vault/archive/.gitignore", "archive")
package gitignore
