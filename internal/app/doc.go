// Package app contains the core application logic. It defines the main App
// struct, its configuration, and one method per use case (commit, play,
// query, worker and so on), decoupled from any specific entrypoint like a
// CLI or server. Results are written to the App's output writer as JSON
// lines or YAML documents.
package app
