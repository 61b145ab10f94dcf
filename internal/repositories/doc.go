// Package repositories implements SQLite persistence for run history.
//
// Key Implementations:
//   - [RunRepository] : export and import runs with their per-item errors
//
// Schema is owned by the embedded migrations in the shared package; repositories assume
// [shared.RunMigrations] has been applied.
package repositories
