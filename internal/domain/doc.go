// Package domain defines the core value types for the realmsync transfer
// engine.
//
// Types in this package are pure value objects with no behavior beyond
// accessors, no database dependencies, and no storage concerns. They are the
// shared language between the config graph, the exporter, the importer, and
// the blob subsystem.
//
// Rules for this package:
//   - No imports from other internal/ packages
//   - No *sql.DB, no context.Context in struct fields
//   - JSON tags are allowed (they're metadata, not behavior)
//   - Pure helper functions on the types are allowed
//   - Table names, discriminator values, and enums belong here
package domain
