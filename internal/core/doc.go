// Package core is the import engine: it takes a parsed spreadsheet, maps
// its headers onto a target table, validates and coerces the rows, and
// submits them one record at a time while accounting for partial failure.
//
// The package has no transport dependencies. Web handlers, the CLI and tests
// drive it through [Service].
//
// # Pipeline
//
//  1. [AutoMap] proposes a [ColumnMapping] per header (greedy, file order)
//  2. The user edits mappings, rows, or applies a [MappingTemplate]
//  3. [Validate] reports every cell problem as a [ValidationError]
//  4. [Prepare] coerces rows into [PreparedRecord] values and fills
//     required columns from defaults and [SyntheticFallbacks]
//  5. The [Submitter] posts each record; rejections are classified into
//     (row, column, message) by [ClassifyMessage]
//  6. The run ends with an [ImportResult] and an [AuditLog] entry
//
// # Sessions
//
// A session moves through Loaded, Mapped, Previewed and Importing before
// ending Completed or CompletedWithErrors. Editing a previewed session sends
// it back to Mapped. An import starts only from Previewed with zero
// validation errors and every required column covered.
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError].
// Row-level submission failures are never Go errors; they are counted in
// the ImportResult.
package core
