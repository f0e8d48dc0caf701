// Package core loads and saves the tables the trace synthesizer works on.
//
// A [Table] is an ordered list of rows over a fixed column set. Each column
// carries a [Kind] inferred when the table is read: int, float, bool or
// string. Missing cells are nil.
//
// # Loading
//
// [Load] reads a delimited file whose first line is the header. The source
// passes through [WrapSource] first, which drops a UTF-8 byte order mark and
// replaces invalid UTF-8. Failures wrap [ErrFileRead] or [ErrParse].
//
// # Saving
//
// [Saver.Save] writes a header row and the records, with no row-number
// column. The write goes to a temp file that is renamed over the target.
// Failed attempts are logged as warnings and retried per the [RetryPolicy]:
//
//	saver := core.NewSaver(logger, core.RetryPolicy{
//	    MaxAttempts:    5,
//	    InitialBackoff: 100 * time.Millisecond,
//	    MaxBackoff:     5 * time.Second,
//	    Multiplier:     2,
//	})
//	res, err := saver.Save(ctx, table, "out/trace.csv")
//	if errors.Is(err, core.ErrSaveExhausted) {
//	    // destination kept failing
//	}
//
// A policy with MaxAttempts <= 0 retries until the write succeeds or ctx is
// done.
//
// # Error Handling
//
// [MapError] turns any error from this package into a [UserMessage] with a
// support code (FILE, SAVE, PATH, REQ and DB families).
package core
