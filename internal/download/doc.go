// Package download provides the download orchestration logic for
// retrieving exam archives from AIR.
//
// # Manager
//
// The Manager coordinates one run end to end:
//
//  1. Resolve credentials and log in
//  2. Search for exams by accession number or MRN
//  3. Apply exam-level inclusion filters (modality, description)
//  4. Per exam: resolve the destination path, fetch and filter series,
//     start the server-side packaging job, poll until ready, stream
//     the archive to disk
//
// # Basic Usage
//
//	manager := download.NewManager(settings, func(event download.ProgressEvent) {
//	    fmt.Println(event.Message)
//	})
//
//	if err := manager.Login(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	results, err := manager.Run(ctx, criteria)
//
// # Failure isolation
//
// Configuration and authentication problems are fatal and returned from
// Login/Run. Everything that can go wrong for a single exam (series
// fetch, archive rejection, poll timeout, stream failure) is captured
// in that exam's ExamResult and the run continues with the next exam.
//
// # Polling
//
// The archive readiness poll runs at a fixed 100ms interval under a
// configurable wall-clock deadline (Settings.PollTimeout). A job that
// never becomes ready yields an *air.PollTimeoutError for that exam.
//
// # Progress Tracking
//
// Run-level messages are reported via the ProgressEvent callback;
// byte-level streaming progress goes through the optional transfer
// callback (SetTransferFunc), fed by ProgressWriter.
package download
