// Package air implements the HTTP client for the AIR medical-imaging
// retrieval API.
//
// The API is JSON-over-HTTPS POST throughout, with one exception: the
// final archive stream is a form-encoded POST returning raw bytes (see
// OpenArchive).
//
// # Workflow
//
// The three-call download workflow, end to end:
//
//	client := air.NewClient(baseURL)
//	session, _ := client.Authenticate(ctx, creds)
//
//	exams, _ := client.Search(ctx, session, criteria)
//	for _, exam := range exams {
//	    series, _ := client.ListSeries(ctx, session, exam)
//	    job, _ := client.StartArchive(ctx, session, exam, series, project, profile)
//	    for {
//	        status, _ := client.CheckArchive(ctx, session, job, project)
//	        if status.Ready() {
//	            break
//	        }
//	        time.Sleep(100 * time.Millisecond)
//	    }
//	    stream, total, _ := client.OpenArchive(ctx, session, job, project)
//	    // copy stream to disk
//	}
//
// # Raw payload echo-back
//
// The series and download/start endpoints require the exam and series
// objects exactly as the search returned them, unknown fields included.
// model.ExamRecord and model.SeriesRecord keep those payloads in their
// Raw fields, and this package sends Raw rather than re-marshalling the
// decoded structs.
//
// # Errors
//
//   - *AuthError: login rejected or token missing (fatal)
//   - *ArchiveError: server refused to start packaging, with the
//     server's reason (per-exam)
//   - *PollTimeoutError: job never became ready (per-exam)
//
// Transport failures are returned wrapped with the endpoint name.
package air
