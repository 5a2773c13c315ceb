package download

import "io"

// ProgressWriter wraps a writer to track cumulative bytes written.
//
// The orchestrator streams each archive through a ProgressWriter so the
// caller can render a progress display:
//
//	pw := &ProgressWriter{
//	    Writer: file,
//	    Total:  contentLength,
//	    OnUpdate: func(written, total int64) {
//	        fmt.Printf("%d / %d bytes\n", written, total)
//	    },
//	}
//	io.Copy(pw, stream)
type ProgressWriter struct {
	// Writer is the underlying writer to write data to.
	Writer io.Writer

	// Total is the expected total bytes. 0 when the server did not
	// declare a Content-Length.
	Total int64

	// Written is the cumulative number of bytes written.
	Written int64

	// OnUpdate is called after each Write with (written, total).
	OnUpdate func(written, total int64)
}

// Write implements io.Writer, tracking progress and calling OnUpdate.
func (pw *ProgressWriter) Write(p []byte) (int, error) {
	n, err := pw.Writer.Write(p)
	pw.Written += int64(n)
	if pw.OnUpdate != nil {
		pw.OnUpdate(pw.Written, pw.Total)
	}
	return n, err
}
