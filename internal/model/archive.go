package model

// ArchiveStatus is the server-reported state of a packaging job.
type ArchiveStatus string

const (
	// ArchivePending means the server has accepted the job but not yet
	// begun packaging.
	ArchivePending ArchiveStatus = "pending"

	// ArchiveStarted means packaging is underway; the archive stream
	// may be opened.
	ArchiveStarted ArchiveStatus = "started"

	// ArchiveCompleted means packaging finished; the archive stream
	// may be opened.
	ArchiveCompleted ArchiveStatus = "completed"

	// ArchiveFailed means the server abandoned the job.
	ArchiveFailed ArchiveStatus = "failed"
)

// Ready reports whether the archive stream can be opened.
func (s ArchiveStatus) Ready() bool {
	return s == ArchiveStarted || s == ArchiveCompleted
}

// Terminal reports whether the job can make no further progress.
func (s ArchiveStatus) Terminal() bool {
	return s == ArchiveCompleted || s == ArchiveFailed
}

// ArchiveJob identifies a server-side packaging job for one exam.
type ArchiveJob struct {
	// ID is the server-assigned download identifier.
	ID string

	// Status is the last observed job status.
	Status ArchiveStatus

	// Reason carries the server's explanation when the job was
	// rejected or failed. Empty otherwise.
	Reason string
}
