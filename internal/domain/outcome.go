package domain

import "fmt"

type SyncStatus string

const (
	StatusUploaded      SyncStatus = "uploaded"
	StatusSkippedExists SyncStatus = "skipped-exists"
	StatusFailed        SyncStatus = "failed"
)

type FailureReason string

const (
	ReasonMissingField  FailureReason = "missing-field"
	ReasonInvalidDate   FailureReason = "invalid-date"
	ReasonDownloadError FailureReason = "download-error"
	ReasonUploadError   FailureReason = "upload-error"
	ReasonCancelled     FailureReason = "cancelled"
)

// SyncOutcome is the result of synchronizing one record. Reason and Err are set only
// when Status is StatusFailed.
type SyncOutcome struct {
	Identifier string
	Key        string
	Status     SyncStatus
	Reason     FailureReason
	Err        error
}

func (o SyncOutcome) String() string {
	if o.Status == StatusFailed {
		return fmt.Sprintf("%s: failed(%s): %v", o.Identifier, o.Reason, o.Err)
	}
	return fmt.Sprintf("%s: %s", o.Identifier, o.Status)
}

type SyncReport struct {
	Outcomes []SyncOutcome
	Uploaded int
	Skipped  int
	Failed   int
}

func NewSyncReport(outcomes []SyncOutcome) SyncReport {
	report := SyncReport{Outcomes: outcomes}
	for _, o := range outcomes {
		switch o.Status {
		case StatusUploaded:
			report.Uploaded++
		case StatusSkippedExists:
			report.Skipped++
		default:
			report.Failed++
		}
	}
	return report
}

func (r SyncReport) Failures() []SyncOutcome {
	var failed []SyncOutcome
	for _, o := range r.Outcomes {
		if o.Status == StatusFailed {
			failed = append(failed, o)
		}
	}
	return failed
}

type PurgeReport struct {
	Pages   int
	Scanned int
	Matched int
	Deleted int
	DryRun  bool
	Errors  []KeyError
}
