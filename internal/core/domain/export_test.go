package domain

import "testing"

func TestExportStatusConstants(t *testing.T) {
	tests := []struct {
		status ExportStatus
		want   string
	}{
		{ExportStatusSuccess, "success"},
		{ExportStatusPartial, "partial"},
		{ExportStatusFailed, "failed"},
		{ExportStatusNotConnected, "not_connected"},
		{ExportStatusBusy, "busy"},
	}

	for _, tt := range tests {
		if string(tt.status) != tt.want {
			t.Errorf("expected %q, got %q", tt.want, tt.status)
		}
	}
}

func TestExportOutcome_Succeeded(t *testing.T) {
	tests := []struct {
		status ExportStatus
		want   bool
	}{
		{ExportStatusSuccess, true},
		{ExportStatusPartial, true},
		{ExportStatusFailed, false},
		{ExportStatusNotConnected, false},
		{ExportStatusBusy, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			o := &ExportOutcome{Status: tt.status}
			if got := o.Succeeded(); got != tt.want {
				t.Errorf("Succeeded() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExportReport_Outcome(t *testing.T) {
	report := &ExportReport{
		Outcomes: []*ExportOutcome{
			{LMS: LMSTypeCanvas, Status: ExportStatusSuccess},
			{LMS: LMSTypeMoodle, Status: ExportStatusNotConnected},
		},
	}

	if o := report.Outcome(LMSTypeMoodle); o == nil || o.Status != ExportStatusNotConnected {
		t.Errorf("unexpected moodle outcome: %+v", o)
	}
	if report.AllSucceeded() {
		t.Error("expected AllSucceeded false with a not-connected target")
	}

	report.Outcomes[1].Status = ExportStatusPartial
	if !report.AllSucceeded() {
		t.Error("expected AllSucceeded true when every target synced")
	}

	if (&ExportReport{}).AllSucceeded() {
		t.Error("empty report should not count as success")
	}
}
