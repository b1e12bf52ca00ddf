package domain

// Call is one inbound telephone interaction, optionally enriched by the
// call-analytics provider. Timestamps are stored as RFC 3339 UTC strings.
type Call struct {
	ID           int64  `db:"id" json:"id"`
	PhoneNumber  string `db:"phone_number" json:"phone_number"`
	Duration     int64  `db:"duration" json:"duration"`
	CallTime     string `db:"call_time" json:"call_time"`
	FollowUp     bool   `db:"follow_up" json:"follow_up"`
	Summary      string `db:"summary" json:"summary"`
	Transcript   string `db:"transcript" json:"transcript"`
	RecordingURL string `db:"recording_url" json:"recording_url"`
}
