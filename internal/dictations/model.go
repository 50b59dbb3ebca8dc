package dictations

import "time"

// Dictation represents one submitted unit of work: a set of uploaded assets
// and the state of their asynchronous summarization.
type Dictation struct {
	ID               string    `json:"id"`
	Scope            string    `json:"scope"`
	DisplayName      string    `json:"displayName"`
	PasswordHash     string    `json:"passwordHash,omitempty"`
	AudioKeys        []string  `json:"audioKeys"`
	MimeTypes        []string  `json:"mimeTypes,omitempty"`
	Status           string    `json:"status"`
	Summary          string    `json:"summary"`
	Transcript       string    `json:"transcript"`
	CorrectedSummary string    `json:"correctedSummary"`
	CreatedAt        time.Time `json:"createdAt"`
}

// HasPassword reports whether reads and deletes of this record are gated.
func (d Dictation) HasPassword() bool {
	return d.PasswordHash != ""
}

// Terminal reports whether the record reached a final state.
func (d Dictation) Terminal() bool {
	return d.Status == StatusCompleted || d.Status == StatusError
}
