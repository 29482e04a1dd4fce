package models

// CandidateRecord identifies one candidate attached to a job posting.
// ID is the numeric identifier extracted from the profile link; ProfileURL is
// the normalized absolute profile page URL.
type CandidateRecord struct {
	ID         string `json:"id"`
	ProfileURL string `json:"profile_url"`
}
