package jazzhr

// ApplicantJob links an applicant to a job posting (applicants2jobs row)
type ApplicantJob struct {
	ID          string `json:"id"`
	ApplicantID string `json:"applicant_id"`
	JobID       string `json:"job_id"`
	Rating      string `json:"rating,omitempty"`
	Date        string `json:"date,omitempty"`
}

// Applicant is the detail record for one applicant
type Applicant struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Address   string `json:"address,omitempty"`
	ApplyDate string `json:"apply_date,omitempty"`
}

// FileRecord is a file attached to an applicant, as listed by /files
type FileRecord struct {
	ID          string `json:"id"`
	ApplicantID string `json:"applicant_id"`
	Filename    string `json:"filename"`
	Type        string `json:"type,omitempty"`
}

// FileDetail is a single file with its base64-encoded content
type FileDetail struct {
	ID          string `json:"id"`
	ApplicantID string `json:"applicant_id"`
	Filename    string `json:"filename"`
	FileData    string `json:"file_data"`
}

// Job is a job posting
type Job struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"` // HTML
	Status      string `json:"status,omitempty"`
	Department  string `json:"department,omitempty"`
	City        string `json:"city,omitempty"`
	State       string `json:"state,omitempty"`
	OpenDate    string `json:"original_open_date,omitempty"`
}
