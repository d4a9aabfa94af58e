package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Job describes a conversion job in a transport-friendly format.
type Job struct {
	ID               string  `json:"id"`
	OriginalFilename string  `json:"originalFilename"`
	OriginalPath     string  `json:"originalPath"`
	VRPath           *string `json:"vrPath"`
	MobileVRPath     *string `json:"mobileVrPath"`
	Status           string  `json:"status"`
	Progress         int     `json:"progress"`
	FileSize         int64   `json:"fileSize"`
	Duration         *int    `json:"duration"`
	Resolution       *string `json:"resolution"`
	ErrorMessage     *string `json:"errorMessage"`
	CreatedAt        string  `json:"createdAt,omitempty"`
	UpdatedAt        string  `json:"updatedAt,omitempty"`
}

// Stage describes one pipeline stage record of a job.
type Stage struct {
	ID           string  `json:"id"`
	JobID        string  `json:"videoId"`
	Name         string  `json:"stepName"`
	Label        string  `json:"label"`
	Status       string  `json:"status"`
	Progress     int     `json:"progress"`
	StartedAt    *string `json:"startedAt"`
	CompletedAt  *string `json:"completedAt"`
	ErrorMessage *string `json:"errorMessage"`
}

// Metadata is the probe summary returned for a media file.
type Metadata struct {
	Duration   int    `json:"duration"`
	Resolution string `json:"resolution"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
}

// Message is the body of simple acknowledgements and error responses.
type Message struct {
	Message string `json:"message"`
}

// LogTail is a page of daemon log lines and the offset to resume from.
type LogTail struct {
	Lines  []string `json:"lines"`
	Offset int64    `json:"offset"`
}

// WorkflowStatus summarizes pipeline execution state.
type WorkflowStatus struct {
	ActiveJobs  []string      `json:"activeJobs"`
	Completed   int           `json:"completed"`
	Failed      int           `json:"failed"`
	LastError   string        `json:"lastError,omitempty"`
	StageHealth []StageHealth `json:"stageHealth"`
}

// StageHealth mirrors readiness reporting for pipeline stages.
type StageHealth struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

// DependencyStatus captures availability of an external dependency.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// CheckResult reports one preflight check.
type CheckResult struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool               `json:"running"`
	PID          int                `json:"pid"`
	Bind         string             `json:"bind"`
	StoreBackend string             `json:"storeBackend"`
	LockFilePath string             `json:"lockFilePath"`
	StartedAt    string             `json:"startedAt,omitempty"`
	Workflow     WorkflowStatus     `json:"workflow"`
	Dependencies []DependencyStatus `json:"dependencies"`
	Checks       []CheckResult      `json:"checks"`
}
