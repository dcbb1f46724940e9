package api

type DeployRequest struct {
	// Path in the repository; the configured path when empty.
	Path    string `json:"path"`
	Content string `json:"content"`
	// Encoding is "base64" for binary content; plain text otherwise.
	Encoding string `json:"encoding,omitempty"`
	Message  string `json:"message,omitempty"`
}

type TouchRequest struct {
	Path string `json:"path"`
}

type DeployResponse struct {
	ID        string `json:"id"`
	CommitID  string `json:"commitId,omitempty"`
	URL       string `json:"url"`
	Created   bool   `json:"created"`
	Unchanged bool   `json:"unchanged,omitempty"`
	Warning   string `json:"warning,omitempty"`
}

type ErrorResponse struct {
	ID      string `json:"id,omitempty"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Detail  string `json:"detail"`
}

type FilesResponse struct {
	Target  string      `json:"target"`
	Files   []FileEntry `json:"files"`
	Limit   int         `json:"limit"`
	AtLimit bool        `json:"atLimit"`
}

type FileEntry struct {
	Path string `json:"path"`
	Size int    `json:"size"`
	SHA  string `json:"sha"`
}
