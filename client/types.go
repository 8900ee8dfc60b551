package client

// Result is the outcome of a command that returns a text message.
type Result struct {
	Command string `json:"command"`
	Status  int    `json:"status"`
	Message string `json:"message"`
}

// Image is a downloaded image.
type Image struct {
	Name        string
	ContentType string
	Data        []byte
}

// FetchOptions configures a fetch operation.
type FetchOptions struct {
	URL       string
	LocalPath string // empty = base name of the server's filename, "-" = stdout
}

// FetchResult represents the result of downloading an image.
type FetchResult struct {
	URL         string `json:"url"`
	LocalPath   string `json:"local_path"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size_bytes"`
}
