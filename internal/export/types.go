package export

import "fmt"

const (
	FormatFCPXML = "fcpxml"
	FormatEDL    = "edl"
)

// Extension returns the file extension, dot included, for an output format.
func Extension(format string) (string, error) {
	switch format {
	case "", FormatFCPXML:
		return ".fcpxml", nil
	case FormatEDL:
		return ".edl", nil
	default:
		return "", fmt.Errorf("unsupported format %q", format)
	}
}

type ConvertRequest struct {
	InputPath  string `json:"input_path"`
	OutputDir  string `json:"output_dir,omitempty"`
	OutputName string `json:"output_name,omitempty"`
	Format     string `json:"format,omitempty"`
}

type ConvertResponse struct {
	ID            string `json:"id,omitempty"`
	Status        string `json:"status"`
	Format        string `json:"format"`
	InputPath     string `json:"input_path"`
	OutputPath    string `json:"output_path"`
	ClipCount     int    `json:"clip_count"`
	TrackCount    int    `json:"track_count"`
	EmbeddedCount int    `json:"embedded_count"`
	Bytes         int64  `json:"bytes"`
	DurationMs    int64  `json:"duration_ms"`
}

// Event is one EDL edit: a source cut placed at a record position.
type Event struct {
	ClipName  string
	MediaPath string
	Channel   string
	StartMs   int
	EndMs     int
	RecordMs  int
}
