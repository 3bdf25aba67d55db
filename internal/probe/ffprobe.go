package probe

import (
	"bytes"
	"context"
	"log"
	"os/exec"
	"strings"
)

// FFProbe shells out to ffprobe to check that upload bytes actually demux
// as an mp3 container, not just carry the right magic bytes.
type FFProbe struct {
	Binary string
}

func NewFFProbe() FFProbe {
	return FFProbe{Binary: "ffprobe"}
}

func (f FFProbe) CanDecode(ctx context.Context, blob []byte) bool {
	cmd := exec.CommandContext(ctx, f.Binary,
		"-v", "error",
		"-show_entries", "format=format_name",
		"-of", "csv=p=0",
		"-i", "pipe:0",
	)
	cmd.Stdin = bytes.NewReader(blob)

	out, err := cmd.Output()
	if err != nil {
		log.Printf("cmd.Output() for ffprobe. %+v", err)
		return false
	}

	return strings.Contains(string(out), "mp3")
}
