package tracking

import (
	"io"

	"github.com/cheggaaa/pb/v3"
)

const noBar pb.ProgressBarTemplate = `{{with string . "prefix"}}{{.}} {{end}}{{counters . }} {{with string . "suffix"}} {{.}}{{end}}`

// counterBar is a progress bar of unknown total.
func counterBar(out io.Writer) *pb.ProgressBar {
	bar := noBar.New(-1)
	bar.Set(pb.Bytes, true)
	bar.SetWriter(out)
	return bar
}

// bytesBar is a progress bar of bytes.
func bytesBar(out io.Writer, total int64) *pb.ProgressBar {
	bar := pb.New64(total)
	bar.Set(pb.Bytes, true)
	bar.SetWriter(out)
	return bar
}

func ellipsis(s string, length int) string {
	if len(s) <= length {
		return s
	}
	return "[...]" + s[len(s)-length+5:]
}
