package export

import (
	"fmt"
	"math"
	"strings"

	"github.com/heimdex/mlt2fcpx/internal/project"
)

const (
	channelVideo = "V"
	channelAudio = "A"
)

// Events flattens every non-gap entry of p into EDL events. Record positions
// follow each track's own timeline, so gaps shift the entries after them.
// Embedded timelines appear as a single event without a media path.
func Events(p *project.Project) []Event {
	var events []Event
	for _, track := range p.Tracks {
		channel := channelVideo
		if track.IsAudio {
			channel = channelAudio
		}

		var recordMs int
		for _, entry := range track.Entries {
			durationMs := secondsToMs(entry.Duration())
			if entry.IsGap() {
				recordMs += durationMs
				continue
			}

			ev := Event{
				ClipName: entry.Clip.Name,
				Channel:  channel,
				StartMs:  secondsToMs(entry.In),
				EndMs:    secondsToMs(entry.Out),
				RecordMs: recordMs,
			}
			if r, ok := entry.Clip.Resource.(project.FileResource); ok {
				ev.MediaPath = r.Path
			}
			events = append(events, ev)
			recordMs += durationMs
		}
	}
	return events
}

// ProjectEDL renders p as a CMX3600 edit decision list.
func ProjectEDL(p *project.Project, title string) string {
	return GenerateEDL(Events(p), title, p.FrameRate())
}

func GenerateEDL(events []Event, title string, frameRate float64) string {
	fps := int(math.Round(frameRate))
	if fps <= 0 {
		fps = 30
	}

	isDropFrame := math.Abs(frameRate-29.97) < 0.01 || math.Abs(frameRate-59.94) < 0.01

	lines := []string{fmt.Sprintf("TITLE: %s", title)}
	if isDropFrame {
		lines = append(lines, "FCM: DROP FRAME")
	} else {
		lines = append(lines, "FCM: NON-DROP FRAME")
	}
	lines = append(lines, "")

	for i, ev := range events {
		channel := ev.Channel
		if channel == "" {
			channel = channelVideo
		}
		durationMs := ev.EndMs - ev.StartMs

		lines = append(lines,
			fmt.Sprintf("%03d  %-8s %-5s C        %s %s %s %s", i+1, "AX", channel,
				msToTimecode(ev.StartMs, fps), msToTimecode(ev.EndMs, fps),
				msToTimecode(ev.RecordMs, fps), msToTimecode(ev.RecordMs+durationMs, fps)),
			fmt.Sprintf("* FROM CLIP NAME:  %s", ev.ClipName),
		)
		if ev.MediaPath != "" {
			lines = append(lines, fmt.Sprintf("* MEDIA PATH:  %s", ev.MediaPath))
		}
	}

	lines = append(lines, "")
	return strings.Join(lines, "\n")
}

func secondsToMs(s float64) int {
	return int(math.Round(s * 1000))
}

func msToTimecode(ms int, fps int) string {
	totalFrames := int(math.Round(float64(ms) * float64(fps) / 1000.0))
	frames := totalFrames % fps
	totalSeconds := totalFrames / fps
	seconds := totalSeconds % 60
	totalMinutes := totalSeconds / 60
	minutes := totalMinutes % 60
	hours := totalMinutes / 60
	return fmt.Sprintf("%02d:%02d:%02d:%02d", hours, minutes, seconds, frames)
}
