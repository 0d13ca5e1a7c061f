// Package fcpxml projects a project.Project into an FCPXML document.
package fcpxml

import (
	"encoding/xml"
	"fmt"
	"io"
	"math"
	"net/url"
	"strconv"

	"github.com/heimdex/mlt2fcpx/internal/project"
	"github.com/heimdex/mlt2fcpx/internal/timecode"
)

const (
	Version     = "1.5"
	DefaultName = "Timeline 1"
	Extension   = ".fcpxml"

	rootFormatID = "r0"
)

type Options struct {
	// GapNodes writes <gap> elements for blanks. When false blanks are
	// skipped but still shift the clips that follow them.
	GapNodes bool
	// Name labels the event and project in the library. Empty means DefaultName.
	Name string
}

// Encoder writes FCPXML documents to an io.Writer.
type Encoder struct {
	w    io.Writer
	opts Options
}

func NewEncoder(w io.Writer, opts Options) *Encoder {
	return &Encoder{w: w, opts: opts}
}

// Encode converts p to FCPXML and writes it.
func (e *Encoder) Encode(p *project.Project) error {
	doc, err := Build(p, e.opts)
	if err != nil {
		return err
	}

	if _, err := io.WriteString(e.w, xml.Header); err != nil {
		return fmt.Errorf("failed to write XML header: %w", err)
	}
	if _, err := io.WriteString(e.w, "<!DOCTYPE fcpxml>\n"); err != nil {
		return fmt.Errorf("failed to write DOCTYPE: %w", err)
	}

	enc := xml.NewEncoder(e.w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode XML: %w", err)
	}
	if err := enc.Flush(); err != nil {
		return fmt.Errorf("failed to flush XML: %w", err)
	}
	if _, err := io.WriteString(e.w, "\n"); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}
	return nil
}

// Build assembles the FCPXML tree for p without serializing it.
func Build(p *project.Project, opts Options) (*Node, error) {
	if p == nil {
		return nil, fmt.Errorf("project cannot be nil")
	}
	if opts.Name == "" {
		opts.Name = DefaultName
	}

	b := &builder{
		opts:    opts,
		root:    p,
		emitted: make(map[*project.Project]bool),
	}

	doc := NewNode("fcpxml", Attr{"version", Version})
	resources := doc.Add("resources")
	if err := b.addFormat(resources, p); err != nil {
		return nil, err
	}
	if err := b.addResources(resources, p); err != nil {
		return nil, err
	}

	library := doc.Add("library")
	event := library.Add("event", Attr{"name", opts.Name})
	proj := event.Add("project", Attr{"name", opts.Name})
	if err := b.addSequence(proj, p, false); err != nil {
		return nil, err
	}

	return doc, nil
}

type builder struct {
	opts Options
	root *project.Project
	// emitted tracks sub-projects whose resources are already in the catalog.
	emitted map[*project.Project]bool
}

func (b *builder) formatID(p *project.Project) string {
	if p == b.root {
		return rootFormatID
	}
	return p.IDPrefix + rootFormatID
}

func (b *builder) addFormat(resources *Node, p *project.Project) error {
	if p.FrameRate() <= 0 {
		return fmt.Errorf("project %q has no frame rate", p.IDPrefix)
	}
	resources.Add("format",
		Attr{"id", b.formatID(p)},
		Attr{"width", strconv.Itoa(p.Width)},
		Attr{"height", strconv.Itoa(p.Height)},
		Attr{"frameDuration", timecode.FrameDuration(p.FrameRate())},
	)
	return nil
}

func (b *builder) addResources(resources *Node, p *project.Project) error {
	for _, id := range p.ClipIDs() {
		clip, _ := p.Clip(id)
		switch r := clip.Resource.(type) {
		case project.FileResource:
			resources.Add("asset",
				Attr{"name", clip.Name},
				Attr{"id", clip.ID},
				Attr{"src", fileURL(r.Path)},
				Attr{"hasVideo", "1"},
				Attr{"duration", timecode.Format(clip.Duration)},
			)
		case project.EmbeddedTimeline:
			if err := b.addEmbedded(resources, clip, r.Project); err != nil {
				return err
			}
		default:
			return fmt.Errorf("clip %q: unsupported resource %T", clip.ID, clip.Resource)
		}
	}
	return nil
}

func (b *builder) addEmbedded(resources *Node, clip *project.Clip, nested *project.Project) error {
	if nested == nil {
		return fmt.Errorf("clip %q: embedded timeline has no project", clip.ID)
	}
	if !b.emitted[nested] {
		b.emitted[nested] = true
		if err := b.addFormat(resources, nested); err != nil {
			return fmt.Errorf("clip %q: %w", clip.ID, err)
		}
		if err := b.addResources(resources, nested); err != nil {
			return fmt.Errorf("clip %q: %w", clip.ID, err)
		}
	}

	media := resources.Add("media", Attr{"name", clip.Name}, Attr{"id", clip.ID})
	return b.addSequence(media, nested, true)
}

// addSequence writes p's sequence under parent. Embedded projects are
// wrapped in a single clip spanning the whole timeline so a reference to
// them behaves like one clip.
func (b *builder) addSequence(parent *Node, p *project.Project, wrap bool) error {
	sequence := parent.Add("sequence", Attr{"format", b.formatID(p)})
	spine := sequence.Add("spine")

	container := spine
	if wrap {
		container = spine.Add("clip", Attr{"duration", timecode.Format(p.Length())})
	}

	for lane, track := range p.Tracks {
		if err := b.addTrack(container, p, track, lane); err != nil {
			return err
		}
	}
	return nil
}

func (b *builder) addTrack(container *Node, p *project.Project, track *project.Track, lane int) error {
	// One frame of padding: MLT out points are inclusive, FCPXML durations are not.
	oneFrame := 1.0 / p.FrameRate()

	var offset float64
	for _, entry := range track.Entries {
		length := entry.Duration()

		var node *Node
		rendered := length

		if entry.IsGap() {
			if !b.opts.GapNodes {
				offset = advance(offset, length)
				continue
			}
			node = container.Add("gap")
		} else {
			clip := entry.Clip
			switch clip.Resource.(type) {
			case project.FileResource:
				node = container.Add(mediaKind(track))
				rendered += oneFrame
			case project.EmbeddedTimeline:
				node = container.Add("ref-clip", Attr{"srcEnable", mediaKind(track)})
				addCompoundTimeMap(node)
			default:
				return fmt.Errorf("clip %q: unsupported resource %T", clip.ID, clip.Resource)
			}
			node.Set("name", clip.Name)
			node.Set("ref", clip.ID)
		}

		node.Set("start", timecode.Format(entry.In))
		node.Set("duration", timecode.Format(rendered))
		node.Set("offset", timecode.Format(offset))
		if lane > 0 {
			node.Set("lane", strconv.Itoa(lane))
		}

		// The position advances by the unpadded length, so a file clip's
		// padded duration overlaps the next entry on the track by one frame.
		offset = advance(offset, length)
	}
	return nil
}

// addCompoundTimeMap adds an identity time map. The second point uses a
// different denominator on purpose: Resolve only imports a ref-clip as a
// compound clip when it carries a retime.
func addCompoundTimeMap(node *Node) {
	tm := node.Add("timeMap")
	tm.Add("timept", Attr{"time", "0/1s"}, Attr{"value", "0/1s"})
	tm.Add("timept", Attr{"time", "1/1s"}, Attr{"value", "10/10s"})
}

func mediaKind(track *project.Track) string {
	if track.IsAudio {
		return "audio"
	}
	return "video"
}

// advance sums track positions at microsecond precision so repeated float
// additions do not turn whole seconds into 999.999ms fractions.
func advance(offset, by float64) float64 {
	return math.Round((offset+by)*1e6) / 1e6
}

func fileURL(path string) string {
	u := url.URL{Scheme: "file", Path: path}
	return u.String()
}
