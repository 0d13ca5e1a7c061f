// Package project holds the in-memory timeline model shared by the MLT
// reader and the FCPXML writer. A Project is populated once while parsing
// and treated as read-only afterwards.
package project

import (
	"fmt"
)

// Resource is the media behind a Clip: either a FileResource or an
// EmbeddedTimeline. The set is closed; switch on the concrete type.
type Resource interface {
	resource()
}

// FileResource points at external media by absolute path.
type FileResource struct {
	Path string
}

func (FileResource) resource() {}

// EmbeddedTimeline is a whole sub-project used as a single compound clip.
type EmbeddedTimeline struct {
	Project *Project
}

func (EmbeddedTimeline) resource() {}

type Clip struct {
	ID       string
	Name     string
	Resource Resource
	// Duration is the producer's declared length in seconds.
	Duration float64
}

// Entry is one placement on a track. A nil Clip marks a gap whose length is Out.
type Entry struct {
	Clip *Clip
	In   float64
	Out  float64
}

// NewEntry places the [in, out] cut of clip on a track.
func NewEntry(clip *Clip, in, out float64) (Entry, error) {
	if clip == nil {
		return Entry{}, fmt.Errorf("entry requires a clip")
	}
	if out < in {
		return Entry{}, fmt.Errorf("entry %q: out %.3f before in %.3f", clip.ID, out, in)
	}
	return Entry{Clip: clip, In: in, Out: out}, nil
}

// NewGap returns an empty placement of the given length.
func NewGap(length float64) (Entry, error) {
	if length < 0 {
		return Entry{}, fmt.Errorf("gap length %.3f is negative", length)
	}
	return Entry{In: 0, Out: length}, nil
}

func (e Entry) IsGap() bool {
	return e.Clip == nil
}

// Duration is the rendered length of the entry on its track.
func (e Entry) Duration() float64 {
	return e.Out - e.In
}

type Track struct {
	Entries []Entry
	IsAudio bool
}

func NewTrack(isAudio bool) *Track {
	return &Track{IsAudio: isAudio}
}

func (t *Track) Add(e Entry) {
	t.Entries = append(t.Entries, e)
}

// Project is the root aggregate of a timeline.
type Project struct {
	FrameRateNum int
	FrameRateDen int
	Width        int
	Height       int

	// IDPrefix namespaces clip ids when this project is embedded in another.
	IDPrefix string

	Tracks []*Track

	clips map[string]*Clip
	order []string
}

func New(idPrefix string) *Project {
	return &Project{
		IDPrefix: idPrefix,
		clips:    make(map[string]*Clip),
	}
}

// FrameRate returns frames per second, or 0 when the rate is unset.
func (p *Project) FrameRate() float64 {
	if p.FrameRateDen == 0 {
		return 0
	}
	return float64(p.FrameRateNum) / float64(p.FrameRateDen)
}

// AddClip registers a clip under its id. Ids must be unique.
func (p *Project) AddClip(c *Clip) error {
	if c == nil {
		return fmt.Errorf("nil clip")
	}
	if p.clips == nil {
		p.clips = make(map[string]*Clip)
	}
	if _, exists := p.clips[c.ID]; exists {
		return fmt.Errorf("duplicate clip id %q", c.ID)
	}
	p.clips[c.ID] = c
	p.order = append(p.order, c.ID)
	return nil
}

// Clip looks up a clip by its namespaced id.
func (p *Project) Clip(id string) (*Clip, bool) {
	c, ok := p.clips[id]
	return c, ok
}

// ClipIDs returns clip ids in registration order.
func (p *Project) ClipIDs() []string {
	return append([]string(nil), p.order...)
}

func (p *Project) ClipCount() int {
	return len(p.order)
}

// AddTrack attaches t unless it has no entries. It reports whether the
// track was attached.
func (p *Project) AddTrack(t *Track) bool {
	if t == nil || len(t.Entries) == 0 {
		return false
	}
	p.Tracks = append(p.Tracks, t)
	return true
}

// Length is the latest out point across every entry of every track.
func (p *Project) Length() float64 {
	var latest float64
	for _, t := range p.Tracks {
		for _, e := range t.Entries {
			if e.Out > latest {
				latest = e.Out
			}
		}
	}
	return latest
}

// Embedded returns the distinct sub-projects referenced by this project's
// clips, depth first, each listed once.
func (p *Project) Embedded() []*Project {
	seen := make(map[*Project]bool)
	var out []*Project
	var walk func(*Project)
	walk = func(cur *Project) {
		for _, id := range cur.order {
			switch r := cur.clips[id].Resource.(type) {
			case EmbeddedTimeline:
				if r.Project == nil || seen[r.Project] {
					continue
				}
				seen[r.Project] = true
				walk(r.Project)
				out = append(out, r.Project)
			case FileResource:
			}
		}
	}
	walk(p)
	return out
}
