package mlt

import (
	"encoding/xml"
	"fmt"
	"io"
)

const (
	// BlackTrackID is the generated background producer Kdenlive adds to
	// every project.
	BlackTrackID = "black_track"
	// MainBinID is the playlist Kdenlive uses as its asset bin.
	MainBinID = "main_bin"

	PropResource     = "resource"
	PropOriginalURL  = "kdenlive:originalurl"
	PropClipName     = "kdenlive:clipname"
	PropAudioTrack   = "kdenlive:audio_track"
	itemBlank        = "blank"
	itemEntry        = "entry"
	attrFrameRateNum = "frame_rate_num"
	attrFrameRateDen = "frame_rate_den"
	attrWidth        = "width"
	attrHeight       = "height"

	elemMLT      = "mlt"
	elemProfile  = "profile"
	elemProducer = "producer"
	elemPlaylist = "playlist"
	elemTractor  = "tractor"
	elemTrack    = "track"
	elemProperty = "property"
)

// Document is the root <mlt> element. Producers, playlists and tractors are
// collected in document order wherever they appear below the root, so a
// playlist written inline inside a tractor's <multitrack> is found too.
type Document struct {
	Root      string
	Profiles  []Profile
	Producers []Producer
	Playlists []Playlist
	Tractors  []Tractor
}

// Profile carries the project's video format. Attributes are kept as text
// so absent and malformed values can be told apart.
type Profile struct {
	XMLName      xml.Name `xml:"profile"`
	FrameRateNum string   `xml:"frame_rate_num,attr"`
	FrameRateDen string   `xml:"frame_rate_den,attr"`
	Width        string   `xml:"width,attr"`
	Height       string   `xml:"height,attr"`
}

type Property struct {
	Name  string `xml:"name,attr"`
	Value string `xml:",chardata"`
}

type Producer struct {
	XMLName    xml.Name   `xml:"producer"`
	ID         string     `xml:"id,attr"`
	In         string     `xml:"in,attr"`
	Out        string     `xml:"out,attr"`
	Properties []Property `xml:"property"`
}

// Property returns the value of the named property and whether it exists.
func (p *Producer) Property(name string) (string, bool) {
	return lookup(p.Properties, name)
}

// PlaylistItem is a <blank> or <entry> child of a playlist.
type PlaylistItem struct {
	XMLName  xml.Name
	Length   string `xml:"length,attr"`
	Producer string `xml:"producer,attr"`
	In       string `xml:"in,attr"`
	Out      string `xml:"out,attr"`
}

func (i PlaylistItem) IsBlank() bool { return i.XMLName.Local == itemBlank }
func (i PlaylistItem) IsEntry() bool { return i.XMLName.Local == itemEntry }

type Playlist struct {
	XMLName    xml.Name       `xml:"playlist"`
	ID         string         `xml:"id,attr"`
	Properties []Property     `xml:"property"`
	Children   []PlaylistItem `xml:",any"`
}

// Items returns the blank and entry children in document order.
func (p *Playlist) Items() []PlaylistItem {
	items := make([]PlaylistItem, 0, len(p.Children))
	for _, c := range p.Children {
		if c.IsBlank() || c.IsEntry() {
			items = append(items, c)
		}
	}
	return items
}

type TrackRef struct {
	Producer string `xml:"producer,attr"`
}

type Tractor struct {
	ID         string
	Properties []Property
	// TrackRefs lists <track> children in document order, whether direct
	// or under a <multitrack>.
	TrackRefs []TrackRef
}

func (t *Tractor) Property(name string) (string, bool) {
	return lookup(t.Properties, name)
}

// IsAudio reports whether the tractor carries the audio-track marker.
func (t *Tractor) IsAudio() bool {
	_, ok := t.Property(PropAudioTrack)
	return ok
}

// Tracks returns every track reference, whether listed directly or under
// a <multitrack>.
func (t *Tractor) Tracks() []TrackRef {
	return t.TrackRefs
}

func lookup(props []Property, name string) (string, bool) {
	for _, p := range props {
		if p.Name == name {
			return p.Value, true
		}
	}
	return "", false
}

// Decode parses an MLT XML document. The root element must be <mlt>.
func Decode(r io.Reader) (*Document, error) {
	dec := xml.NewDecoder(r)

	var (
		doc     Document
		sawRoot bool
		// open element names, innermost last
		stack []string
		// indexes into doc.Tractors of the open tractors, innermost last
		tractors []int
		// index into the innermost tractor's TrackRefs of an open <track>, or -1
		tracks []int
	)

	parent := func() string {
		if len(stack) == 0 {
			return ""
		}
		return stack[len(stack)-1]
	}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to decode MLT XML: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if !sawRoot {
				if t.Name.Local != elemMLT {
					return nil, fmt.Errorf("failed to decode MLT XML: root element is <%s>, want <%s>", t.Name.Local, elemMLT)
				}
				sawRoot = true
				doc.Root = attr(t, "root")
				stack = append(stack, t.Name.Local)
				continue
			}

			switch t.Name.Local {
			case elemProfile:
				var prof Profile
				if err := dec.DecodeElement(&prof, &t); err != nil {
					return nil, fmt.Errorf("failed to decode <profile>: %w", err)
				}
				doc.Profiles = append(doc.Profiles, prof)
				continue
			case elemProducer:
				var prod Producer
				if err := dec.DecodeElement(&prod, &t); err != nil {
					return nil, fmt.Errorf("failed to decode <producer>: %w", err)
				}
				doc.Producers = append(doc.Producers, prod)
				continue
			case elemPlaylist:
				var pl Playlist
				if err := dec.DecodeElement(&pl, &t); err != nil {
					return nil, fmt.Errorf("failed to decode <playlist>: %w", err)
				}
				doc.Playlists = append(doc.Playlists, pl)
				// An inline playlist is what its enclosing <track> refers to.
				if parent() == elemTrack && len(tractors) > 0 && tracks[len(tracks)-1] >= 0 {
					ref := &doc.Tractors[tractors[len(tractors)-1]].TrackRefs[tracks[len(tracks)-1]]
					if ref.Producer == "" {
						ref.Producer = pl.ID
					}
				}
				continue
			case elemProperty:
				if parent() == elemTractor {
					var prop Property
					if err := dec.DecodeElement(&prop, &t); err != nil {
						return nil, fmt.Errorf("failed to decode tractor <property>: %w", err)
					}
					tr := &doc.Tractors[tractors[len(tractors)-1]]
					tr.Properties = append(tr.Properties, prop)
					continue
				}
			case elemTractor:
				doc.Tractors = append(doc.Tractors, Tractor{ID: attr(t, "id")})
				tractors = append(tractors, len(doc.Tractors)-1)
			case elemTrack:
				idx := -1
				if len(tractors) > 0 {
					tr := &doc.Tractors[tractors[len(tractors)-1]]
					tr.TrackRefs = append(tr.TrackRefs, TrackRef{Producer: attr(t, "producer")})
					idx = len(tr.TrackRefs) - 1
				}
				tracks = append(tracks, idx)
			}
			stack = append(stack, t.Name.Local)

		case xml.EndElement:
			if len(stack) == 0 {
				continue
			}
			switch stack[len(stack)-1] {
			case elemTractor:
				tractors = tractors[:len(tractors)-1]
			case elemTrack:
				tracks = tracks[:len(tracks)-1]
			}
			stack = stack[:len(stack)-1]
		}
	}

	if !sawRoot {
		return nil, fmt.Errorf("failed to decode MLT XML: no <%s> element", elemMLT)
	}
	return &doc, nil
}

func attr(t xml.StartElement, name string) string {
	for _, a := range t.Attr {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}
