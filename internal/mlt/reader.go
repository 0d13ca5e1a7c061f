// Package mlt reads Kdenlive/MLT XML timelines into a project.Project.
package mlt

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/heimdex/mlt2fcpx/internal/project"
	"github.com/heimdex/mlt2fcpx/internal/timecode"
)

const (
	DefaultMaxEmbedDepth = 16

	rootPrefix = "ROOT_"
)

// TimelineExtensions are the file extensions treated as nested timelines
// when compound-clip embedding is enabled.
var TimelineExtensions = []string{".kdenlive", ".mlt"}

// speedPrefix matches the "<rate>:" marker Kdenlive prepends to
// time-remapped resources.
var speedPrefix = regexp.MustCompile(`^[0-9.]+:`)

type Options struct {
	// EmbedCompoundClips reads producers that point at other timelines as
	// nested projects instead of plain files.
	EmbedCompoundClips bool
	// MaxEmbedDepth bounds nested reads; zero means DefaultMaxEmbedDepth.
	MaxEmbedDepth int
}

// Reader builds projects from MLT documents. A Reader holds no per-read
// state and may be shared.
type Reader struct {
	opts   Options
	logger *slog.Logger
	open   func(name string) (io.ReadCloser, error)
}

func NewReader(opts Options, logger *slog.Logger) *Reader {
	if opts.MaxEmbedDepth <= 0 {
		opts.MaxEmbedDepth = DefaultMaxEmbedDepth
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Reader{
		opts:   opts,
		logger: logger,
		open: func(name string) (io.ReadCloser, error) {
			return os.Open(name)
		},
	}
}

// ReadFile parses the document at path.
func (r *Reader) ReadFile(path string) (*project.Project, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("invalid path %q: %w", path, err)
	}
	p, _, err := r.readFile(abs, 0, nil)
	return p, err
}

// Read parses a document from src. dir is used as the media root when the
// document does not declare one; it may be empty.
func (r *Reader) Read(src io.Reader, dir string) (*project.Project, error) {
	p, _, err := r.read(src, "", dir, 0, nil)
	return p, err
}

func (r *Reader) readFile(path string, seq int, chain []string) (*project.Project, int, error) {
	f, err := r.open(path)
	if err != nil {
		return nil, seq, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	chain = append(append([]string(nil), chain...), path)
	return r.read(f, path, filepath.Dir(path), seq, chain)
}

// read runs one document through the settings, producers and tracks phases.
// seq numbers this document among all documents of the conversion; the
// returned value is the next free number.
func (r *Reader) read(src io.Reader, path, dir string, seq int, chain []string) (*project.Project, int, error) {
	doc, err := Decode(src)
	if err != nil {
		return nil, seq, &ParseError{Path: path, Err: err}
	}

	st := &readState{
		reader:    r,
		doc:       doc,
		path:      path,
		dir:       dir,
		chain:     chain,
		project:   project.New(r.idPrefix(seq)),
		next:      seq + 1,
		byPath:    make(map[string]string),
		canonical: make(map[string]string),
		logger:    r.logger.With("document", displayPath(path), "id_prefix", r.idPrefix(seq)),
	}

	if err := st.readSettings(); err != nil {
		return nil, st.next, err
	}
	if err := st.readProducers(); err != nil {
		return nil, st.next, err
	}
	if err := st.readTracks(); err != nil {
		return nil, st.next, err
	}

	return st.project, st.next, nil
}

func (r *Reader) idPrefix(seq int) string {
	if seq == 0 {
		if r.opts.EmbedCompoundClips {
			return rootPrefix
		}
		return ""
	}
	return fmt.Sprintf("EMB_%02d_", seq)
}

type readState struct {
	reader  *Reader
	doc     *Document
	path    string
	dir     string
	chain   []string
	project *project.Project
	next    int
	logger  *slog.Logger

	// byPath maps an absolute resource path to its canonical clip id.
	byPath map[string]string
	// canonical maps every namespaced producer id to its canonical clip id.
	canonical map[string]string
}

func (s *readState) fail(element, id, attr string, err error) error {
	return &ParseError{Path: s.path, Element: element, ID: id, Attr: attr, Err: err}
}

func (s *readState) readSettings() error {
	if len(s.doc.Profiles) == 0 {
		return s.fail("profile", "", "", ErrMissingProperty)
	}
	prof := s.doc.Profiles[0]

	num, err := s.intAttr(attrFrameRateNum, prof.FrameRateNum)
	if err != nil {
		return err
	}
	den, err := s.intAttr(attrFrameRateDen, prof.FrameRateDen)
	if err != nil {
		return err
	}
	if den == 0 {
		return s.fail("profile", "", attrFrameRateDen, fmt.Errorf("%w: zero frame rate denominator", ErrMissingProperty))
	}
	width, err := s.intAttr(attrWidth, prof.Width)
	if err != nil {
		return err
	}
	height, err := s.intAttr(attrHeight, prof.Height)
	if err != nil {
		return err
	}

	s.project.FrameRateNum = num
	s.project.FrameRateDen = den
	s.project.Width = width
	s.project.Height = height

	s.logger.Debug("project format",
		"width", width,
		"height", height,
		"frame_rate", fmt.Sprintf("%.2f", s.project.FrameRate()),
	)
	return nil
}

func (s *readState) intAttr(name, value string) (int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, s.fail("profile", "", name, ErrMissingProperty)
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, s.fail("profile", "", name, fmt.Errorf("%w: %q is not an integer", ErrMissingProperty, value))
	}
	return n, nil
}

func (s *readState) mediaRoot() (string, error) {
	if s.doc.Root != "" {
		return s.doc.Root, nil
	}
	if s.dir != "" {
		return s.dir, nil
	}
	return "", s.fail("mlt", "", "root", ErrMissingProperty)
}

func (s *readState) readProducers() error {
	root, err := s.mediaRoot()
	if err != nil {
		return err
	}

	for i := range s.doc.Producers {
		prod := &s.doc.Producers[i]
		if prod.ID == BlackTrackID {
			continue
		}
		if prod.ID == "" {
			return s.fail("producer", fmt.Sprintf("#%d", i), "id", ErrMissingProperty)
		}
		clipID := s.project.IDPrefix + prod.ID

		name, ok := prod.Property(PropOriginalURL)
		if !ok {
			name, ok = prod.Property(PropResource)
		}
		if !ok {
			return s.fail("producer", prod.ID, PropResource, ErrMissingProperty)
		}
		name = strings.TrimSpace(name)
		if loc := speedPrefix.FindStringIndex(name); loc != nil {
			// Time remapping is not carried over; only the media path is kept.
			s.logger.Debug("dropping speed marker", "producer", prod.ID, "speed", strings.TrimSuffix(name[:loc[1]], ":"))
			name = name[loc[1]:]
		}

		if prod.Out == "" {
			return s.fail("producer", prod.ID, "out", ErrMissingProperty)
		}
		duration, err := timecode.Parse(prod.Out)
		if err != nil {
			return s.fail("producer", prod.ID, "out", err)
		}

		resourcePath := resolvePath(root, name)
		if canonical, seen := s.byPath[resourcePath]; seen {
			s.canonical[clipID] = canonical
			s.logger.Debug("aliased producer", "clip_id", clipID, "canonical", canonical)
			continue
		}

		resource, err := s.resource(prod.ID, resourcePath)
		if err != nil {
			return err
		}

		clip := &project.Clip{
			ID:       clipID,
			Name:     clipName(prod, resourcePath),
			Resource: resource,
			Duration: duration,
		}
		if err := s.project.AddClip(clip); err != nil {
			return s.fail("producer", prod.ID, "id", err)
		}
		s.canonical[clipID] = clipID
		s.byPath[resourcePath] = clipID
		s.logger.Debug("clip", "clip_id", clipID, "path", resourcePath)
	}

	s.logger.Debug("parsed clips", "count", s.project.ClipCount())
	return nil
}

func (s *readState) resource(producerID, resourcePath string) (project.Resource, error) {
	if !s.reader.opts.EmbedCompoundClips || !isTimeline(resourcePath) {
		return project.FileResource{Path: resourcePath}, nil
	}

	for _, p := range s.chain {
		if p == resourcePath {
			return nil, s.fail("producer", producerID, PropResource,
				&nestingError{path: resourcePath, err: fmt.Errorf("timeline embeds itself")})
		}
	}
	if len(s.chain) >= s.reader.opts.MaxEmbedDepth {
		return nil, s.fail("producer", producerID, PropResource,
			&nestingError{path: resourcePath, err: fmt.Errorf("embedding deeper than %d levels", s.reader.opts.MaxEmbedDepth)})
	}

	s.logger.Info("reading embedded project", "path", resourcePath)
	nested, next, err := s.reader.readFile(resourcePath, s.next, s.chain)
	s.next = next
	if err != nil {
		return nil, s.fail("producer", producerID, PropResource, &nestingError{path: resourcePath, err: err})
	}
	return project.EmbeddedTimeline{Project: nested}, nil
}

func (s *readState) readTracks() error {
	audio := make(map[string]bool)
	for i := range s.doc.Tractors {
		tr := &s.doc.Tractors[i]
		if !tr.IsAudio() {
			continue
		}
		for _, ref := range tr.Tracks() {
			audio[ref.Producer] = true
		}
		s.logger.Debug("audio tractor", "tractor", tr.ID)
	}

	for i := range s.doc.Playlists {
		pl := &s.doc.Playlists[i]
		if pl.ID == MainBinID {
			continue
		}

		track := project.NewTrack(audio[pl.ID])
		s.logger.Debug("playlist", "playlist", pl.ID, "audio", track.IsAudio)

		for _, item := range pl.Items() {
			entry, err := s.entry(pl.ID, item)
			if err != nil {
				return err
			}
			track.Add(entry)
		}

		if !s.project.AddTrack(track) {
			s.logger.Debug("dropping empty playlist", "playlist", pl.ID)
		}
	}
	return nil
}

func (s *readState) entry(playlistID string, item PlaylistItem) (project.Entry, error) {
	if item.IsBlank() {
		if item.Length == "" {
			return project.Entry{}, s.fail("playlist", playlistID, "blank length", ErrMissingProperty)
		}
		length, err := timecode.Parse(item.Length)
		if err != nil {
			return project.Entry{}, s.fail("playlist", playlistID, "blank length", err)
		}
		s.logger.Debug("blank", "playlist", playlistID, "length", length)
		return project.NewGap(length)
	}

	if item.Producer == "" {
		return project.Entry{}, s.fail("playlist", playlistID, "entry producer", ErrMissingProperty)
	}
	producerID := s.project.IDPrefix + item.Producer
	clipID, ok := s.canonical[producerID]
	if !ok {
		return project.Entry{}, s.fail("playlist", playlistID, "entry producer",
			fmt.Errorf("%w: producer %q", ErrUnresolvedReference, item.Producer))
	}
	clip, ok := s.project.Clip(clipID)
	if !ok {
		return project.Entry{}, s.fail("playlist", playlistID, "entry producer",
			fmt.Errorf("%w: clip %q", ErrUnresolvedReference, clipID))
	}

	if item.In == "" || item.Out == "" {
		return project.Entry{}, s.fail("playlist", playlistID, "entry in/out", ErrMissingProperty)
	}
	in, err := timecode.Parse(item.In)
	if err != nil {
		return project.Entry{}, s.fail("playlist", playlistID, "entry in", err)
	}
	out, err := timecode.Parse(item.Out)
	if err != nil {
		return project.Entry{}, s.fail("playlist", playlistID, "entry out", err)
	}

	entry, err := project.NewEntry(clip, in, out)
	if err != nil {
		return project.Entry{}, s.fail("playlist", playlistID, "entry in/out", fmt.Errorf("%w: %v", ErrInvalidRange, err))
	}
	s.logger.Debug("entry", "playlist", playlistID, "producer", producerID, "in", in, "out", out)
	return entry, nil
}

// resolvePath joins name onto root unless name is already absolute.
func resolvePath(root, name string) string {
	if filepath.IsAbs(name) {
		return filepath.Clean(name)
	}
	return filepath.Join(root, name)
}

func clipName(prod *Producer, resourcePath string) string {
	if name, ok := prod.Property(PropClipName); ok && strings.TrimSpace(name) != "" {
		return name
	}
	if base := filepath.Base(resourcePath); base != "." && base != string(filepath.Separator) {
		return base
	}
	return prod.ID
}

func isTimeline(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range TimelineExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

func displayPath(path string) string {
	if path == "" {
		return "<stream>"
	}
	return path
}
