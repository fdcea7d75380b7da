package model

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/samber/mo"
)

// AudioLabel is the ladder entry requesting an audio-only artifact
const AudioLabel = "audio"

// SourceReference identifies the media to acquire (its URL)
type SourceReference string

// String returns the reference as a plain string
func (r SourceReference) String() string {
	return string(r)
}

// FormatDescriptor is one concrete encoding offered by the source
type FormatDescriptor struct {
	ID           string
	Height       mo.Option[int]     // vertical resolution, absent for audio
	Container    string             // container tag, e.g. "mp4", "webm", "m4a"
	VideoCodec   string             // empty when the stream carries no video
	AudioCodec   string             // empty when the stream carries no audio
	HasVideo     bool
	HasAudio     bool
	Size         mo.Option[int64]   // exact or approximate byte size
	AudioBitrate mo.Option[float64] // kbit/s
}

// IsCombined returns true if the descriptor carries both audio and video
func (f FormatDescriptor) IsCombined() bool {
	return f.HasVideo && f.HasAudio
}

// IsVideoOnly returns true if the descriptor carries only video
func (f FormatDescriptor) IsVideoOnly() bool {
	return f.HasVideo && !f.HasAudio
}

// IsAudioOnly returns true if the descriptor carries only audio
func (f FormatDescriptor) IsAudioOnly() bool {
	return f.HasAudio && !f.HasVideo
}

// Label returns the ladder label for a video descriptor ("720p"), or an empty
// string when the height is unknown or the stream has no video.
func (f FormatDescriptor) Label() string {
	h, ok := f.Height.Get()
	if !f.HasVideo || !ok || h <= 0 {
		return ""
	}
	return LabelForHeight(h)
}

// LabelForHeight formats a vertical resolution as a ladder label
func LabelForHeight(height int) string {
	return strconv.Itoa(height) + "p"
}

// ParseLabel returns the numeric height of a ladder label such as "1080p"
func ParseLabel(label string) (int, bool) {
	digits, ok := strings.CutSuffix(strings.TrimSpace(label), "p")
	if !ok {
		return 0, false
	}
	h, err := strconv.Atoi(digits)
	if err != nil || h <= 0 {
		return 0, false
	}
	return h, true
}

// Catalog is the normalized result of one format query
type Catalog struct {
	Source   SourceReference
	Title    string
	Duration time.Duration
	Views    int64
	Formats  []FormatDescriptor
}

// GetDurationString returns the duration formatted as hh:mm:ss or mm:ss, or "—" if unknown
func (c *Catalog) GetDurationString() string {
	total := int(c.Duration.Seconds())
	if total <= 0 {
		return "—"
	}

	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60

	if hours > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%02d:%02d", minutes, seconds)
}

// QualityLadder is the ordered, de-duplicated set of selectable labels.
// Video labels ascend by height and AudioLabel is always last.
type QualityLadder []string

// Contains reports whether label is offered by the ladder
func (l QualityLadder) Contains(label string) bool {
	for _, entry := range l {
		if entry == label {
			return true
		}
	}
	return false
}

// VideoLabels returns the ladder without the trailing audio entry
func (l QualityLadder) VideoLabels() []string {
	labels := make([]string, 0, len(l))
	for _, entry := range l {
		if entry != AudioLabel {
			labels = append(labels, entry)
		}
	}
	return labels
}

// PlanKind is the shape of a resolved selection
type PlanKind string

const (
	// PlanCombined downloads one stream carrying audio and video
	PlanCombined PlanKind = "combined"

	// PlanMerge downloads a video-only and an audio-only stream and muxes them
	PlanMerge PlanKind = "merge"

	// PlanAudio downloads one audio-only stream
	PlanAudio PlanKind = "audio"
)

// SelectionPlan is the result of resolving a requested label against a catalog.
// Streams holds one descriptor for combined and audio plans, and the video
// descriptor followed by the audio descriptor for merge plans.
type SelectionPlan struct {
	Kind    PlanKind
	Label   string
	Streams []FormatDescriptor
}

// NeedsMerge returns true if the plan requires muxing two streams
func (p SelectionPlan) NeedsMerge() bool {
	return p.Kind == PlanMerge
}

// Video returns the video-carrying descriptor of the plan, if any
func (p SelectionPlan) Video() (FormatDescriptor, bool) {
	if p.Kind == PlanAudio || len(p.Streams) == 0 {
		return FormatDescriptor{}, false
	}
	return p.Streams[0], true
}

// Audio returns the audio-only descriptor of a merge or audio plan
func (p SelectionPlan) Audio() (FormatDescriptor, bool) {
	switch p.Kind {
	case PlanAudio:
		if len(p.Streams) == 1 {
			return p.Streams[0], true
		}
	case PlanMerge:
		if len(p.Streams) == 2 {
			return p.Streams[1], true
		}
	}
	return FormatDescriptor{}, false
}

// EffectiveHeight returns the vertical resolution the plan delivers
func (p SelectionPlan) EffectiveHeight() (int, bool) {
	video, ok := p.Video()
	if !ok {
		return 0, false
	}
	return video.Height.Get()
}

// KnownSize returns the sum of the known stream sizes and whether every
// stream size was known.
func (p SelectionPlan) KnownSize() (int64, bool) {
	var total int64
	complete := true
	for _, stream := range p.Streams {
		size, ok := stream.Size.Get()
		if !ok {
			complete = false
			continue
		}
		total += size
	}
	return total, complete
}

// FileKind selects how a file is presented by the transport
type FileKind string

const (
	FileVideo    FileKind = "video"
	FileAudio    FileKind = "audio"
	FileDocument FileKind = "document"
)

// Artifact is a completed file on local storage
type Artifact struct {
	Path     string
	Size     int64
	Title    string
	Kind     FileKind
	Degraded bool // video delivered without its audio track after a failed merge
}

// GetDisplayTitle returns the title, or the file name without extension
func (a Artifact) GetDisplayTitle() string {
	if a.Title != "" && !strings.HasPrefix(a.Title, "http") {
		return a.Title
	}

	if a.Path != "" {
		name := filepath.Base(a.Path)
		if idx := strings.LastIndex(name, "."); idx > 0 {
			name = name[:idx]
		}
		return name
	}

	return a.Title
}

// Acquisition is the set of files one executor run produced, in plan order
type Acquisition struct {
	Title   string
	Plan    SelectionPlan
	Streams []Artifact
}

// Primary returns the first acquired stream (the video for merge plans)
func (a Acquisition) Primary() Artifact {
	if len(a.Streams) == 0 {
		return Artifact{}
	}
	return a.Streams[0]
}

// Paths returns every acquired file path
func (a Acquisition) Paths() []string {
	paths := make([]string, 0, len(a.Streams))
	for _, s := range a.Streams {
		paths = append(paths, s.Path)
	}
	return paths
}

// DeliveryUnit is either a whole artifact or one numbered part of it
type DeliveryUnit struct {
	Path   string
	Index  int // 1-based send order
	Total  int
	Offset int64
	Length int64
	Whole  bool
}

// IsPart returns true if the unit is a split fragment
func (u DeliveryUnit) IsPart() bool {
	return !u.Whole
}

// Upload is one transport call
type Upload struct {
	Path    string
	Kind    FileKind
	Caption string
	Title   string
}
