package catalog

import (
	"fmt"
	"sort"

	"github.com/samber/lo"

	"github.com/ytget/yt-telegram-bot/internal/model"
)

// PreferredContainer wins ties between streams of equal height
const PreferredContainer = "mp4"

// BuildLadder collects the distinct video labels of the catalog in ascending
// height order and appends model.AudioLabel. Video-only heights are offered
// only when an audio-only stream exists to merge them with.
func BuildLadder(c *model.Catalog) model.QualityLadder {
	canMerge := lo.ContainsBy(c.Formats, model.FormatDescriptor.IsAudioOnly)

	heights := lo.Uniq(lo.FilterMap(c.Formats, func(f model.FormatDescriptor, _ int) (int, bool) {
		if !f.IsCombined() && !(canMerge && f.IsVideoOnly()) {
			return 0, false
		}
		h, ok := f.Height.Get()
		return h, ok && h > 0
	}))
	sort.Ints(heights)

	ladder := make(model.QualityLadder, 0, len(heights)+1)
	for _, h := range heights {
		ladder = append(ladder, model.LabelForHeight(h))
	}
	return append(ladder, model.AudioLabel)
}

// CapLadder keeps only the highest maxLevels video labels. A non-positive
// maxLevels leaves the ladder unchanged.
func CapLadder(ladder model.QualityLadder, maxLevels int) model.QualityLadder {
	video := ladder.VideoLabels()
	if maxLevels <= 0 || len(video) <= maxLevels {
		return ladder
	}
	capped := append(model.QualityLadder{}, video[len(video)-maxLevels:]...)
	return append(capped, model.AudioLabel)
}

// Resolve maps a ladder label to a selection plan. It fails with
// model.ErrNotFound when nothing at or below the requested height exists.
func Resolve(c *model.Catalog, label string) (model.SelectionPlan, error) {
	if label == model.AudioLabel {
		audio, ok := BestAudio(c.Formats)
		if !ok {
			return model.SelectionPlan{}, fmt.Errorf("%w: no audio-only stream", model.ErrNotFound)
		}
		return model.SelectionPlan{Kind: model.PlanAudio, Label: label, Streams: []model.FormatDescriptor{audio}}, nil
	}

	target, ok := model.ParseLabel(label)
	if !ok {
		return model.SelectionPlan{}, fmt.Errorf("%w: unknown label %q", model.ErrNotFound, label)
	}

	combined, hasCombined := bestVideo(c.Formats, target, model.FormatDescriptor.IsCombined)
	audio, hasAudio := BestAudio(c.Formats)

	var video model.FormatDescriptor
	hasVideo := false
	if hasAudio {
		video, hasVideo = bestVideo(c.Formats, target, model.FormatDescriptor.IsVideoOnly)
	}

	switch {
	case hasCombined && (!hasVideo || height(combined) >= height(video)):
		return model.SelectionPlan{Kind: model.PlanCombined, Label: label, Streams: []model.FormatDescriptor{combined}}, nil
	case hasVideo:
		return model.SelectionPlan{Kind: model.PlanMerge, Label: label, Streams: []model.FormatDescriptor{video, audio}}, nil
	default:
		return model.SelectionPlan{}, fmt.Errorf("%w: nothing at or below %s", model.ErrNotFound, label)
	}
}

// BestAudio returns the audio-only descriptor with the highest bitrate.
// An unknown bitrate counts as zero and ties keep catalog order.
func BestAudio(formats []model.FormatDescriptor) (model.FormatDescriptor, bool) {
	audio := lo.Filter(formats, func(f model.FormatDescriptor, _ int) bool {
		return f.IsAudioOnly()
	})
	if len(audio) == 0 {
		return model.FormatDescriptor{}, false
	}
	return lo.MaxBy(audio, func(a, b model.FormatDescriptor) bool {
		return a.AudioBitrate.OrElse(0) > b.AudioBitrate.OrElse(0)
	}), true
}

func bestVideo(formats []model.FormatDescriptor, maxHeight int, keep func(model.FormatDescriptor) bool) (model.FormatDescriptor, bool) {
	candidates := lo.Filter(formats, func(f model.FormatDescriptor, _ int) bool {
		h := height(f)
		return keep(f) && h > 0 && h <= maxHeight
	})
	if len(candidates) == 0 {
		return model.FormatDescriptor{}, false
	}
	return lo.MaxBy(candidates, betterVideo), true
}

func betterVideo(a, b model.FormatDescriptor) bool {
	if height(a) != height(b) {
		return height(a) > height(b)
	}
	return a.Container == PreferredContainer && b.Container != PreferredContainer
}

func height(f model.FormatDescriptor) int {
	return f.Height.OrElse(0)
}
