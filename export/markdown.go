package export

import (
	"fmt"
	"strings"

	"github.com/aaileenssyed/LocalFlow/itinerary"
)

func renderMarkdown(it *itinerary.Itinerary, opts Options) []byte {
	var sb strings.Builder
	links := itinerary.Links(it)

	fmt.Fprintf(&sb, "# %s\n\n", it.Title)
	meta := []string{opts.day().Format("Monday, 2 January 2006")}
	if opts.City != "" {
		meta = append(meta, opts.City)
	}
	fmt.Fprintf(&sb, "_%s_\n\n", strings.Join(meta, " · "))
	if it.Summary != "" {
		fmt.Fprintf(&sb, "%s\n\n", it.Summary)
	}

	v := Analyze(it)
	fmt.Fprintf(&sb, "Authenticity %d/100 · Instagram %d/100 · Popularity %d/100\n\n",
		v.Authenticity, v.Instagram, v.Popularity)

	for _, w := range it.Warnings {
		fmt.Fprintf(&sb, "> **Note:** %s\n", w)
	}
	if len(it.Warnings) > 0 {
		sb.WriteString("\n")
	}

	for i, s := range it.Stops {
		name := s.Name
		if s.IsFixed {
			name += " (fixed)"
		}
		fmt.Fprintf(&sb, "## %s-%s · %s\n\n", s.StartTime, s.EndTime, name)
		if s.Description != "" {
			fmt.Fprintf(&sb, "%s\n\n", s.Description)
		}
		fmt.Fprintf(&sb, "- Where: [%s](%s)\n", markdownText(s.Location.Address), links[i].URL)
		if s.EstimatedCost != "" {
			fmt.Fprintf(&sb, "- Cost: %s\n", s.EstimatedCost)
		}
		if s.LocalTip != "" {
			fmt.Fprintf(&sb, "- Tip: %s\n", s.LocalTip)
		}
		if s.BestPhotoSpot != "" {
			fmt.Fprintf(&sb, "- Photo: %s\n", s.BestPhotoSpot)
		}
		if s.DietaryNotes != "" {
			fmt.Fprintf(&sb, "- Diet: %s\n", s.DietaryNotes)
		}
		if s.TravelToNext != nil && i < len(it.Stops)-1 {
			fmt.Fprintf(&sb, "- Next: %s %s\n", strings.ToLower(string(s.TravelToNext.Mode)), s.TravelToNext.Duration)
		}
		sb.WriteString("\n")
	}
	return []byte(sb.String())
}

// markdownText escapes the characters that would end a link label.
func markdownText(s string) string {
	return strings.NewReplacer("[", `\[`, "]", `\]`).Replace(s)
}
