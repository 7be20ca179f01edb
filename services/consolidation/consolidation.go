// Package consolidation groups per-day calendar rows that describe the same
// topic and labels multi-day spans as ordered parts.
package consolidation

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/sahilchouksey/course-ingest/model"
)

var (
	sectionPattern = regexp.MustCompile(`^\s*(\d+(?:\.\d+)*[A-Za-z]?)\s*:\s*(.+)$`)

	suffixPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\s*\((?:continued|cont\.?)\)$`),
		regexp.MustCompile(`(?i)[\s,:-]+(?:continued|cont\.)$`),
		regexp.MustCompile(`(?i)[\s,:-]*\b(?:part|day)\s*(?:\d+|[ivx]+)$`),
		regexp.MustCompile(`(?i)\s+(?:i|ii|iii|iv|v|vi|vii|viii|ix|x)$`),
	}
	trailingPunct = regexp.MustCompile(`[\s,:-]+$`)
)

// KeySet holds grouping keys of topics already present in the catalog.
type KeySet map[string]struct{}

func NewKeySet(keys ...string) KeySet {
	s := make(KeySet, len(keys))
	for _, k := range keys {
		s.Add(k)
	}
	return s
}

func (s KeySet) Add(key string) {
	if key != "" {
		s[key] = struct{}{}
	}
}

func (s KeySet) Has(key string) bool {
	if s == nil || key == "" {
		return false
	}
	_, ok := s[key]
	return ok
}

func SectionKey(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return ""
	}
	return "section:" + code
}

func TitleKey(base string) string {
	base = strings.ToLower(strings.TrimSpace(base))
	if base == "" {
		return ""
	}
	return "title:" + base
}

// SplitTitle separates a leading "<section>:" prefix from the topic name.
func SplitTitle(title string) (section, name string) {
	if m := sectionPattern.FindStringSubmatch(title); m != nil {
		return m[1], strings.TrimSpace(m[2])
	}
	return "", strings.TrimSpace(title)
}

// BaseTitle strips multi-day and multi-part suffixes such as "II",
// "Part 2", "Day 3", "(continued)" and "(cont.)".
func BaseTitle(name string) string {
	out := strings.TrimSpace(name)
	for {
		before := out
		for _, p := range suffixPatterns {
			out = p.ReplaceAllString(out, "")
		}
		out = trailingPunct.ReplaceAllString(out, "")
		if out == before || out == "" {
			break
		}
	}
	if out == "" {
		return strings.TrimSpace(name)
	}
	return out
}

// GroupKey is the section key when the title has a section prefix, else the
// case-insensitive base title key.
func GroupKey(title string) string {
	section, name := SplitTitle(title)
	if section != "" {
		return SectionKey(section)
	}
	return TitleKey(BaseTitle(name))
}

// CatalogKeys returns every key under which an existing topic blocks
// re-creation: its section code and its normalized base title.
func CatalogKeys(sectionCode, title string) []string {
	section, name := SplitTitle(title)
	if sectionCode == "" {
		sectionCode = section
	}
	keys := []string{TitleKey(BaseTitle(name))}
	if sectionCode != "" {
		keys = append(keys, SectionKey(sectionCode))
	}
	return keys
}

// Result is the output of Consolidate.
type Result struct {
	Entries []model.ConsolidatedTopic
	// Topic rows dropped because the catalog already holds them
	Skipped int
}

// Topics returns only the topic-kind entries.
func (r Result) Topics() []model.ConsolidatedTopic {
	out := make([]model.ConsolidatedTopic, 0, len(r.Entries))
	for _, e := range r.Entries {
		if e.Kind == model.EntryKindTopic {
			out = append(out, e)
		}
	}
	return out
}

type group struct {
	section string
	members []model.RawCalendarEntry
}

// Consolidate merges raw calendar rows into topics. Exam and quiz rows pass
// through unchanged. Topics whose section code or base title is in existing
// are skipped. Output order follows the first appearance of each group.
func Consolidate(entries []model.RawCalendarEntry, existing KeySet) Result {
	groups := make(map[string]*group)

	for _, e := range entries {
		if e.Kind != model.EntryKindTopic {
			continue
		}
		key := GroupKey(e.Title)
		g, ok := groups[key]
		if !ok {
			section, _ := SplitTitle(e.Title)
			g = &group{section: section}
			groups[key] = g
		}
		g.members = append(g.members, e)
	}

	var res Result
	emitted := make(map[string]bool, len(groups))

	for _, e := range entries {
		if e.Kind != model.EntryKindTopic {
			res.Entries = append(res.Entries, passthrough(e))
			continue
		}
		key := GroupKey(e.Title)
		if emitted[key] {
			continue
		}
		emitted[key] = true

		g := groups[key]
		if isExisting(g, existing) {
			res.Skipped += len(g.members)
			continue
		}
		res.Entries = append(res.Entries, expand(g)...)
	}
	return res
}

func isExisting(g *group, existing KeySet) bool {
	if len(existing) == 0 {
		return false
	}
	if g.section != "" && existing.Has(SectionKey(g.section)) {
		return true
	}
	_, name := SplitTitle(g.members[0].Title)
	return existing.Has(TitleKey(BaseTitle(name)))
}

func expand(g *group) []model.ConsolidatedTopic {
	members := append([]model.RawCalendarEntry(nil), g.members...)
	sort.SliceStable(members, func(i, j int) bool {
		a, b := members[i].Date, members[j].Date
		if a == nil {
			return false
		}
		if b == nil {
			return true
		}
		return a.Before(*b)
	})

	if len(members) == 1 {
		t := toTopic(members[0], g.section)
		if members[0].Date != nil {
			t.GroupDates = []time.Time{*members[0].Date}
		}
		return []model.ConsolidatedTopic{t}
	}

	dates := make([]time.Time, 0, len(members))
	for _, m := range members {
		if m.Date != nil {
			dates = append(dates, *m.Date)
		}
	}

	canonical := canonicalTitle(members[0].Title)
	out := make([]model.ConsolidatedTopic, 0, len(members))
	for i, m := range members {
		t := toTopic(m, g.section)
		t.Title = fmt.Sprintf("%s - Part %d", canonical, i+1)
		t.GroupDates = dates
		out = append(out, t)
	}
	return out
}

func canonicalTitle(title string) string {
	section, name := SplitTitle(title)
	base := BaseTitle(name)
	if section == "" {
		return base
	}
	return section + ": " + base
}

func toTopic(e model.RawCalendarEntry, section string) model.ConsolidatedTopic {
	return model.ConsolidatedTopic{
		Kind:        model.EntryKindTopic,
		Title:       strings.TrimSpace(e.Title),
		SectionCode: section,
		Date:        e.Date,
		Week:        e.Week,
		Weekday:     e.Weekday,
		Description: e.Description,
	}
}

func passthrough(e model.RawCalendarEntry) model.ConsolidatedTopic {
	return model.ConsolidatedTopic{
		Kind:        e.Kind,
		Title:       e.Title,
		Date:        e.Date,
		Week:        e.Week,
		Weekday:     e.Weekday,
		Description: e.Description,
	}
}
