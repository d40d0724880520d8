package extract

import (
	"bytes"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/ao3vault/vault/internal/version"
)

// IsValid reports whether html appears to be a valid AO3 work download,
// by checking for a work URL in the preface message. It only examines a
// truncated header window, making it cheap to call before a full Extract.
func IsValid(raw []byte) bool {
	doc, err := html.Parse(bytes.NewReader(safeTruncate(raw, HeaderWindowBytes)))
	if err != nil {
		return false
	}
	_, err = workID(doc)
	return err == nil
}

// Extract parses raw AO3 work-download HTML into structured metadata.
// Only the first HeaderWindowBytes of raw, cut at a safe boundary, are
// parsed.
func Extract(raw []byte) (version.Metadata, error) {
	doc, err := html.Parse(bytes.NewReader(safeTruncate(raw, HeaderWindowBytes)))
	if err != nil {
		return version.Metadata{}, &Error{Kind: ErrMalformedHTML, Field: err.Error()}
	}

	preface := findPreface(doc)
	id, err := workID(doc)
	if err != nil {
		return version.Metadata{}, &Error{Kind: ErrInvalidDocument}
	}

	title, err := titleField(preface)
	if err != nil {
		return version.Metadata{}, err
	}

	tagsDL := findTagsDL(preface)
	statsText := ddText(tagsDL, "Stats")

	chapters, err := parseChapters(statsText)
	if err != nil {
		return version.Metadata{}, err
	}
	words, err := parseWords(statsText)
	if err != nil {
		return version.Metadata{}, err
	}
	published, lastModified, err := parseDates(statsText)
	if err != nil {
		return version.Metadata{}, err
	}
	rating, err := parseRating(tagsDL)
	if err != nil {
		return version.Metadata{}, err
	}

	return version.Metadata{
		WorkID:       id,
		Title:        title,
		Authors:      authors(preface),
		Fandoms:      fandoms(tagsDL),
		Series:       series(tagsDL),
		Chapters:     chapters,
		Words:        words,
		Rating:       rating,
		Warnings:     warnings(tagsDL),
		Tags:         tags(tagsDL),
		Language:     language(tagsDL),
		Summary:      summary(preface),
		Published:    published,
		LastModified: lastModified,
	}, nil
}

func workID(doc *html.Node) (string, error) {
	anchors := findAll(doc, func(n *html.Node) bool {
		if n.Data != "a" || attr(n, "href") == "" {
			return false
		}
		return withinPrefaceMessage(n)
	})
	for _, a := range anchors {
		if m := workURLRegex.FindStringSubmatch(attr(a, "href")); m != nil {
			return m[1], nil
		}
	}
	return "", missingField("id")
}

// withinPrefaceMessage reports whether n sits inside div#preface p.message.
func withinPrefaceMessage(n *html.Node) bool {
	sawMessage := false
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Data == "p" && hasClass(p, "message") {
			sawMessage = true
		}
		if p.Data == "div" && attr(p, "id") == "preface" {
			return sawMessage
		}
	}
	return false
}

func titleField(preface *html.Node) (string, error) {
	if preface == nil {
		return "", missingField("title")
	}
	meta := findFirst(preface, byTagAndClass("div", "meta"))
	if meta == nil {
		return "", missingField("title")
	}
	h1 := findFirst(meta, byTag("h1"))
	if h1 == nil {
		return "", missingField("title")
	}
	title := strings.TrimSpace(text(h1))
	if title == "" {
		return "", missingField("title")
	}
	return title, nil
}

func authors(preface *html.Node) []version.Author {
	if preface == nil {
		return nil
	}
	byline := findFirst(preface, byTagAndClass("div", "byline"))
	if byline == nil {
		byline = findFirst(preface, byTagAndClass("h3", "byline"))
	}
	if byline == nil {
		return nil
	}
	var out []version.Author
	seen := map[string]bool{}
	for _, a := range findAll(byline, func(n *html.Node) bool { return n.Data == "a" && attr(n, "rel") == "author" }) {
		m := authorRegex.FindStringSubmatch(attr(a, "href"))
		if m == nil {
			continue
		}
		username, pseudonym := m[1], m[2]
		if username == "orphan_account" || seen[username] {
			continue
		}
		seen[username] = true
		author := version.Author{Username: username}
		if pseudonym != username {
			author.Pseudonym = pseudonym
		}
		out = append(out, author)
	}
	return out
}

func findTagsDL(preface *html.Node) *html.Node {
	if preface == nil {
		return nil
	}
	return findFirst(preface, byTagAndClass("dl", "tags"))
}

// ddText returns the trimmed text of the dd following a dt whose text
// (case-insensitively, ignoring a trailing colon) matches label or its
// plural.
func ddText(dl *html.Node, label string) string {
	dd := findDD(dl, label)
	if dd == nil {
		return ""
	}
	return strings.TrimSpace(text(dd))
}

func findDD(dl *html.Node, label string) *html.Node {
	if dl == nil {
		return nil
	}
	var dts, dds []*html.Node
	for c := dl.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		switch c.Data {
		case "dt":
			dts = append(dts, c)
		case "dd":
			dds = append(dds, c)
		}
	}
	candidates := []string{label, label + "s"}
	for i, dt := range dts {
		dtText := strings.TrimSuffix(strings.TrimSpace(text(dt)), ":")
		for _, candidate := range candidates {
			if strings.EqualFold(dtText, candidate) && i < len(dds) {
				return dds[i]
			}
		}
	}
	return nil
}

// ddLinkTexts returns the distinct, order-preserved text of every anchor
// within the dd following a dt matching label.
func ddLinkTexts(dl *html.Node, label string) []string {
	dd := findDD(dl, label)
	if dd == nil {
		return nil
	}
	var out []string
	seen := map[string]bool{}
	for _, a := range findAll(dd, byTag("a")) {
		txt := strings.TrimSpace(text(a))
		if txt == "" || seen[txt] {
			continue
		}
		seen[txt] = true
		out = append(out, txt)
	}
	return out
}

func fandoms(dl *html.Node) []version.Fandom {
	var out []version.Fandom
	for _, name := range ddLinkTexts(dl, "Fandom") {
		out = append(out, version.Fandom(name))
	}
	return out
}

func parseRating(dl *html.Node) (version.Rating, error) {
	text := ddText(dl, "Rating")
	if text == "" {
		return "", missingField("rating")
	}
	switch text {
	case "General Audiences":
		return version.RatingGeneral, nil
	case "Teen And Up Audiences":
		return version.RatingTeen, nil
	case "Mature":
		return version.RatingMature, nil
	case "Explicit":
		return version.RatingExplicit, nil
	case "Not Rated":
		return version.RatingNotRated, nil
	default:
		return "", parseError("rating", "unknown rating: "+text)
	}
}

func warnings(dl *html.Node) []version.Warning {
	var out []version.Warning
	for _, text := range ddLinkTexts(dl, "Warning") {
		switch text {
		case "No Archive Warnings Apply":
			out = append(out, version.WarningNone)
		case "Creator Chose Not To Use Archive Warnings":
			out = append(out, version.WarningChoseNotToWarn)
		case "Graphic Depictions Of Violence":
			out = append(out, version.WarningGraphicViolence)
		case "Major Character Death":
			out = append(out, version.WarningMajorCharacterDeath)
		case "Underage":
			out = append(out, version.WarningUnderage)
		case "Rape/Non-Con":
			out = append(out, version.WarningRapeNoncon)
		}
	}
	return out
}

func tags(dl *html.Node) []version.Tag {
	var out []version.Tag
	for _, name := range ddLinkTexts(dl, "Relationship") {
		out = append(out, version.Tag{Name: name, Kind: version.TagKindRelationship})
	}
	for _, name := range ddLinkTexts(dl, "Character") {
		out = append(out, version.Tag{Name: name, Kind: version.TagKindCharacter})
	}
	for _, name := range ddLinkTexts(dl, "Additional Tag") {
		out = append(out, version.Tag{Name: name, Kind: version.TagKindFreeform})
	}
	return out
}

func language(dl *html.Node) string {
	if text := ddText(dl, "Language"); text != "" {
		return text
	}
	return "Unknown"
}

func summary(preface *html.Node) string {
	if preface == nil {
		return ""
	}
	meta := findFirst(preface, byTagAndClass("div", "meta"))
	if meta == nil {
		return ""
	}
	bq := findFirst(meta, byTagAndClass("blockquote", "userstuff"))
	if bq == nil {
		return ""
	}
	return strings.TrimSpace(text(bq))
}

func parseChapters(stats string) (version.Chapters, error) {
	if stats == "" {
		return version.Chapters{}, missingField("chapters")
	}
	m := chaptersRegex.FindStringSubmatch(stats)
	if m == nil {
		return version.Chapters{}, missingField("chapters")
	}
	written, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", ""))
	if err != nil {
		return version.Chapters{}, parseError("chapters", "invalid chapter count")
	}
	if m[2] == "?" {
		return version.Chapters{Written: written}, nil
	}
	total, err := strconv.Atoi(strings.ReplaceAll(m[2], ",", ""))
	if err != nil {
		return version.Chapters{}, parseError("chapters", "invalid total chapters")
	}
	return version.Chapters{Written: written, Total: &total}, nil
}

func parseWords(stats string) (int, error) {
	if stats == "" {
		return 0, missingField("word_count")
	}
	m := wordsRegex.FindStringSubmatch(stats)
	if m == nil {
		return 0, missingField("word_count")
	}
	words, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", ""))
	if err != nil {
		return 0, parseError("word_count", "invalid word count")
	}
	return words, nil
}

func parseDates(stats string) (published, lastModified time.Time, err error) {
	if stats == "" {
		return time.Time{}, time.Time{}, missingField("published")
	}
	for _, m := range dateRegex.FindAllStringSubmatch(stats, -1) {
		year, yerr := strconv.Atoi(m[2])
		month, merr := strconv.Atoi(m[3])
		day, derr := strconv.Atoi(m[4])
		if yerr != nil {
			return time.Time{}, time.Time{}, parseError("date-year", "invalid year number")
		}
		if merr != nil || month < 1 || month > 12 {
			return time.Time{}, time.Time{}, parseError("date-month", "invalid month number")
		}
		if derr != nil || day < 1 || day > 31 {
			return time.Time{}, time.Time{}, parseError("date-day", "invalid date number")
		}
		date := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
		switch m[1] {
		case "Published":
			published = date
		case "Updated", "Completed":
			lastModified = date
		}
	}
	if published.IsZero() {
		return time.Time{}, time.Time{}, missingField("published")
	}
	if lastModified.IsZero() {
		lastModified = published
	}
	return published, lastModified, nil
}

func series(dl *html.Node) []version.SeriesPosition {
	dd := findDD(dl, "Series")
	if dd == nil {
		return nil
	}
	ddFullText := text(dd)
	var out []version.SeriesPosition
	seenIDs := map[string]bool{}
	for _, a := range findAll(dd, byTag("a")) {
		href := attr(a, "href")
		m := seriesURLRegex.FindStringSubmatch(href)
		if m == nil {
			continue
		}
		id := m[1]
		if seenIDs[id] {
			continue
		}
		seenIDs[id] = true
		name := strings.TrimSpace(text(a))
		out = append(out, version.SeriesPosition{
			ID:   id,
			Name: name,
			Pos:  seriesPosition(ddFullText, name),
		})
	}
	return out
}

// seriesPosition finds "Part N of {name}" within ddText and returns N,
// defaulting to 1 when no such phrase is present.
func seriesPosition(ddText, name string) int {
	idx := strings.Index(ddText, "Part ")
	for idx >= 0 {
		rest := ddText[idx+len("Part "):]
		spaceOf := strings.Index(rest, " of "+name)
		if spaceOf > 0 {
			numText := strings.ReplaceAll(rest[:spaceOf], ",", "")
			if n, err := strconv.Atoi(strings.TrimSpace(numText)); err == nil {
				return n
			}
		}
		next := strings.Index(ddText[idx+1:], "Part ")
		if next < 0 {
			break
		}
		idx = idx + 1 + next
	}
	return 1
}
