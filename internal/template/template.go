package template

import (
	"sort"
	"strings"
	"text/template"

	"github.com/pkg/errors"

	"github.com/ao3vault/vault/internal/compression"
	"github.com/ao3vault/vault/internal/pathutil"
	"github.com/ao3vault/vault/internal/version"
)

// Generator renders deterministic library paths from a Version's
// metadata using a compiled text/template. Constructed via New, which
// compiles eagerly so syntax errors surface at configuration time.
type Generator struct {
	tmpl *template.Template
}

// New compiles source into a reusable Generator.
func New(source string) (*Generator, error) {
	tmpl, err := template.New("path").Funcs(builtins).Parse(source)
	if err != nil {
		return nil, &Error{Msg: "compile template", Cause: errors.WithStack(err)}
	}
	return &Generator{tmpl: tmpl}, nil
}

// ratingShortCodes maps a Rating to the short code exposed to templates.
var ratingShortCodes = map[version.Rating]string{
	version.RatingGeneral:  "G",
	version.RatingTeen:     "T",
	version.RatingMature:   "M",
	version.RatingExplicit: "E",
	version.RatingNotRated: "NR",
}

// params is the shape exposed to path templates.
type params struct {
	Work     string
	Title    string
	Rating   string
	Words    int
	Chapters struct {
		Written int
		Total   *int
	}
	Fandom string
	Series *seriesParams
	Hash   string
}

type seriesParams struct {
	ID       string
	Name     string
	Position int
}

// parameters builds the template input from v, picking a single fandom
// (alphabetically first) and series (lowest id) when several are present,
// so the rendered path is always a deterministic function of v.
func parameters(v version.Version) params {
	p := params{
		Work:   v.WorkID,
		Title:  v.Title,
		Rating: ratingShortCodes[v.Rating],
		Words:  v.Words,
		Fandom: firstFandom(v.Fandoms),
		Hash:   crc32Hex(v.CRC32),
	}
	p.Chapters.Written = v.Chapters.Written
	p.Chapters.Total = v.Chapters.Total
	if s := lowestIDSeries(v.Series); s != nil {
		p.Series = &seriesParams{ID: s.ID, Name: s.Name, Position: s.Pos}
	}
	return p
}

func firstFandom(fandoms []version.Fandom) string {
	if len(fandoms) == 0 {
		return ""
	}
	sorted := append([]version.Fandom(nil), fandoms...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	return string(sorted[0])
}

func lowestIDSeries(series []version.SeriesPosition) *version.SeriesPosition {
	if len(series) == 0 {
		return nil
	}
	best := series[0]
	for _, s := range series[1:] {
		if s.ID < best.ID {
			best = s
		}
	}
	return &best
}

func crc32Hex(v uint32) string {
	const hexDigits = "0123456789abcdef"
	b := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		b[i] = hexDigits[v&0xf]
		v >>= 4
	}
	return string(b)
}

// Generate renders the template against v and returns the normalized,
// validated path, without any file extension.
func (g *Generator) Generate(v version.Version) (string, error) {
	var buf strings.Builder
	if err := g.tmpl.Execute(&buf, parameters(v)); err != nil {
		return "", &Error{Msg: "render", Cause: errors.WithStack(err)}
	}
	return normalize(buf.String())
}

// GenerateWithExt renders the path as Generate, then appends a dot-
// separated extension and, when comp is not compression.None, its
// suffix.
func (g *Generator) GenerateWithExt(v version.Version, ext string, comp compression.Format) (string, error) {
	path, err := g.Generate(v)
	if err != nil {
		return "", err
	}
	ext = strings.Trim(strings.TrimSpace(ext), ".")
	return path + "." + ext + comp.Extension(), nil
}

// normalize trims each path segment, joins with "/", and validates the
// result via pathutil, rejecting traversal or absolute paths.
func normalize(rendered string) (string, error) {
	segments := strings.Split(strings.TrimSpace(rendered), "/")
	for i, seg := range segments {
		segments[i] = strings.TrimSpace(seg)
	}
	joined := strings.Join(segments, "/")
	validated, err := pathutil.Validate(joined)
	if err != nil {
		return "", &Error{Msg: "normalize rendered path", Cause: errors.WithStack(err)}
	}
	return validated, nil
}
