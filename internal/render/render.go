// Package render defines the narrow interface a printable-artifact
// renderer (e.g. PDF) would implement downstream of an organized
// library. No implementation ships in this repository; see DESIGN.md
// for why none is fabricated here.
package render

import (
	"context"
	"io"

	"github.com/ao3vault/vault/internal/version"
)

// Renderer converts a Version into a printable artifact, written to w.
type Renderer interface {
	Render(ctx context.Context, v version.Version, w io.Writer) error
}
