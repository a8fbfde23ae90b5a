// Package preview draws a room snapshot as a PNG for the spectator
// endpoint.
package preview

import (
	"fmt"
	"image"
	"image/color"
	"io"
	"os"
	"sync"

	"coin-arena/internal/config"
	"coin-arena/internal/match"

	"github.com/fogleman/gg"
	"github.com/pkg/errors"
)

var (
	background = color.RGBA{12, 12, 28, 255}
	gridLine   = color.RGBA{30, 30, 45, 255}
	coinFill   = color.RGBA{255, 196, 0, 255}
	coinEdge   = color.RGBA{255, 236, 150, 255}
	labelColor = color.RGBA{235, 235, 245, 255}
)

// avatarColors tints each pilot by avatar.
var avatarColors = map[string]string{
	"black":   "#2b2b33",
	"brown":   "#a0522d",
	"red":     "#e63946",
	"skyblue": "#4cc9f0",
	"white":   "#f1f1f1",
	"yellow":  "#ffd166",
}

// Renderer draws snapshots onto an arena-sized canvas.
type Renderer struct {
	game  config.GameConfig
	scale float64

	fontOnce sync.Once
	fontPath string
}

// NewRenderer returns a renderer for the given arena. scale shrinks or
// grows the output; non-positive means 1.
func NewRenderer(game config.GameConfig, scale float64) *Renderer {
	if scale <= 0 {
		scale = 1
	}
	return &Renderer{game: game, scale: scale}
}

// Size is the output image size in pixels.
func (r *Renderer) Size() (int, int) {
	return int(r.game.Map.Width * r.scale), int(r.game.Map.Height * r.scale)
}

// Image draws snap.
func (r *Renderer) Image(snap match.Snapshot) image.Image {
	return r.render(snap).Image()
}

// PNG encodes the rendered snapshot to w.
func (r *Renderer) PNG(w io.Writer, snap match.Snapshot) error {
	if err := r.render(snap).EncodePNG(w); err != nil {
		return errors.Wrap(err, "encode preview")
	}
	return nil
}

func (r *Renderer) render(snap match.Snapshot) *gg.Context {
	w, h := r.Size()
	dc := gg.NewContext(w, h)
	dc.Scale(r.scale, r.scale)

	r.drawBackground(dc)
	for _, c := range snap.Coins {
		r.drawCoin(dc, c)
	}
	for _, hz := range snap.Hazards {
		r.drawHazard(dc, hz)
	}
	for _, p := range snap.Players {
		r.drawPlayer(dc, p)
	}
	return dc
}

func (r *Renderer) drawBackground(dc *gg.Context) {
	width, height := r.game.Map.Width, r.game.Map.Height
	dc.SetColor(background)
	dc.DrawRectangle(0, 0, width, height)
	dc.Fill()

	dc.SetColor(gridLine)
	dc.SetLineWidth(1)
	const gridSize = 80.0
	for x := gridSize; x < width; x += gridSize {
		dc.DrawLine(x, 0, x, height)
		dc.Stroke()
	}
	for y := gridSize; y < height; y += gridSize {
		dc.DrawLine(0, y, width, y)
		dc.Stroke()
	}
}

func (r *Renderer) drawCoin(dc *gg.Context, c match.Coin) {
	radius := r.game.CoinRadius
	dc.SetColor(coinFill)
	dc.DrawCircle(c.X, c.Y, radius)
	dc.Fill()

	dc.SetColor(coinEdge)
	dc.SetLineWidth(3)
	dc.DrawCircle(c.X, c.Y, radius-2)
	dc.Stroke()
}

func (r *Renderer) drawHazard(dc *gg.Context, hz match.Hazard) {
	tint := parseHexColor(hz.Tint)
	glow := tint
	glow.A = 70

	dc.SetColor(glow)
	dc.DrawCircle(hz.X, hz.Y, r.game.HazardRadius+8)
	dc.Fill()

	dc.SetColor(tint)
	dc.DrawCircle(hz.X, hz.Y, r.game.HazardRadius)
	dc.Fill()
}

func (r *Renderer) drawPlayer(dc *gg.Context, p match.PlayerState) {
	size := r.game.PlayerSize
	half := size / 2

	// Shadow
	dc.SetColor(color.RGBA{0, 0, 0, 128})
	dc.DrawRectangle(p.Position.X-half+3, p.Position.Y-half+4, size, size)
	dc.Fill()

	dc.SetColor(parseHexColor(avatarColors[p.AvatarKey]))
	dc.DrawRoundedRectangle(p.Position.X-half, p.Position.Y-half, size, size, 6)
	dc.Fill()

	dc.SetColor(color.White)
	dc.SetLineWidth(2)
	dc.DrawRoundedRectangle(p.Position.X-half, p.Position.Y-half, size, size, 6)
	dc.Stroke()

	// Labels are skipped on hosts without a usable font.
	path := r.font()
	if path == "" {
		return
	}
	if err := dc.LoadFontFace(path, 14); err != nil {
		return
	}
	name := p.Name
	if name == "" {
		name = p.ID
	}
	dc.SetColor(labelColor)
	dc.DrawStringAnchored(name, p.Position.X, p.Position.Y-half-12, 0.5, 0.5)
	dc.DrawStringAnchored(fmt.Sprintf("%d", p.Score), p.Position.X, p.Position.Y+half+12, 0.5, 0.5)
}

func (r *Renderer) font() string {
	r.fontOnce.Do(func() {
		for _, p := range []string{
			"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
			"/usr/share/fonts/TTF/DejaVuSans.ttf",
			"/System/Library/Fonts/Helvetica.ttc",
			"C:\\Windows\\Fonts\\arial.ttf",
		} {
			if _, err := os.Stat(p); err == nil {
				r.fontPath = p
				return
			}
		}
	})
	return r.fontPath
}

func parseHexColor(hex string) color.RGBA {
	if len(hex) != 7 || hex[0] != '#' {
		return color.RGBA{255, 255, 255, 255}
	}
	var r, g, b uint8
	if _, err := fmt.Sscanf(hex[1:], "%02x%02x%02x", &r, &g, &b); err != nil {
		return color.RGBA{255, 255, 255, 255}
	}
	return color.RGBA{r, g, b, 255}
}
