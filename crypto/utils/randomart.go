package utils

import (
	"strings"

	"github.com/signatory-io/sigengine/crypto"
)

const (
	artHeight = 9
	artWidth  = 17
	artSyms   = " .o+=*BOX@%&#/^"
)

// RandomArt is the drunken bishop walk over a key fingerprint, as shown by
// OpenSSH. It lets an operator compare keys at a glance.
type RandomArt struct {
	field      [artHeight][artWidth]byte
	endX, endY int
}

// NewRandomArt walks the digest two bits at a time, starting from the centre.
func NewRandomArt(digest []byte) *RandomArt {
	var a RandomArt
	x, y := artWidth/2, artHeight/2
	for _, b := range digest {
		for range 4 {
			x = clamp(x+step(b&1 != 0), artWidth-1)
			y = clamp(y+step(b&2 != 0), artHeight-1)
			if int(a.field[y][x]) < len(artSyms)-1 {
				a.field[y][x]++
			}
			b >>= 2
		}
	}
	a.endX, a.endY = x, y
	return &a
}

// KeyRandomArt renders the fingerprint of a public key.
func KeyRandomArt(title string, pub crypto.PublicKey) string {
	return NewRandomArt(crypto.NewPublicKeyHash(pub)[:]).Render(title)
}

func step(up bool) int {
	if up {
		return 1
	}
	return -1
}

func clamp(v, hi int) int {
	return min(hi, max(v, 0))
}

func border(title string) string {
	if len(title) > artWidth-2 {
		title = title[:artWidth-2]
	}
	if title == "" {
		return "+" + strings.Repeat("-", artWidth) + "+"
	}
	title = "[" + title + "]"
	left := (artWidth - len(title)) / 2
	return "+" + strings.Repeat("-", left) + title + strings.Repeat("-", artWidth-len(title)-left) + "+"
}

// Render draws the field in a box with an optional title. S marks the start
// of the walk and E its end.
func (a *RandomArt) Render(title string) string {
	var b strings.Builder
	b.WriteString(border(title))
	b.WriteByte('\n')
	for y := range artHeight {
		b.WriteByte('|')
		for x := range artWidth {
			switch {
			case x == a.endX && y == a.endY:
				b.WriteByte('E')
			case x == artWidth/2 && y == artHeight/2:
				b.WriteByte('S')
			default:
				b.WriteByte(artSyms[a.field[y][x]])
			}
		}
		b.WriteString("|\n")
	}
	b.WriteString(border(""))
	b.WriteByte('\n')
	return b.String()
}
