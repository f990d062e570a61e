package plot

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

var segmentColors = []string{"#e4572e", "#17bebb", "#ffc914", "#76b041", "#2e86ab", "#a23b72"}

// RenderSVG writes the sampled curve as a standalone SVG document. Compliment
// segments are dashed and the indicator is drawn as a dot.
func RenderSVG(w io.Writer, r Result) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, `<svg xmlns="http://www.w3.org/2000/svg" width="%s" height="%s" viewBox="0 0 %s %s">`+"\n",
		num(r.Width), num(r.Height), num(r.Width), num(r.Height))
	fmt.Fprintf(bw, `<rect x="0" y="0" width="%s" height="%s" fill="#111"/>`+"\n", num(r.Width), num(r.Height))

	color := 0
	for _, s := range r.Segments {
		if len(s.Points) == 0 {
			continue
		}
		stroke, dash := "#888", ` stroke-dasharray="6 4"`
		if s.Selectable {
			stroke, dash = segmentColors[color%len(segmentColors)], ""
			color++
		}
		fmt.Fprintf(bw, `<polyline fill="none" stroke="%s" stroke-width="2"%s points="%s"><title>%s</title></polyline>`+"\n",
			stroke, dash, points(s.Points), s.Type)
	}
	if r.Indicator != nil {
		fmt.Fprintf(bw, `<circle cx="%s" cy="%s" r="5" fill="#fff"/>`+"\n", num(r.Indicator.X), num(r.Indicator.Y))
	}
	fmt.Fprintf(bw, `<text x="8" y="18" fill="#ccc" font-family="monospace" font-size="12">speed %.3g..%.3g</text>`+"\n", r.MinY, r.MaxY)
	bw.WriteString("</svg>\n")
	return bw.Flush()
}

func points(ps []Point) string {
	var b strings.Builder
	for i, p := range ps {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(num(p.X))
		b.WriteByte(',')
		b.WriteString(num(p.Y))
	}
	return b.String()
}

func num(v float64) string {
	s := strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.2f", v), "0"), ".")
	if s == "" || s == "-0" {
		return "0"
	}
	return s
}
