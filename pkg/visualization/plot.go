package visualization

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// AreaProfilePlot writes a line chart of foreground area per slice. The
// profile of a liver mask rises and falls smoothly across the organ, so
// spikes or plateaus point straight at leaked or missing slices.
func AreaProfilePlot(areas []int, filename string) error {
	if len(areas) == 0 {
		return fmt.Errorf("area profile: no slices to plot")
	}
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return fmt.Errorf("creating plot directory: %w", err)
	}

	pts := make(plotter.XYs, len(areas))
	for i, a := range areas {
		pts[i].X = float64(i)
		pts[i].Y = float64(a)
	}

	p := plot.New()
	p.Title.Text = "Mask area per slice"
	p.X.Label.Text = "Slice"
	p.Y.Label.Text = "Area (voxels)"
	p.Add(plotter.NewGrid())

	line, err := plotter.NewLine(pts)
	if err != nil {
		return fmt.Errorf("building area profile line: %w", err)
	}
	line.Width = vg.Points(1.5)
	line.Color = color.RGBA{R: 60, G: 100, B: 200, A: 255}
	p.Add(line)

	if err := p.Save(8*vg.Inch, 4*vg.Inch, filename); err != nil {
		return fmt.Errorf("saving area profile: %w", err)
	}
	return nil
}
