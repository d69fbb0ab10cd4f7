package opt

// Palette maps cluster and route indexes to display colours.
var Palette = [...]string{
	"#34D399", // emerald
	"#FBBF24", // amber
	"#60A5FA", // blue
	"#F87171", // red
	"#A78BFA", // violet
	"#22D3EE", // cyan
	"#FB923C", // orange
	"#EC4899", // pink
}

// ColorFor returns the palette entry for index i, cycling past the end.
func ColorFor(i int) string {
	if i < 0 {
		i = -i
	}
	return Palette[i%len(Palette)]
}

// Default map extent, in the same units as point coordinates.
const (
	MapWidth  = 800.0
	MapHeight = 600.0
)

// DefaultDepot sits at the centre of the default map.
func DefaultDepot() Point {
	return Point{ID: DepotID, X: MapWidth / 2, Y: MapHeight / 2}
}
