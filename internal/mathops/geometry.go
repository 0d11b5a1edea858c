package mathops

import (
	"math"

	"github.com/khanglvm/toolgate/internal/catalog"
)

func geometryOps() []operation {
	return []operation{
		{
			desc: catalog.Descriptor{
				Name:        "triangle_area",
				Category:    CategoryGeometry,
				Description: "Area of a triangle from its base and height",
				Parameters: catalog.Schema{
					positive("base", "length of the base"),
					positive("height", "perpendicular height"),
				},
				Examples: examples(`{"base": 10, "height": 5}`, "25"),
				Keywords: []string{"triangle", "area", "shape", "base", "height"},
			},
			fn: func(p args) (any, error) { return 0.5 * p.num("base") * p.num("height"), nil },
		},
		{
			desc: catalog.Descriptor{
				Name:        "circle_area",
				Category:    CategoryGeometry,
				Description: "Area of a circle from its radius",
				Parameters:  catalog.Schema{positive("radius", "radius of the circle")},
				Examples:    examples(`{"radius": 2}`, "12.566370614359172"),
				Keywords:    []string{"circle", "area", "radius", "pi", "disk"},
			},
			fn: func(p args) (any, error) {
				r := p.num("radius")
				return math.Pi * r * r, nil
			},
		},
		{
			desc: catalog.Descriptor{
				Name:        "circle_circumference",
				Category:    CategoryGeometry,
				Description: "Circumference (perimeter) of a circle from its radius",
				Parameters:  catalog.Schema{positive("radius", "radius of the circle")},
				Examples:    examples(`{"radius": 1}`, "6.283185307179586"),
				Keywords:    []string{"circle", "circumference", "perimeter", "radius", "pi"},
			},
			fn: func(p args) (any, error) { return 2 * math.Pi * p.num("radius"), nil },
		},
		{
			desc: catalog.Descriptor{
				Name:        "rectangle_area",
				Category:    CategoryGeometry,
				Description: "Area of a rectangle from its length and width",
				Parameters: catalog.Schema{
					positive("length", "length of the rectangle"),
					positive("width", "width of the rectangle"),
				},
				Examples: examples(`{"length": 4, "width": 3}`, "12"),
				Keywords: []string{"rectangle", "area", "length", "width", "square"},
			},
			fn: func(p args) (any, error) { return p.num("length") * p.num("width"), nil },
		},
		{
			desc: catalog.Descriptor{
				Name:        "rectangle_perimeter",
				Category:    CategoryGeometry,
				Description: "Perimeter of a rectangle from its length and width",
				Parameters: catalog.Schema{
					positive("length", "length of the rectangle"),
					positive("width", "width of the rectangle"),
				},
				Examples: examples(`{"length": 4, "width": 3}`, "14"),
				Keywords: []string{"rectangle", "perimeter", "border", "fence"},
			},
			fn: func(p args) (any, error) { return 2 * (p.num("length") + p.num("width")), nil },
		},
		{
			desc: catalog.Descriptor{
				Name:        "sphere_volume",
				Category:    CategoryGeometry,
				Description: "Volume of a sphere from its radius",
				Parameters:  catalog.Schema{positive("radius", "radius of the sphere")},
				Examples:    examples(`{"radius": 3}`, "113.09733552923254"),
				Keywords:    []string{"sphere", "volume", "ball", "radius", "3d"},
			},
			fn: func(p args) (any, error) {
				r := p.num("radius")
				return 4.0 / 3.0 * math.Pi * r * r * r, nil
			},
		},
	}
}

func trigonometryOps() []operation {
	unit := catalog.Parameter{
		Name:        "unit",
		Type:        catalog.TypeString,
		Description: "unit of the angle",
		Default:     "radians",
		Constraints: catalog.Constraints{Enum: []string{"radians", "degrees"}},
	}
	schema := catalog.Schema{number("angle", "the angle"), unit}
	radians := func(p args) float64 {
		a := p.num("angle")
		if p.str("unit") == "degrees" {
			return a * math.Pi / 180
		}
		return a
	}

	return []operation{
		{
			desc: catalog.Descriptor{
				Name:        "sin",
				Category:    CategoryTrigonometry,
				Description: "Sine of an angle",
				Parameters:  schema,
				Examples:    examples(`{"angle": 90, "unit": "degrees"}`, "1"),
				Keywords:    []string{"sine", "trigonometry", "angle", "wave"},
			},
			fn: func(p args) (any, error) { return math.Sin(radians(p)), nil },
		},
		{
			desc: catalog.Descriptor{
				Name:        "cos",
				Category:    CategoryTrigonometry,
				Description: "Cosine of an angle",
				Parameters:  schema,
				Examples:    examples(`{"angle": 0}`, "1"),
				Keywords:    []string{"cosine", "trigonometry", "angle"},
			},
			fn: func(p args) (any, error) { return math.Cos(radians(p)), nil },
		},
		{
			desc: catalog.Descriptor{
				Name:        "tan",
				Category:    CategoryTrigonometry,
				Description: "Tangent of an angle",
				Parameters:  schema,
				Examples:    examples(`{"angle": 45, "unit": "degrees"}`, "1"),
				Keywords:    []string{"tangent", "trigonometry", "angle"},
			},
			fn: func(p args) (any, error) {
				r := radians(p)
				if math.Abs(math.Cos(r)) < 1e-12 {
					return nil, p.fail("tangent is undefined for odd multiples of 90 degrees")
				}
				return math.Tan(r), nil
			},
		},
		{
			desc: catalog.Descriptor{
				Name:        "degrees_to_radians",
				Category:    CategoryTrigonometry,
				Description: "Convert an angle from degrees to radians",
				Parameters:  catalog.Schema{number("degrees", "angle in degrees")},
				Examples:    examples(`{"degrees": 180}`, "3.141592653589793"),
				Keywords:    []string{"convert", "conversion", "degrees", "radians", "angle"},
			},
			fn: func(p args) (any, error) { return p.num("degrees") * math.Pi / 180, nil },
		},
		{
			desc: catalog.Descriptor{
				Name:        "radians_to_degrees",
				Category:    CategoryTrigonometry,
				Description: "Convert an angle from radians to degrees",
				Parameters:  catalog.Schema{number("radians", "angle in radians")},
				Examples:    examples(`{"radians": 3.141592653589793}`, "180"),
				Keywords:    []string{"convert", "conversion", "radians", "degrees", "angle"},
			},
			fn: func(p args) (any, error) { return p.num("radians") * 180 / math.Pi, nil },
		},
	}
}

func coordinateOps() []operation {
	twoPoints := catalog.Schema{
		point("point1", "first point as [x, y]"),
		point("point2", "second point as [x, y]"),
	}
	return []operation{
		{
			desc: catalog.Descriptor{
				Name:        "distance_2d",
				Category:    CategoryCoordinates,
				Description: "Euclidean distance between two points in the plane",
				Parameters:  twoPoints,
				Examples:    examples(`{"point1": [0, 0], "point2": [3, 4]}`, "5"),
				Keywords:    []string{"distance", "length", "points", "euclidean", "coordinate"},
			},
			fn: func(p args) (any, error) {
				a, b, err := points(p)
				if err != nil {
					return nil, err
				}
				return math.Hypot(b[0]-a[0], b[1]-a[1]), nil
			},
		},
		{
			desc: catalog.Descriptor{
				Name:        "midpoint_2d",
				Category:    CategoryCoordinates,
				Description: "Midpoint between two points in the plane",
				Parameters:  twoPoints,
				Examples:    examples(`{"point1": [0, 0], "point2": [4, 2]}`, "[2, 1]"),
				Keywords:    []string{"midpoint", "middle", "center", "points", "coordinate"},
			},
			fn: func(p args) (any, error) {
				a, b, err := points(p)
				if err != nil {
					return nil, err
				}
				return []float64{(a[0] + b[0]) / 2, (a[1] + b[1]) / 2}, nil
			},
		},
		{
			desc: catalog.Descriptor{
				Name:        "slope",
				Category:    CategoryCoordinates,
				Description: "Slope of the line through two points",
				Parameters:  twoPoints,
				Examples:    examples(`{"point1": [1, 1], "point2": [3, 5]}`, "2"),
				Keywords:    []string{"slope", "gradient", "line", "rise over run", "steepness"},
			},
			fn: func(p args) (any, error) {
				a, b, err := points(p)
				if err != nil {
					return nil, err
				}
				if a[0] == b[0] {
					return nil, p.fail("slope is undefined for vertical lines")
				}
				return (b[1] - a[1]) / (b[0] - a[0]), nil
			},
		},
	}
}

func points(p args) ([]float64, []float64, error) {
	a, err := p.vector("point1")
	if err != nil {
		return nil, nil, err
	}
	b, err := p.vector("point2")
	if err != nil {
		return nil, nil, err
	}
	return a, b, nil
}
