package geometry

import (
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/geojson"

	"markettrend/server/internal/models"
)

// Point converts latitude/longitude to an orb point (longitude first).
func Point(lat, lon float64) orb.Point {
	return orb.Point{lon, lat}
}

// DistanceMeters returns the great-circle distance between two coordinates.
func DistanceMeters(lat1, lon1, lat2, lon2 float64) float64 {
	return geo.DistanceHaversine(Point(lat1, lon1), Point(lat2, lon2))
}

// SubjectDistance returns the distance from the subject to a sale, or nil when
// either side has no coordinates.
func SubjectDistance(cfg models.AnalysisConfig, r models.SaleRecord) *float64 {
	if !cfg.HasSubjectLocation() || !r.HasLocation() {
		return nil
	}
	d := DistanceMeters(*cfg.SubjectLatitude, *cfg.SubjectLongitude, *r.Latitude, *r.Longitude)
	return &d
}

// MarketArea describes where the geolocated valid sales lie. It returns nil
// when no valid sale has coordinates.
func MarketArea(records []models.SaleRecord) *models.MarketArea {
	var points orb.MultiPoint
	for _, r := range records {
		if r.Valid() && r.HasLocation() {
			points = append(points, Point(*r.Latitude, *r.Longitude))
		}
	}
	if len(points) == 0 {
		return nil
	}

	bound := points.Bound()
	var sumLat, sumLon float64
	for _, p := range points {
		sumLon += p[0]
		sumLat += p[1]
	}
	n := float64(len(points))

	area := &models.MarketArea{
		MinLatitude:     bound.Min.Lat(),
		MinLongitude:    bound.Min.Lon(),
		MaxLatitude:     bound.Max.Lat(),
		MaxLongitude:    bound.Max.Lon(),
		CenterLatitude:  sumLat / n,
		CenterLongitude: sumLon / n,
		Points:          len(points),
	}

	if hull := convexHull(points); hull != nil {
		feature := geojson.NewFeature(orb.Polygon{hull})
		feature.Properties = geojson.Properties{
			"point_count": len(points),
			"hull_type":   "convex",
		}
		area.Outline = feature
	}
	return area
}

// convexHull returns the closed hull ring of the points using the monotone
// chain scan, or nil for fewer than three distinct non-collinear points.
func convexHull(points orb.MultiPoint) orb.Ring {
	pts := make([]orb.Point, len(points))
	copy(pts, points)
	sort.Slice(pts, func(i, j int) bool {
		if pts[i][0] != pts[j][0] {
			return pts[i][0] < pts[j][0]
		}
		return pts[i][1] < pts[j][1]
	})

	uniq := pts[:0]
	for i, p := range pts {
		if i == 0 || !p.Equal(pts[i-1]) {
			uniq = append(uniq, p)
		}
	}
	if len(uniq) < 3 {
		return nil
	}

	cross := func(o, a, b orb.Point) float64 {
		return (a[0]-o[0])*(b[1]-o[1]) - (a[1]-o[1])*(b[0]-o[0])
	}

	hull := make([]orb.Point, 0, 2*len(uniq))
	for _, p := range uniq {
		for len(hull) >= 2 && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	lower := len(hull) + 1
	for i := len(uniq) - 2; i >= 0; i-- {
		p := uniq[i]
		for len(hull) >= lower && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	// the scan ends on the first point, closing the ring
	if len(hull) < 4 {
		return nil
	}
	return orb.Ring(hull)
}
