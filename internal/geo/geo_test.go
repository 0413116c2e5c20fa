package geo

import "testing"

func TestENURoundTrip(t *testing.T) {
	o := Origin{Lat: 33.6846, Lon: -117.8265}
	p := Point{Lat: 33.6850, Lon: -117.8260, Alt: 55}
	e := o.ToENU(p)
	back := o.FromENU(e)
	if diff := back.Lat - p.Lat; diff > 1e-7 || diff < -1e-7 {
		t.Fatalf("lat round trip drifted: %v vs %v", back.Lat, p.Lat)
	}
	if diff := back.Lon - p.Lon; diff > 1e-7 || diff < -1e-7 {
		t.Fatalf("lon round trip drifted: %v vs %v", back.Lon, p.Lon)
	}
	if back.Alt != p.Alt {
		t.Fatalf("alt round trip drifted: %v vs %v", back.Alt, p.Alt)
	}
}

func TestDistanceHorizontal(t *testing.T) {
	a := ENU{E: 0, N: 0, U: 10}
	b := ENU{E: 3, N: 4, U: 50}
	if got := DistanceHorizontal(a, b); got != 5 {
		t.Fatalf("expected 5, got %v", got)
	}
	if got := Distance3(a, b); got <= 5 {
		t.Fatalf("3D distance should exceed horizontal distance, got %v", got)
	}
}

func TestSegmentDistance3Parallel(t *testing.T) {
	p1 := ENU{E: 0, N: 0, U: 0}
	p2 := ENU{E: 10, N: 0, U: 0}
	q1 := ENU{E: 0, N: 5, U: 0}
	q2 := ENU{E: 10, N: 5, U: 0}
	if got := SegmentDistance3(p1, p2, q1, q2); got != 5 {
		t.Fatalf("expected 5, got %v", got)
	}
}

func TestSegmentDistance3Crossing(t *testing.T) {
	p1 := ENU{E: -5, N: 0, U: 0}
	p2 := ENU{E: 5, N: 0, U: 0}
	q1 := ENU{E: 0, N: -5, U: 0}
	q2 := ENU{E: 0, N: 5, U: 0}
	if got := SegmentDistance3(p1, p2, q1, q2); got > 1e-9 {
		t.Fatalf("expected ~0 at crossing, got %v", got)
	}
}

func TestPointInPolygon(t *testing.T) {
	square := []ENU{
		{E: 0, N: 0}, {E: 10, N: 0}, {E: 10, N: 10}, {E: 0, N: 10},
	}
	if !PointInPolygon(ENU{E: 5, N: 5}, square) {
		t.Fatalf("expected center point inside square")
	}
	if PointInPolygon(ENU{E: 20, N: 20}, square) {
		t.Fatalf("expected far point outside square")
	}
	if !PointInPolygon(ENU{E: 0, N: 5}, square) {
		t.Fatalf("expected boundary point to count as inside")
	}
}

func TestSegmentIntersectsPolygon(t *testing.T) {
	square := []ENU{
		{E: 0, N: 0}, {E: 10, N: 0}, {E: 10, N: 10}, {E: 0, N: 10},
	}
	if !SegmentIntersectsPolygon(ENU{E: -5, N: 5}, ENU{E: 15, N: 5}, square) {
		t.Fatalf("expected crossing segment to intersect")
	}
	if SegmentIntersectsPolygon(ENU{E: -5, N: 20}, ENU{E: 15, N: 20}, square) {
		t.Fatalf("expected far segment to miss polygon")
	}
}

func TestHaversineMetersSanity(t *testing.T) {
	a := Point{Lat: 33.6846, Lon: -117.8265}
	b := Point{Lat: 33.6846, Lon: -117.8265}
	if got := HaversineMeters(a, b); got != 0 {
		t.Fatalf("expected 0 distance for identical points, got %v", got)
	}
}
