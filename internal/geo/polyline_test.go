package geo

import (
	"testing"

	"github.com/augmenta-tech/augmenta-receiver/pkg/core"
)

func TestContourLine(t *testing.T) {
	contour := []core.Vector2{{X: 0, Y: 0}, {X: 1, Y: 1}}

	ls, err := ContourLine(contour, testScene, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	seq := ls.Coordinates()
	if seq.Length() != 2 {
		t.Fatalf("expected 2 points, got %d", seq.Length())
	}
	first, last := seq.GetXY(0), seq.GetXY(1)
	if first.X != -2 || first.Y != -1.5 || last.X != 2 || last.Y != 1.5 {
		t.Errorf("unexpected points %v %v", first, last)
	}
}

func TestContourLine_TooShort(t *testing.T) {
	if _, err := ContourLine([]core.Vector2{{X: 0.5, Y: 0.5}}, testScene, 1); err == nil {
		t.Error("expected error for single point contour")
	}
}

func TestContourPolygon_ClosesRing(t *testing.T) {
	square := []core.Vector2{{X: 0.25, Y: 0.25}, {X: 0.75, Y: 0.25}, {X: 0.75, Y: 0.75}, {X: 0.25, Y: 0.75}}

	poly, err := ContourPolygon(square, testScene, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !near(poly.Area(), 3) {
		t.Errorf("expected area 3, got %f", poly.Area())
	}
	if len(square) != 4 {
		t.Error("input contour was modified")
	}
}

func TestContourPolygon_Invalid(t *testing.T) {
	if _, err := ContourPolygon([]core.Vector2{{X: 0, Y: 0}, {X: 1, Y: 1}}, testScene, 1); err == nil {
		t.Error("expected error for two point contour")
	}

	bowtie := []core.Vector2{{X: 0, Y: 0}, {X: 1, Y: 1}, {X: 1, Y: 0}, {X: 0, Y: 1}}
	if _, err := ContourPolygon(bowtie, testScene, 1); err == nil {
		t.Error("expected error for self-intersecting contour")
	}
}
