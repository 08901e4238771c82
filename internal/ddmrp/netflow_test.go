package ddmrp

import (
	"math"
	"testing"

	"github.com/dtwincode/dtwin-supply-optimizer-32/internal/domain"
)

func zones(red, yellow, green float64) *domain.BufferZones {
	return &domain.BufferZones{RedZone: red, YellowZone: yellow, GreenZone: green}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		netFlow   float64
		zones     *domain.BufferZones
		want      domain.Color
		wantRatio bool
	}{
		{"no buffer", 10, nil, domain.ColorUnknown, false},
		{"empty buffer", 10, zones(0, 0, 0), domain.ColorUnknown, false},
		{"empty buffer negative flow", -3, zones(0, 0, 0), domain.ColorUnknown, false},
		{"negative flow", -1, zones(10, 5, 20), domain.ColorRed, true},
		{"low ratio", 5, zones(10, 5, 20), domain.ColorRed, true},
		{"yellow band", 20, zones(10, 5, 20), domain.ColorYellow, true},
		{"green band", 30, zones(10, 5, 20), domain.ColorGreen, true},
		{"exactly full", 35, zones(10, 5, 20), domain.ColorBlue, true},
		{"surplus", 100, zones(10, 5, 20), domain.ColorBlue, true},
		{"boundary 0.33 is yellow", 33, zones(100, 0, 0), domain.ColorYellow, true},
		{"boundary 0.66 is green", 66, zones(100, 0, 0), domain.ColorGreen, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ratio, color := Classify(tt.netFlow, tt.zones)
			if color != tt.want {
				t.Errorf("color = %s, want %s", color, tt.want)
			}
			if (ratio != nil) != tt.wantRatio {
				t.Errorf("ratio presence = %v, want %v", ratio != nil, tt.wantRatio)
			}
		})
	}
}

func TestNetFlowScenario(t *testing.T) {
	in := NetFlowInput{ItemID: "SKU-1", OnHand: 10, OpenSupply: 0, QualifiedDemand: 5}
	if in.NetFlow() != 5 {
		t.Fatalf("expected net flow 5, got %v", in.NetFlow())
	}
	ratio, color := Classify(in.NetFlow(), zones(10, 5, 20))
	if color != domain.ColorRed {
		t.Errorf("expected red, got %s", color)
	}
	if ratio == nil || math.Abs(*ratio-5.0/35.0) > 1e-12 {
		t.Errorf("expected ratio 5/35, got %v", ratio)
	}
}

func TestNegativeNetFlowAlwaysRed(t *testing.T) {
	for _, nf := range []float64{-0.001, -1, -1e6} {
		for _, z := range []*domain.BufferZones{zones(1, 0.5, 2), zones(1000, 500, 2000)} {
			if _, color := Classify(nf, z); color != domain.ColorRed {
				t.Fatalf("net flow %v with %+v classified %s", nf, *z, color)
			}
		}
	}
}

func TestAlertFor(t *testing.T) {
	tests := []struct {
		name string
		pos  domain.NetFlowPosition
		want domain.AlertType
		ok   bool
	}{
		{"red is critical", domain.NetFlowPosition{ItemID: "A", Color: domain.ColorRed}, domain.AlertCritical, true},
		{"yellow is warning", domain.NetFlowPosition{ItemID: "A", Color: domain.ColorYellow}, domain.AlertWarning, true},
		{"green raises nothing", domain.NetFlowPosition{ItemID: "A", Color: domain.ColorGreen}, "", false},
		{"unknown raises nothing", domain.NetFlowPosition{ItemID: "A", Color: domain.ColorUnknown}, "", false},
		{"missing color", domain.NetFlowPosition{ItemID: "A"}, "", false},
		{"missing item", domain.NetFlowPosition{Color: domain.ColorRed}, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			alert, ok := AlertFor(tt.pos)
			if ok != tt.ok || alert.AlertType != tt.want {
				t.Fatalf("AlertFor() = %+v, %v", alert, ok)
			}
			if ok && alert.Message != "Item A is in the "+string(tt.pos.Color)+" zone" {
				t.Errorf("unexpected message %q", alert.Message)
			}
		})
	}
}
