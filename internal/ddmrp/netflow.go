package ddmrp

import (
	"fmt"

	"github.com/dtwincode/dtwin-supply-optimizer-32/internal/domain"
)

// Zone boundaries as a fraction of the total buffer.
const (
	redRatioLimit    = 0.33
	yellowRatioLimit = 0.66
	greenRatioLimit  = 1.0
)

// NetFlowInput is the position of one item.
type NetFlowInput struct {
	ItemID          string  `json:"item_id"`
	OnHand          float64 `json:"on_hand"`
	OpenSupply      float64 `json:"open_supply"`
	QualifiedDemand float64 `json:"qualified_demand"`
}

// NetFlow is on hand plus open supply minus qualified demand.
func (in NetFlowInput) NetFlow() float64 {
	return in.OnHand + in.OpenSupply - in.QualifiedDemand
}

// Classify places netFlow against zones. A nil zones means no buffer is
// known for the item. Ratio is nil whenever the total buffer is zero.
//
// Precedence: no buffer or an empty buffer is unknown, a negative net flow
// is red, otherwise the ratio picks red, yellow, green or blue.
func Classify(netFlow float64, zones *domain.BufferZones) (*float64, domain.Color) {
	if zones == nil {
		return nil, domain.ColorUnknown
	}
	total := zones.Total()
	if total == 0 {
		return nil, domain.ColorUnknown
	}

	ratio := netFlow / total
	switch {
	case netFlow < 0:
		return &ratio, domain.ColorRed
	case ratio < redRatioLimit:
		return &ratio, domain.ColorRed
	case ratio < yellowRatioLimit:
		return &ratio, domain.ColorYellow
	case ratio < greenRatioLimit:
		return &ratio, domain.ColorGreen
	default:
		return &ratio, domain.ColorBlue
	}
}

// AlertFor builds the alert raised by a position, if any. Positions without
// an item or color never raise one.
func AlertFor(pos domain.NetFlowPosition) (domain.Alert, bool) {
	if pos.ItemID == "" || pos.Color == "" {
		return domain.Alert{}, false
	}
	alertType, ok := domain.AlertTypeFor(pos.Color)
	if !ok {
		return domain.Alert{}, false
	}
	return domain.Alert{
		ItemID:    pos.ItemID,
		AlertType: alertType,
		Color:     pos.Color,
		Message:   fmt.Sprintf("Item %s is in the %s zone", pos.ItemID, pos.Color),
	}, true
}
