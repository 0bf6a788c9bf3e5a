package render

import (
	"fmt"

	"github.com/samirrijal/livemap/internal/core/domain"
	"github.com/samirrijal/livemap/internal/pkg/transitfmt"
)

type predictionRow struct {
	StopName   string
	Class      string
	Tooltip    string
	Mark       string
	Estimate   string
	DelayClass string
	DelayText  string
}

type alertRow struct {
	Header    string
	Timestamp string
}

// PredictionTable renders the upcoming stops of a trip. Rows keep the order
// they are given in.
func PredictionTable(preds []domain.Prediction) (string, error) {
	rows := make([]predictionRow, 0, len(preds))
	for _, p := range preds {
		t, ok := p.EstimatedTime()
		if !ok {
			continue
		}
		row := predictionRow{
			StopName: p.StopName,
			Estimate: transitfmt.FormatClock(t),
		}
		if p.Delay != nil {
			row.DelayClass = transitfmt.DelayClass(*p.Delay)
			row.DelayText = transitfmt.DelayText(*p.Delay)
		}
		if st := p.StopTime; st != nil {
			switch {
			case st.FlagStop:
				row.Class, row.Tooltip, row.Mark = "flag_stop tooltip", "flag stop", "f"
			case st.EarlyDeparture:
				row.Class, row.Tooltip, row.Mark = "early_departure tooltip", "early departure", "L"
			}
		}
		rows = append(rows, row)
	}
	out, err := execute("prediction_table", rows)
	if err != nil {
		return "", fmt.Errorf("prediction table: %w", err)
	}
	return out, nil
}

// AlertTable renders the alerts of a trip.
func AlertTable(alerts []domain.Alert) (string, error) {
	rows := make([]alertRow, 0, len(alerts))
	for _, a := range alerts {
		row := alertRow{Header: a.Header}
		if a.Timestamp != nil {
			row.Timestamp = transitfmt.FormatFull(*a.Timestamp)
		}
		rows = append(rows, row)
	}
	out, err := execute("alert_table", rows)
	if err != nil {
		return "", fmt.Errorf("alert table: %w", err)
	}
	return out, nil
}
