// Package render turns features and trip details into the HTML fragments
// shown by the map: popups, tooltips, icons and detail tables.
package render

import (
	"bytes"
	"html/template"
	"strings"
)

const vehiclePopupTmpl = `<div class="vehicle_popup">
<p><a href="{{.HeaderURL}}" target="_blank" style="color:#{{.RouteColor}}" class="popup_header">{{.TripShortName}}</a></p>
<p>{{.Direction}}</p>
<hr>
{{- if .BikesAllowed}}
<span class="fa tooltip" data-tooltip="bikes allowed">&#xf206;</span>&nbsp;&nbsp;&nbsp;
{{- end}}
<span name="pred-veh-{{.TripID}}" class="fa hidden popup tooltip" data-tooltip="predictions">&#xf239;&nbsp;&nbsp;&nbsp;</span>
<span name="alert-veh-{{.TripID}}" class="fa hidden popup tooltip slight-delay" data-tooltip="alerts">&#xf071;&nbsp;&nbsp;&nbsp;</span>
{{- if .Status}}
<p>{{.Status}}</p>
{{- end}}
{{- with .Delay}}
<i{{if .Class}} class="{{.Class}}"{{end}}>{{.Text}}</i>
{{- end}}
{{- with .Occupancy}}
<p><span class="{{.Class}}">{{.Text}}</span></p>
{{- end}}
<p>{{.Speed}}</p>
<div class="popup_footer">
<p>{{.Footer}}</p>
<p>{{.Timestamp}}</p>
</div>
</div>`

const vehicleIconTmpl = `<div class="vehicle_wrapper"><img src="static/img/icon.png" loading="lazy" alt="vehicle" width="60" height="60" style="{{.Style}}"/><span class="vehicle_text">{{.Label}}</span></div>`

const predictionTableTmpl = `<table class="data-table"><tr><th>stop</th><th>estimate</th></tr>
{{- range .}}
<tr><td class="{{.Class}}" data-tooltip="{{.Tooltip}}">{{.StopName}}{{if .Mark}}<i> {{.Mark}}</i>{{end}}</td><td>{{.Estimate}} <i class="{{.DelayClass}}">{{.DelayText}}</i></td></tr>
{{- end}}
</table>`

const alertTableTmpl = `<table class="data-table"><tr><th>alert</th><th>timestamp</th></tr>
{{- range .}}
<tr><td>{{.Header}}</td><td>{{.Timestamp}}</td></tr>
{{- end}}
</table>`

const featurePopupTmpl = `<p class="popup_header">{{.}}</p>`

const stopPopupTmpl = `<a href="{{.URL}}" target="_blank" style="color:#{{.Color}};font-size:28pt;text-decoration:none;text-align:left">{{.Name}}</a><br>
<div style="text-align:left">
{{- if .Description}}{{.Description}}<br>{{end}}
<hr>
{{- if .Alerts}}
<div class="popup" onclick="showAlertPopup()"><img src="static/alert.png" alt="alert" width="25" height="25" title="Show Alerts" style="margin:2px"><span class="popuptext" id="alertPopup"><table class="table">
<tr style="background-color:#ff0000;font-weight:bold"><td>Alert</td><td>Header</td><td>Created</td><td>Updated</td></tr>
{{- range .Alerts}}
<tr><td>{{.ID}}</td><td{{with .Description}} title="{{.}}"{{end}}>{{.Header}}</td><td>{{.Created}}</td><td>{{.Updated}}</td></tr>
{{- end}}
</table></span></div>
{{- end}}
{{- if .Schedule}}
<div class="popup" onclick="showPredictionPopup()"><img src="static/train_icon.png" alt="schedule" width="25" height="25" title="Show Schedule" style="margin:2px"><span class="popuptext" id="predictionPopup"><table class="table">
<tr style="background-color:#{{.Color}};font-weight:bold"><td>Route</td><td>Trip</td><td>Headsign</td><td>Scheduled</td><td>Platform</td></tr>
{{- range .Schedule}}
<tr><td style="color:#{{.RouteColor}}">{{.Route}}</td><td>{{.Trip}}</td><td>{{.Headsign}}</td><td>{{.Scheduled}}</td><td>{{.Platform}}</td></tr>
{{- end}}
</table></span></div>
{{- end}}
{{- if .Wheelchair}}
<div class="tooltip"><img src="static/wheelchair.png" alt="accessible" width="25" height="25" style="margin:2px"><span class="tooltiptext">Wheelchair Accessible.</span></div>
{{- end}}
{{- if or .Alerts .Schedule .Wheelchair}}<br>{{end}}
Routes: {{range $i, $r := .Routes}}{{if $i}}, {{end}}<a href="{{$r.URL}}" target="_blank" style="color:#{{$r.Color}};text-decoration:none">{{$r.Name}}</a>{{end}}<br>
Zones: {{join .Zones ", "}}<br>
<span style="color:grey;font-size:9pt">Address: {{.Address}}<br>Platforms: {{join .Platforms ", "}}<br></span>
</div>`

const shapePopupTmpl = `<a href="{{.URL}}" target="_blank" style="color:#{{.Color}};text-decoration:none" class="popup_header">{{.Name}}</a>`

const facilityPopupTmpl = `<p class="popup_header">{{.Name}}</p>
{{- if .Properties}}
<table class="data-table">
{{- range .Properties}}
<tr><td>{{.Key}}</td><td>{{.Value}}</td></tr>
{{- end}}
</table>
{{- end}}`

var templates = template.Must(template.New("render").Funcs(template.FuncMap{
	"join": strings.Join,
}).Parse(`{{define "vehicle_popup"}}` + vehiclePopupTmpl + `{{end}}` +
	`{{define "vehicle_icon"}}` + vehicleIconTmpl + `{{end}}` +
	`{{define "prediction_table"}}` + predictionTableTmpl + `{{end}}` +
	`{{define "alert_table"}}` + alertTableTmpl + `{{end}}` +
	`{{define "feature_popup"}}` + featurePopupTmpl + `{{end}}` +
	`{{define "stop_popup"}}` + stopPopupTmpl + `{{end}}` +
	`{{define "shape_popup"}}` + shapePopupTmpl + `{{end}}` +
	`{{define "facility_popup"}}` + facilityPopupTmpl + `{{end}}`))

func execute(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
