package server

import "html/template"

type indexExport struct {
	Title   string
	Created string
	HTML    string
	CSV     string
	XLSX    string
	PNG     string
}

type indexData struct {
	Exports     []indexExport
	LatestTitle string
	Latest      []indexLink
	Tolerance   float64
	Title       string
	Y1Min       float64
	Y1Max       float64
}

type indexLink struct {
	Target string
	Name   string
	URL    string
}

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Trend Merge</title>
<style>
  body { font-family: system-ui, sans-serif; max-width: 960px; margin: 2rem auto; padding: 0 1rem; }
  fieldset { margin-bottom: 1rem; }
  label { display: block; margin: .4rem 0; }
  table { border-collapse: collapse; width: 100%; }
  td, th { border-bottom: 1px solid #ddd; padding: .3rem .5rem; text-align: left; }
  code { background: #f4f4f4; padding: 0 .3rem; }
</style>
</head>
<body>
<h1>Trend Merge</h1>
<form action="/process" method="post" enctype="multipart/form-data">
  <fieldset>
    <legend>Inputs</legend>
    <label>Primary trend export <input type="file" name="original_csv" accept=".csv,.tsv,.txt,.xlsx" required></label>
    <label>Additional exports <input type="file" name="other_csvs" accept=".csv,.tsv,.txt,.xlsx" multiple></label>
  </fieldset>
  <fieldset>
    <legend>Options</legend>
    <label>Tolerance (seconds) <input type="number" name="tolerance" min="0" step="any" value="{{.Tolerance}}"></label>
    <label>Title <input type="text" name="title" value="{{.Title}}"></label>
    <label>Setpoint column <input type="text" name="setpoint_name" placeholder="auto-detect"></label>
    <label>Primary axis min <input type="number" name="y1_min" step="any" value="{{.Y1Min}}"></label>
    <label>Primary axis max <input type="number" name="y1_max" step="any" value="{{.Y1Max}}"></label>
    <label>Cutoff (keep rows at or after) <input type="datetime-local" name="cutoff" step="1"></label>
  </fieldset>
  <button type="submit">Merge</button>
</form>

{{if .Latest}}
<h2>Latest published: {{.LatestTitle}}</h2>
<ul>
{{range .Latest}}  <li>{{.Target}}: <a href="{{.URL}}">{{.Name}}</a>
    <button type="button" onclick="navigator.clipboard.writeText('{{.URL}}')">Copy</button></li>
{{end}}</ul>
{{end}}

<h2>Recent exports</h2>
{{if .Exports}}
<table>
  <tr><th>Title</th><th>Created (UTC)</th><th>Files</th></tr>
{{range .Exports}}  <tr>
    <td>{{.Title}}</td><td>{{.Created}}</td>
    <td>
      {{if .HTML}}<a href="{{.HTML}}">viewer</a>{{end}}
      {{if .CSV}}<a href="{{.CSV}}">csv</a>{{end}}
      {{if .XLSX}}<a href="{{.XLSX}}">xlsx</a>{{end}}
      {{if .PNG}}<a href="{{.PNG}}">png</a>{{end}}
    </td>
  </tr>
{{end}}</table>
{{else}}
<p>No exports yet.</p>
{{end}}
</body>
</html>
`))
