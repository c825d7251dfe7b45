package portaltest

import "html/template"

const hiddenFields = `
<input type="hidden" name="__VIEWSTATE" id="__VIEWSTATE" value="dDwtMTA4NzI3" />
<input type="hidden" name="__VIEWSTATEGENERATOR" id="__VIEWSTATEGENERATOR" value="C2EE9ABB" />
<input type="hidden" name="__EVENTVALIDATION" id="__EVENTVALIDATION" value="wEWBALm9" />`

var loginTemplate = template.Must(template.New("login").Parse(`<html><body>
<form method="post" action="Login.aspx?Kanton={{.Canton}}">` + hiddenFields + `
{{if .Failed}}<span class="error">Code falsch</span>{{end}}
<img id="SecBild" src="Captcha.aspx?n={{.Captcha}}" />
<input name="TextBoxCode" type="text" id="TextBoxCode" />
<input type="submit" name="ButtonWeiter" value="Weiter" id="ButtonWeiter" />
</form></body></html>`))

var searchTemplate = template.Must(template.New("search").Parse(`<html><body>
<form method="post" action="Search.aspx">` + hiddenFields + `
<span id="LabelAnzahl">Anzahl Abfragen: {{.Used}}/{{.Quota}}</span>
<input name="TextBoxKontrollschild" type="text" id="TextBoxKontrollschild" />
</form></body></html>`))

var resultTemplate = template.Must(template.New("result").Parse(`<html><body>
<form method="post" action="Result.aspx">` + hiddenFields + `
{{if .MissingKey}}<div class="error">{{.MissingKey}}</div>{{end}}
{{range .Owners}}
<table bgcolor="whitesmoke">
  <tr>
    <td><span>Art:</span></td>
    <td><span> {{.Type}} </span></td>
  </tr>
  <tr>
    <td><div><span><b>Name:</b></span></div></td>
    <td><div><span><br/>{{.Name}}</span></div></td>
  </tr>
  <tr>
    <td><div><span>Strasse:</span></div></td>
    <td><div><span>{{.Street}}</span></div></td>
  </tr>
  <tr>
    <td><div><span>Ort:</span></div></td>
    <td><div><span>{{.City}}</span></div></td>
  </tr>
</table>
{{end}}
</form></body></html>`))
