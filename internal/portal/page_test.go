package portal

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anime-shed/plategate-go/pkg/models"
)

func mustParse(t *testing.T, doc string) *Page {
	t.Helper()
	page, err := ParsePage(strings.NewReader(doc))
	require.NoError(t, err)
	return page
}

const loginFixture = `<html><body><form>
<input type="hidden" name="__VIEWSTATE" id="__VIEWSTATE" value="vs" />
<input type="hidden" name="__VIEWSTATEGENERATOR" id="__VIEWSTATEGENERATOR" value="gen" />
<input type="hidden" name="__EVENTVALIDATION" id="__EVENTVALIDATION" value="" />
<img id="Logo" src="logo.gif" />
<img id="SecBild" src=" SecBild.aspx?r=17 " />
<input name="TextBoxSecCode" type="text" id="TextBoxSecCode" />
<input name="Other" type="text" id="Other" />
</form></body></html>`

func TestPage_LoginFields(t *testing.T) {
	page := mustParse(t, loginFixture)

	form, err := page.HiddenFields()
	require.NoError(t, err)
	assert.Equal(t, "vs", form.Get("__VIEWSTATE"))
	assert.Equal(t, "gen", form.Get("__VIEWSTATEGENERATOR"))
	assert.True(t, form.Has("__EVENTVALIDATION"))

	src, err := page.CaptchaSource()
	require.NoError(t, err)
	assert.Equal(t, "SecBild.aspx?r=17", src)

	id, err := page.CaptchaFieldID()
	require.NoError(t, err)
	assert.Equal(t, "TextBoxSecCode", id)
}

func TestPage_MissingElements(t *testing.T) {
	page := mustParse(t, `<html><body><input id="__VIEWSTATE" value="x"/></body></html>`)

	_, err := page.HiddenFields()
	assert.Error(t, err)
	_, err = page.CaptchaSource()
	assert.Error(t, err)
	_, err = page.CaptchaFieldID()
	assert.Error(t, err)
	_, err = page.RemainingTries()
	assert.Error(t, err)
}

func TestPage_RemainingTries(t *testing.T) {
	tests := []struct {
		label   string
		want    int
		wantErr bool
	}{
		{"Anzahl Abfragen: 3/5", 2, false},
		{"  0/10\n", 10, false},
		{"5/5", 0, false},
		{"12/5 ", -7, false},
		{"Anzahl Abfragen: 3 von 5", 0, true},
		{"3/5 heute", 0, true},
	}

	for _, tt := range tests {
		page := mustParse(t, `<html><body><span id="LabelAnzahl">`+tt.label+`</span></body></html>`)
		got, err := page.RemainingTries()
		if tt.wantErr {
			assert.Error(t, err, tt.label)
			continue
		}
		require.NoError(t, err, tt.label)
		assert.Equal(t, tt.want, got, tt.label)
	}
}

func TestPage_MissingKey(t *testing.T) {
	assert.True(t, mustParse(t, `<html><body><p>Error: The given key was not present in the dictionary.</p></body></html>`).MissingKey())
	assert.False(t, mustParse(t, `<html><body><p>Keine Daten</p></body></html>`).MissingKey())
}

const resultFixture = `<html><body>
<table bgcolor="whitesmoke">
  <tr><td><span>Art:</span></td><td> <span> Halter </span></td></tr>
  <tr><td><div><span><b>Name:</b></span></div></td>
      <td><div><span><br/>Muster Hans</span><span>ignored</span></div></td></tr>
  <tr><td><div><span>Strasse:</span></div></td><td><div><span>Bahnhofstrasse 1</span></div></td></tr>
  <tr><td><div><span>Ort:</span></div></td><td><div><span>8001 Zürich</span></div></td></tr>
</table>
<table bgcolor="white"><tr><td>Art:</td><td>Not an owner</td></tr></table>
<table bgcolor="whitesmoke">
  <tr><td>Art:</td><td>Leasing</td></tr>
  <tr><td>Name:</td><td>Auto AG</td></tr>
  <tr><td>Strasse:</td><td>Industriestrasse 9</td></tr>
  <tr><td>Ort:</td><td>6300 Zug</td></tr>
</table>
</body></html>`

func TestPage_Owners(t *testing.T) {
	owners, err := mustParse(t, resultFixture).Owners()
	require.NoError(t, err)

	assert.Equal(t, []models.Owner{
		{Type: "Halter", Name: "Muster Hans", Street: "Bahnhofstrasse 1", City: "8001 Zürich"},
		{Type: "Leasing", Name: "Auto AG", Street: "Industriestrasse 9", City: "6300 Zug"},
	}, owners)
}

func TestPage_OwnersEmpty(t *testing.T) {
	owners, err := mustParse(t, `<html><body><p>Keine Halter gefunden</p></body></html>`).Owners()
	require.NoError(t, err)
	assert.NotNil(t, owners)
	assert.Empty(t, owners)
}

func TestPage_OwnersIncompleteRow(t *testing.T) {
	page := mustParse(t, `<html><body><table bgcolor="whitesmoke">
<tr><td>Art:</td><td>Halter</td></tr>
<tr><td>Name:</td><td>Muster</td></tr>
</table></body></html>`)

	_, err := page.Owners()
	assert.ErrorContains(t, err, "Strasse:")
}
