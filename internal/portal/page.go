package portal

import (
	"fmt"
	"io"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/anime-shed/plategate-go/pkg/models"
)

const (
	missingKeyMarker = "key was not present in the dictionary"
	ownerRowSelector = "[bgcolor=whitesmoke]"
)

// hiddenFieldIDs are the ASP.NET form state fields every postback must echo
var hiddenFieldIDs = []string{"__VIEWSTATE", "__VIEWSTATEGENERATOR", "__EVENTVALIDATION"}

var triesPattern = regexp.MustCompile(`(\d+)/(\d+)$`)

// Page is a parsed portal response
type Page struct {
	doc *goquery.Document
}

// ParsePage parses an HTML document
func ParsePage(r io.Reader) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}
	return &Page{doc: doc}, nil
}

// HiddenFields returns the form state to post back. A field may be empty but must exist.
func (p *Page) HiddenFields() (url.Values, error) {
	form := url.Values{}
	for _, id := range hiddenFieldIDs {
		input := p.doc.Find("input#" + id)
		if input.Length() == 0 {
			return nil, fmt.Errorf("page has no %s field", id)
		}
		form.Set(id, input.AttrOr("value", ""))
	}
	return form, nil
}

// CaptchaSource returns the src of the login captcha image
func (p *Page) CaptchaSource() (string, error) {
	src, ok := p.doc.Find("img#SecBild").Attr("src")
	if !ok || strings.TrimSpace(src) == "" {
		return "", fmt.Errorf("login page has no captcha image")
	}
	return strings.TrimSpace(src), nil
}

// CaptchaFieldID returns the id of the text input receiving the captcha solution
func (p *Page) CaptchaFieldID() (string, error) {
	id, ok := p.doc.Find("input[type=text]").First().Attr("id")
	if !ok || id == "" {
		return "", fmt.Errorf("login page has no captcha input")
	}
	return id, nil
}

// RemainingTries reads the "used/total" counter of a search page
func (p *Page) RemainingTries() (int, error) {
	label := p.doc.Find("span#LabelAnzahl")
	if label.Length() == 0 {
		return 0, fmt.Errorf("page has no query counter")
	}
	m := triesPattern.FindStringSubmatch(strings.TrimSpace(label.Text()))
	if m == nil {
		return 0, fmt.Errorf("unreadable query counter %q", label.Text())
	}
	used, _ := strconv.Atoi(m[1])
	total, _ := strconv.Atoi(m[2])
	return total - used, nil
}

// MissingKey reports the portal's internal dictionary error, shown when a
// search was posted against a stale form
func (p *Page) MissingKey() bool {
	return strings.Contains(p.doc.Text(), missingKeyMarker)
}

// Owners extracts one owner per highlighted result row
func (p *Page) Owners() ([]models.Owner, error) {
	rows := p.doc.Find(ownerRowSelector)
	owners := make([]models.Owner, 0, rows.Length())
	var err error
	rows.EachWithBreak(func(i int, row *goquery.Selection) bool {
		var owner models.Owner
		owner, err = parseOwner(row)
		if err != nil {
			err = fmt.Errorf("owner row %d: %w", i, err)
			return false
		}
		owners = append(owners, owner)
		return true
	})
	if err != nil {
		return nil, err
	}
	return owners, nil
}

func parseOwner(row *goquery.Selection) (models.Owner, error) {
	var owner models.Owner
	fields := []struct {
		label string
		dst   *string
	}{
		{"Art:", &owner.Type},
		{"Name:", &owner.Name},
		{"Strasse:", &owner.Street},
		{"Ort:", &owner.City},
	}
	for _, f := range fields {
		v, err := labelledValue(row, f.label)
		if err != nil {
			return models.Owner{}, err
		}
		*f.dst = v
	}
	return owner, nil
}

// labelledValue finds the cell whose own text is label and returns the first
// text of the cell next to it
func labelledValue(row *goquery.Selection, label string) (string, error) {
	match := row.Find("*").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return ownText(s.Get(0)) == label
	}).First()
	if match.Length() == 0 {
		return "", fmt.Errorf("no %q label", label)
	}
	cell := match.Closest("td")
	if cell.Length() == 0 {
		cell = match
	}
	value := cell.NextFiltered("td")
	if value.Length() == 0 {
		return "", fmt.Errorf("no value next to %q", label)
	}
	return firstText(value.Get(0)), nil
}

func ownText(n *html.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	}
	return strings.TrimSpace(b.String())
}

func firstText(n *html.Node) string {
	if n.Type == html.TextNode {
		return strings.TrimSpace(n.Data)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := firstText(c); t != "" {
			return t
		}
	}
	return ""
}
