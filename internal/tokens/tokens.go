// Package tokens holds the fixed catalogue of placeholders that text
// elements may embed, and the substitution the renderer applies.
package tokens

import (
	"strconv"
	"strings"

	"badge-studio/internal/models"
)

// Token is a placeholder string and the label shown to operators.
type Token struct {
	Token string `json:"token"`
	Label string `json:"label"`
}

const (
	Name       = "{nome}"
	Title      = "{titulo}"
	Profession = "{profissao}"
	Discipline = "{disciplina}"
	EventName  = "{evento}"
	EventDate  = "{data_evento}"
	EventVenue = "{local_evento}"
	QRCode     = "{qrcode}"
)

var catalogue = []Token{
	{Token: Name, Label: "Nome"},
	{Token: Title, Label: "Título"},
	{Token: Profession, Label: "Profissão"},
	{Token: Discipline, Label: "Disciplina"},
	{Token: EventName, Label: "Nome do Evento"},
	{Token: EventDate, Label: "Data do Evento"},
	{Token: EventVenue, Label: "Local do Evento"},
	{Token: QRCode, Label: "QR Code"},
}

// All returns a copy of the catalogue in display order.
func All() []Token {
	out := make([]Token, len(catalogue))
	copy(out, catalogue)
	return out
}

// First is the default content of a new field element.
func First() Token {
	return catalogue[0]
}

// Lookup finds a token by its placeholder string.
func Lookup(token string) (Token, bool) {
	for _, t := range catalogue {
		if t.Token == token {
			return t, true
		}
	}
	return Token{}, false
}

// Contains reports whether content embeds at least one known token.
func Contains(content string) bool {
	for _, t := range catalogue {
		if strings.Contains(content, t.Token) {
			return true
		}
	}
	return false
}

// Values maps placeholders to their substitution for one badge.
type Values map[string]string

// DateLayout is how {data_evento} is printed.
const DateLayout = "02/01/2006"

// ValuesFor builds the substitution table for one person at one event.
// enrollment may be nil for speakers printed without an enrollment.
func ValuesFor(event models.Event, p models.Participant, enrollment *models.Enrollment) Values {
	v := Values{
		Name:       p.Name,
		Title:      p.Title,
		Profession: p.Profession,
		Discipline: p.Discipline,
		EventName:  event.Name,
		EventVenue: event.Venue,
		QRCode:     QRPayload(p, enrollment),
	}
	if !event.Date.IsZero() {
		v[EventDate] = event.Date.Format(DateLayout)
	}
	return v
}

// QRPayload is what a qrcode element encodes for a person: the
// enrollment code when there is one, otherwise the participant id.
func QRPayload(p models.Participant, enrollment *models.Enrollment) string {
	if enrollment != nil {
		if enrollment.Code != "" {
			return enrollment.Code
		}
		return "E" + strconv.Itoa(enrollment.ID)
	}
	return "P" + strconv.Itoa(p.ID)
}

// Sample returns label-valued substitutions for previews without a
// participant.
func Sample() Values {
	v := make(Values, len(catalogue))
	for _, t := range catalogue {
		v[t.Token] = t.Label
	}
	return v
}

// Resolve replaces every known token in content. Unknown placeholders
// are left verbatim.
func Resolve(content string, values Values) string {
	if content == "" || !strings.Contains(content, "{") {
		return content
	}
	pairs := make([]string, 0, len(catalogue)*2)
	for _, t := range catalogue {
		if val, ok := values[t.Token]; ok {
			pairs = append(pairs, t.Token, val)
		}
	}
	return strings.NewReplacer(pairs...).Replace(content)
}
