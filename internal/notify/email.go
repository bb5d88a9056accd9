package notify

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"

	"github.com/alanyoungcy/prizedraw/internal/domain"
)

type winnerEmailData struct {
	Username      string
	Title         string
	Prize         string
	PrizeValue    float64
	WinningTicket int
	ImageURL      string
	ClaimURL      string
	Seed          string
	BlockHash     string
}

var winnerHTML = htmltemplate.Must(htmltemplate.New("winner.html").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #222;">
  <h1>Congratulations, {{.Username}}!</h1>
  <p>Your ticket <strong>#{{.WinningTicket}}</strong> won <strong>{{.Title}}</strong>.</p>
  {{if .ImageURL}}<p><img src="{{.ImageURL}}" alt="{{.Prize}}" style="max-width: 480px;"></p>{{end}}
  <p>Prize: {{.Prize}}{{if gt .PrizeValue 0.0}} (worth £{{printf "%.2f" .PrizeValue}}){{end}}</p>
  <p><a href="{{.ClaimURL}}">Claim your prize</a></p>
  <hr>
  <p style="font-size: 12px; color: #777;">Draw seed: {{.Seed}}<br>Block hash: {{.BlockHash}}</p>
</body>
</html>
`))

var winnerText = texttemplate.Must(texttemplate.New("winner.txt").Parse(`Congratulations, {{.Username}}!

Your ticket #{{.WinningTicket}} won {{.Title}}.
Prize: {{.Prize}}{{if gt .PrizeValue 0.0}} (worth £{{printf "%.2f" .PrizeValue}}){{end}}

Claim your prize: {{.ClaimURL}}

Draw seed: {{.Seed}}
Block hash: {{.BlockHash}}
`))

func winnerSubject(c domain.Competition) string {
	return fmt.Sprintf("You won %s!", c.Title)
}

func renderWinnerEmail(data winnerEmailData) (domain.EmailContent, error) {
	var h, t bytes.Buffer
	if err := winnerHTML.Execute(&h, data); err != nil {
		return domain.EmailContent{}, fmt.Errorf("notify: render winner html: %w", err)
	}
	if err := winnerText.Execute(&t, data); err != nil {
		return domain.EmailContent{}, fmt.Errorf("notify: render winner text: %w", err)
	}
	return domain.EmailContent{HTML: h.String(), Text: t.String()}, nil
}
