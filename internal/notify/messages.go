package notify

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/crucial707/trakset/internal/models"
)

const (
	transferSubject   = "An asset that you are subscribed to has been transferred..."
	diagnosticSubject = "An error occurred in trakset!"
)

var transferHTML = template.Must(template.New("transfer").Parse(
	`<html>Hi from trakset!<br><br>The asset <b>{{.Asset}}</b> that is based at <b>{{.Location}}</b> has been transferred. ` +
		`The current holder is <b>{{.Holder}}</b> whose email address is <b>{{.Email}}</b>. ` +
		`The asset transfer id is <a href="{{.Link}}"><b>{{.ID}}</b></a></html>`,
))

type transferView struct {
	Asset    string
	Location string
	Holder   string
	Email    string
	ID       string
	Link     string
}

func transferMessage(to []string, t *models.AssetTransfer, location string, holder *models.User, baseURL string) (Message, error) {
	v := transferView{
		Asset:    t.AssetName,
		Location: location,
		ID:       t.ID.String(),
		Link:     baseURL + "/transfers/" + t.ID.String(),
	}
	if holder != nil {
		v.Holder = holder.Username
		v.Email = holder.Email
	}

	var html bytes.Buffer
	if err := transferHTML.Execute(&html, v); err != nil {
		return Message{}, err
	}
	return Message{
		To:      to,
		Subject: transferSubject,
		Text: fmt.Sprintf("Hey from trakset!\n\nThe asset %s based at %s has been transferred to %s (%s).\nTransfer: %s\n",
			v.Asset, v.Location, v.Holder, v.Email, v.Link),
		HTML: html.String(),
	}, nil
}

func diagnosticMessage(to []string, detail string) Message {
	return Message{
		To:      to,
		Subject: diagnosticSubject,
		Text:    "Hey from trakset!\n\nError details:\n" + detail,
	}
}
