package sms

import (
	"github.com/twilio/twilio-go/twiml"
)

// Reply 把一段回复文本包装成 TwiML 文档，Twilio webhook 响应用。
func Reply(body string) (string, error) {
	return twiml.Messages([]twiml.Element{
		&twiml.MessagingMessage{Body: body},
	})
}
