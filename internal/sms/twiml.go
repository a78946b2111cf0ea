package sms

import (
	"encoding/xml"
	"strings"
)

// Inbound keywords customers may text back after the confirmation SMS.
const (
	KeywordConfirm = "CONFIRM"
	KeywordCancel  = "CANCEL"
)

// messagingResponse is the TwiML document Twilio expects from an SMS webhook.
type messagingResponse struct {
	XMLName xml.Name `xml:"Response"`
	Message string   `xml:"Message"`
}

// TwiML renders a reply message as a TwiML <Response> document.
func TwiML(message string) []byte {
	raw, err := xml.Marshal(messagingResponse{Message: message})
	if err != nil {
		// A struct with a single string field cannot fail to marshal.
		panic(err)
	}
	return append([]byte(xml.Header), raw...)
}

// NormalizeKeyword trims and uppercases an inbound message body so "confirm",
// " Confirm " and "CONFIRM" all match.
func NormalizeKeyword(body string) string {
	return strings.ToUpper(strings.TrimSpace(body))
}
