package httpapi

import (
	"encoding/xml"
	"fmt"
)

// messagingResponse is the TwiML document Twilio expects back from a
// messaging webhook.
type messagingResponse struct {
	XMLName xml.Name `xml:"Response"`
	Message string   `xml:"Message"`
}

// twiML renders the reply as a TwiML messaging response.
func twiML(reply string) ([]byte, error) {
	out, err := xml.Marshal(messagingResponse{Message: reply})
	if err != nil {
		return nil, fmt.Errorf("encode twiml: %w", err)
	}
	return append([]byte(xml.Header), out...), nil
}
