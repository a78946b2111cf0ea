package handlers

import (
	"log/slog"
	"net/http"

	"github.com/green-horizons/lawnbook/internal/booking"
	"github.com/green-horizons/lawnbook/internal/sms"
)

const (
	replyConfirmed = "Thank you for confirming your appointment with Green Horizons Lawn Care! We look forward to serving you."
	replyCancelled = "We have received your cancellation request. Someone will contact you shortly to reschedule."
	replyHelp      = "Please reply with CONFIRM to confirm your appointment or CANCEL to cancel it."
)

// SMSWebhookHandler receives inbound message callbacks from the SMS provider
// and answers with a TwiML document. The reply is always one of three canned
// messages; the matching appointment's status update is best effort and never
// changes the reply or the 200 response the provider expects.
type SMSWebhookHandler struct {
	svc    *booking.Service
	logger *slog.Logger
}

func NewSMSWebhookHandler(svc *booking.Service, logger *slog.Logger) *SMSWebhookHandler {
	return &SMSWebhookHandler{svc: svc, logger: logger}
}

func (h *SMSWebhookHandler) Inbound(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form body", http.StatusBadRequest)
		return
	}

	keyword := sms.NormalizeKeyword(r.FormValue("Body"))
	from := r.FormValue("From")

	var reply string
	switch keyword {
	case sms.KeywordConfirm:
		reply = replyConfirmed
		appointment, ok, err := h.svc.ConfirmFromSMS(r.Context(), from)
		if err != nil {
			h.logger.Error("sms confirm update failed", "err", err)
		} else if !ok {
			h.logger.Warn("sms confirm matched no scheduled appointment", "from", from)
		} else {
			h.logger.Info("appointment confirmed via sms", "appointment_id", appointment.ID)
		}
	case sms.KeywordCancel:
		reply = replyCancelled
		appointment, ok, err := h.svc.CancelFromSMS(r.Context(), from)
		if err != nil {
			h.logger.Error("sms cancel update failed", "err", err)
		} else if !ok {
			h.logger.Warn("sms cancel matched no active appointment", "from", from)
		} else {
			h.logger.Info("appointment cancelled via sms", "appointment_id", appointment.ID)
		}
	default:
		reply = replyHelp
	}

	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(sms.TwiML(reply))
}
