package api

import (
	"encoding/json"
	"net/http"
)

// InboundMessage is one WhatsApp message extracted from a webhook delivery.
type InboundMessage struct {
	From string `json:"from"`
	ID   string `json:"id"`
	Type string `json:"type"`
	Text string `json:"text"`
}

// verifyWebhook answers the Meta subscription challenge: echo hub.challenge
// when the verify token matches, 403 otherwise.
func (h *Handler) verifyWebhook(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("hub.mode") == "subscribe" && q.Get("hub.verify_token") == h.verify {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(q.Get("hub.challenge")))
		return
	}
	h.respondErr(w, r, errForbidden("token de verificación inválido"))
}

// webhookPayload mirrors the WhatsApp Business inbound delivery envelope,
// trimmed to the fields the bot consumes.
type webhookPayload struct {
	Entry []struct {
		Changes []struct {
			Value struct {
				Messages []struct {
					From string `json:"from"`
					ID   string `json:"id"`
					Type string `json:"type"`
					Text struct {
						Body string `json:"body"`
					} `json:"text"`
				} `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

// receiveWebhook accepts inbound deliveries and hands each message to the
// sink. Always 200: the provider retries on anything else, and a malformed
// payload will not get better on retry.
func (h *Handler) receiveWebhook(w http.ResponseWriter, r *http.Request) {
	var payload webhookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.log.Warn().Err(err).Msg("discarding malformed webhook payload")
		respondJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	delivered := 0
	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			for _, msg := range change.Value.Messages {
				inbound := InboundMessage{From: msg.From, ID: msg.ID, Type: msg.Type, Text: msg.Text.Body}
				if h.sink != nil {
					h.sink.HandleMessage(inbound)
				}
				delivered++
			}
		}
	}
	h.log.Info().Int("messages", delivered).Msg("webhook delivery processed")
	respondJSON(w, http.StatusOK, map[string]string{"status": "received"})
}
