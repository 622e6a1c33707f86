// stripe-webhook-sim posts a signed checkout.session.completed event to a
// running salonbook instance, for exercising the reconciliation path without
// a real Stripe account.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v79/webhook"
)

func main() {
	var (
		baseURL   = flag.String("base-url", getenv("BASE_URL", "http://localhost:8080"), "salonbook base url")
		sessionID = flag.String("session-id", getenv("SESSION_ID", ""), "checkout session id (default generated)")
		bookingID = flag.String("booking-id", getenv("BOOKING_ID", ""), "booking_id metadata (default generated)")
		name      = flag.String("name", getenv("CLIENT_NAME", "Test Client"), "client name metadata")
		phone     = flag.String("phone", getenv("CLIENT_PHONE", "5550001111"), "client phone metadata")
		date      = flag.String("date", getenv("BOOKING_DATE", ""), "booking date YYYY-MM-DD (default tomorrow)")
		startTime = flag.String("start-time", getenv("BOOKING_START", "12:00"), "booking start HH:MM")
		duration  = flag.String("duration", getenv("BOOKING_DURATION", "2"), "booking duration in hours")
		svc       = flag.String("service", getenv("BOOKING_SERVICE", "gel-x"), "service metadata")
		secret    = flag.String("secret", getenv("STRIPE_WEBHOOK_SECRET", ""), "stripe webhook signing secret (whsec_...)")
	)
	flag.Parse()

	if strings.TrimSpace(*secret) == "" {
		fatal("STRIPE_WEBHOOK_SECRET is required")
	}

	now := time.Now().UTC()
	if *sessionID == "" {
		*sessionID = fmt.Sprintf("cs_test_%d", now.UnixNano())
	}
	if *bookingID == "" {
		*bookingID = fmt.Sprintf("bk_test_%d", now.UnixNano())
	}
	if *date == "" {
		*date = now.AddDate(0, 0, 1).Format("2006-01-02")
	}

	payload, err := buildEventJSON(now, *sessionID, map[string]string{
		"booking_id": *bookingID,
		"name":       *name,
		"phone":      *phone,
		"service":    *svc,
		"date":       *date,
		"start_time": *startTime,
		"duration":   *duration,
	})
	if err != nil {
		fatal(err.Error())
	}

	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    *secret,
		Timestamp: now,
		Scheme:    "v1",
	})

	req, err := http.NewRequest(http.MethodPost, strings.TrimRight(*baseURL, "/")+"/api/v1/webhooks/stripe", bytes.NewReader(payload))
	if err != nil {
		fatal(err.Error())
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Stripe-Signature", signed.Header)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fatal(err.Error())
	}
	defer resp.Body.Close()

	fmt.Printf("session_id=%s booking_id=%s status=%d\n", *sessionID, *bookingID, resp.StatusCode)
}

func buildEventJSON(t time.Time, sessionID string, metadata map[string]string) ([]byte, error) {
	return json.Marshal(map[string]any{
		"id":          fmt.Sprintf("evt_test_%d", t.UnixNano()),
		"object":      "event",
		"created":     t.Unix(),
		"type":        "checkout.session.completed",
		"api_version": "2020-08-27",
		"data": map[string]any{
			"object": map[string]any{
				"id":             sessionID,
				"object":         "checkout.session",
				"payment_status": "paid",
				"metadata":       metadata,
			},
		},
	})
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func fatal(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(2)
}
