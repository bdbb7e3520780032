// sendwebhook signs and posts a sample provider delivery at the local
// webhook endpoint. Development tool; the secret must match the server's
// PAYMENT_WEBHOOK_SECRET.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/checkpointhq/checkpoint/internal/webhook"
)

func main() {
	url := flag.String("url", "http://localhost:8080/webhooks/payments", "webhook endpoint")
	secret := flag.String("secret", "dev-secret", "shared HMAC secret")
	eventType := flag.String("type", webhook.ProviderSubscriptionCreated, "provider event type")
	userID := flag.String("user", "usr_demo", "local user id (custom data)")
	subID := flag.String("sub", "psub_demo", "provider subscription id")
	planID := flag.String("plan", "plan_monthly", "plan id")
	svix := flag.Bool("svix", false, "send the signature as a t=...,v1=... list instead of bare hex")
	flag.Parse()

	now := time.Now().UTC()
	periodEnd := now.AddDate(0, 1, 0)

	body, err := json.Marshal(webhook.Envelope{
		EventID:    "evt_" + uuid.NewString(),
		EventType:  *eventType,
		OccurredAt: now,
		Data: webhook.SubscriptionData{
			ID:            *subID,
			CustomerID:    "cus_demo",
			TransactionID: "txn_" + uuid.NewString(),
			PlanID:        *planID,
			CurrencyCode:  "USD",
			UnitPrice:     2900,
			PeriodStart:   &now,
			PeriodEnd:     &periodEnd,
			CustomData:    map[string]string{"user_id": *userID},
		},
	})
	if err != nil {
		log.Fatalf("marshal payload: %v", err)
	}

	eventID := "dlv_" + uuid.NewString()
	timestamp := strconv.FormatInt(now.Unix(), 10)
	signature := webhook.NewVerifier(*secret).Sign(eventID, timestamp, body)
	if *svix {
		signature = fmt.Sprintf("t=%s,v1=%s", timestamp, signature)
	}

	req, err := http.NewRequest(http.MethodPost, *url, bytes.NewReader(body))
	if err != nil {
		log.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(webhook.HeaderEventID, eventID)
	req.Header.Set(webhook.HeaderTimestamp, timestamp)
	req.Header.Set(webhook.HeaderSignature, signature)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatalf("send: %v", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	fmt.Printf("%s %s -> %d %s\n", *eventType, eventID, resp.StatusCode, string(respBody))
}
