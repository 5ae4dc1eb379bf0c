package propagator

import (
	"encoding/json"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/telhawk-systems/event-relay/internal/models"
)

var eventTypes = []string{
	"user.login",
	"user.logout",
	"user.signup",
	"order.created",
	"order.shipped",
	"payment.processed",
	"page.view",
}

// Generate returns n synthetic events. The payload is a JSON document
// rendered as a string, since the consumer only accepts string payloads.
// A zero seed draws a random one.
func Generate(n int, seed int64) []models.SubmittedEvent {
	faker := gofakeit.New(seed)

	events := make([]models.SubmittedEvent, 0, n)
	for i := 0; i < n; i++ {
		eventType := faker.RandomString(eventTypes)
		events = append(events, models.SubmittedEvent{
			EventType:    eventType,
			EventPayload: generatePayload(faker, eventType),
		})
	}
	return events
}

func generatePayload(faker *gofakeit.Faker, eventType string) string {
	var payload map[string]any

	switch eventType {
	case "user.login", "user.logout", "user.signup":
		payload = map[string]any{
			"user_id":  faker.UUID(),
			"username": faker.Username(),
			"email":    faker.Email(),
			"ip":       faker.IPv4Address(),
		}
	case "order.created", "order.shipped":
		payload = map[string]any{
			"order_id": faker.UUID(),
			"customer": faker.Name(),
			"items":    faker.Number(1, 10),
			"total":    faker.Price(5, 500),
		}
	case "payment.processed":
		payload = map[string]any{
			"payment_id": faker.UUID(),
			"amount":     faker.Price(1, 1000),
			"currency":   faker.CurrencyShort(),
		}
	default:
		payload = map[string]any{
			"url":        faker.URL(),
			"user_agent": faker.UserAgent(),
			"referrer":   faker.DomainName(),
		}
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return faker.Word()
	}
	return string(data)
}
