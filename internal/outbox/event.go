package outbox

import (
	"encoding/json"
	"time"

	"github.com/randevuhq/randevu/internal/model"
)

// Topic per event type; the Kafka topic name equals EventType.
const (
	EventAppointmentBooked    = "randevu.appointment.booked.v1"
	EventAppointmentCancelled = "randevu.appointment.cancelled.v1"
	EventTenantCreated        = "randevu.tenant.created.v1"
)

// Event is the domain event envelope written to the outbox table.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

type appointmentPayload struct {
	AppointmentID string    `json:"appointment_id"`
	TenantID      string    `json:"tenant_id"`
	ClientID      string    `json:"client_id"`
	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time"`
	Source        string    `json:"source"`
}

func AppointmentBooked(a model.Appointment) Event {
	payload, _ := json.Marshal(appointmentPayload{
		AppointmentID: a.ID,
		TenantID:      a.TenantID,
		ClientID:      a.ClientID,
		StartTime:     a.StartTime,
		EndTime:       a.EndTime,
		Source:        a.Source,
	})
	return Event{
		AggregateType: "appointment",
		AggregateID:   a.ID,
		EventType:     EventAppointmentBooked,
		Payload:       payload,
	}
}

func AppointmentCancelled(a model.Appointment) Event {
	payload, _ := json.Marshal(appointmentPayload{
		AppointmentID: a.ID,
		TenantID:      a.TenantID,
		ClientID:      a.ClientID,
		StartTime:     a.StartTime,
		EndTime:       a.EndTime,
		Source:        a.Source,
	})
	return Event{
		AggregateType: "appointment",
		AggregateID:   a.ID,
		EventType:     EventAppointmentCancelled,
		Payload:       payload,
	}
}

func TenantCreated(t model.Tenant) Event {
	payload, _ := json.Marshal(struct {
		TenantID  string `json:"tenant_id"`
		Name      string `json:"name"`
		TenantKey string `json:"tenant_key"`
	}{t.ID, t.Name, t.TenantKey})
	return Event{
		AggregateType: "tenant",
		AggregateID:   t.ID,
		EventType:     EventTenantCreated,
		Payload:       payload,
	}
}
