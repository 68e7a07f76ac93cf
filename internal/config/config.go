package config

import (
	"github.com/kelseyhightower/envconfig"
)

type App struct {
	Port        string `envconfig:"PORT" default:"8080"`
	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	CORSOrigins string `envconfig:"CORS_ORIGINS" default:"http://localhost:5173"`

	// Payment gateways. PROCESSOR selects which one handles charges and
	// webhooks; the other's keys may stay unset.
	Processor           string `envconfig:"PAYMENT_PROCESSOR" default:"stripe"`
	StripeSecretKey     string `envconfig:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret string `envconfig:"STRIPE_WEBHOOK_SECRET"`
	OmisePublicKey      string `envconfig:"OMISE_PUBLIC_KEY"`
	OmiseSecretKey      string `envconfig:"OMISE_SECRET_KEY"`

	// Scheduling provider (holds, reschedules, client book).
	SchedulingBaseURL string `envconfig:"SCHEDULING_BASE_URL" required:"true"`
	SchedulingAPIKey  string `envconfig:"SCHEDULING_API_KEY"`

	// Calendar side-channel.
	CalendarBaseURL string `envconfig:"CALENDAR_BASE_URL"`
	CalendarAPIKey  string `envconfig:"CALENDAR_API_KEY"`

	// Transactional mail.
	MailBaseURL  string `envconfig:"MAIL_BASE_URL"`
	MailAPIKey   string `envconfig:"MAIL_API_KEY"`
	MailFrom     string `envconfig:"MAIL_FROM" default:"bookings@auraesthetics.example"`
	MailFromName string `envconfig:"MAIL_FROM_NAME" default:"Auraesthetics"`

	// RabbitMQ for post-commit notification events; empty disables the
	// notify worker.
	RabbitURL      string `envconfig:"RABBIT_URL"`
	RabbitExchange string `envconfig:"RABBIT_EXCHANGE" default:"booking.events"`
}

func Load() (App, error) {
	var c App
	err := envconfig.Process("", &c)
	return c, err
}
