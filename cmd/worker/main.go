package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"tour-booking-system/internal/api"
	"tour-booking-system/internal/config"
	"tour-booking-system/internal/database"
	"tour-booking-system/internal/mailer"
	"tour-booking-system/internal/payments"
	"tour-booking-system/internal/temporal/activities"
	"tour-booking-system/internal/temporal/workflows"

	"github.com/joho/godotenv"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	// Load configuration
	cfg := config.Load()

	// Connect to database
	db, err := database.NewDB(cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	log.Println("Connected to database")

	// Connect to Temporal
	temporalClient, err := client.Dial(client.Options{
		HostPort: cfg.TemporalAddress,
	})
	if err != nil {
		log.Fatalf("Failed to create Temporal client: %v", err)
	}
	defer temporalClient.Close()

	log.Println("Connected to Temporal")

	// Create worker
	w := worker.New(temporalClient, api.TaskQueue, worker.Options{})

	// Register workflows
	w.RegisterWorkflow(workflows.CheckoutWorkflow)
	w.RegisterWorkflow(workflows.PaymentConfirmationWorkflow)

	// Register activities
	bookingActivities := activities.NewBookingActivities(db)
	w.RegisterActivity(bookingActivities.CreateBooking)
	w.RegisterActivity(bookingActivities.GetBooking)
	w.RegisterActivity(bookingActivities.MarkBookingPaid)
	w.RegisterActivity(bookingActivities.ConfirmBooking)

	payClient := payments.NewClient(cfg.PaymentAPIURL, cfg.PaymentAPIKey, cfg.PaymentTimeout)
	paymentActivities := activities.NewPaymentActivities(payClient)
	w.RegisterActivity(paymentActivities.CreateIntent)
	w.RegisterActivity(paymentActivities.ConfirmPayment)

	mailClient := mailer.NewClient(cfg.EmailAPIURL, cfg.EmailAPIKey, cfg.EmailTimeout)
	emailActivities := activities.NewEmailActivities(mailClient)
	w.RegisterActivity(emailActivities.SendConfirmation)

	// Start worker
	err = w.Start()
	if err != nil {
		log.Fatalf("Failed to start worker: %v", err)
	}

	log.Println("Worker started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down worker...")
	w.Stop()
	log.Println("Worker stopped")
}
