package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"motionify/portal-api/config"
	"motionify/portal-api/handlers"
	"motionify/portal-api/internal/notifier"
	"motionify/portal-api/internal/processorclient"
	"motionify/portal-api/middleware"
)

func main() {
	config.InitLogger()

	if err := config.InitSupabase(); err != nil {
		config.Log.Fatalf("Failed to initialize Supabase: %v", err)
	}
	db := config.GetSupabaseClient()

	processor := processorclient.New(config.GetProcessorAddr(), config.Log)

	// Parameters: maxWorkers, queueSize
	dispatcher := notifier.NewDispatcher(&notifier.SupabaseStore{DB: db}, config.Log, 3, 100)
	dispatcher.Run()

	h := handlers.NewApplicationHandler(config.Log, db, processor, dispatcher)

	app := fiber.New()

	app.Use(cors.New(cors.Config{
		AllowOrigins: "*", // Allow all origins for development
		AllowHeaders: "Origin, Content-Type, Accept",
	}))
	app.Use(middleware.RequestLogger())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status":  "ok",
			"message": "Client portal API is healthy",
		})
	})

	apiV1 := app.Group("/api/v1")

	// Project routes
	apiV1.Get("/projects/:projectId", h.GetProject)
	apiV1.Post("/projects/:projectId/accept-terms", h.AcceptTerms)

	// Deliverable routes within a project
	deliverables := apiV1.Group("/projects/:projectId/deliverables")
	deliverables.Get("", h.ListDeliverables)
	deliverables.Post("", h.CreateDeliverable)
	deliverables.Get("/:deliverableId", h.GetDeliverable)
	deliverables.Patch("/:deliverableId", h.UpdateDeliverable)
	deliverables.Get("/:deliverableId/permissions", h.GetDeliverablePermissions)

	// Lifecycle triggers
	deliverables.Post("/:deliverableId/start-work", h.StartWork)
	deliverables.Post("/:deliverableId/send-for-review", h.SendForReview)
	deliverables.Post("/:deliverableId/approval", h.SubmitApproval)
	deliverables.Post("/:deliverableId/confirm-payment", h.ConfirmPayment)

	// Timestamped comments
	deliverables.Get("/:deliverableId/comments", h.ListComments)
	deliverables.Post("/:deliverableId/comments", h.CreateComment)
	deliverables.Patch("/:deliverableId/comments/:commentId", h.UpdateComment)
	deliverables.Delete("/:deliverableId/comments/:commentId", h.DeleteComment)

	// Files and presigned uploads
	deliverables.Get("/:deliverableId/files", h.ListFiles)
	deliverables.Delete("/:deliverableId/files/:fileId", h.DeleteFile)
	deliverables.Post("/:deliverableId/uploads", h.InitiateDeliverableUpload)
	deliverables.Post("/:deliverableId/uploads/:fileId/complete", h.CompleteDeliverableUpload)
	deliverables.Get("/:deliverableId/download-url", h.GetDownloadURL)

	// Additional revision requests
	apiV1.Get("/projects/:projectId/revision-requests", h.ListRevisionRequests)
	apiV1.Post("/projects/:projectId/revision-requests", h.CreateRevisionRequest)
	apiV1.Patch("/revision-requests/:requestId", h.ResolveRevisionRequest)

	// Notifications
	apiV1.Get("/users/:userId/notifications", h.ListNotifications)
	apiV1.Patch("/users/:userId/notifications/read-all", h.MarkAllNotificationsRead)
	apiV1.Patch("/notifications/:id", h.MarkNotificationRead)

	// Graceful shutdown: stop accepting requests, then drain the
	// notification workers.
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		config.Log.Info("Shutting down...")
		if err := app.Shutdown(); err != nil {
			config.Log.Errorf("Error during server shutdown: %v", err)
		}
	}()

	addr := ":" + config.GetPort()
	config.Log.Infof("Starting client portal API on %s", addr)
	if err := app.Listen(addr); err != nil {
		config.Log.Fatalf("Server stopped: %v", err)
	}

	dispatcher.Stop()
	config.Log.Info("Shut down gracefully.")
}
