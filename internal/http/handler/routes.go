package handler

import (
	"database/sql"

	"github.com/gofiber/fiber/v2"

	"dppapi/internal/service"
	"dppapi/internal/storage"
)

// RegisterRoutes attaches HTTP routes to the provided Fiber app.
// Handlers stay thin: parsing, translation, and delegation to the service.
func RegisterRoutes(app *fiber.App, db *sql.DB, svc service.PassportService, store storage.Storage) {
	// Serve OpenAPI spec and Swagger UI
	app.Get("/openapi.yaml", func(c *fiber.Ctx) error {
		c.Type("yaml")
		return c.SendFile("openapi.yaml")
	})
	app.Get("/docs", func(c *fiber.Ctx) error {
		html := `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>API Docs</title>
  <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    window.ui = SwaggerUIBundle({
      url: '/openapi.yaml',
      dom_id: '#swagger-ui',
      presets: [SwaggerUIBundle.presets.apis],
      layout: 'BaseLayout'
    });
  </script>
</body>
</html>`
		return c.Type("html").SendString(html)
	})

	app.Get("/health", HealthCheck(db))
	app.Get("/healthz", LivenessProbe())

	app.Post("/passports", CreatePassport(svc))
	app.Get("/passports/:id/status", GetPassportStatus(svc))

	app.Get("/passports/:id/documents", ListDocuments(svc))
	app.Post("/passports/:id/documents", UploadDocument(svc, store))
	app.Post("/passports/:id/documents/review", ReviewDocument(svc))
	app.Post("/passports/:id/documents/reupload", ReuploadDocument(svc, store))
	app.Get("/passports/:id/documents/:docID", GetDocument(svc))
	app.Get("/passports/:id/documents/:docID/download", DocumentDownloadURL(svc, store))
}
