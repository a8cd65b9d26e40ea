package handler

import (
	"go-inventory-tree/internal/middleware"
	"go-inventory-tree/internal/model"
	"go-inventory-tree/internal/service"
	"go-inventory-tree/internal/ws"

	"github.com/gofiber/fiber/v2"
)

// Handlers bundles everything RegisterRoutes mounts. Hub and Health may be
// nil, in which case /ws and /health are not mounted.
type Handlers struct {
	Auth       service.AuthService
	Entity     *EntityHandler
	EntityType *EntityTypeHandler
	Supplier   *SupplierHandler
	Settings   *SettingsHandler
	Lookup     *LookupHandler
	Warehouse  *WarehouseHandler
	Check      *InventoryCheckHandler
	AuthH      *AuthHandler
	User       *UserHandler
	Health     *HealthHandler
	Hub        *ws.Hub
}

// RegisterRoutes mounts the API. Reads need a viewer, stock changes a
// manager, and catalog configuration an administrator.
func RegisterRoutes(app *fiber.App, h Handlers) {
	if h.Health != nil {
		app.Get("/health", h.Health.Health)
	}
	if h.Hub != nil {
		app.Use("/ws", WSUpgrade(h.Auth))
		app.Get("/ws", WSFeed(h.Hub))
	}

	api := app.Group("/api/v1")

	// Public
	api.Post("/auth/login", h.AuthH.Login)

	protected := api.Group("", middleware.RequireAuth(h.Auth))
	viewer := middleware.RequireRole(model.RoleViewer)
	manager := middleware.RequireRole(model.RoleManager)
	admin := middleware.RequireRole(model.RoleAdministrator)

	// Auth
	protected.Post("/auth/logout", h.AuthH.Logout)
	protected.Post("/auth/change-password", h.AuthH.ChangePassword)
	protected.Get("/auth/me", h.AuthH.Me)

	// Users
	users := protected.Group("/users", admin)
	users.Get("/", h.User.GetUsers)
	users.Post("/", h.User.CreateUser)
	users.Get("/:id", h.User.GetUser)
	users.Put("/:id", h.User.UpdateUser)
	users.Delete("/:id", h.User.DeleteUser)

	// Entities
	entities := protected.Group("/entities")
	entities.Get("/", viewer, h.Entity.List)
	entities.Post("/", manager, h.Entity.Create)
	entities.Get("/barcode/:barcode", viewer, h.Entity.GetByBarcode)
	entities.Get("/:id", viewer, h.Entity.Get)
	entities.Put("/:id", manager, h.Entity.Update)
	entities.Delete("/:id", manager, h.Entity.Delete)
	entities.Post("/:id/move", manager, h.Entity.Move)
	entities.Post("/:id/convert", manager, h.Entity.Convert)
	entities.Post("/:id/split", manager, h.Entity.Split)
	entities.Post("/:id/merge", manager, h.Entity.Merge)
	entities.Post("/:id/quantity", manager, h.Entity.AdjustQuantity)
	entities.Get("/:id/children", viewer, h.Entity.ListChildren)
	entities.Post("/:id/children", manager, h.Entity.AddChild)
	entities.Put("/:id/children/:relationId", manager, h.Entity.UpdateChild)
	entities.Delete("/:id/children/:relationId", manager, h.Entity.RemoveChild)
	entities.Get("/:id/history", viewer, h.Entity.History)

	// Entity types
	types := protected.Group("/entity-types")
	types.Get("/", viewer, h.EntityType.List)
	types.Post("/", admin, h.EntityType.Create)
	types.Post("/init-defaults", admin, h.EntityType.InitDefaults)
	types.Get("/:code", viewer, h.EntityType.Get)
	types.Put("/:code", admin, h.EntityType.Update)
	types.Delete("/:code", admin, h.EntityType.Delete)
	types.Post("/:code/activate", admin, h.EntityType.Activate)
	types.Post("/:code/deactivate", admin, h.EntityType.Deactivate)

	// Supplier patterns
	suppliers := protected.Group("/supplier-patterns")
	suppliers.Get("/", viewer, h.Supplier.List)
	suppliers.Get("/match/:barcode", viewer, h.Supplier.Match)
	suppliers.Post("/test", viewer, h.Supplier.Test)
	suppliers.Get("/:id", viewer, h.Supplier.Get)
	suppliers.Post("/", admin, h.Supplier.Create)
	suppliers.Put("/:id", admin, h.Supplier.Update)
	suppliers.Delete("/:id", admin, h.Supplier.Delete)

	// Settings
	settings := protected.Group("/settings")
	settings.Get("/", viewer, h.Settings.List)
	settings.Post("/test-pattern", viewer, h.Settings.TestPattern)
	settings.Get("/pattern/examples", viewer, h.Settings.PatternExamples)
	settings.Post("/validate-barcode", viewer, h.Settings.ValidateBarcode)
	settings.Get("/:key", viewer, h.Settings.Get)
	settings.Put("/:key", admin, h.Settings.Update)

	// External catalogs
	lookups := protected.Group("/barcode-lookup", viewer)
	lookups.Get("/quick/:barcode", h.Lookup.Quick)
	lookups.Get("/:barcode", h.Lookup.Lookup)

	// Warehouses
	warehouses := protected.Group("/warehouses")
	warehouses.Get("/", viewer, h.Warehouse.List)
	warehouses.Get("/:id", viewer, h.Warehouse.Get)
	warehouses.Post("/", admin, h.Warehouse.Create)
	warehouses.Put("/:id", admin, h.Warehouse.Update)
	warehouses.Delete("/:id", admin, h.Warehouse.Delete)

	// Inventory checks
	checks := protected.Group("/checks")
	checks.Get("/", viewer, h.Check.List)
	checks.Post("/", manager, h.Check.Create)
	checks.Get("/active", viewer, h.Check.Active)
	checks.Get("/:id", viewer, h.Check.Get)
	checks.Get("/:id/grouped", viewer, h.Check.Grouped)
	checks.Put("/:id", manager, h.Check.Update)
	checks.Post("/:id/complete", manager, h.Check.Complete)
	checks.Post("/:id/cancel", manager, h.Check.Cancel)
	checks.Delete("/:id", admin, h.Check.Delete)
	checks.Put("/:id/items/:entityId", manager, h.Check.RecordCount)
	checks.Post("/:id/items/barcode/:barcode", manager, h.Check.RecordCountByBarcode)
	checks.Get("/:id/compare/:previousId", viewer, h.Check.Compare)
	checks.Post("/:id/apply-corrections", admin, h.Check.ApplyCorrections)
}
