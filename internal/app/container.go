// Package app wires repositories, services and handlers together.
package app

import (
	"time"

	"go-inventory-tree/internal/handler"
	"go-inventory-tree/internal/lookup"
	"go-inventory-tree/internal/repository"
	"go-inventory-tree/internal/service"
	"go-inventory-tree/internal/ws"
	"go-inventory-tree/pkg/jwt"

	"github.com/bsm/redislock"
	"gorm.io/gorm"
)

// Container holds one instance of every service.
type Container struct {
	DB *gorm.DB

	Users      service.UserService
	Auth       service.AuthService
	Types      service.EntityTypeService
	Entities   service.EntityService
	History    service.HistoryService
	Warehouses service.WarehouseService
	Checks     service.InventoryCheckService
	Suppliers  service.SupplierService
	Barcodes   service.BarcodeService
	Lookup     lookup.ProductLookupService
	Seeder     *service.Seeder
}

type Options struct {
	Tokens  *jwt.Manager
	Events  ws.Publisher
	Lookup  lookup.ProductLookupService
	Locker  *redislock.Client
	LockKey string
	LockTTL time.Duration
}

func NewContainer(db *gorm.DB, opts Options) *Container {
	events := opts.Events
	if events == nil {
		events = ws.Nop{}
	}
	lookupService := opts.Lookup
	if lookupService == nil {
		lookupService = lookup.NewService(nil, nil, 0)
	}

	userRepo := repository.NewUserRepo(db)
	entityRepo := repository.NewEntityRepo(db)
	historyRepo := repository.NewHistoryRepo(db)
	warehouseRepo := repository.NewWarehouseRepo(db)

	users := service.NewUserService(userRepo)
	types := service.NewEntityTypeService(repository.NewEntityTypeRepo(db), entityRepo, events)

	return &Container{
		DB:    db,
		Users: users,
		Auth:  service.NewAuthService(userRepo, opts.Tokens),
		Types: types,
		Entities: service.NewEntityService(db, entityRepo, repository.NewRelationRepo(db), historyRepo,
			warehouseRepo, types, events),
		History:    service.NewHistoryService(entityRepo, historyRepo),
		Warehouses: service.NewWarehouseService(warehouseRepo, entityRepo),
		Checks: service.NewInventoryCheckService(db, repository.NewInventoryCheckRepo(db), entityRepo, historyRepo,
			types, events),
		Suppliers: service.NewSupplierService(repository.NewSupplierPatternRepo(db)),
		Barcodes:  service.NewBarcodeService(repository.NewSettingRepo(db)),
		Lookup:    lookupService,
		Seeder:    service.NewSeeder(types, users, opts.Locker, opts.LockKey, opts.LockTTL),
	}
}

// Handlers builds the HTTP layer. hub and health may be nil.
func (c *Container) Handlers(hub *ws.Hub, health *handler.HealthHandler) handler.Handlers {
	return handler.Handlers{
		Auth:       c.Auth,
		Entity:     handler.NewEntityHandler(c.Entities, c.History),
		EntityType: handler.NewEntityTypeHandler(c.Types),
		Supplier:   handler.NewSupplierHandler(c.Suppliers),
		Settings:   handler.NewSettingsHandler(c.Barcodes),
		Lookup:     handler.NewLookupHandler(c.Lookup),
		Warehouse:  handler.NewWarehouseHandler(c.Warehouses),
		Check:      handler.NewInventoryCheckHandler(c.Checks),
		AuthH:      handler.NewAuthHandler(c.Auth, c.Users),
		User:       handler.NewUserHandler(c.Users),
		Health:     health,
		Hub:        hub,
	}
}
